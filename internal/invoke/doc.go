// Package invoke runs one stage step for one work item and turns the outcome
// into a batch.Result.
//
// A Runner creates the declared output directories, waits for the item's
// resource lock and launch budget, runs the external command (or an
// in-process Step) under an optional timeout, and on failure removes the
// declared output files so no half-written outputs survive. Nothing is
// retried: a failing tool is left for an operator to inspect.
package invoke
