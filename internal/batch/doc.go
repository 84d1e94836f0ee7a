// Package batch holds the data that flows through a batch run: work items,
// per-item stage results, the aggregate report, and the error sentinels used
// to classify per-item outcomes.
//
// Results are plain values. A stage never returns an error to the driver;
// it returns a Result whose Status says what happened and whose Err keeps
// the cause for logging. The report collects results as items finish and
// orders them by discovery index when finalized, so a report does not
// depend on how many workers produced it.
package batch
