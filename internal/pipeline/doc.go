// Package pipeline runs one stage over a batch of work items.
//
// A Driver discovers source files (or session directories) under the
// source root, derives an identifier from each base name, builds the item's
// output paths from the stage layout, and hands the item to the stage. Every
// item ends in exactly one recorded result; a failing item never stops the
// batch. Only configuration problems (unreadable source root, bad pattern,
// missing tools) abort a run before iteration starts.
package pipeline
