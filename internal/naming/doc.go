// Package naming maps file names to work-item identifiers and identifiers
// back to paths.
//
// Extract strips a stage's literal prefix and suffix from a discovered base
// name. Templates carry an {id} token and are expanded into output paths
// (Layout) or into ordered input candidates (Resolve). Registry rejects a
// second source file that extracts to an identifier already claimed in the
// same run, so two sessions never write into each other's outputs.
package naming
