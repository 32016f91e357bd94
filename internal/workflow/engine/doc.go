// Package engine runs assistant pipelines. It pairs the resolver's view of
// what is ready with the scheduler's dispatch rules and persists every
// snapshot, so starting, resuming, claiming, and reporting results are all
// restart-safe operations over the same state file.
package engine
