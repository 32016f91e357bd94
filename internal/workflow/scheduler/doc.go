// Package scheduler decides which pipeline modules may start next. It layers
// slot budgets and exclusive-execution rules on top of the resolver's
// dependency ordering, so the engine never has to reason about concurrency
// itself.
package scheduler
