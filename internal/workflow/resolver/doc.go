// Package resolver turns a pipeline definition into a dependency graph and
// decides what each module needs before it can run. A Refresh walks the
// graph against the workspace: modules report their own completion, their
// output artifacts are audited for ownership, version, and fingerprint
// drift, and anything downstream of unfinished work is marked blocked. The
// scheduler consumes the resulting node states to build dispatch batches.
package resolver
