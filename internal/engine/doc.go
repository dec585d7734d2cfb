// Package engine implements the dynamic executor: the long-lived runtime
// mirror of a compiled ProtoNetwork that evaluates it incrementally with
// per-node result caching.
//
// # Host-Serialized Lifecycle
//
// One host owns an Executor for the life of an editing session and calls
// Update and Eval in sequence, never concurrently with each other. A single
// Eval internally fans out into a task graph shaped like the dependency DAG,
// so the per-node cache maps carry their own locks; the executor-level fields
// are only touched between evaluations.
//
// # Incremental Update
//
// Update diffs the held network against the new one by stable identity. A
// node whose identity is unchanged keeps its built object and cache slot
// untouched. A node whose identity changed but whose flat ID and fingerprint
// match an existing object keeps that object too: the operation and its own
// configuration are the same, only an upstream value changed, and the cache
// is keyed by evaluated input values so its entries stay correct. Only
// genuinely new nodes are constructed.
//
// # Cache Discipline
//
// The cache key per node is (hash of evaluated input values, hash of the
// context subset the op declared it reads). At most one computation runs per
// key: concurrent requesters share one in-flight computation through
// singleflight. Errors are never published to the cache, so a later Eval can
// succeed if the cause was transient. Entries untouched for several
// evaluation passes are swept generationally.
//
// # Cancellation
//
// A superseded Eval is abandoned, not interrupted: callers stop waiting when
// their context is done, while the in-flight computation finishes and
// publishes under its content key. A stale completion lands on a key nothing
// looks up again, so no cancellation signal is needed for correctness.
package engine
