// Package state implements the versioned key-value store that holds
// signer-critical metadata for a remote signing client.
//
// Every key maps to an Entry carrying an opaque value and a version counter.
// Versions start at 0 and grow by exactly one per local update; they are
// never decremented or reused. A deleted key keeps its last version, so
// re-creating it continues the count and an older copy held by a peer
// cannot win a merge against it.
//
// # Namespaces
//
// Keys have the form "<namespace>/<id>". Each namespace has a mutation policy:
//
//   - nodes, channels, trackers: insert once, then update only
//   - nodestates, allowlists: upsert
//   - nodes, nodestates: deletable
//
// # Synchronization
//
// Two replicas converge by anti-entropy: each side merges the other's
// snapshot (Merge), pulling any entry whose version is newer than its own.
// Diff answers "what does other have that base lacks". Conflicts are resolved
// by version number only, so each key must have a single active writer.
//
// # Concurrency
//
// Store is not safe for concurrent use. Share a Store through a Handle, which
// serializes every operation (including whole merge batches) behind one mutex.
package state
