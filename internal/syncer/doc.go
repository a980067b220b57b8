// Package syncer reconciles the local signer state with a remote peer.
//
// One round (SyncOnce) runs:
//
//  1. Fetch the peer's snapshot.
//  2. Merge the records the local store lacks or holds older copies of.
//  3. Push the records the peer lacks or holds older copies of.
//  4. Mirror the local snapshot to the durable backup, if configured.
//
// Every step that blocks runs outside the state lock: the syncer exports a
// snapshot, releases the lock, talks to the peer, then merges. Merging is
// version-guarded, so local writes that land between export and merge are
// never overwritten by older peer data.
//
// Recover is the cold-start path: it restores the durable backup and then
// merges the peer's authoritative snapshot on top of it.
//
// Each round is tagged with a session id (UUIDv7 by default) that appears in
// every log line of the round.
package syncer
