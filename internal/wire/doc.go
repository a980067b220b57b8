// Package wire encodes signer state for transport and for snapshot files.
//
// Entries use the protobuf layout the scheduler speaks:
//
//	message SignerStateEntry {
//	  string key     = 1;
//	  bytes  value   = 2;
//	  uint64 version = 3;
//	}
//	message SignerState {
//	  repeated SignerStateEntry entries = 1;
//	}
//
// Snapshot files wrap an encoded SignerState in a frame:
//
//	"SGST" | format (1 byte) | BLAKE3-256(payload) (32 bytes) | zstd(payload)
//
// A frame whose digest does not match is rejected, so corrupted state is
// never loaded.
package wire
