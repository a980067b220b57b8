package persist

import (
	"encoding/json"
)

// NodeEntry is the immutable identity of a signer node.
type NodeEntry struct {
	Seed               []byte `json:"seed"`
	KeyDerivationStyle uint8  `json:"key_derivation_style"`
	Network            string `json:"network"`
}

// VelocityControl bounds how much a node may spend per interval.
type VelocityControl struct {
	StartSec    uint64   `json:"start_sec"`
	BucketIntvl uint32   `json:"bucket_interval"`
	Buckets     []uint64 `json:"buckets"`
	Limit       uint64   `json:"limit"`
}

// NodeStateEntry is the mutable runtime state of a node.
type NodeStateEntry struct {
	Invoices        json.RawMessage `json:"invoices,omitempty"`
	IssuedInvoices  json.RawMessage `json:"issued_invoices,omitempty"`
	VelocityControl VelocityControl `json:"velocity_control"`
}

// ChannelEntry is the signer's view of one channel. Setup, ID and
// EnforcementState are owned by the signing engine and kept opaque here.
type ChannelEntry struct {
	ChannelValueSatoshis uint64          `json:"channel_value_satoshis"`
	ChannelSetup         json.RawMessage `json:"channel_setup,omitempty"`
	ID                   json.RawMessage `json:"id,omitempty"`
	EnforcementState     json.RawMessage `json:"enforcement_state"`
}

// ChainTrackerEntry is a node's chain-tracking cursor.
type ChainTrackerEntry struct {
	Network   string          `json:"network"`
	Height    uint32          `json:"height"`
	Tip       json.RawMessage `json:"tip,omitempty"`
	Headers   json.RawMessage `json:"headers,omitempty"`
	Listeners json.RawMessage `json:"listeners,omitempty"`
}

// Node joins a node's identity with its current state.
type Node struct {
	ID    []byte
	Entry NodeEntry
	State NodeStateEntry
}

// NodeChannel is one channel belonging to a node.
type NodeChannel struct {
	ChannelID []byte
	Entry     ChannelEntry
}
