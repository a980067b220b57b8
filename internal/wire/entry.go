package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/roach88/signerstate/internal/state"
)

// ErrMalformed is wrapped, inside a state decode error, when bytes do not
// parse as a SignerState message.
var ErrMalformed = errors.New("wire: malformed message")

const (
	fieldKey     protowire.Number = 1
	fieldValue   protowire.Number = 2
	fieldVersion protowire.Number = 3

	fieldEntries protowire.Number = 1
)

// AppendEntry appends the SignerStateEntry encoding of r to b.
// Zero-valued fields are omitted, as proto3 does.
func AppendEntry(b []byte, r state.Record) []byte {
	if r.Key != "" {
		b = protowire.AppendTag(b, fieldKey, protowire.BytesType)
		b = protowire.AppendString(b, string(r.Key))
	}
	if len(r.Value) > 0 {
		b = protowire.AppendTag(b, fieldValue, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Value)
	}
	if r.Version != 0 {
		b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
		b = protowire.AppendVarint(b, r.Version)
	}
	return b
}

// UnmarshalEntry decodes one SignerStateEntry. Unknown fields are skipped.
func UnmarshalEntry(b []byte) (state.Record, error) {
	var r state.Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return state.Record{}, malformed("entry tag", n)
		}
		b = b[n:]

		switch {
		case num == fieldKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return state.Record{}, malformed("entry key", n)
			}
			r.Key = state.Key(v)
			b = b[n:]

		case num == fieldValue && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return state.Record{}, malformed("entry value", n)
			}
			r.Value = append([]byte(nil), v...)
			b = b[n:]

		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return state.Record{}, malformed("entry version", n)
			}
			r.Version = v
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return state.Record{}, malformed("unknown field", n)
			}
			b = b[n:]
		}
	}
	return r, nil
}

// Marshal encodes records as a SignerState message.
func Marshal(records []state.Record) []byte {
	var b, entry []byte
	for _, r := range records {
		entry = AppendEntry(entry[:0], r)
		b = protowire.AppendTag(b, fieldEntries, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

// Unmarshal decodes a SignerState message, preserving entry order.
func Unmarshal(b []byte) ([]state.Record, error) {
	var records []state.Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, malformed("state tag", n)
		}
		b = b[n:]

		if num != fieldEntries || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, malformed("unknown field", n)
			}
			b = b[n:]
			continue
		}

		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, malformed("entry", n)
		}
		b = b[n:]

		r, err := UnmarshalEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", len(records), err)
		}
		records = append(records, r)
	}
	return records, nil
}

func malformed(what string, n int) error {
	return state.NewDecodeError("unmarshal", "",
		fmt.Errorf("%w: %s: %v", ErrMalformed, what, protowire.ParseError(n)))
}
