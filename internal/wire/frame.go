package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/roach88/signerstate/internal/state"
)

const (
	frameMagic   = "SGST"
	frameFormat1 = byte(1)
	digestSize   = 32
	headerSize   = len(frameMagic) + 1 + digestSize

	// MaxFrameSize caps how much a reader will buffer. Signer state is
	// bounded by the number of nodes and channels of one client.
	MaxFrameSize = 64 << 20
)

var (
	ErrBadMagic         = errors.New("wire: not a snapshot frame")
	ErrUnknownFormat    = errors.New("wire: unknown snapshot format")
	ErrChecksumMismatch = errors.New("wire: snapshot checksum mismatch")
	ErrFrameTooLarge    = errors.New("wire: snapshot frame too large")
)

// Digest returns the BLAKE3-256 digest of the SignerState encoding of records.
// Two snapshots with equal digests hold identical entries in the same order.
func Digest(records []state.Record) [digestSize]byte {
	return blake3.Sum256(Marshal(records))
}

// WriteSnapshot writes records to w as a compressed, checksummed frame.
func WriteSnapshot(w io.Writer, records []state.Record) error {
	payload := Marshal(records)
	sum := blake3.Sum256(payload)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	compressed := enc.EncodeAll(payload, nil)
	if err := enc.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	header := make([]byte, 0, headerSize)
	header = append(header, frameMagic...)
	header = append(header, frameFormat1)
	header = append(header, sum[:]...)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write snapshot: header: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("write snapshot: payload: %w", err)
	}
	return nil
}

// ReadSnapshot reads a frame written by WriteSnapshot and verifies its digest.
func ReadSnapshot(r io.Reader) ([]state.Record, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFrameSize+1))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	if len(data) < headerSize || !bytes.Equal(data[:len(frameMagic)], []byte(frameMagic)) {
		return nil, ErrBadMagic
	}
	if data[len(frameMagic)] != frameFormat1 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, data[len(frameMagic)])
	}
	want := data[len(frameMagic)+1 : headerSize]

	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxFrameSize))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	defer dec.Close()

	payload, err := dec.DecodeAll(data[headerSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: decompress: %w", err)
	}
	if got := blake3.Sum256(payload); !bytes.Equal(got[:], want) {
		return nil, ErrChecksumMismatch
	}

	records, err := Unmarshal(payload)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return records, nil
}
