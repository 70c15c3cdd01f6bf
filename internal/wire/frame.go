// Package wire implements the length-prefixed TCP framing used by the RPC
// client and server, grounded on base/messages.go's varint-length framing
// (binary.PutUvarint/ReadUvarint over a bufio.Reader). A blake2b-simd
// checksum is appended to every frame — a non-cryptographic integrity
// check that lets a reader distinguish a malformed/truncated frame from a
// valid one before attempting to decode it, reusing the teacher's hash
// dependency for message integrity rather than node identity (spec's
// Non-goals exclude cryptographic identity, not checksumming).
package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/minio/blake2b-simd"
	"github.com/pkg/errors"
)

// MaxFrameLen bounds a single frame's payload, mirroring the teacher's
// protocol.MaxPayloadLen guard in base/messages.go's recv loop.
const MaxFrameLen = 1 << 20

var (
	ErrFrameTooLarge    = errors.New("wire: frame exceeds maximum length")
	ErrChecksumMismatch = errors.New("wire: frame checksum mismatch")
	checksumLen         = 32
)

// checksum returns the 256-bit blake2b digest of payload. blake2b-simd's
// top-level helpers (New512/Sum512) are all 512-bit; a 256-bit digest is
// obtained through the Config-based constructor instead.
func checksum(payload []byte) []byte {
	h, err := blake2b.New(&blake2b.Config{Size: checksumLen})
	if err != nil {
		panic(err)
	}
	h.Write(payload)
	return h.Sum(nil)
}

// WriteFrame writes payload as a single varint-length-prefixed frame
// followed by its blake2b-256 checksum.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameLen {
		return ErrFrameTooLarge
	}

	lenBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(lenBuf, uint64(len(payload)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return errors.Wrap(err, "wire: write length")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "wire: write payload")
	}

	sum := checksum(payload)
	if _, err := w.Write(sum); err != nil {
		return errors.Wrap(err, "wire: write checksum")
	}
	return nil
}

// ReadFrame reads one frame written by WriteFrame, verifying its
// checksum before returning the payload.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.Wrap(err, "wire: read length")
	}
	if n > MaxFrameLen {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "wire: read payload")
	}

	sum := make([]byte, checksumLen)
	if _, err := io.ReadFull(r, sum); err != nil {
		return nil, errors.Wrap(err, "wire: read checksum")
	}

	want := checksum(payload)
	if !bytes.Equal(sum, want) {
		return nil, ErrChecksumMismatch
	}

	return payload, nil
}
