// Package wire implements the framed, encrypted session protocol spoken with
// clients: u32 big-endian length prefixes, an RSA-OAEP key exchange, and
// AES-GCM per-frame encryption with a fixed 16-byte nonce width.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

// MaxFrameSize bounds accepted frame bodies. The protocol itself has no
// limit; this guards the server against absurd length headers.
const MaxFrameSize = 4 << 20

// ErrFrameTooLarge is returned when a length header exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// ReadFrame reads one length-prefixed frame. A zero length header yields an
// empty body and no error.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size == 0 {
		return nil, nil
	}
	if size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteFrame writes one length-prefixed frame as a single Write call.
func WriteFrame(w io.Writer, body []byte) error {
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(body)))
	copy(buf[4:], body)
	_, err := w.Write(buf)
	return err
}
