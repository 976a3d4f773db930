package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the width of the big-endian length prefix
	HeaderSize = 4
	// DefaultMaxFrameSize bounds a single payload
	DefaultMaxFrameSize = 16 << 20
)

var (
	ErrEmptyFrame    = errors.New("empty frame")
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	ErrTruncated     = errors.New("truncated frame")
)

// ReadFrame reads one length-prefixed payload. io.EOF is returned only
// when the stream ends cleanly between frames.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	size, err := ReadHeader(r, maxSize)
	if err != nil {
		return nil, err
	}
	return ReadPayload(r, size)
}

// ReadHeader reads and checks a length prefix
func ReadHeader(r io.Reader, maxSize int) (int, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, fmt.Errorf("%w: short header", ErrTruncated)
		}
		return 0, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size == 0 {
		return 0, ErrEmptyFrame
	}
	if maxSize > 0 && uint64(size) > uint64(maxSize) {
		return 0, fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, size, maxSize)
	}
	return int(size), nil
}

// ReadPayload reads the size bytes following a header
func ReadPayload(r io.Reader, size int) ([]byte, error) {
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: want %d bytes", ErrTruncated, size)
		}
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload with its length prefix in a single write
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyFrame
	}
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return ErrFrameTooLarge
	}
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	_, err := w.Write(buf)
	return err
}
