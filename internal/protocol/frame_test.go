package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(n uint32) []byte {
	var h [HeaderSize]byte
	binary.BigEndian.PutUint32(h[:], n)
	return h[:]
}

func TestWriteFrameThenReadFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte(`{"action":"ping"}`)))
	require.NoError(t, WriteFrame(&buf, []byte(`{"action":"login"}`)))

	assert.Equal(t, header(17), buf.Bytes()[:HeaderSize])

	first, err := ReadFrame(&buf, DefaultMaxFrameSize)
	require.NoError(t, err)
	assert.Equal(t, `{"action":"ping"}`, string(first))

	second, err := ReadFrame(&buf, DefaultMaxFrameSize)
	require.NoError(t, err)
	assert.Equal(t, `{"action":"login"}`, string(second))

	_, err = ReadFrame(&buf, DefaultMaxFrameSize)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameRejects(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		max   int
		want  error
	}{
		{
			name:  "zero length",
			input: header(0),
			max:   DefaultMaxFrameSize,
			want:  ErrEmptyFrame,
		},
		{
			name:  "oversized",
			input: append(header(11), []byte("hello world")...),
			max:   10,
			want:  ErrFrameTooLarge,
		},
		{
			name:  "short header",
			input: []byte{0, 0},
			max:   DefaultMaxFrameSize,
			want:  ErrTruncated,
		},
		{
			name:  "short payload",
			input: append(header(10), []byte("abc")...),
			max:   DefaultMaxFrameSize,
			want:  ErrTruncated,
		},
		{
			name:  "header only",
			input: header(5),
			max:   DefaultMaxFrameSize,
			want:  ErrTruncated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.input), tt.max)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWriteFrameRejectsEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteFrame(&buf, nil), ErrEmptyFrame)
	assert.Zero(t, buf.Len())
}

func TestReadHeaderThenPayload(t *testing.T) {
	r := bytes.NewReader(append(header(4), []byte("ping")...))

	size, err := ReadHeader(r, DefaultMaxFrameSize)
	require.NoError(t, err)
	assert.Equal(t, 4, size)
	assert.Equal(t, 4, r.Len())

	payload, err := ReadPayload(r, size)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(payload))
}
