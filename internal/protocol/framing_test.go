package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fragment(last bool, data []byte) []byte {
	h := uint32(len(data))
	if last {
		h |= lastFragmentBit
	}
	buf := binary.BigEndian.AppendUint32(nil, h)
	return append(buf, data...)
}

func TestWriteReadFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	require.NoError(t, WriteFrame(&buf, nil))

	got, err := ReadFrame(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	got, err = ReadFrame(&buf, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ReadFrame(&buf, 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameJoinsFragments(t *testing.T) {
	var stream []byte
	stream = append(stream, fragment(false, []byte("ab"))...)
	stream = append(stream, fragment(false, []byte("cd"))...)
	stream = append(stream, fragment(true, []byte("e"))...)

	got, err := ReadFrame(bytes.NewReader(stream), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcde"), got)
}

func TestReadFrameTooLarge(t *testing.T) {
	stream := fragment(false, make([]byte, 6))
	stream = append(stream, fragment(true, make([]byte, 6))...)

	_, err := ReadFrame(bytes.NewReader(stream), 10)
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	// A hostile header is rejected before any allocation.
	hostile := binary.BigEndian.AppendUint32(nil, lastFragmentBit|fragmentLengthMask)
	_, err = ReadFrame(bytes.NewReader(hostile), 0)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameTruncated(t *testing.T) {
	full := fragment(true, []byte("abcdef"))

	_, err := ReadFrame(bytes.NewReader(full[:7]), 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = ReadFrame(bytes.NewReader(fragment(false, []byte("ab"))), 0)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "got %v", err)
}
