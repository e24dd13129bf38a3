package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// lastFragmentBit marks the final fragment of a record.
	lastFragmentBit = 0x80000000

	// fragmentLengthMask extracts the fragment length from its header.
	fragmentLengthMask = 0x7FFFFFFF

	// DefaultMaxFrameSize bounds a whole record. A 10×100 document is well
	// under a megabyte; the limit only guards against hostile headers.
	DefaultMaxFrameSize = 64 << 20
)

// ErrFrameTooLarge is returned when a record exceeds the size limit.
var ErrFrameTooLarge = errors.New("frame too large")

// FragmentHeader is the 4-byte record-marking header preceding every
// fragment on a stream transport.
type FragmentHeader struct {
	IsLast bool
	Length uint32
}

// ReadFragmentHeader reads one header from r.
func ReadFragmentHeader(r io.Reader) (FragmentHeader, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return FragmentHeader{}, err
	}
	h := binary.BigEndian.Uint32(buf[:])
	return FragmentHeader{
		IsLast: h&lastFragmentBit != 0,
		Length: h & fragmentLengthMask,
	}, nil
}

// ReadFrame reads a complete record, concatenating fragments until the one
// flagged last. maxSize <= 0 selects DefaultMaxFrameSize.
//
// io.EOF is returned unchanged when the stream ends cleanly before a new
// record starts.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}

	var frame []byte
	for {
		h, err := ReadFragmentHeader(r)
		if err != nil {
			if len(frame) > 0 && errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if uint64(len(frame))+uint64(h.Length) > uint64(maxSize) {
			return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFrameTooLarge, uint64(len(frame))+uint64(h.Length), maxSize)
		}

		start := len(frame)
		frame = append(frame, make([]byte, h.Length)...)
		if _, err := io.ReadFull(r, frame[start:]); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("read fragment: %w", err)
		}
		if h.IsLast {
			return frame, nil
		}
	}
}

// WriteFrame writes data as a single-fragment record.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > fragmentLengthMask {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, lastFragmentBit|uint32(len(data)))
	copy(buf[4:], data)
	_, err := w.Write(buf)
	return err
}
