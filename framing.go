package relay

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/valyala/bytebufferpool"
)

type Framing int

const (
	FRAMING_RAW   Framing = 0
	FRAMING_FIXED Framing = 1
	FRAMING_LINE  Framing = 2
)

const (
	DEFAULT_FRAME_SIZE     = 1024
	DEFAULT_MAX_LINE       = 64 * 1024
	DEFAULT_LINE_DELIMITER = '\n'
)

func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw":
		return FRAMING_RAW, nil
	case "fixed":
		return FRAMING_FIXED, nil
	case "line", "delimiter":
		return FRAMING_LINE, nil
	}
	return FRAMING_RAW, fmt.Errorf("%q: %w", s, ErrUnknownFraming)
}

func (f Framing) String() string {
	switch f {
	case FRAMING_RAW:
		return "raw"
	case FRAMING_FIXED:
		return "fixed"
	case FRAMING_LINE:
		return "line"
	}
	return "unknown"
}

// Framer splits inbound bytes into messages and writes outbound messages.
// Decode may return frames aliasing data or carry; they are only valid until
// the next Decode call.
type Framer interface {
	Decode(carry []byte, data []byte) (frames [][]byte, rest []byte, err error)
	Encode(dst *bytebufferpool.ByteBuffer, frame []byte)
}

// RawFramer treats the bytes of one read as one message.
type RawFramer struct{}

func (RawFramer) Decode(carry []byte, data []byte) ([][]byte, []byte, error) {
	if len(data) == 0 {
		return nil, carry, nil
	}
	return [][]byte{data}, carry, nil
}

func (RawFramer) Encode(dst *bytebufferpool.ByteBuffer, frame []byte) {
	dst.Write(frame)
}

// FixedFramer frames messages as exactly Size bytes; shorter outbound
// messages are zero padded.
type FixedFramer struct {
	Size int
}

func (f FixedFramer) Decode(carry []byte, data []byte) ([][]byte, []byte, error) {
	carry = append(carry, data...)
	var frames [][]byte
	var off = 0
	for len(carry)-off >= f.Size {
		frames = append(frames, carry[off:off+f.Size])
		off += f.Size
	}
	return frames, remainder(carry, off), nil
}

func (f FixedFramer) Encode(dst *bytebufferpool.ByteBuffer, frame []byte) {
	dst.Write(frame)
	var pad = (f.Size - len(frame)%f.Size) % f.Size
	if len(frame) == 0 {
		pad = f.Size
	}
	for i := 0; i < pad; i++ {
		dst.WriteByte(0)
	}
}

// DelimiterFramer frames messages on Delim; the delimiter stays part of the
// frame. A pending partial frame longer than Max is a protocol error.
type DelimiterFramer struct {
	Delim byte
	Max   int
}

func (f DelimiterFramer) Decode(carry []byte, data []byte) ([][]byte, []byte, error) {
	carry = append(carry, data...)
	var frames [][]byte
	var off = 0
	for {
		var i = bytes.IndexByte(carry[off:], f.Delim)
		if i < 0 {
			break
		}
		frames = append(frames, carry[off:off+i+1])
		off += i + 1
	}
	if f.Max > 0 && len(carry)-off > f.Max {
		return frames, nil, fmt.Errorf("%d pending bytes: %w", len(carry)-off, ErrFrameTooLong)
	}
	return frames, remainder(carry, off), nil
}

func (f DelimiterFramer) Encode(dst *bytebufferpool.ByteBuffer, frame []byte) {
	dst.Write(frame)
	if len(frame) == 0 || frame[len(frame)-1] != f.Delim {
		dst.WriteByte(f.Delim)
	}
}

// remainder copies the unconsumed tail so the next Decode never appends into
// memory still referenced by returned frames.
func remainder(carry []byte, off int) []byte {
	if off >= len(carry) {
		return nil
	}
	if off == 0 {
		return carry
	}
	return append([]byte(nil), carry[off:]...)
}

func NewFramer(f Framing, size int, delim byte) Framer {
	switch f {
	case FRAMING_FIXED:
		if size <= 0 {
			size = DEFAULT_FRAME_SIZE
		}
		return FixedFramer{Size: size}
	case FRAMING_LINE:
		if delim == 0 {
			delim = DEFAULT_LINE_DELIMITER
		}
		return DelimiterFramer{Delim: delim, Max: DEFAULT_MAX_LINE}
	}
	return RawFramer{}
}
