package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderLen is {uint32 message id}{uint32 body length}, big-endian.
const HeaderLen = 8

var (
	ErrShortHeader  = errors.New("frame: short header")
	ErrShortBody    = errors.New("frame: short body")
	ErrBodyTooLarge = errors.New("frame: body too large")
)

// Header is the fixed wire header.
type Header struct {
	MessageID uint32
	BodyLen   uint32
}

// Frame is one complete wire message.
type Frame struct {
	Header Header
	Body   []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxBodyBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxBodyBytes: 1024 * 1024}
}

// ReadFrame reads one frame. A stream that ends cleanly before the first
// header byte returns io.EOF; any other truncation is ErrShortHeader or
// ErrShortBody.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}
	if h.BodyLen > limits.MaxBodyBytes {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrBodyTooLarge, h.BodyLen, limits.MaxBodyBytes)
	}

	body := make([]byte, h.BodyLen)
	if h.BodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Frame{}, ErrShortBody
			}
			return Frame{}, err
		}
	}
	return Frame{Header: h, Body: body}, nil
}

// WriteFrame writes header and body in a single Write call.
func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	if uint64(len(f.Body)) > uint64(limits.MaxBodyBytes) {
		return fmt.Errorf("%w: %d > %d", ErrBodyTooLarge, len(f.Body), limits.MaxBodyBytes)
	}
	h := f.Header
	h.BodyLen = uint32(len(f.Body))

	buf := make([]byte, 0, HeaderLen+len(f.Body))
	buf = append(buf, EncodeHeader(h)...)
	buf = append(buf, f.Body...)
	_, err := w.Write(buf)
	return err
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.MessageID)
	binary.BigEndian.PutUint32(buf[4:8], h.BodyLen)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderLen {
		return Header{}, fmt.Errorf("frame: invalid header length: %d", len(b))
	}
	return Header{
		MessageID: binary.BigEndian.Uint32(b[0:4]),
		BodyLen:   binary.BigEndian.Uint32(b[4:8]),
	}, nil
}
