package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/danmuck/paramctl/internal/protocol/frame"
)

// DecodeRequest parses a request body. Every byte must be consumed.
func DecodeRequest(body []byte) (RequestMessage, error) {
	cmd, off, err := readString(body, 0)
	if err != nil {
		return RequestMessage{}, err
	}
	req := RequestMessage{Command: cmd}
	for off < len(body) {
		if len(req.Args) == MaxArguments {
			return RequestMessage{}, ErrTooManyArguments
		}
		var arg string
		if arg, off, err = readString(body, off); err != nil {
			return RequestMessage{}, err
		}
		req.Args = append(req.Args, arg)
	}
	if err := ValidateRequest(req); err != nil {
		return RequestMessage{}, err
	}
	return req, nil
}

// DecodeAnswer parses an answer body received under id.
func DecodeAnswer(id MessageID, body []byte) (AnswerMessage, error) {
	if id != MsgSuccessAnswer && id != MsgFailureAnswer {
		return AnswerMessage{}, fmt.Errorf("%w: %d", ErrUnknownMessage, id)
	}
	text, off, err := readString(body, 0)
	if err != nil {
		return AnswerMessage{}, err
	}
	if off != len(body) {
		return AnswerMessage{}, ErrTrailingBytes
	}
	return AnswerMessage{ID: id, Text: text}, nil
}

// ReadRequest reads one frame and requires a command request. Framing
// errors are reported as ErrProtocol; io.EOF passes through for a clean
// disconnect.
func ReadRequest(r io.Reader, limits frame.Limits) (RequestMessage, error) {
	f, err := readFrame(r, limits)
	if err != nil {
		return RequestMessage{}, err
	}
	if MessageID(f.Header.MessageID) != MsgCommandRequest {
		return RequestMessage{}, fmt.Errorf("%w: got %d, want %d", ErrMessageIDMismatch, f.Header.MessageID, MsgCommandRequest)
	}
	return DecodeRequest(f.Body)
}

func ReadAnswer(r io.Reader, limits frame.Limits) (AnswerMessage, error) {
	f, err := readFrame(r, limits)
	if err != nil {
		return AnswerMessage{}, err
	}
	return DecodeAnswer(MessageID(f.Header.MessageID), f.Body)
}

func readFrame(r io.Reader, limits frame.Limits) (frame.Frame, error) {
	f, err := frame.ReadFrame(r, limits)
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, frame.ErrShortHeader), errors.Is(err, frame.ErrShortBody):
		return frame.Frame{}, fmt.Errorf("%w: %w", ErrTruncated, err)
	case errors.Is(err, frame.ErrBodyTooLarge):
		return frame.Frame{}, fmt.Errorf("%w: %w", ErrInvalidLength, err)
	default:
		return frame.Frame{}, err
	}
}

func readString(body []byte, off int) (string, int, error) {
	if len(body)-off < stringHeaderSize {
		return "", 0, ErrTruncated
	}
	n := binary.BigEndian.Uint32(body[off : off+stringHeaderSize])
	off += stringHeaderSize
	if uint64(n) > uint64(len(body)-off) {
		return "", 0, ErrInvalidLength
	}
	end := off + int(n)
	s := string(body[off:end])
	if !utf8.ValidString(s) {
		return "", 0, ErrInvalidUTF8
	}
	return s, end, nil
}
