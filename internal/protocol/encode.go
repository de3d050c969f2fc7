package protocol

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/danmuck/paramctl/internal/protocol/frame"
)

const stringHeaderSize = 4

// EncodeRequest renders the request body: the command then each argument,
// every one as {uint32 len}{utf-8}.
func EncodeRequest(req RequestMessage) ([]byte, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	size := stringHeaderSize + len(req.Command)
	for _, a := range req.Args {
		size += stringHeaderSize + len(a)
	}
	buf := make([]byte, 0, size)
	var err error
	if buf, err = appendString(buf, req.Command); err != nil {
		return nil, err
	}
	for _, a := range req.Args {
		if buf, err = appendString(buf, a); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// EncodeAnswer renders the answer body: one string.
func EncodeAnswer(ans AnswerMessage) ([]byte, error) {
	if ans.ID != MsgSuccessAnswer && ans.ID != MsgFailureAnswer {
		return nil, ErrUnknownMessage
	}
	return appendString(make([]byte, 0, stringHeaderSize+len(ans.Text)), ans.Text)
}

func WriteRequest(w io.Writer, req RequestMessage, limits frame.Limits) error {
	body, err := EncodeRequest(req)
	if err != nil {
		return err
	}
	return frame.WriteFrame(w, frame.Frame{Header: frame.Header{MessageID: uint32(MsgCommandRequest)}, Body: body}, limits)
}

func WriteAnswer(w io.Writer, ans AnswerMessage, limits frame.Limits) error {
	body, err := EncodeAnswer(ans)
	if err != nil {
		return err
	}
	return frame.WriteFrame(w, frame.Frame{Header: frame.Header{MessageID: uint32(ans.ID)}, Body: body}, limits)
}

func appendString(buf []byte, s string) ([]byte, error) {
	if uint64(len(s)) > math.MaxUint32 {
		return nil, ErrInvalidLength
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...), nil
}
