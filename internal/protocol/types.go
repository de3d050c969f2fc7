package protocol

// MessageID is the first header word of every frame.
type MessageID uint32

const (
	MsgCommandRequest MessageID = 0
	MsgSuccessAnswer  MessageID = 1
	MsgFailureAnswer  MessageID = 2
)

// MaxArguments bounds the argument list of one request.
const MaxArguments = 64

func (id MessageID) String() string {
	switch id {
	case MsgCommandRequest:
		return "command_request"
	case MsgSuccessAnswer:
		return "success_answer"
	case MsgFailureAnswer:
		return "failure_answer"
	default:
		return "unknown"
	}
}

// RequestMessage is one command with its arguments.
type RequestMessage struct {
	Command string
	Args    []string
}

// AnswerMessage carries the textual result of one command. Success derives
// from the message id only.
type AnswerMessage struct {
	ID   MessageID
	Text string
}

func NewSuccess(text string) AnswerMessage {
	return AnswerMessage{ID: MsgSuccessAnswer, Text: text}
}

func NewFailure(text string) AnswerMessage {
	return AnswerMessage{ID: MsgFailureAnswer, Text: text}
}

func (a AnswerMessage) Success() bool {
	return a.ID == MsgSuccessAnswer
}

// BodyLen is the encoded body size of the answer.
func (a AnswerMessage) BodyLen() int {
	return stringHeaderSize + len(a.Text)
}
