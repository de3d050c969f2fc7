package protocol

import (
	"errors"
	"fmt"
)

// ErrProtocol is the root of every malformed-message error. A connection
// that hits one is closed; the server keeps accepting.
var ErrProtocol = errors.New("protocol: malformed message")

var (
	ErrTruncated         = fmt.Errorf("%w: truncated data", ErrProtocol)
	ErrInvalidLength     = fmt.Errorf("%w: invalid length", ErrProtocol)
	ErrTrailingBytes     = fmt.Errorf("%w: trailing bytes", ErrProtocol)
	ErrInvalidUTF8       = fmt.Errorf("%w: invalid utf-8", ErrProtocol)
	ErrUnknownMessage    = fmt.Errorf("%w: unknown message id", ErrProtocol)
	ErrMessageIDMismatch = fmt.Errorf("%w: message id mismatch", ErrProtocol)
	ErrEmptyCommand      = fmt.Errorf("%w: empty command", ErrProtocol)
	ErrTooManyArguments  = fmt.Errorf("%w: too many arguments", ErrProtocol)
)
