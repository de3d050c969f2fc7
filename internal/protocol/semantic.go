package protocol

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidateRequest checks the shape of a request independent of the command
// table: a non-blank command word, bounded argument count, valid UTF-8.
func ValidateRequest(req RequestMessage) error {
	if strings.TrimSpace(req.Command) == "" {
		return ErrEmptyCommand
	}
	if strings.ContainsAny(req.Command, " \t\r\n") {
		return fmt.Errorf("%w: command %q contains whitespace", ErrProtocol, req.Command)
	}
	if len(req.Args) > MaxArguments {
		return fmt.Errorf("%w: %d > %d", ErrTooManyArguments, len(req.Args), MaxArguments)
	}
	if !utf8.ValidString(req.Command) {
		return ErrInvalidUTF8
	}
	for _, a := range req.Args {
		if !utf8.ValidString(a) {
			return ErrInvalidUTF8
		}
	}
	return nil
}

// String renders the request the way a shell would type it.
func (r RequestMessage) String() string {
	if len(r.Args) == 0 {
		return r.Command
	}
	return r.Command + " " + strings.Join(r.Args, " ")
}
