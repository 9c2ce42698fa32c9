package octave

import (
	"errors"
	"fmt"
)

// Sentinel errors for session and call failures. Wrap-and-check with
// errors.Is.
var (
	// ErrRemote reports that the interpreter evaluated the request and
	// rejected it. The concrete error is a *RemoteError.
	ErrRemote = errors.New("interpreter error")

	// ErrProtocol reports a broken exchange: unreadable payloads,
	// missing response variables, or an interpreter that died
	// mid-request.
	ErrProtocol = errors.New("protocol violation")

	// ErrTimeout reports that a call exceeded its deadline. The
	// interpreter state after a timeout is undefined until Interrupt
	// or Restart.
	ErrTimeout = errors.New("call timed out")

	// ErrUsage reports a request that was rejected before reaching the
	// interpreter.
	ErrUsage = errors.New("invalid usage")

	// ErrSessionClosed reports an operation on an exited session.
	ErrSessionClosed = errors.New("session closed")
)

// RemoteError is an error raised inside the interpreter while
// evaluating a request.
type RemoteError struct {
	// Command is the statement or function the interpreter rejected.
	Command string

	// Identifier is the interpreter-side error identifier, when one
	// was set.
	Identifier string

	// Message is the interpreter's error message.
	Message string

	// Output is the text the interpreter printed while evaluating the
	// request, when any was captured.
	Output string
}

func (e *RemoteError) Error() string {
	if e.Identifier != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Command, e.Message, e.Identifier)
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

// Is reports whether target is ErrRemote.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

func protocolErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}
