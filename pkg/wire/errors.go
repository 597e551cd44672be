package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncatedPacket indicates a declared length runs past the end of the buffer.
	ErrTruncatedPacket = errors.New("truncated packet")
	// ErrArgumentTooLarge indicates an argument exceeds the ceiling imposed by the caller.
	ErrArgumentTooLarge = errors.New("argument too large")
	// ErrMalformedScalar indicates a scalar argument has the wrong width.
	ErrMalformedScalar = errors.New("malformed scalar")
	// ErrNoMoreArgs indicates all declared arguments were already popped.
	ErrNoMoreArgs = errors.New("no more arguments")
	// ErrChecksumMismatch indicates the frame trailer doesn't match its content.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrTrailingData indicates bytes left over after the declared body chunks.
	ErrTrailingData = errors.New("trailing data")
	// ErrFrameTooLarge indicates an encoding wouldn't fit in MaxFrameLen.
	ErrFrameTooLarge = errors.New("frame too large")
)

// ArgCountError is returned when a packet declares a different number
// of arguments than a command handler expects.
type ArgCountError struct {
	Want int
	Got  int
}

// Error implements error.
func (e *ArgCountError) Error() string {
	return fmt.Sprintf("argument count mismatch: want %d, got %d", e.Want, e.Got)
}

// ContractError is the panic value raised when Builder calls are out of order
// or the number of body chunks doesn't match the count declared in Start.
type ContractError struct {
	Msg string
}

// Error implements error.
func (e *ContractError) Error() string {
	return "response builder: " + e.Msg
}

func violation(format string, args ...interface{}) {
	panic(&ContractError{Msg: fmt.Sprintf(format, args...)})
}
