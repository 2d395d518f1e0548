package wire

import (
	"errors"
	"fmt"
)

// Sentinel errors for the protocol failure taxonomy. Callers match with
// errors.Is; every error returned by this package wraps exactly one of
// them.
var (
	// ErrConnection covers any I/O failure on the underlying stream,
	// including truncated reads. The connection must be discarded.
	ErrConnection = errors.New("connection error")

	// ErrEncode covers serialization failures of an outbound message.
	ErrEncode = errors.New("serialization error")

	// ErrDecode covers malformed inbound payloads. Framing is strict, so
	// the connection cannot be resynchronized and must be discarded.
	ErrDecode = errors.New("deserialization error")

	// ErrMessageTooLarge rejects frames whose declared length exceeds
	// MaxFrameSize.
	ErrMessageTooLarge = errors.New("message exceeds maximum frame size")

	// ErrInvalidResponse reports a protocol-level type mismatch: the
	// client answered with a message kind the server was not waiting for.
	ErrInvalidResponse = errors.New("invalid response type")
)

func connErr(err error) error {
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

func encodeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrEncode, err)
}

func decodeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrDecode, err)
}

// InvalidResponseErr builds an ErrInvalidResponse naming the expected
// and received message types.
func InvalidResponseErr(want, got string) error {
	return fmt.Errorf("%w: expected %s from client, got %s", ErrInvalidResponse, want, got)
}
