// Package wire implements the Qafoon wire protocol: MessagePack-encoded
// envelopes framed with a 4-byte big-endian length prefix. The framing
// is symmetric for both directions and strict: any I/O or decode
// failure leaves the stream desynchronized and the caller must treat
// the connection as unusable.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxFrameSize bounds a single message payload. Game messages are tiny;
// anything near this limit is a corrupt or hostile frame.
const MaxFrameSize = 1 << 20

// Send serializes msg, writes the length prefix followed by the
// payload, and leaves the stream ready for the next frame.
func Send(w io.Writer, msg *Message) error {
	payload, err := msgpack.Marshal(msg)
	if err != nil {
		return encodeErr(err)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return connErr(err)
	}
	if _, err := w.Write(payload); err != nil {
		return connErr(err)
	}
	return nil
}

// Receive reads exactly one framed message. A short read anywhere is a
// connection error; a payload that fails to decode is a
// deserialization error.
func Receive(r io.Reader) (*Message, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, connErr(err)
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxFrameSize {
		return nil, ErrMessageTooLarge
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, connErr(err)
	}
	var msg Message
	if err := msgpack.Unmarshal(payload, &msg); err != nil {
		return nil, decodeErr(err)
	}
	return &msg, nil
}
