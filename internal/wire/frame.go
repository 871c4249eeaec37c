package wire

import (
	"encoding/binary"
	"io"
)

// MaxFrameSize bounds a single frame body. Coordinator traffic is small;
// anything larger means a corrupt or hostile stream.
const MaxFrameSize = 1 << 20

// WriteMessage encodes m and writes it as a single length-prefixed frame.
// The prefix and body go out in one Write call so concurrent writers only
// need to serialize at the call site.
func WriteMessage(w io.Writer, m *Message) error {
	payload, err := Encode(m)
	if err != nil {
		return err
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)

	_, err = w.Write(frame)
	return err
}

// ReadFrame reads one length-prefixed frame body from r. It loops until the
// declared length is fully accumulated, so partial socket reads are fine.
// A clean close before the prefix surfaces as io.EOF; a close mid-frame as
// io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	return body, nil
}
