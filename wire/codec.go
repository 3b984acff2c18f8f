package wire

import (
	"github.com/pkg/errors"

	"github.com/outofforest/proton"
	"github.com/outofforest/proton/helpers"
)

// Marshal serializes message into a new buffer prefixed with the ID of the message type.
func Marshal(m proton.Marshaller, msg any) ([]byte, error) {
	id, err := m.ID(msg)
	if err != nil {
		return nil, err
	}
	size, err := m.Size(msg)
	if err != nil {
		return nil, err
	}

	var n uint64 = 1
	helpers.UInt64Size(id, &n)

	buf := make([]byte, n+size)
	var o uint64
	helpers.UInt64Marshal(id, buf, &o)

	_, msgSize, err := m.Marshal(msg, buf[o:])
	if err != nil {
		return nil, err
	}
	return buf[:o+msgSize], nil
}

// Unmarshal deserializes message produced by Marshal.
func Unmarshal(m proton.Marshaller, buf []byte) (retMsg any, retErr error) {
	if len(buf) == 0 {
		return nil, errors.New("empty message")
	}

	defer helpers.RecoverUnmarshal(&retErr)

	var id, o uint64
	helpers.UInt64Unmarshal(&id, buf, &o)

	msg, msgSize, err := m.Unmarshal(id, buf[o:])
	if err != nil {
		return nil, err
	}
	if o+msgSize != uint64(len(buf)) {
		return nil, errors.Errorf("message size mismatch: expected %d, got %d", len(buf), o+msgSize)
	}
	return msg, nil
}
