package wire

import (
	"reflect"
	"unsafe"

	"github.com/outofforest/proton"
	"github.com/outofforest/proton/helpers"
	"github.com/pkg/errors"
)

const (
	id3 uint64 = iota + 1
	id2
	id1
	id0
)

var _ proton.Marshaller = Marshaller{}

// NewMarshaller creates marshaller.
func NewMarshaller() Marshaller {
	return Marshaller{}
}

// Marshaller marshals and unmarshals messages.
type Marshaller struct {
}

// Messages returns list of the message types supported by marshaller.
func (m Marshaller) Messages() []any {
	return []any {
		Hello{},
		PacketWrapper{},
		MediaManagementPacket{},
		MediaPacket{},
	}
}

// ID returns ID of message type.
func (m Marshaller) ID(msg any) (uint64, error) {
	switch msg.(type) {
	case *Hello:
		return id3, nil
	case *PacketWrapper:
		return id2, nil
	case *MediaManagementPacket:
		return id1, nil
	case *MediaPacket:
		return id0, nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Size computes the size of marshalled message.
func (m Marshaller) Size(msg any) (uint64, error) {
	switch msg2 := msg.(type) {
	case *Hello:
		return size3(msg2), nil
	case *PacketWrapper:
		return size2(msg2), nil
	case *MediaManagementPacket:
		return size1(msg2), nil
	case *MediaPacket:
		return size0(msg2), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Marshal marshals message.
func (m Marshaller) Marshal(msg any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMarshal(&retErr)

	switch msg2 := msg.(type) {
	case *Hello:
		return id3, marshal3(msg2, buf), nil
	case *PacketWrapper:
		return id2, marshal2(msg2, buf), nil
	case *MediaManagementPacket:
		return id1, marshal1(msg2, buf), nil
	case *MediaPacket:
		return id0, marshal0(msg2, buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Unmarshal unmarshals message.
func (m Marshaller) Unmarshal(id uint64, buf []byte) (retMsg any, retSize uint64, retErr error) {
	defer helpers.RecoverUnmarshal(&retErr)

	switch id {
	case id3:
		msg := &Hello{}
		return msg, unmarshal3(msg, buf), nil
	case id2:
		msg := &PacketWrapper{}
		return msg, unmarshal2(msg, buf), nil
	case id1:
		msg := &MediaManagementPacket{}
		return msg, unmarshal1(msg, buf), nil
	case id0:
		msg := &MediaPacket{}
		return msg, unmarshal0(msg, buf), nil
	default:
		return nil, 0, errors.Errorf("unknown ID %d", id)
	}
}

// MakePatch creates a patch.
func (m Marshaller) MakePatch(msgDst, msgSrc any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMakePatch(&retErr)

	switch msg2 := msgDst.(type) {
	case *Hello:
		return id3, makePatch3(msg2, msgSrc.(*Hello), buf), nil
	case *PacketWrapper:
		return id2, makePatch2(msg2, msgSrc.(*PacketWrapper), buf), nil
	case *MediaManagementPacket:
		return id1, makePatch1(msg2, msgSrc.(*MediaManagementPacket), buf), nil
	case *MediaPacket:
		return id0, makePatch0(msg2, msgSrc.(*MediaPacket), buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msgDst)
	}
}

// ApplyPatch applies patch.
func (m Marshaller) ApplyPatch(msg any, buf []byte) (retSize uint64, retErr error) {
	defer helpers.RecoverApplyPatch(&retErr)

	switch msg2 := msg.(type) {
	case *Hello:
		return applyPatch3(msg2, buf), nil
	case *PacketWrapper:
		return applyPatch2(msg2, buf), nil
	case *MediaManagementPacket:
		return applyPatch1(msg2, buf), nil
	case *MediaPacket:
		return applyPatch0(msg2, buf), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

func size0(m *MediaPacket) uint64 {
	var n uint64 = 3
	{
		// MediaType

		helpers.UInt64Size(m.MediaType, &n)
	}
	{
		// SenderID

		{
			l := uint64(len(m.SenderID))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Timestamp

		helpers.UInt64Size(m.Timestamp, &n)
	}
	return n
}

func marshal0(m *MediaPacket, b []byte) uint64 {
	var o uint64
	{
		// MediaType

		helpers.UInt64Marshal(m.MediaType, b, &o)
	}
	{
		// SenderID

		{
			l := uint64(len(m.SenderID))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.SenderID)
			o += l
		}
	}
	{
		// Timestamp

		helpers.UInt64Marshal(m.Timestamp, b, &o)
	}

	return o
}

func unmarshal0(m *MediaPacket, b []byte) uint64 {
	var o uint64
	{
		// MediaType

		helpers.UInt64Unmarshal(&m.MediaType, b, &o)
	}
	{
		// SenderID

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.SenderID = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Timestamp

		helpers.UInt64Unmarshal(&m.Timestamp, b, &o)
	}

	return o
}

func makePatch0(m, mSrc *MediaPacket, b []byte) uint64 {
	var o uint64 = 1
	{
		// MediaType

		if reflect.DeepEqual(m.MediaType, mSrc.MediaType) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(m.MediaType, b, &o)
		}
	}
	{
		// SenderID

		if reflect.DeepEqual(m.SenderID, mSrc.SenderID) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			{
				l := uint64(len(m.SenderID))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.SenderID)
				o += l
			}
		}
	}
	{
		// Timestamp

		if reflect.DeepEqual(m.Timestamp, mSrc.Timestamp) {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			helpers.UInt64Marshal(m.Timestamp, b, &o)
		}
	}

	return o
}

func applyPatch0(m *MediaPacket, b []byte) uint64 {
	var o uint64 = 1
	{
		// MediaType

		if b[0]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.MediaType, b, &o)
		}
	}
	{
		// SenderID

		if b[0]&0x02 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.SenderID = string(b[o:o+l])
					o += l
				}
			}
		}
	}
	{
		// Timestamp

		if b[0]&0x04 != 0 {
			helpers.UInt64Unmarshal(&m.Timestamp, b, &o)
		}
	}

	return o
}

func size1(m *MediaManagementPacket) uint64 {
	var n uint64 = 2
	{
		// EventType

		helpers.UInt64Size(m.EventType, &n)
	}
	{
		// TargetEmail

		{
			l := uint64(len(m.TargetEmail))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	return n
}

func marshal1(m *MediaManagementPacket, b []byte) uint64 {
	var o uint64
	{
		// EventType

		helpers.UInt64Marshal(m.EventType, b, &o)
	}
	{
		// TargetEmail

		{
			l := uint64(len(m.TargetEmail))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.TargetEmail)
			o += l
		}
	}

	return o
}

func unmarshal1(m *MediaManagementPacket, b []byte) uint64 {
	var o uint64
	{
		// EventType

		helpers.UInt64Unmarshal(&m.EventType, b, &o)
	}
	{
		// TargetEmail

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.TargetEmail = string(b[o:o+l])
				o += l
			}
		}
	}

	return o
}

func makePatch1(m, mSrc *MediaManagementPacket, b []byte) uint64 {
	var o uint64 = 1
	{
		// EventType

		if reflect.DeepEqual(m.EventType, mSrc.EventType) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(m.EventType, b, &o)
		}
	}
	{
		// TargetEmail

		if reflect.DeepEqual(m.TargetEmail, mSrc.TargetEmail) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			{
				l := uint64(len(m.TargetEmail))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.TargetEmail)
				o += l
			}
		}
	}

	return o
}

func applyPatch1(m *MediaManagementPacket, b []byte) uint64 {
	var o uint64 = 1
	{
		// EventType

		if b[0]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.EventType, b, &o)
		}
	}
	{
		// TargetEmail

		if b[0]&0x02 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.TargetEmail = string(b[o:o+l])
					o += l
				}
			}
		}
	}

	return o
}

func size2(m *PacketWrapper) uint64 {
	var n uint64 = 3
	{
		// PacketType

		helpers.UInt64Size(m.PacketType, &n)
	}
	{
		// SenderID

		{
			l := uint64(len(m.SenderID))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Data

		l := uint64(len(m.Data))
		helpers.UInt64Size(l, &n)
		n += l
	}
	return n
}

func marshal2(m *PacketWrapper, b []byte) uint64 {
	var o uint64
	{
		// PacketType

		helpers.UInt64Marshal(m.PacketType, b, &o)
	}
	{
		// SenderID

		{
			l := uint64(len(m.SenderID))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.SenderID)
			o += l
		}
	}
	{
		// Data

		l := uint64(len(m.Data))
		helpers.UInt64Marshal(l, b, &o)
		if l > 0 {
			copy(b[o:o+l], unsafe.Slice(&m.Data[0], l))
			o += l
		}
	}

	return o
}

func unmarshal2(m *PacketWrapper, b []byte) uint64 {
	var o uint64
	{
		// PacketType

		helpers.UInt64Unmarshal(&m.PacketType, b, &o)
	}
	{
		// SenderID

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.SenderID = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Data

		var l uint64
		helpers.UInt64Unmarshal(&l, b, &o)
		if l > 0 {
			m.Data = make([]uint8, l)
			copy(m.Data, b[o:o+l])
			o += l
		}
	}

	return o
}

func makePatch2(m, mSrc *PacketWrapper, b []byte) uint64 {
	var o uint64 = 1
	{
		// PacketType

		if reflect.DeepEqual(m.PacketType, mSrc.PacketType) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			helpers.UInt64Marshal(m.PacketType, b, &o)
		}
	}
	{
		// SenderID

		if reflect.DeepEqual(m.SenderID, mSrc.SenderID) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			{
				l := uint64(len(m.SenderID))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.SenderID)
				o += l
			}
		}
	}
	{
		// Data

		if reflect.DeepEqual(m.Data, mSrc.Data) {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			l := uint64(len(m.Data))
			helpers.UInt64Marshal(l, b, &o)
			if l > 0 {
				copy(b[o:o+l], unsafe.Slice(&m.Data[0], l))
				o += l
			}
		}
	}

	return o
}

func applyPatch2(m *PacketWrapper, b []byte) uint64 {
	var o uint64 = 1
	{
		// PacketType

		if b[0]&0x01 != 0 {
			helpers.UInt64Unmarshal(&m.PacketType, b, &o)
		}
	}
	{
		// SenderID

		if b[0]&0x02 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.SenderID = string(b[o:o+l])
					o += l
				}
			}
		}
	}
	{
		// Data

		if b[0]&0x04 != 0 {
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Data = make([]uint8, l)
				copy(m.Data, b[o:o+l])
				o += l
			}
		}
	}

	return o
}

func size3(m *Hello) uint64 {
	var n uint64 = 1
	{
		// UserID

		{
			l := uint64(len(m.UserID))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	return n
}

func marshal3(m *Hello, b []byte) uint64 {
	var o uint64
	{
		// UserID

		{
			l := uint64(len(m.UserID))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.UserID)
			o += l
		}
	}

	return o
}

func unmarshal3(m *Hello, b []byte) uint64 {
	var o uint64
	{
		// UserID

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.UserID = string(b[o:o+l])
				o += l
			}
		}
	}

	return o
}

func makePatch3(m, mSrc *Hello, b []byte) uint64 {
	var o uint64 = 1
	{
		// UserID

		if reflect.DeepEqual(m.UserID, mSrc.UserID) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			{
				l := uint64(len(m.UserID))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.UserID)
				o += l
			}
		}
	}

	return o
}

func applyPatch3(m *Hello, b []byte) uint64 {
	var o uint64 = 1
	{
		// UserID

		if b[0]&0x01 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.UserID = string(b[o:o+l])
					o += l
				}
			}
		}
	}

	return o
}
