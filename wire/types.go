package wire

type (
	// PacketType defines the kind of the outer packet.
	PacketType uint64

	// EventType defines media management event.
	EventType uint64

	// MediaType defines the type of media packet.
	MediaType uint64
)

// Packet types.
const (
	PacketTypeMedia PacketType = iota + 1
	PacketTypeMediaMandatory
	PacketTypeMediaManagement
)

// Media management events.
const (
	EventTypeSubscribe EventType = iota + 1
	EventTypeUnsubscribe
	EventTypeOngoingStream
)

// Media types.
const (
	MediaTypeHeartbeat MediaType = iota + 1
	MediaTypeVideo
	MediaTypeAudio
	MediaTypeScreen
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeMedia:
		return "MEDIA"
	case PacketTypeMediaMandatory:
		return "MEDIA_MANDATORY"
	case PacketTypeMediaManagement:
		return "MEDIA_MANAGEMENT"
	default:
		return "UNKNOWN"
	}
}

func (e EventType) String() string {
	switch e {
	case EventTypeSubscribe:
		return "SUBSCRIBE"
	case EventTypeUnsubscribe:
		return "UNSUBSCRIBE"
	case EventTypeOngoingStream:
		return "ONGOING_STREAM"
	default:
		return "UNKNOWN"
	}
}

// PacketWrapper is the envelope transmitted by the transport.
// Data is always the ciphertext of a marshalled inner message.
type PacketWrapper struct {
	PacketType PacketType
	SenderID   string
	Data       []byte
}

// MediaManagementPacket is the inner message controlling media subscriptions.
type MediaManagementPacket struct {
	EventType   EventType
	TargetEmail string
}

// MediaPacket is the inner message carrying media metadata, heartbeats included.
type MediaPacket struct {
	MediaType MediaType
	SenderID  string
	Timestamp uint64
}

// Hello is the message exchanged with the relay when stream connection is established.
type Hello struct {
	UserID string
}
