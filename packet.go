package videocall

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/videocall/encryption"
	"github.com/outofforest/videocall/wire"
)

// ErrEncryption is returned when packet payload cannot be encrypted.
// Packets are never sent in plaintext instead.
var ErrEncryption = errors.New("payload encryption failed")

// PacketSender accepts packets for transmission.
type PacketSender interface {
	SendPacket(packet *wire.PacketWrapper)
}

// Command is the media management command.
type Command interface {
	command()
}

// SubscribeTo requests media of the peer.
type SubscribeTo struct {
	Peer string
}

// UnsubscribeFrom stops receiving media of the peer.
type UnsubscribeFrom struct {
	Peer string
}

// NotifyOngoingStream announces that sender is streaming.
type NotifyOngoingStream struct{}

func (SubscribeTo) command()         {}
func (UnsubscribeFrom) command()     {}
func (NotifyOngoingStream) command() {}

// BuildCommandPacket builds encrypted management packet for the command.
func BuildCommandPacket(senderID string, cmd Command, cipher encryption.Cipher) (*wire.PacketWrapper, error) {
	switch c := cmd.(type) {
	case SubscribeTo:
		return BuildManagementPacket(senderID, c.Peer, wire.EventTypeSubscribe, cipher)
	case UnsubscribeFrom:
		return BuildManagementPacket(senderID, c.Peer, wire.EventTypeUnsubscribe, cipher)
	case NotifyOngoingStream:
		return BuildManagementPacket(senderID, senderID, wire.EventTypeOngoingStream, cipher)
	default:
		return nil, errors.Errorf("unknown command %T", cmd)
	}
}

// BuildManagementPacket builds encrypted media management packet.
func BuildManagementPacket(
	senderID, targetEmail string,
	event wire.EventType,
	cipher encryption.Cipher,
) (*wire.PacketWrapper, error) {
	return seal(senderID, wire.PacketTypeMediaManagement, &wire.MediaManagementPacket{
		EventType:   event,
		TargetEmail: targetEmail,
	}, cipher)
}

// BuildHeartbeatPacket builds encrypted heartbeat packet.
func BuildHeartbeatPacket(senderID string, now time.Time, cipher encryption.Cipher) (*wire.PacketWrapper, error) {
	return seal(senderID, wire.PacketTypeMediaMandatory, &wire.MediaPacket{
		MediaType: wire.MediaTypeHeartbeat,
		SenderID:  senderID,
		Timestamp: uint64(now.UnixMilli()),
	}, cipher)
}

// SendCommand builds management packet for the command and passes it to the sender.
func SendCommand(
	ctx context.Context,
	sender PacketSender,
	cipher encryption.Cipher,
	senderID string,
	cmd Command,
) error {
	packet, err := BuildCommandPacket(senderID, cmd, cipher)
	if err != nil {
		return err
	}

	logger.Get(ctx).Debug("Sending media management command",
		zap.String("command", commandName(cmd)))
	sender.SendPacket(packet)
	return nil
}

// OpenPacket decrypts payload of the packet and decodes the inner message.
func OpenPacket(packet *wire.PacketWrapper, cipher encryption.Cipher) (any, error) {
	plaintext, err := cipher.Decrypt(packet.Data)
	if err != nil {
		return nil, err
	}
	return wire.Unmarshal(wire.NewMarshaller(), plaintext)
}

func seal(senderID string, kind wire.PacketType, msg any, cipher encryption.Cipher) (*wire.PacketWrapper, error) {
	plaintext, err := wire.Marshal(wire.NewMarshaller(), msg)
	if err != nil {
		return nil, err
	}
	data, err := cipher.Encrypt(plaintext)
	if err != nil {
		return nil, errors.Wrap(ErrEncryption, err.Error())
	}
	return &wire.PacketWrapper{
		PacketType: kind,
		SenderID:   senderID,
		Data:       data,
	}, nil
}

func commandName(cmd Command) string {
	switch c := cmd.(type) {
	case SubscribeTo:
		return "subscribe:" + c.Peer
	case UnsubscribeFrom:
		return "unsubscribe:" + c.Peer
	case NotifyOngoingStream:
		return "ongoingStream"
	default:
		return "unknown"
	}
}
