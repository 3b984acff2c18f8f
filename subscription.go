package videocall

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/videocall/encryption"
	"github.com/outofforest/videocall/wire"
)

// FollowedPeersLimit is the maximum number of peers client subscribes to.
const FollowedPeersLimit = 20

// ErrUnknownReason is returned if subscription is requested for the reason manager does not handle.
var ErrUnknownReason = errors.New("unknown subscription reason")

// Reason explains why subscription is requested.
type Reason interface {
	reason()
}

// AutoSubscribe is the automatic subscription to the discovered peer.
type AutoSubscribe struct {
	Peer string
}

func (AutoSubscribe) reason() {}

// SubscribeResult is the outcome of the subscription attempt.
type SubscribeResult int

// Subscription outcomes.
const (
	NotSubscribed SubscribeResult = iota
	Subscribed
	AlreadySubscribed
	LimitReached
)

func (r SubscribeResult) String() string {
	switch r {
	case NotSubscribed:
		return "notSubscribed"
	case Subscribed:
		return "subscribed"
	case AlreadySubscribed:
		return "alreadySubscribed"
	case LimitReached:
		return "limitReached"
	default:
		return "unknown"
	}
}

// PeerSubscriptionManager tracks peers the client receives media from.
type PeerSubscriptionManager struct {
	userID  string
	cipher  encryption.Cipher
	metrics *Metrics

	mu            sync.Mutex
	followedPeers map[string]struct{}
}

// NewPeerSubscriptionManager creates subscription manager.
func NewPeerSubscriptionManager(userID string, cipher encryption.Cipher, metrics *Metrics) *PeerSubscriptionManager {
	return &PeerSubscriptionManager{
		userID:        userID,
		cipher:        cipher,
		metrics:       metrics,
		followedPeers: map[string]struct{}{},
	}
}

// Subscribe adds peer to the followed ones and sends subscribe command using sender.
// Rejections are reported by the result. Error is returned, together with NotSubscribed, if reason is unknown
// or packet cannot be built.
func (m *PeerSubscriptionManager) Subscribe(
	ctx context.Context,
	reason Reason,
	sender PacketSender,
) (SubscribeResult, error) {
	log := logger.Get(ctx)

	var peer string
	switch r := reason.(type) {
	case AutoSubscribe:
		peer = r.Peer
	default:
		log.Error("Unknown subscription reason", zap.String("reason", fmt.Sprintf("%T", reason)))
		return NotSubscribed, errors.WithStack(ErrUnknownReason)
	}

	packet, result, err := m.add(peer)
	if err != nil {
		return result, err
	}

	switch result {
	case LimitReached:
		log.Debug("Could not add more peers", zap.Int("limit", FollowedPeersLimit))
		m.metrics.subscriptionRejected(result)
	case AlreadySubscribed:
		log.Debug("Could not add peer, already subscribed", zap.String("peer", peer))
		m.metrics.subscriptionRejected(result)
	case Subscribed:
		log.Debug("Subscribing to peer", zap.String("peer", peer))
		sender.SendPacket(packet)
	}

	return result, nil
}

// Unsubscribe removes peer from the followed ones. No command is sent.
func (m *PeerSubscriptionManager) Unsubscribe(peer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.followedPeers, peer)
}

// IsSubscribedTo reports whether peer is followed.
func (m *PeerSubscriptionManager) IsSubscribedTo(peer string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.followedPeers[peer]
	return exists
}

// Count returns the number of followed peers.
func (m *PeerSubscriptionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.followedPeers)
}

func (m *PeerSubscriptionManager) add(peer string) (*wire.PacketWrapper, SubscribeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.followedPeers) >= FollowedPeersLimit {
		return nil, LimitReached, nil
	}
	if _, exists := m.followedPeers[peer]; exists {
		return nil, AlreadySubscribed, nil
	}

	// Peer is added only once the packet exists, so membership always implies the command was sent.
	packet, err := BuildCommandPacket(m.userID, SubscribeTo{Peer: peer}, m.cipher)
	if err != nil {
		return nil, NotSubscribed, err
	}
	m.followedPeers[peer] = struct{}{}

	return packet, Subscribed, nil
}
