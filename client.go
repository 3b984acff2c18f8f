package videocall

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/videocall/encryption"
	"github.com/outofforest/videocall/transport"
	"github.com/outofforest/videocall/wire"
)

const recvQueueSize = 10

// Client keeps the call connection alive, follows discovered peers and delivers their media.
type Client struct {
	config        ClientConfig
	cipher        encryption.Cipher
	sessionID     string
	conn          *Connection
	subscriptions *PeerSubscriptionManager
	peers         *peerTracker
	attempt       atomic.Uint64

	mu     sync.Mutex
	recvCh chan *wire.PacketWrapper
	closed bool
}

// NewClient creates new client.
func NewClient(config ClientConfig, cipher encryption.Cipher) (*Client, <-chan *wire.PacketWrapper, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}
	if cipher == nil {
		return nil, nil, errors.New("cipher not specified")
	}

	sessionID, err := newSessionID()
	if err != nil {
		return nil, nil, err
	}

	metrics, err := NewMetrics(config.Registerer)
	if err != nil {
		return nil, nil, err
	}

	recvCh := make(chan *wire.PacketWrapper, recvQueueSize)
	return &Client{
		config:    config,
		cipher:    cipher,
		sessionID: sessionID,
		conn: NewConnection(ConnectionConfig{
			Transport:         config.Transport,
			Clock:             config.Clock,
			HeartbeatPeriod:   config.HeartbeatPeriod,
			PeerMonitorPeriod: config.PeerMonitorPeriod,
			Metrics:           metrics,
		}),
		subscriptions: NewPeerSubscriptionManager(config.UserID, cipher, metrics),
		peers:         newPeerTracker(config.Clock),
		recvCh:        recvCh,
	}, recvCh, nil
}

// Run connects the client and keeps reconnecting until ctx is canceled.
func (c *Client) Run(ctx context.Context) error {
	defer c.closeRecv()
	defer c.conn.Disconnect(ctx)

	log := logger.Get(ctx).With(zap.String("session", c.sessionID), zap.String("user", c.config.UserID))

	lostCh := make(chan uint64, 1)
	for {
		attempt := c.attempt.Add(1)

		c.conn.Connect(ctx, c.config.UseStream, ConnectOptions{
			UserID: c.config.UserID,
			PeerMonitor: PeerMonitorFunc(func() {
				c.monitorPeers(ctx)
			}),
			Transport: transport.Options{
				WebSocketURL:   c.config.WebSocketURL,
				StreamAddr:     c.config.StreamAddr,
				MaxMessageSize: c.config.MaxMessageSize,
				OnConnected: func() {
					if c.attempt.Load() == attempt {
						c.conn.CompleteConnection(ctx)
					}
				},
				OnConnectionLost: func(err error) {
					select {
					case lostCh <- attempt:
					default:
					}
				},
				OnInbound: func(packet *wire.PacketWrapper) {
					c.handleInbound(ctx, packet)
				},
			},
		}, c.cipher)

		if c.conn.State() != StateClosed {
			if err := waitForLoss(ctx, lostCh, attempt); err != nil {
				return err
			}
			log.Warn("Connection lost, reconnecting", zap.Duration("delay", c.config.ReconnectDelay))
			c.conn.Disconnect(ctx)
		}

		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-c.config.Clock.After(c.config.ReconnectDelay):
		}
	}
}

// SendPacket sends packet if client is connected, otherwise packet is dropped.
func (c *Client) SendPacket(packet *wire.PacketWrapper) {
	c.conn.SendPacket(packet)
}

// SendCommand sends media management command.
func (c *Client) SendCommand(ctx context.Context, cmd Command) error {
	return SendCommand(ctx, c.conn, c.cipher, c.config.UserID, cmd)
}

// NotifyOngoingStream announces that client is streaming.
func (c *Client) NotifyOngoingStream(ctx context.Context) error {
	return c.SendCommand(ctx, NotifyOngoingStream{})
}

// Subscribe starts following the peer.
func (c *Client) Subscribe(ctx context.Context, peer string) (SubscribeResult, error) {
	return c.subscriptions.Subscribe(ctx, AutoSubscribe{Peer: peer}, c.conn)
}

// Unsubscribe stops following the peer.
func (c *Client) Unsubscribe(ctx context.Context, peer string) error {
	c.subscriptions.Unsubscribe(peer)
	return c.SendCommand(ctx, UnsubscribeFrom{Peer: peer})
}

// IsSubscribedTo reports whether peer is followed.
func (c *Client) IsSubscribedTo(peer string) bool {
	return c.subscriptions.IsSubscribedTo(peer)
}

// IsConnected reports whether connection is established.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// State returns the state of the connection.
func (c *Client) State() State {
	return c.conn.State()
}

func (c *Client) handleInbound(ctx context.Context, packet *wire.PacketWrapper) {
	if packet.SenderID == c.config.UserID {
		return
	}

	c.peers.Seen(packet.SenderID)

	log := logger.Get(ctx)

	if packet.PacketType == wire.PacketTypeMedia {
		if c.subscriptions.IsSubscribedTo(packet.SenderID) {
			c.deliver(ctx, packet)
		}
		return
	}

	msg, err := OpenPacket(packet, c.cipher)
	if err != nil {
		log.Warn("Invalid packet received", zap.String("sender", packet.SenderID),
			zap.Stringer("kind", packet.PacketType), zap.Error(err))
		return
	}

	switch m := msg.(type) {
	case *wire.MediaManagementPacket:
		log.Debug("Media management event received", zap.String("sender", packet.SenderID),
			zap.Stringer("event", m.EventType), zap.String("target", m.TargetEmail))
	case *wire.MediaPacket:
		if m.MediaType != wire.MediaTypeHeartbeat && c.subscriptions.IsSubscribedTo(packet.SenderID) {
			c.deliver(ctx, packet)
		}
	default:
		log.Warn("Unexpected message received", zap.String("sender", packet.SenderID))
	}
}

func (c *Client) monitorPeers(ctx context.Context) {
	log := logger.Get(ctx)

	alive, expired := c.peers.Expire(c.config.PeerTimeout)
	for _, peer := range expired {
		if !c.subscriptions.IsSubscribedTo(peer) {
			continue
		}

		log.Info("Peer timed out", zap.String("peer", peer))
		if err := c.Unsubscribe(ctx, peer); err != nil {
			log.Error("Unsubscribing failed", zap.String("peer", peer), zap.Error(err))
		}
	}

	for _, peer := range alive {
		if c.subscriptions.IsSubscribedTo(peer) {
			continue
		}

		result, err := c.Subscribe(ctx, peer)
		if err != nil {
			log.Error("Subscribing failed", zap.String("peer", peer), zap.Error(err))
			continue
		}
		if result == LimitReached {
			return
		}
	}
}

func (c *Client) deliver(ctx context.Context, packet *wire.PacketWrapper) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case <-ctx.Done():
	case c.recvCh <- packet:
	}
}

func (c *Client) closeRecv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.recvCh)
	}
}

func waitForLoss(ctx context.Context, lostCh <-chan uint64, attempt uint64) error {
	for {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case lost := <-lostCh:
			if lost == attempt {
				return nil
			}
		}
	}
}
