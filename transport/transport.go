// Package transport delivers wire packets between the call client and the call endpoint.
package transport

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/videocall/wire"
)

const queueSize = 64

// Options configures the connection.
type Options struct {
	UserID         string
	WebSocketURL   string
	StreamAddr     string
	MaxMessageSize uint64

	// OnConnected is called asynchronously once the link is usable.
	OnConnected func()

	// OnConnectionLost is called when the link terminates without Close being called.
	OnConnectionLost func(err error)

	// OnInbound receives packets coming from the endpoint.
	OnInbound func(packet *wire.PacketWrapper)
}

// Transport establishes connections.
type Transport interface {
	// Connect dials the endpoint. Links stay alive until handle is closed or ctx is canceled.
	Connect(ctx context.Context, alternate bool, options Options) (Handle, error)
}

// Handle is the live connection.
type Handle interface {
	// Send queues packet for transmission. It never blocks, packet is dropped if queue is full.
	Send(packet *wire.PacketWrapper)

	// Close terminates the connection.
	Close()
}

// Dialer connects using WebSocket by default and using resonance stream when alternate transport is requested.
type Dialer struct{}

// NewDialer creates dialer.
func NewDialer() Dialer {
	return Dialer{}
}

// Connect dials the endpoint.
func (d Dialer) Connect(ctx context.Context, alternate bool, options Options) (Handle, error) {
	if alternate {
		return dialStream(ctx, options)
	}
	return dialWebSocket(ctx, options)
}

type handle struct {
	log    *zap.Logger
	sendCh chan *wire.PacketWrapper
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func newHandle(ctx context.Context, cancel context.CancelFunc) *handle {
	return &handle{
		log:    logger.Get(ctx),
		sendCh: make(chan *wire.PacketWrapper, queueSize),
		cancel: cancel,
	}
}

func (h *handle) Send(packet *wire.PacketWrapper) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	select {
	case h.sendCh <- packet:
	default:
		h.log.Debug("Send queue is full, packet dropped", zap.Stringer("kind", packet.PacketType))
	}
}

func (h *handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	h.cancel()
}

// terminated reports the end of the link. Lost callback is fired only if nobody closed the handle.
func (h *handle) terminated(err error, options Options) {
	h.mu.Lock()
	lost := !h.closed
	h.closed = true
	h.mu.Unlock()

	h.cancel()

	if lost {
		h.log.Error("Connection lost", zap.Error(err))
		if options.OnConnectionLost != nil {
			options.OnConnectionLost(err)
		}
	}
}
