package videocall

import (
	"context"
	"net"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/resonance"
	"github.com/outofforest/videocall/transport"
	"github.com/outofforest/videocall/wire"
)

const serverQueueSize = 64

type chans struct {
	Sender   chan<- *wire.PacketWrapper
	Receiver <-chan *wire.PacketWrapper
}

type serverConns struct {
	mu    sync.Mutex
	conns map[string]chans
}

func newServerConns() *serverConns {
	return &serverConns{
		conns: map[string]chans{},
	}
}

func (c *serverConns) Add(userID string) <-chan *wire.PacketWrapper {
	ch := make(chan *wire.PacketWrapper, serverQueueSize)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.conns[userID]; ok {
		close(ch.Sender)
	}

	c.conns[userID] = chans{Sender: ch, Receiver: ch}
	return ch
}

func (c *serverConns) Remove(userID string, ch <-chan *wire.PacketWrapper) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if chs, exists := c.conns[userID]; exists && chs.Receiver == ch {
		delete(c.conns, userID)
		close(chs.Sender)
	}
}

func (c *serverConns) Broadcast(log *zap.Logger, packet *wire.PacketWrapper) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for userID, conn := range c.conns {
		if userID == packet.SenderID {
			continue
		}

		select {
		case conn.Sender <- packet:
		default:
			log.Debug("Queue is full, packet dropped", zap.String("user", userID))
		}
	}
}

// ServerConfig defines server configuration.
type ServerConfig struct {
	MaxMessageSize uint64
}

// RunServer runs relay forwarding packets of every user to all the other connected users.
func RunServer(ctx context.Context, ls net.Listener, config ServerConfig) error {
	serverID, err := newSessionID()
	if err != nil {
		return err
	}

	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}

	conns := newServerConns()
	connConfig := resonance.Config{
		MaxMessageSize: config.MaxMessageSize,
	}

	return resonance.RunServer(ctx, ls, connConfig,
		func(ctx context.Context, c *resonance.Connection) error {
			return runServerConn(ctx, serverID, c, conns)
		})
}

func runServerConn(
	ctx context.Context,
	serverID string,
	c *resonance.Connection,
	conns *serverConns,
) error {
	hello, err := transport.Handshake(c, serverID)
	if err != nil {
		return err
	}
	if hello.UserID == "" {
		return errors.New("user ID not provided")
	}

	log := logger.Get(ctx).With(zap.String("user", hello.UserID))
	log.Info("User connected")

	m := wire.NewMarshaller()
	sendCh := conns.Add(hello.UserID)

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("receiver", parallel.Fail, func(ctx context.Context) error {
			defer conns.Remove(hello.UserID, sendCh)

			for {
				msg, err := c.ReceiveProton(m)
				if err != nil {
					return err
				}

				packet, ok := msg.(*wire.PacketWrapper)
				if !ok {
					return errors.New("packet expected")
				}
				if packet.SenderID != hello.UserID {
					return errors.Errorf("sender mismatch: %q sent packet as %q", hello.UserID, packet.SenderID)
				}

				conns.Broadcast(log, packet)
			}
		})
		spawn("sender", parallel.Fail, func(ctx context.Context) error {
			defer func() {
				for range sendCh {
				}
			}()
			defer c.Close()

			for packet := range sendCh {
				if err := c.SendProton(packet, m); err != nil {
					return err
				}
			}

			return errors.New("connection replaced")
		})

		return nil
	})
}
