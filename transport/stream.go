package transport

import (
	"context"

	"github.com/pkg/errors"

	"github.com/outofforest/parallel"
	"github.com/outofforest/resonance"
	"github.com/outofforest/videocall/wire"
)

func dialStream(ctx context.Context, options Options) (Handle, error) {
	ctx, cancel := context.WithCancel(ctx)
	h := newHandle(ctx, cancel)

	readyCh := make(chan struct{})
	errCh := make(chan error, 1)

	go func() {
		err := resonance.RunClient(ctx, options.StreamAddr,
			resonance.Config{MaxMessageSize: options.MaxMessageSize},
			func(ctx context.Context, c *resonance.Connection) error {
				if _, err := Handshake(c, options.UserID); err != nil {
					return err
				}
				close(readyCh)
				return runStream(ctx, c, h, options)
			})

		select {
		case <-readyCh:
			h.terminated(err, options)
		default:
			cancel()
			if err == nil {
				err = errors.New("connection closed before handshake")
			}
			errCh <- err
		}
	}()

	select {
	case <-readyCh:
		return h, nil
	case err := <-errCh:
		return nil, errors.Wrapf(err, "connecting to stream %q failed", options.StreamAddr)
	}
}

// Handshake exchanges hello messages with the peer on the other side of the stream.
func Handshake(c *resonance.Connection, userID string) (*wire.Hello, error) {
	m := wire.NewMarshaller()

	if err := c.SendProton(&wire.Hello{UserID: userID}, m); err != nil {
		return nil, err
	}

	msg, err := c.ReceiveProton(m)
	if err != nil {
		return nil, err
	}

	hello, ok := msg.(*wire.Hello)
	if !ok {
		return nil, errors.New("hello message expected")
	}
	return hello, nil
}

func runStream(ctx context.Context, c *resonance.Connection, h *handle, options Options) error {
	m := wire.NewMarshaller()

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("connected", parallel.Continue, func(ctx context.Context) error {
			if options.OnConnected != nil {
				options.OnConnected()
			}
			return nil
		})
		spawn("receiver", parallel.Fail, func(ctx context.Context) error {
			for {
				msg, err := c.ReceiveProton(m)
				if err != nil {
					return err
				}

				packet, ok := msg.(*wire.PacketWrapper)
				if !ok {
					return errors.New("packet expected")
				}
				if options.OnInbound != nil {
					options.OnInbound(packet)
				}
			}
		})
		spawn("sender", parallel.Fail, func(ctx context.Context) error {
			defer c.Close()

			for {
				select {
				case <-ctx.Done():
					return errors.WithStack(ctx.Err())
				case packet := <-h.sendCh:
					if err := c.SendProton(packet, m); err != nil {
						return err
					}
				}
			}
		})

		return nil
	})
}
