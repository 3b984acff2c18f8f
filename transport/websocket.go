package transport

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/outofforest/parallel"
	"github.com/outofforest/videocall/wire"
)

const closeTimeout = time.Second

func dialWebSocket(ctx context.Context, options Options) (Handle, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, options.WebSocketURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to websocket %q failed", options.WebSocketURL)
	}
	if options.MaxMessageSize > 0 {
		conn.SetReadLimit(int64(options.MaxMessageSize))
	}

	ctx, cancel := context.WithCancel(ctx)
	h := newHandle(ctx, cancel)

	go func() {
		h.terminated(runWebSocket(ctx, conn, h, options), options)
	}()

	return h, nil
}

func runWebSocket(ctx context.Context, conn *websocket.Conn, h *handle, options Options) error {
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
				msgType, data, err := conn.ReadMessage()
				if err != nil {
					return errors.WithStack(err)
				}
				if msgType != websocket.BinaryMessage {
					continue
				}

				msg, err := wire.Unmarshal(m, data)
				if err != nil {
					return err
				}
				packet, ok := msg.(*wire.PacketWrapper)
				if !ok {
					return errors.Errorf("unexpected message %T", msg)
				}
				if options.OnInbound != nil {
					options.OnInbound(packet)
				}
			}
		})
		spawn("sender", parallel.Fail, func(ctx context.Context) error {
			defer conn.Close()

			for {
				select {
				case <-ctx.Done():
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(closeTimeout))
					return errors.WithStack(ctx.Err())
				case packet := <-h.sendCh:
					data, err := wire.Marshal(m, packet)
					if err != nil {
						return err
					}
					if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
						return errors.WithStack(err)
					}
				}
			}
		})

		return nil
	})
}
