package transport_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/parallel"
	"github.com/outofforest/qa"
	"github.com/outofforest/resonance"
	"github.com/outofforest/videocall/transport"
	"github.com/outofforest/videocall/wire"
)

const timeout = 5 * time.Second

type callbacks struct {
	connectedCh chan struct{}
	lostCh      chan error
	inboundCh   chan *wire.PacketWrapper
}

func newCallbacks(options transport.Options) (transport.Options, callbacks) {
	cb := callbacks{
		connectedCh: make(chan struct{}, 1),
		lostCh:      make(chan error, 1),
		inboundCh:   make(chan *wire.PacketWrapper, 10),
	}
	options.OnConnected = func() {
		cb.connectedCh <- struct{}{}
	}
	options.OnConnectionLost = func(err error) {
		cb.lostCh <- err
	}
	options.OnInbound = func(packet *wire.PacketWrapper) {
		cb.inboundCh <- packet
	}
	return options, cb
}

func wsEchoServer(t *testing.T, receivedCh chan<- *wire.PacketWrapper, closeAfter int) *httptest.Server {
	upgrader := websocket.Upgrader{}
	m := wire.NewMarshaller()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for i := 0; closeAfter <= 0 || i < closeAfter; i++ {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := wire.Unmarshal(m, data)
			if err != nil {
				return
			}
			receivedCh <- msg.(*wire.PacketWrapper)
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func receive[T any](requireT *require.Assertions, ch <-chan T) T {
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		requireT.Fail("timeout")
		var v T
		return v
	}
}

func TestWebSocketExchangesPackets(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	receivedCh := make(chan *wire.PacketWrapper, 10)
	server := wsEchoServer(t, receivedCh, 0)

	options, cb := newCallbacks(transport.Options{
		UserID:       "bob",
		WebSocketURL: wsURL(server),
	})

	h, err := transport.NewDialer().Connect(ctx, false, options)
	requireT.NoError(err)
	defer h.Close()

	receive(requireT, cb.connectedCh)

	packet := &wire.PacketWrapper{
		PacketType: wire.PacketTypeMediaMandatory,
		SenderID:   "bob",
		Data:       []byte{0x01, 0x02},
	}
	h.Send(packet)

	requireT.Equal(packet, receive(requireT, receivedCh))
	requireT.Equal(packet, receive(requireT, cb.inboundCh))
}

func TestWebSocketCloseIsNotReportedAsLost(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	server := wsEchoServer(t, make(chan *wire.PacketWrapper, 10), 0)
	options, cb := newCallbacks(transport.Options{WebSocketURL: wsURL(server)})

	h, err := transport.NewDialer().Connect(ctx, false, options)
	requireT.NoError(err)
	receive(requireT, cb.connectedCh)

	h.Close()
	h.Close()
	h.Send(&wire.PacketWrapper{PacketType: wire.PacketTypeMedia})

	select {
	case err := <-cb.lostCh:
		requireT.Failf("unexpected connection loss", "%v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebSocketLossIsReported(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	server := wsEchoServer(t, make(chan *wire.PacketWrapper, 10), 1)
	options, cb := newCallbacks(transport.Options{WebSocketURL: wsURL(server)})

	h, err := transport.NewDialer().Connect(ctx, false, options)
	requireT.NoError(err)
	defer h.Close()

	h.Send(&wire.PacketWrapper{PacketType: wire.PacketTypeMedia, SenderID: "bob"})

	requireT.Error(receive(requireT, cb.lostCh))
}

func TestWebSocketDialFailure(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	ls, err := net.Listen("tcp", "localhost:0")
	requireT.NoError(err)
	addr := ls.Addr().String()
	requireT.NoError(ls.Close())

	_, err = transport.NewDialer().Connect(ctx, false, transport.Options{WebSocketURL: "ws://" + addr})
	requireT.Error(err)
}

func TestStreamExchangesPackets(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	ls, err := net.Listen("tcp", "localhost:0")
	requireT.NoError(err)

	helloCh := make(chan string, 1)
	group.Spawn("server", parallel.Fail, func(ctx context.Context) error {
		m := wire.NewMarshaller()
		return resonance.RunServer(ctx, ls, resonance.Config{MaxMessageSize: 1024},
			func(ctx context.Context, c *resonance.Connection) error {
				hello, err := transport.Handshake(c, "")
				if err != nil {
					return err
				}
				helloCh <- hello.UserID

				for {
					msg, err := c.ReceiveProton(m)
					if err != nil {
						return err
					}
					if err := c.SendProton(msg, m); err != nil {
						return err
					}
				}
			})
	})

	options, cb := newCallbacks(transport.Options{
		UserID:         "bob",
		StreamAddr:     ls.Addr().String(),
		MaxMessageSize: 1024,
	})

	h, err := transport.NewDialer().Connect(ctx, true, options)
	requireT.NoError(err)
	defer h.Close()

	requireT.Equal("bob", receive(requireT, helloCh))
	receive(requireT, cb.connectedCh)

	packet := &wire.PacketWrapper{
		PacketType: wire.PacketTypeMediaManagement,
		SenderID:   "bob",
		Data:       []byte("ciphertext"),
	}
	h.Send(packet)

	requireT.Equal(packet, receive(requireT, cb.inboundCh))
}

func TestStreamDialFailure(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	ls, err := net.Listen("tcp", "localhost:0")
	requireT.NoError(err)
	addr := ls.Addr().String()
	requireT.NoError(ls.Close())

	_, err = transport.NewDialer().Connect(ctx, true, transport.Options{
		StreamAddr:     addr,
		MaxMessageSize: 1024,
	})
	requireT.Error(err)
}
