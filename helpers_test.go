package videocall_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/videocall"
	"github.com/outofforest/videocall/encryption"
	"github.com/outofforest/videocall/transport"
	"github.com/outofforest/videocall/wire"
)

type fakeHandle struct {
	mu      sync.Mutex
	packets []*wire.PacketWrapper
	closed  bool
}

func (h *fakeHandle) Send(packet *wire.PacketWrapper) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.packets = append(h.packets, packet)
}

func (h *fakeHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
}

func (h *fakeHandle) Packets() []*wire.PacketWrapper {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]*wire.PacketWrapper{}, h.packets...)
}

func (h *fakeHandle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.closed
}

type fakeTransport struct {
	err error

	// If set, Connect signals on entered and blocks until release is closed.
	entered chan struct{}
	release chan struct{}

	// If set, OnConnected is triggered asynchronously before Connect returns.
	earlyConnected bool

	mu      sync.Mutex
	handles []*fakeHandle
	options []transport.Options
	ctxs    []context.Context
}

func (t *fakeTransport) Connect(ctx context.Context, _ bool, options transport.Options) (transport.Handle, error) {
	if t.release != nil {
		t.entered <- struct{}{}
		<-t.release
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return nil, t.err
	}

	h := &fakeHandle{}
	t.handles = append(t.handles, h)
	t.options = append(t.options, options)
	t.ctxs = append(t.ctxs, ctx)

	if t.earlyConnected && options.OnConnected != nil {
		go options.OnConnected()
	}
	return h, nil
}

func (t *fakeTransport) Handle(i int) *fakeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.handles[i]
}

func (t *fakeTransport) Context(i int) context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.ctxs[i]
}

func (t *fakeTransport) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.handles)
}

func (t *fakeTransport) Options(i int) transport.Options {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.options[i]
}

type packetRecorder struct {
	mu      sync.Mutex
	packets []*wire.PacketWrapper
}

func (r *packetRecorder) SendPacket(packet *wire.PacketWrapper) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.packets = append(r.packets, packet)
}

func (r *packetRecorder) Packets() []*wire.PacketWrapper {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*wire.PacketWrapper{}, r.packets...)
}

type failingCipher struct{}

func (failingCipher) Encrypt([]byte) ([]byte, error) {
	return nil, errors.New("cipher broken")
}

func (failingCipher) Decrypt([]byte) ([]byte, error) {
	return nil, errors.New("cipher broken")
}

type blockingMonitor struct {
	enteredCh chan struct{}
	releaseCh chan struct{}
	count     atomic.Int64
}

func newBlockingMonitor() *blockingMonitor {
	return &blockingMonitor{
		enteredCh: make(chan struct{}, 1),
		releaseCh: make(chan struct{}),
	}
}

func (m *blockingMonitor) MonitorPeers() {
	m.count.Add(1)
	m.enteredCh <- struct{}{}
	<-m.releaseCh
}

type countingMonitor struct {
	count atomic.Int64
}

func (m *countingMonitor) MonitorPeers() {
	m.count.Add(1)
}

func newCipher(requireT *require.Assertions) *encryption.AEAD {
	key, err := encryption.GenerateKey(encryption.AES128KeySize)
	requireT.NoError(err)
	cipher, err := encryption.NewAES128(key)
	requireT.NoError(err)
	return cipher
}

func managementEvents(
	requireT *require.Assertions,
	packets []*wire.PacketWrapper,
	cipher encryption.Cipher,
) []wire.MediaManagementPacket {
	var events []wire.MediaManagementPacket
	for _, p := range packets {
		if p.PacketType != wire.PacketTypeMediaManagement {
			continue
		}
		msg, err := videocall.OpenPacket(p, cipher)
		requireT.NoError(err)
		events = append(events, *msg.(*wire.MediaManagementPacket))
	}
	return events
}
