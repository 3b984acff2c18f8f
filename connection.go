package videocall

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/videocall/encryption"
	"github.com/outofforest/videocall/transport"
	"github.com/outofforest/videocall/wire"
)

// State is the state of the connection.
type State int

// Connection states.
const (
	StateClosed State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// PeerMonitor is notified periodically while connection is established.
// MonitorPeers may send packets through the connection but must not connect or disconnect it.
type PeerMonitor interface {
	MonitorPeers()
}

// PeerMonitorFunc adapts function to PeerMonitor.
type PeerMonitorFunc func()

// MonitorPeers calls f.
func (f PeerMonitorFunc) MonitorPeers() {
	f()
}

// ConnectOptions defines how connection is established.
type ConnectOptions struct {
	UserID      string
	PeerMonitor PeerMonitor
	Transport   transport.Options
}

// ConnectionConfig is the config of connection.
type ConnectionConfig struct {
	Transport         transport.Transport
	Clock             clock.Clock
	HeartbeatPeriod   time.Duration
	PeerMonitorPeriod time.Duration
	Metrics           *Metrics
}

type connState interface {
	state() State
}

type closedState struct{}

type connectingState struct {
	userID      string
	handle      transport.Handle
	cipher      encryption.Cipher
	peerMonitor PeerMonitor
	cancelLink  context.CancelFunc
}

type connectedState struct {
	userID       string
	handle       transport.Handle
	cipher       encryption.Cipher
	cancelLink   context.CancelFunc
	cancelTimers context.CancelFunc
	monitors     sync.WaitGroup
}

func (closedState) state() State      { return StateClosed }
func (*connectingState) state() State { return StateConnecting }
func (*connectedState) state() State  { return StateConnected }

// Connection keeps the link to the call endpoint alive.
// Transport handle exists only while connecting or connected, timers only while connected.
type Connection struct {
	config ConnectionConfig

	mu         sync.Mutex
	state      connState
	generation uint64
	cancelDial context.CancelFunc
}

// NewConnection creates closed connection.
func NewConnection(config ConnectionConfig) *Connection {
	if config.Transport == nil {
		config.Transport = transport.NewDialer()
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.HeartbeatPeriod <= 0 {
		config.HeartbeatPeriod = DefaultHeartbeatPeriod
	}
	if config.PeerMonitorPeriod <= 0 {
		config.PeerMonitorPeriod = DefaultPeerMonitorPeriod
	}

	return &Connection{
		config: config,
		state:  closedState{},
	}
}

// Connect establishes transport link. Link lives until disconnected or ctx is canceled.
// Calling it on connection which is connecting, connected or still dialing terminates the connection.
// Failures are only logged, connection stays closed then.
// Transport callbacks are never invoked before Connect returns.
func (c *Connection) Connect(
	ctx context.Context,
	alternate bool,
	options ConnectOptions,
	cipher encryption.Cipher,
) {
	log := logger.Get(ctx)

	c.mu.Lock()
	if current := c.state.state(); current != StateClosed || c.cancelDial != nil {
		log.Error("Unable to connect, terminating connection",
			zap.Stringer("state", current), zap.Bool("dialing", c.cancelDial != nil))
		wait := c.close()
		c.mu.Unlock()
		wait()
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancelDial = cancel
	generation := c.generation
	c.mu.Unlock()

	installed := make(chan struct{})
	var accepted bool

	transportOptions := options.Transport
	transportOptions.UserID = options.UserID
	if onConnected := options.Transport.OnConnected; onConnected != nil {
		transportOptions.OnConnected = func() {
			<-installed
			if accepted {
				onConnected()
			}
		}
	}
	if onLost := options.Transport.OnConnectionLost; onLost != nil {
		transportOptions.OnConnectionLost = func(err error) {
			<-installed
			if accepted {
				onLost(err)
			}
		}
	}

	handle, err := c.config.Transport.Connect(ctx, alternate, transportOptions)

	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(installed)

	if c.generation != generation {
		cancel()
		if err == nil {
			handle.Close()
		}
		log.Warn("Connection was reset while dialing, link dropped")
		return
	}

	c.cancelDial = nil
	if err != nil {
		cancel()
		log.Error("Connecting failed", zap.Error(err))
		return
	}

	accepted = true
	c.setState(&connectingState{
		userID:      options.UserID,
		handle:      handle,
		cipher:      cipher,
		peerMonitor: options.PeerMonitor,
		cancelLink:  cancel,
	})
	log.Info("Connecting", zap.Bool("alternate", alternate))
}

// CompleteConnection confirms that connecting link is usable and starts heartbeat and peer monitor.
// Timers run until disconnected or ctx is canceled.
// Calling it on connection which is not connecting terminates the connection.
func (c *Connection) CompleteConnection(ctx context.Context) {
	log := logger.Get(ctx)

	c.mu.Lock()
	s, ok := c.state.(*connectingState)
	if !ok {
		log.Error("Unable to complete connection, not in connecting state",
			zap.Stringer("state", c.state.state()))
		wait := c.close()
		c.mu.Unlock()
		wait()
		return
	}
	defer c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	connected := &connectedState{
		userID:       s.userID,
		handle:       s.handle,
		cipher:       s.cipher,
		cancelLink:   s.cancelLink,
		cancelTimers: cancel,
	}

	// Tickers are created before returning so no tick is missed.
	heartbeat := c.config.Clock.Ticker(c.config.HeartbeatPeriod)
	monitor := c.config.Clock.Ticker(c.config.PeerMonitorPeriod)

	go func() {
		defer heartbeat.Stop()
		defer monitor.Stop()

		err := parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
			spawn("heartbeat", parallel.Fail, func(ctx context.Context) error {
				for {
					select {
					case <-ctx.Done():
						return errors.WithStack(ctx.Err())
					case <-heartbeat.C:
						c.sendHeartbeat(ctx, connected)
					}
				}
			})
			spawn("peerMonitor", parallel.Fail, func(ctx context.Context) error {
				for {
					select {
					case <-ctx.Done():
						return errors.WithStack(ctx.Err())
					case <-monitor.C:
						c.monitorPeers(connected, s.peerMonitor)
					}
				}
			})

			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Connection timers failed", zap.Error(err))
		}
	}()

	c.setState(connected)
	log.Info("Connection established")
}

// Disconnect terminates the connection. Once it returns no heartbeat is sent and no peer monitor runs
// on behalf of the terminated connection.
func (c *Connection) Disconnect(ctx context.Context) {
	c.mu.Lock()
	wait := c.close()
	c.mu.Unlock()

	wait()
	logger.Get(ctx).Info("Connection terminated")
}

// IsConnected reports whether connection is established.
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// State returns the current state of the connection.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.state()
}

// SendPacket passes packet to the transport if connection is established, otherwise packet is dropped.
func (c *Connection) SendPacket(packet *wire.PacketWrapper) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.state.(*connectedState)
	if !ok {
		c.config.Metrics.packetDropped()
		return
	}

	s.handle.Send(packet)
	c.config.Metrics.packetSent(packet.PacketType)
}

func (c *Connection) sendHeartbeat(ctx context.Context, s *connectedState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != connState(s) {
		return
	}

	packet, err := BuildHeartbeatPacket(s.userID, c.config.Clock.Now(), s.cipher)
	if err != nil {
		logger.Get(ctx).Error("Building heartbeat failed", zap.Error(err))
		return
	}

	s.handle.Send(packet)
	c.config.Metrics.packetSent(packet.PacketType)
}

func (c *Connection) monitorPeers(s *connectedState, peerMonitor PeerMonitor) {
	if peerMonitor == nil {
		return
	}

	// Registered under the lock so termination either prevents the call or waits for it.
	c.mu.Lock()
	current := c.state == connState(s)
	if current {
		s.monitors.Add(1)
	}
	c.mu.Unlock()

	if current {
		defer s.monitors.Done()
		peerMonitor.MonitorPeers()
	}
}

// close releases resources of the current state and returns the function waiting for running
// peer monitor. Must be called with c.mu held, returned function must be called without it.
func (c *Connection) close() func() {
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}

	wait := func() {}
	switch s := c.state.(type) {
	case *connectingState:
		s.handle.Close()
		s.cancelLink()
	case *connectedState:
		s.cancelTimers()
		s.handle.Close()
		s.cancelLink()
		wait = s.monitors.Wait
	}
	c.setState(closedState{})
	return wait
}

func (c *Connection) setState(s connState) {
	c.state = s
	c.generation++
	c.config.Metrics.transition(s.state())
}
