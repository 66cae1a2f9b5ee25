package signaling

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/sobhagya/callcore/internal/errors"
	"github.com/sobhagya/callcore/internal/log"
	"github.com/sobhagya/callcore/internal/retry"
	csync "github.com/sobhagya/callcore/internal/sync"
)

const (
	ErrUnavailable   errors.Code = "signaling unavailable"
	ErrNotConnected  errors.Code = "not connected"
	ErrAlreadyInRoom errors.Code = "already bound to a room"

	// fixed path the call server listens on
	socketPath = "/call-socket"

	DefaultAckTimeout        = 10 * time.Second
	DefaultReconnectInterval = time.Second
	DefaultReconnectAttempts = 5
)

// HandlerFunc receives a room event's raw payload.
type HandlerFunc func(data json.RawMessage)

// Channel is one signaling connection, bound to exactly one room at a time.
// Register-first is enforced internally: no room-scoped emit goes out before
// the register handshake completes.
type Channel interface {
	// Connect dials, registers for roomName, and starts dispatching events.
	// A channel already bound to another room is torn down first; connecting
	// again to the room it is live on fails with ErrAlreadyInRoom.
	Connect(ctx context.Context, roomName string) error

	// Emit sends an event and waits for the server ack, with the channel's
	// ack timeout applied on top of ctx.
	Emit(ctx context.Context, event string, payload any) (*Ack, error)

	// Notify sends without waiting for an ack.
	Notify(ctx context.Context, event string, payload any) error

	// Handle subscribes to a server event. Handlers survive reconnects.
	Handle(event string, fn HandlerFunc)

	// OnUnavailable registers the callback fired when reconnection attempts
	// are exhausted. The channel is dead afterwards.
	OnUnavailable(fn func())

	Connected() bool
	Room() string
	Disconnect() error
}

type Config struct {
	URL    string
	UserID string
	Role   string

	AckTimeout        time.Duration
	ReconnectInterval time.Duration
	ReconnectAttempts uint64
}

func (c *Config) fillDefaults() {
	if c.AckTimeout <= 0 {
		c.AckTimeout = DefaultAckTimeout
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.ReconnectAttempts == 0 {
		c.ReconnectAttempts = DefaultReconnectAttempts
	}
}

type channelImpl struct {
	cfg    Config
	logger *log.Logger

	mu        sync.Mutex
	conn      *wireConn
	room      string
	connected bool
	closing   bool

	handlers      *csync.Map[string, []HandlerFunc]
	onUnavailable func()

	dialFunc dialFunc
}

type dialFunc func(ctx context.Context, wsURL string) (stream, error)

// NewChannel creates a signaling channel. Nothing is dialed until Connect.
func NewChannel(cfg Config, logger *log.Logger) Channel {
	if logger == nil {
		panic("logger is required")
	}
	cfg.fillDefaults()

	ch := &channelImpl{
		cfg:      cfg,
		logger:   logger,
		handlers: csync.NewMap[string, []HandlerFunc](),
	}
	ch.dialFunc = ch.dial
	return ch
}

func (c *channelImpl) Connect(ctx context.Context, roomName string) error {
	c.mu.Lock()
	if c.connected {
		if c.room == roomName {
			c.mu.Unlock()
			return errors.Newf(ErrAlreadyInRoom, "already registered for %s", roomName)
		}

		// one live connection per client; a new room displaces the old one
		old := c.conn
		oldRoom := c.room
		c.connected = false
		c.conn = nil
		c.mu.Unlock()

		c.logger.Info("displacing previous signaling room",
			log.String("oldRoom", oldRoom),
			log.String("newRoom", roomName))
		_ = old.Close()

		c.mu.Lock()
	}
	c.closing = false
	c.room = roomName
	c.mu.Unlock()

	return c.connect(ctx, roomName)
}

// connect dials and registers without touching the room binding; Connect and
// the reconnect path both funnel through here. Runs unlocked.
func (c *channelImpl) connect(ctx context.Context, roomName string) error {
	st, err := c.dialFunc(ctx, c.buildURL())
	if err != nil {
		return errors.Wrap(ErrUnavailable, err, "dial signaling server")
	}

	conn := newWireConn(st, c.dispatch, func(connErr error) {
		c.handleConnClosed(ctx, connErr)
	}, c.logger)

	if err := conn.Open(ctx); err != nil {
		return errors.Wrap(ErrUnavailable, err, "open signaling stream")
	}

	// register must precede every other room-scoped emit
	if err := c.register(ctx, conn, roomName); err != nil {
		_ = conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("signaling connected",
		log.String("room", roomName),
		log.String("userId", c.cfg.UserID))
	return nil
}

func (c *channelImpl) register(ctx context.Context, conn *wireConn, roomName string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AckTimeout)
	defer cancel()

	_, err := conn.Emit(ctx, EventRegister, &registerPayload{
		UserID:    c.cfg.UserID,
		ChannelID: roomName,
	})
	return errors.Wrap(ErrUnavailable, err, "register with signaling server")
}

func (c *channelImpl) dial(ctx context.Context, wsURL string) (stream, error) {
	//nolint:bodyclose // handled by websocket library on Close
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	return newStream(conn, c.logger), nil
}

func (c *channelImpl) buildURL() string {
	q := url.Values{}
	q.Set("userId", c.cfg.UserID)
	q.Set("role", c.cfg.Role)
	return c.cfg.URL + socketPath + "?" + q.Encode()
}

func (c *channelImpl) Emit(ctx context.Context, event string, payload any) (*Ack, error) {
	conn, err := c.liveConn()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.AckTimeout)
	defer cancel()
	return conn.Emit(ctx, event, payload)
}

func (c *channelImpl) Notify(ctx context.Context, event string, payload any) error {
	conn, err := c.liveConn()
	if err != nil {
		return err
	}
	return conn.Notify(ctx, event, payload)
}

func (c *channelImpl) liveConn() (*wireConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *channelImpl) Handle(event string, fn HandlerFunc) {
	c.handlers.WithLock(func(view csync.View[string, []HandlerFunc]) {
		fns, _ := view.Get(event)
		view.Set(event, append(fns, fn))
	})
}

func (c *channelImpl) OnUnavailable(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnavailable = fn
}

func (c *channelImpl) dispatch(event string, data json.RawMessage) {
	fns, ok := c.handlers.Load(event)
	if !ok {
		c.logger.Debug("no handler for event", log.String("event", event))
		return
	}
	// handlers may emit; never run them on the read loop
	for _, fn := range fns {
		go fn(data)
	}
}

func (c *channelImpl) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *channelImpl) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *channelImpl) Disconnect() error {
	c.mu.Lock()
	c.closing = true
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// handleConnClosed runs when the wire drops underneath us. Deliberate
// disconnects do nothing; unexpected drops trigger the bounded reconnect
// schedule and, past the ceiling, the terminal unavailable callback.
func (c *channelImpl) handleConnClosed(ctx context.Context, err error) {
	c.mu.Lock()
	if c.closing || !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.conn = nil
	room := c.room
	c.mu.Unlock()

	c.logger.Warn("signaling connection lost, reconnecting",
		log.String("room", room),
		log.Error(err))

	go c.reconnect(ctx, room)
}

func (c *channelImpl) reconnect(ctx context.Context, room string) {
	r := retry.NewConstant(c.logger, c.cfg.ReconnectInterval, c.cfg.ReconnectAttempts)
	err := r.Do(ctx, func() error {
		c.mu.Lock()
		if c.closing {
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		return c.connect(ctx, room)
	})
	if err == nil {
		return
	}

	c.logger.Error("signaling reconnect attempts exhausted",
		log.String("room", room),
		log.Error(err))

	c.mu.Lock()
	fn := c.onUnavailable
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
