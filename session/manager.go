package session

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/sobhagya/callcore/call"
	"github.com/sobhagya/callcore/internal/constants"
	"github.com/sobhagya/callcore/internal/log"
	"github.com/sobhagya/callcore/signaling"
)

// ChannelFactory builds a signaling channel for the local user. Each call
// attempt gets a fresh channel.
type ChannelFactory func(userID string) signaling.Channel

// Manager owns at most one live session at a time. Starting a new call while
// another is active tears the old one down, completely, before dialing.
type Manager struct {
	calls      call.Service
	newChannel ChannelFactory
	newMedia   MediaFactory
	clock      clockwork.Clock
	logger     *log.Logger

	mu      sync.Mutex
	current *Session
}

type ManagerOption func(*Manager)

func WithManagerClock(clk clockwork.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = clk
	}
}

func NewManager(
	calls call.Service,
	newChannel ChannelFactory,
	newMedia MediaFactory,
	logger *log.Logger,
	opts ...ManagerOption,
) *Manager {
	if logger == nil {
		panic("logger is required")
	}
	m := &Manager{
		calls:      calls,
		newChannel: newChannel,
		newMedia:   newMedia,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartCall dials astrologerID and brings up a new session. Any previous
// session is fully torn down first; two live sessions never overlap.
func (m *Manager) StartCall(
	ctx context.Context,
	astrologerID string,
	callType constants.CallType,
	cb Callbacks,
) (*Session, error) {
	m.mu.Lock()
	prev := m.current
	m.mu.Unlock()

	if prev != nil && !prev.State().Terminal() {
		m.logger.Info("ending previous session before new call",
			log.String("room", prev.Room()))
		prev.Leave()
		<-prev.Done()
	}

	init, err := m.calls.InitiateCall(ctx, astrologerID, callType)
	if err != nil {
		return nil, err
	}

	sess := New(
		init,
		m.newChannel(init.LocalUserID),
		m.newMedia,
		cb,
		m.logger.Module("Session"),
		WithClock(m.clock),
	)

	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()

	if err := sess.Start(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// Active returns the live session, or nil when none is running.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.State().Terminal() {
		return nil
	}
	return m.current
}

// Shutdown tears down the active session, if any, and waits for it.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	cur := m.current
	m.current = nil
	m.mu.Unlock()

	if cur == nil || cur.State().Terminal() {
		return
	}
	cur.Leave()
	<-cur.Done()
}
