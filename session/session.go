package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/sobhagya/callcore/call"
	"github.com/sobhagya/callcore/internal/constants"
	"github.com/sobhagya/callcore/internal/errors"
	"github.com/sobhagya/callcore/internal/log"
	"github.com/sobhagya/callcore/internal/scheduler"
	"github.com/sobhagya/callcore/internal/validation"
	"github.com/sobhagya/callcore/media"
	"github.com/sobhagya/callcore/signaling"
)

type State = constants.SessionState

const (
	ErrAlreadyStarted errors.Code = "session already started"
	ErrSessionEnded   errors.Code = "session ended"
)

const (
	// how long a not-allowed message stays on screen before the call view
	// closes itself
	graceClosePeriod = 5 * time.Second

	// settle window between the last teardown step and OnDisconnect
	flushDelay = 200 * time.Millisecond

	keyGraceClose    = "grace_close"
	keyGiftReqPrefix = "gift_request:"
)

// hangup reasons sent with end_call
const (
	endReasonUser       = "user_hangup"
	endReasonRemote     = "remote_end"
	endReasonNotAllowed = "not_allowed"
	endReasonError      = "error"
)

// StateInfo carries the user-facing context of a state change.
type StateInfo struct {
	Reason  constants.NotAllowedReason
	Message string
	Err     error
}

type Callbacks struct {
	// OnStateChange fires on every lifecycle transition.
	OnStateChange func(state State, info StateInfo)

	// OnDisconnect fires exactly once, after teardown has fully flushed.
	// The session is dead afterwards; callers discard it.
	OnDisconnect func()

	Gifts GiftCallbacks
}

// MediaFactory builds the media controller with the session's callbacks
// already bound.
type MediaFactory func(cb media.Callbacks) media.Controller

// Session merges the signaling channel and the media room into one call
// lifecycle:
//
//	idle -> initiating -> connecting -> joined -> ended
//
// with not_allowed and error branching off connecting. The two transports
// connect in parallel and fail independently; whichever side reports a
// terminal condition first wins, and the one-shot teardown guard keeps the
// loser from running cleanup twice.
type Session struct {
	init    *call.Initiation
	channel signaling.Channel
	mediaC  media.Controller
	cb      Callbacks
	clock   clockwork.Clock
	sched   *scheduler.KeyedScheduler
	logger  *log.Logger

	// ctx spans the connection lifetime: both transports dial, read, and
	// reconnect on it. Cancelled during teardown.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	connectedAt time.Time

	tearingDown atomic.Bool
	done        chan struct{}

	gifts *GiftService
}

type Option func(*Session)

// WithClock drives every session timer from clk; tests pass a fake clock.
func WithClock(clk clockwork.Clock) Option {
	return func(s *Session) {
		s.clock = clk
	}
}

func New(
	init *call.Initiation,
	channel signaling.Channel,
	newMedia MediaFactory,
	cb Callbacks,
	logger *log.Logger,
	opts ...Option,
) *Session {
	if logger == nil {
		panic("logger is required")
	}

	s := &Session{
		init:    init,
		channel: channel,
		cb:      cb,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		state:   constants.SessionStateIdle,
		done:    make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	s.sched = scheduler.NewKeyedSchedulerWithClock(logger.Module("timers"), s.clock)

	s.mediaC = newMedia(media.Callbacks{
		OnRemotePresence: s.handlePresence,
		OnDisconnected:   s.handleMediaDisconnected,
		OnFatalError:     s.handleMediaFatal,
	})

	s.gifts = newGiftService(s, cb.Gifts, logger.Module("gifts"))
	return s
}

// Start registers event handlers and instructs both transports to connect.
// The two connects run in parallel; neither gates the other. Start returns
// as soon as both have been instructed, with the session in connecting.
//
// ctx gates the start attempt only. The transports run on the session's own
// context, which stays live until teardown: a transport dies with the call,
// never with the caller's request scope.
func (s *Session) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.transition(constants.SessionStateIdle, constants.SessionStateInitiating, StateInfo{}) {
		return ErrAlreadyStarted
	}

	s.registerSignalHandlers()
	go s.watchTimers()

	// connecting before either transport launches, so a confirmation
	// arriving mid-handshake always finds the state it expects
	s.transition(constants.SessionStateInitiating, constants.SessionStateConnecting, StateInfo{})

	// the group joins errors only; it carries no cancellation
	var g errgroup.Group
	g.Go(func() error {
		return s.channel.Connect(s.ctx, s.init.Grant.RoomName)
	})
	g.Go(func() error {
		opts := media.DefaultConnectOptions(
			s.init.Grant.RoomName,
			s.init.LocalUserID,
			s.init.CallType == constants.CallTypeVideo,
		)
		return s.mediaC.Connect(s.ctx, s.init.Grant.MediaToken, s.init.Grant.SignalingURL, opts)
	})

	go func() {
		if err := g.Wait(); err != nil {
			s.fatal(err)
		}
	}()
	return nil
}

func (s *Session) registerSignalHandlers() {
	s.channel.Handle(signaling.EventBroadcasterJoined, s.handleBroadcasterJoined)

	for _, ev := range signaling.TerminalEvents() {
		ev := ev
		s.channel.Handle(ev, func(json.RawMessage) {
			s.handleRemoteEnd(ev)
		})
	}

	s.channel.OnUnavailable(func() {
		s.fatal(errors.New(signaling.ErrUnavailable, "signaling reconnect attempts exhausted"))
	})

	s.gifts.register()
}

func (s *Session) handleBroadcasterJoined(data json.RawMessage) {
	var payload signaling.BroadcasterJoined
	if err := validation.Bind(data, &payload); err != nil {
		s.logger.Warn("malformed broadcaster_joined payload",
			log.Error(err),
			log.Any("fields", validation.FormatValidationError(err)))
		return
	}

	if payload.Allowed() {
		s.maybeJoin("signaling")
		return
	}
	s.notAllowed(payload.Reason)
}

// maybeJoin moves connecting -> joined on the first confirmation from either
// transport. The second confirmation lands here too and is ignored.
func (s *Session) maybeJoin(source string) {
	if s.tearingDown.Load() {
		s.logger.Debug("ignoring join signal after teardown began", log.String("source", source))
		return
	}

	s.mu.Lock()
	if s.state != constants.SessionStateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = constants.SessionStateJoined
	s.connectedAt = s.clock.Now()
	s.mu.Unlock()

	s.logger.Info("call joined",
		log.String("room", s.init.Grant.RoomName),
		log.String("source", source))
	s.notifyState(constants.SessionStateJoined, StateInfo{})
}

func (s *Session) notAllowed(reason constants.NotAllowedReason) {
	msg := MessageFor(reason)

	s.mu.Lock()
	if s.state != constants.SessionStateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = constants.SessionStateNotAllowed
	s.mu.Unlock()

	s.logger.Info("join refused",
		log.String("room", s.init.Grant.RoomName),
		log.Any("reason", reason))
	s.notifyState(constants.SessionStateNotAllowed, StateInfo{Reason: reason, Message: msg})

	// leave the message on screen, then close the call view
	s.sched.Enqueue(keyGraceClose, graceClosePeriod)
}

func (s *Session) handleRemoteEnd(event string) {
	s.logger.Info("terminal signaling event",
		log.String("event", event),
		log.String("room", s.init.Grant.RoomName))
	s.teardown(constants.SessionStateEnded, StateInfo{}, endReasonRemote)
}

func (s *Session) handlePresence(present bool, count int) {
	s.logger.Debug("remote presence changed",
		log.Bool("present", present),
		log.Int("count", count))
	if present {
		s.maybeJoin("media")
	}
}

func (s *Session) handleMediaDisconnected() {
	if s.tearingDown.Load() {
		return
	}
	s.logger.Info("media room disconnected", log.String("room", s.init.Grant.RoomName))
	s.teardown(constants.SessionStateEnded, StateInfo{}, endReasonError)
}

func (s *Session) handleMediaFatal(err error) {
	s.fatal(errors.Wrap(media.ErrFatal, err, "media room failed"))
}

// fatal classifies an unrecoverable transport failure and tears down.
func (s *Session) fatal(err error) {
	if s.tearingDown.Load() {
		return
	}
	s.logger.Error("session failed",
		log.String("room", s.init.Grant.RoomName),
		log.Error(err))
	s.teardown(constants.SessionStateError, StateInfo{Err: err, Message: "Connection lost."}, endReasonError)
}

// Leave is the local hangup.
func (s *Session) Leave() {
	s.teardown(constants.SessionStateEnded, StateInfo{}, endReasonUser)
}

// teardown is the only path out of the session. The guard is checked and set
// before any async step, so concurrent terminal events collapse into one
// run: one end_call emit, one OnDisconnect.
func (s *Session) teardown(final State, info StateInfo, reason string) {
	if !s.tearingDown.CompareAndSwap(false, true) {
		return
	}
	go s.runTeardown(final, info, reason)
}

func (s *Session) runTeardown(final State, info StateInfo, reason string) {
	room := s.init.Grant.RoomName
	s.logger.Info("tearing down session",
		log.String("room", room),
		log.String("reason", reason))

	// 1. tell the server and remote party first, so they learn about the
	// hangup even if local cleanup partially fails
	if s.channel.Connected() {
		if _, err := s.channel.Emit(context.Background(), signaling.EventEndCall, &signaling.EndCallPayload{
			ChannelID: room,
			UserID:    s.init.LocalUserID,
			Reason:    reason,
		}); err != nil {
			s.logger.Warn("end_call emit failed, proceeding with teardown", log.Error(err))
		}
	}

	// 2. release the microphone and camera before dropping the room; the
	// transport can hold track references past a failed disconnect
	s.mediaC.StopLocalTracks()

	// 3.
	if err := s.mediaC.Disconnect(); err != nil {
		s.logger.Warn("media disconnect failed", log.Error(err))
	}

	// 4.
	if err := s.channel.Disconnect(); err != nil {
		s.logger.Warn("signaling disconnect failed", log.Error(err))
	}

	// no transport survives this point; in-flight dials and reconnect
	// attempts stop here
	s.cancel()

	s.setFinalState(final, info)
	s.sched.Shutdown()

	// 5. let steps 1-4 flush before handing control back
	s.clock.Sleep(flushDelay)
	if s.cb.OnDisconnect != nil {
		s.cb.OnDisconnect()
	}
	close(s.done)
}

func (s *Session) setFinalState(final State, info StateInfo) {
	s.mu.Lock()
	if s.state == final {
		s.mu.Unlock()
		return
	}
	s.state = final
	s.mu.Unlock()
	s.notifyState(final, info)
}

func (s *Session) transition(from, to State, info StateInfo) bool {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return false
	}
	s.state = to
	s.mu.Unlock()
	s.notifyState(to, info)
	return true
}

func (s *Session) notifyState(state State, info StateInfo) {
	if s.cb.OnStateChange != nil {
		s.cb.OnStateChange(state, info)
	}
}

func (s *Session) watchTimers() {
	for key := range s.sched.Chan() {
		switch {
		case key == keyGraceClose:
			s.teardown(constants.SessionStateEnded, StateInfo{}, endReasonNotAllowed)
		case strings.HasPrefix(key, keyGiftReqPrefix):
			s.gifts.expire(strings.TrimPrefix(key, keyGiftReqPrefix))
		default:
			s.logger.Warn("unknown timer key", log.String("key", key))
		}
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Duration reports connected time; zero until joined.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectedAt.IsZero() {
		return 0
	}
	return s.clock.Now().Sub(s.connectedAt)
}

// Room returns the call's room name.
func (s *Session) Room() string {
	return s.init.Grant.RoomName
}

// Gifts exposes the in-call gift sub-channel.
func (s *Session) Gifts() *GiftService {
	return s.gifts
}

// SetMicrophoneEnabled toggles the local microphone.
func (s *Session) SetMicrophoneEnabled(enabled bool) error {
	return s.mediaC.SetMicrophoneEnabled(enabled)
}

// SetCameraEnabled toggles the local camera on video calls.
func (s *Session) SetCameraEnabled(enabled bool) error {
	return s.mediaC.SetCameraEnabled(enabled)
}

// Done is closed once teardown has fully completed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
