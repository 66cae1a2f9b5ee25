package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"

	"github.com/sobhagya/callcore/call"
	"github.com/sobhagya/callcore/gateway"
	"github.com/sobhagya/callcore/internal/constants"
	"github.com/sobhagya/callcore/internal/errors"
	"github.com/sobhagya/callcore/internal/log"
	"github.com/sobhagya/callcore/media"
	"github.com/sobhagya/callcore/signaling"
)

// recorder collects the ordered side effects of a teardown across both
// transports.
type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.steps))
	copy(out, r.steps)
	return out
}

func (r *recorder) count(step string) int {
	n := 0
	for _, s := range r.all() {
		if s == step {
			n++
		}
	}
	return n
}

type fakeChannel struct {
	rec *recorder

	mu            sync.Mutex
	handlers      map[string][]signaling.HandlerFunc
	onUnavailable func()
	connected     bool
	room          string
	connectErr    error
	connectCtx    context.Context
	onConnect     func()
	emitErr       error
	payloads      map[string][]any
}

func newFakeChannel(rec *recorder) *fakeChannel {
	return &fakeChannel{
		rec:      rec,
		handlers: make(map[string][]signaling.HandlerFunc),
		payloads: make(map[string][]any),
	}
}

func (f *fakeChannel) Connect(ctx context.Context, roomName string) error {
	f.mu.Lock()
	f.connectCtx = ctx
	if f.connectErr != nil {
		err := f.connectErr
		f.mu.Unlock()
		return err
	}
	f.connected = true
	f.room = roomName
	hook := f.onConnect
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakeChannel) ctx() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCtx
}

func (f *fakeChannel) Emit(_ context.Context, event string, payload any) (*signaling.Ack, error) {
	f.mu.Lock()
	err := f.emitErr
	f.payloads[event] = append(f.payloads[event], payload)
	f.mu.Unlock()

	f.rec.add("emit:" + event)
	if err != nil {
		return nil, err
	}
	return &signaling.Ack{}, nil
}

func (f *fakeChannel) Notify(_ context.Context, event string, _ any) error {
	f.rec.add("notify:" + event)
	return nil
}

func (f *fakeChannel) Handle(event string, fn signaling.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], fn)
}

func (f *fakeChannel) OnUnavailable(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onUnavailable = fn
}

func (f *fakeChannel) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) Room() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.room
}

func (f *fakeChannel) Disconnect() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.rec.add("signaling_disconnect")
	return nil
}

// fire delivers a server event synchronously to every handler.
func (f *fakeChannel) fire(event string, data json.RawMessage) {
	f.mu.Lock()
	fns := append([]signaling.HandlerFunc(nil), f.handlers[event]...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(data)
	}
}

func (f *fakeChannel) dropForGood() {
	f.mu.Lock()
	f.connected = false
	fn := f.onUnavailable
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type fakeMedia struct {
	rec *recorder
	cb  media.Callbacks

	mu         sync.Mutex
	connectErr error
	connectCtx context.Context
}

func (f *fakeMedia) Connect(ctx context.Context, _, _ string, _ media.ConnectOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCtx = ctx
	return f.connectErr
}

func (f *fakeMedia) ctx() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCtx
}

func (f *fakeMedia) SetMicrophoneEnabled(bool) error { return nil }
func (f *fakeMedia) SetCameraEnabled(bool) error     { return nil }

func (f *fakeMedia) StopLocalTracks() {
	f.rec.add("stop_tracks")
}

func (f *fakeMedia) Disconnect() error {
	f.rec.add("media_disconnect")
	return nil
}

func (f *fakeMedia) RemoteParticipants() []media.Participant { return nil }

type SessionTestSuite struct {
	suite.Suite
	clock   *clockwork.FakeClock
	rec     *recorder
	channel *fakeChannel
	mediaC  *fakeMedia
	sess    *Session

	stateMu sync.Mutex
	states  []State
	infos   []StateInfo
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func (s *SessionTestSuite) SetupTest() {
	s.clock = clockwork.NewFakeClock()
	s.rec = &recorder{}
	s.channel = newFakeChannel(s.rec)
	s.mediaC = &fakeMedia{rec: s.rec}
	s.states = nil
	s.infos = nil

	init := &call.Initiation{
		Grant: gateway.CallGrant{
			MediaToken:   "media-token",
			RoomName:     "room-42",
			SignalingURL: "wss://media.example.com",
		},
		CallType:       constants.CallTypeAudio,
		LocalUserID:    "user-1",
		AstrologerID:   "astro-1",
		AstrologerName: "Guru",
		Token:          "jwt",
	}

	s.sess = New(
		init,
		s.channel,
		func(cb media.Callbacks) media.Controller {
			s.mediaC.cb = cb
			return s.mediaC
		},
		Callbacks{
			OnStateChange: s.onStateChange,
			OnDisconnect:  func() { s.rec.add("on_disconnect") },
		},
		log.NewNop(),
		WithClock(s.clock),
	)
}

func (s *SessionTestSuite) onStateChange(state State, info StateInfo) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.states = append(s.states, state)
	s.infos = append(s.infos, info)
}

func (s *SessionTestSuite) seenStates() []State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	out := make([]State, len(s.states))
	copy(out, s.states)
	return out
}

func (s *SessionTestSuite) lastInfo() StateInfo {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if len(s.infos) == 0 {
		return StateInfo{}
	}
	return s.infos[len(s.infos)-1]
}

func (s *SessionTestSuite) start() {
	s.Require().NoError(s.sess.Start(context.Background()))
	s.Require().Eventually(func() bool {
		return s.channel.Connected()
	}, time.Second, time.Millisecond)
}

// waitDone drives the fake clock until teardown completes.
func (s *SessionTestSuite) waitDone() {
	s.Require().Eventually(func() bool {
		s.clock.Advance(time.Second)
		select {
		case <-s.sess.Done():
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *SessionTestSuite) joinViaSignaling() {
	s.channel.fire(signaling.EventBroadcasterJoined, json.RawMessage(`{"status":"SUCCESS"}`))
	s.Require().Equal(constants.SessionStateJoined, s.sess.State())
}

func (s *SessionTestSuite) TestHappyPath() {
	s.start()
	s.Assert().Equal(constants.SessionStateConnecting, s.sess.State())

	s.joinViaSignaling()

	s.sess.Leave()
	s.waitDone()

	s.Assert().Equal(constants.SessionStateEnded, s.sess.State())
	s.Assert().Equal([]string{
		"emit:end_call",
		"stop_tracks",
		"media_disconnect",
		"signaling_disconnect",
		"on_disconnect",
	}, s.rec.all())
	s.Assert().Equal([]State{
		constants.SessionStateInitiating,
		constants.SessionStateConnecting,
		constants.SessionStateJoined,
		constants.SessionStateEnded,
	}, s.seenStates())
}

func (s *SessionTestSuite) TestTransportContextOutlivesStart() {
	s.start()
	s.joinViaSignaling()

	// the connection context stays live for the whole call: the signaling
	// read loop and the media room both run on it
	s.Require().NotNil(s.channel.ctx())
	s.Assert().NoError(s.channel.ctx().Err())
	s.Require().NotNil(s.mediaC.ctx())
	s.Assert().NoError(s.mediaC.ctx().Err())

	s.sess.Leave()
	s.waitDone()

	// teardown retires it, so stray reconnect attempts stop
	s.Assert().ErrorIs(s.channel.ctx().Err(), context.Canceled)
}

func (s *SessionTestSuite) TestJoinDuringConnectHandshake() {
	// confirmation lands synchronously inside the signaling connect,
	// before Start has returned
	s.channel.mu.Lock()
	s.channel.onConnect = func() {
		s.channel.fire(signaling.EventBroadcasterJoined, json.RawMessage(`{"status":"SUCCESS"}`))
	}
	s.channel.mu.Unlock()

	s.Require().NoError(s.sess.Start(context.Background()))
	s.Require().Eventually(func() bool {
		return s.sess.State() == constants.SessionStateJoined
	}, time.Second, time.Millisecond)
}

func (s *SessionTestSuite) TestStartTwice() {
	s.start()
	s.Assert().ErrorIs(s.sess.Start(context.Background()), ErrAlreadyStarted)
}

func (s *SessionTestSuite) TestNoJoinWithoutConfirmation() {
	s.start()

	// connected transports alone do not mean anyone answered
	s.Assert().Equal(constants.SessionStateConnecting, s.sess.State())
	s.Assert().Zero(s.sess.Duration())
}

func (s *SessionTestSuite) TestJoinViaMediaPresence() {
	s.start()

	s.mediaC.cb.OnRemotePresence(true, 1)
	s.Assert().Equal(constants.SessionStateJoined, s.sess.State())

	// the signaling confirmation arriving second changes nothing
	s.channel.fire(signaling.EventBroadcasterJoined, json.RawMessage(`{"status":"ALLOWED"}`))
	s.Assert().Equal(constants.SessionStateJoined, s.sess.State())
	s.Assert().Equal(1, countOf(s.seenStates(), constants.SessionStateJoined))
}

func (s *SessionTestSuite) TestPresenceWithoutRemoteDoesNotJoin() {
	s.start()

	s.mediaC.cb.OnRemotePresence(false, 0)
	s.Assert().Equal(constants.SessionStateConnecting, s.sess.State())
}

func (s *SessionTestSuite) TestConcurrentTeardownRunsOnce() {
	s.start()
	s.joinViaSignaling()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.sess.Leave()
		}()
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.channel.fire("end_call", nil)
	}()
	go func() {
		defer wg.Done()
		s.channel.fire("partner_disconnect", nil)
	}()
	wg.Wait()
	s.waitDone()

	s.Assert().Equal(1, s.rec.count("emit:end_call"))
	s.Assert().Equal(1, s.rec.count("on_disconnect"))
	s.Assert().Equal(1, s.rec.count("media_disconnect"))
}

func (s *SessionTestSuite) TestTerminalEventSynonyms() {
	for _, event := range signaling.TerminalEvents() {
		s.Run(event, func() {
			s.SetupTest()
			s.start()
			s.joinViaSignaling()

			s.channel.fire(event, nil)
			s.waitDone()

			s.Assert().Equal(constants.SessionStateEnded, s.sess.State())
			s.Assert().Equal(1, s.rec.count("on_disconnect"))
		})
	}
}

func (s *SessionTestSuite) TestNotAllowedGraceClose() {
	s.start()

	s.channel.fire(signaling.EventBroadcasterJoined,
		json.RawMessage(`{"status":"NOT_ALLOWED","reason":"INSUFFICIENT_BALANCE"}`))

	s.Require().Equal(constants.SessionStateNotAllowed, s.sess.State())
	info := s.lastInfo()
	s.Assert().Equal(constants.ReasonInsufficientBalance, info.Reason)
	s.Assert().Equal(reasonMessages[constants.ReasonInsufficientBalance], info.Message)

	// no teardown during the grace period
	s.clock.Advance(graceClosePeriod - time.Second)
	s.Assert().Equal(0, s.rec.count("on_disconnect"))

	s.waitDone()
	s.Assert().Equal(constants.SessionStateEnded, s.sess.State())
}

func (s *SessionTestSuite) TestMalformedJoinPayloadIgnored() {
	s.start()

	s.channel.fire(signaling.EventBroadcasterJoined, json.RawMessage(`{`))
	s.channel.fire(signaling.EventBroadcasterJoined, json.RawMessage(`{"reason":"OFFLINE"}`))
	s.Assert().Equal(constants.SessionStateConnecting, s.sess.State())
}

func (s *SessionTestSuite) TestSignalingUnavailableIsFatal() {
	s.start()
	s.joinViaSignaling()

	s.channel.dropForGood()
	s.waitDone()

	s.Assert().Equal(constants.SessionStateError, s.sess.State())
	s.Assert().ErrorIs(s.lastInfo().Err, signaling.ErrUnavailable)
	// the channel already dropped; no end_call emit goes out
	s.Assert().Equal(0, s.rec.count("emit:end_call"))
}

func (s *SessionTestSuite) TestMediaFatalError() {
	s.start()
	s.joinViaSignaling()

	s.mediaC.cb.OnFatalError(errors.New(media.ErrFatal, "ice failed"))
	s.waitDone()

	s.Assert().Equal(constants.SessionStateError, s.sess.State())
	s.Assert().Equal(1, s.rec.count("on_disconnect"))
}

func (s *SessionTestSuite) TestMediaDisconnectEndsCall() {
	s.start()
	s.joinViaSignaling()

	s.mediaC.cb.OnDisconnected()
	s.waitDone()

	s.Assert().Equal(constants.SessionStateEnded, s.sess.State())
}

func (s *SessionTestSuite) TestEndCallEmitFailureDoesNotBlockTeardown() {
	s.start()
	s.joinViaSignaling()

	s.channel.mu.Lock()
	s.channel.emitErr = errors.New(signaling.ErrNotConnected, "gone")
	s.channel.mu.Unlock()

	s.sess.Leave()
	s.waitDone()

	s.Assert().Equal(constants.SessionStateEnded, s.sess.State())
	s.Assert().Equal(1, s.rec.count("stop_tracks"))
	s.Assert().Equal(1, s.rec.count("signaling_disconnect"))
}

func (s *SessionTestSuite) TestLateJoinAfterTeardownIgnored() {
	s.start()

	s.sess.Leave()
	s.channel.fire(signaling.EventBroadcasterJoined, json.RawMessage(`{"status":"SUCCESS"}`))
	s.waitDone()

	s.Assert().Equal(constants.SessionStateEnded, s.sess.State())
	s.Assert().NotContains(s.seenStates(), constants.SessionStateJoined)
}

func (s *SessionTestSuite) TestDuration() {
	s.start()
	s.joinViaSignaling()

	s.clock.Advance(90 * time.Second)
	s.Assert().Equal(90*time.Second, s.sess.Duration())
}

func countOf(states []State, want State) int {
	n := 0
	for _, st := range states {
		if st == want {
			n++
		}
	}
	return n
}
