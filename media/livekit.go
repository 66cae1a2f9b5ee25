package media

import (
	"context"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"

	"github.com/sobhagya/callcore/internal/errors"
	"github.com/sobhagya/callcore/internal/log"
	csync "github.com/sobhagya/callcore/internal/sync"
)

// livekitController is the production Controller, backed by the LiveKit SDK.
type livekitController struct {
	source TrackSource
	cb     Callbacks
	logger *log.Logger

	mu           sync.Mutex
	room         *lksdk.Room
	disconnected bool

	// local publications by kind, for mute toggles and teardown
	pubs *csync.Map[string, *localPublication]
}

type localPublication struct {
	pub   *lksdk.LocalTrackPublication
	track webrtc.TrackLocal
}

const (
	pubKeyMic    = "microphone"
	pubKeyCamera = "camera"
)

// NewLiveKitController creates the production media controller. source may
// be nil for a receive-only connection.
func NewLiveKitController(source TrackSource, cb Callbacks, logger *log.Logger) Controller {
	if logger == nil {
		panic("logger is required")
	}
	return &livekitController{
		source: source,
		cb:     cb,
		logger: logger,
		pubs:   csync.NewMap[string, *localPublication](),
	}
}

func (c *livekitController) Connect(ctx context.Context, token, serverURL string, opts ConnectOptions) error {
	// the SDK dial has no context hook; at least honor pre-cancellation
	if err := ctx.Err(); err != nil {
		return err
	}

	roomCB := &lksdk.RoomCallback{
		OnDisconnected:            c.handleDisconnected,
		OnParticipantConnected:    func(*lksdk.RemoteParticipant) { c.recomputePresence() },
		OnParticipantDisconnected: func(*lksdk.RemoteParticipant) { c.recomputePresence() },
		OnReconnecting: func() {
			c.logger.Warn("media room reconnecting")
		},
		OnReconnected: func() {
			c.logger.Info("media room reconnected")
			c.recomputePresence()
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(_ *webrtc.TrackRemote, _ *lksdk.RemoteTrackPublication, _ *lksdk.RemoteParticipant) {
				c.recomputePresence()
			},
			OnTrackUnsubscribed: func(_ *webrtc.TrackRemote, _ *lksdk.RemoteTrackPublication, _ *lksdk.RemoteParticipant) {
				c.recomputePresence()
			},
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(serverURL, token, roomCB,
		lksdk.WithAutoSubscribe(opts.AutoSubscribe))
	if err != nil {
		return c.surface(errors.Wrap(ErrFatal, err, "connect media room"))
	}

	c.mu.Lock()
	c.room = room
	c.disconnected = false
	c.mu.Unlock()

	if err := c.publishLocalTracks(opts); err != nil {
		return c.surface(err)
	}

	c.recomputePresence()
	return nil
}

func (c *livekitController) publishLocalTracks(opts ConnectOptions) error {
	if c.source == nil {
		return nil
	}

	audio, err := c.source.AudioTrack(opts.Audio)
	if err != nil {
		return errors.Wrap(ErrFatal, err, "acquire microphone")
	}
	if err := c.publish(pubKeyMic, audio, livekit.TrackSource_MICROPHONE); err != nil {
		return err
	}

	if !opts.EnableVideo {
		return nil
	}
	video, err := c.source.VideoTrack(opts.Video)
	if err != nil {
		return errors.Wrap(ErrFatal, err, "acquire camera")
	}
	return c.publish(pubKeyCamera, video, livekit.TrackSource_CAMERA)
}

func (c *livekitController) publish(key string, track webrtc.TrackLocal, source livekit.TrackSource) error {
	room, err := c.liveRoom()
	if err != nil {
		return err
	}

	pub, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   key,
		Source: source,
	})
	if err != nil {
		return errors.Wrapf(ErrFatal, err, "publish %s track", key)
	}

	c.pubs.Store(key, &localPublication{pub: pub, track: track})
	return nil
}

func (c *livekitController) SetMicrophoneEnabled(enabled bool) error {
	return c.setMuted(pubKeyMic, !enabled)
}

func (c *livekitController) SetCameraEnabled(enabled bool) error {
	return c.setMuted(pubKeyCamera, !enabled)
}

func (c *livekitController) setMuted(key string, muted bool) error {
	lp, ok := c.pubs.Load(key)
	if !ok {
		return errors.Newf(ErrNotConnected, "no local %s publication", key)
	}
	lp.pub.SetMuted(muted)
	return nil
}

// StopLocalTracks unpublishes and stops every local capture track, releasing
// the microphone and camera. Runs before Disconnect during teardown.
func (c *livekitController) StopLocalTracks() {
	room, _ := c.liveRoom()

	c.pubs.WithLock(func(view csync.View[string, *localPublication]) {
		view.Range(func(key string, lp *localPublication) bool {
			if room != nil {
				if err := room.LocalParticipant.UnpublishTrack(lp.pub.SID()); err != nil && !Benign(err) {
					c.logger.Warn("unpublish local track failed",
						log.String("kind", key),
						log.Error(err))
				}
			}
			stopTrack(lp.track)
			view.Delete(key)
			return true
		})
	})
}

// stopTrack releases the underlying capture device. Capture tracks expose
// Close (pion/mediadevices) or Stop depending on implementation.
func stopTrack(track webrtc.TrackLocal) {
	switch t := track.(type) {
	case interface{ Close() error }:
		_ = t.Close()
	case interface{ Stop() }:
		t.Stop()
	}
}

func (c *livekitController) Disconnect() error {
	c.mu.Lock()
	room := c.room
	c.room = nil
	c.mu.Unlock()

	if room == nil {
		return nil
	}
	room.Disconnect()
	return nil
}

func (c *livekitController) RemoteParticipants() []Participant {
	room, err := c.liveRoom()
	if err != nil {
		return nil
	}

	remotes := room.GetRemoteParticipants()
	out := make([]Participant, 0, len(remotes))
	for _, rp := range remotes {
		out = append(out, remoteView(rp))
	}
	return out
}

func remoteView(rp *lksdk.RemoteParticipant) Participant {
	p := Participant{
		Identity:    rp.Identity(),
		DisplayName: rp.Name(),
	}
	for _, pub := range rp.TrackPublications() {
		switch pub.Kind() {
		case lksdk.TrackKindAudio:
			p.MicEnabled = !pub.IsMuted()
		case lksdk.TrackKindVideo:
			p.CamEnabled = !pub.IsMuted()
		}
	}
	return p
}

func (c *livekitController) liveRoom() (*lksdk.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil {
		return nil, ErrNotConnected
	}
	return c.room, nil
}

// recomputePresence re-derives "remote party present" from the live
// participant list on every change. Derived, never latched.
func (c *livekitController) recomputePresence() {
	if c.cb.OnRemotePresence == nil {
		return
	}

	room, err := c.liveRoom()
	if err != nil {
		c.cb.OnRemotePresence(false, 0)
		return
	}

	count := len(room.GetRemoteParticipants())
	c.cb.OnRemotePresence(count > 0, count)
}

func (c *livekitController) handleDisconnected() {
	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return
	}
	c.disconnected = true
	c.mu.Unlock()

	if c.cb.OnDisconnected != nil {
		c.cb.OnDisconnected()
	}
}

// surface routes an operation error through the benign filter: noise is
// logged and swallowed, anything else reaches the session as fatal.
func (c *livekitController) surface(err error) error {
	if err == nil {
		return nil
	}
	if Benign(err) {
		c.logger.Debug("ignoring benign media transport error", log.Error(err))
		return nil
	}
	if c.cb.OnFatalError != nil {
		c.cb.OnFatalError(err)
	}
	return err
}
