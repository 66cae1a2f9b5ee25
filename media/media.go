package media

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/sobhagya/callcore/internal/errors"
)

const (
	ErrFatal        errors.Code = "fatal media error"
	ErrNotConnected errors.Code = "media room not connected"
)

// Participant is a read-only view of one identity in the media room.
type Participant struct {
	Identity    string
	DisplayName string
	MicEnabled  bool
	CamEnabled  bool
}

// Callbacks surfaces room events to the session. Benign transport noise is
// filtered out before any of these fire.
type Callbacks struct {
	// OnRemotePresence fires on every participant-list change with the
	// current "anyone besides us" verdict. It is recomputed each time, not
	// latched: a remote joining then leaving flips it back to false.
	OnRemotePresence func(present bool, count int)

	// OnDisconnected fires when the room connection is gone for good.
	OnDisconnected func()

	// OnFatalError fires for errors that must terminate the call.
	OnFatalError func(err error)
}

// AudioCaptureOptions are fixed by product decision: all three processing
// stages stay on for every call.
type AudioCaptureOptions struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

type VideoCaptureOptions struct {
	Width  int
	Height int
}

// ConnectOptions control one room connection.
type ConnectOptions struct {
	RoomName string
	Identity string

	// EnableVideo is set for video calls; audio capture is always on.
	EnableVideo bool

	// AutoSubscribe attaches every remote track as it is published.
	// Adaptive stream and dynacast are negotiated by the remote client
	// SDKs; this transport exposes no knob for them.
	AutoSubscribe bool

	Audio AudioCaptureOptions
	Video VideoCaptureOptions
}

// DefaultConnectOptions returns the fixed production options for a call.
func DefaultConnectOptions(roomName, identity string, video bool) ConnectOptions {
	return ConnectOptions{
		RoomName:      roomName,
		Identity:      identity,
		EnableVideo:   video,
		AutoSubscribe: true,
		Audio: AudioCaptureOptions{
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
		},
		Video: VideoCaptureOptions{
			Width:  1280,
			Height: 720,
		},
	}
}

// TrackSource produces the local capture tracks to publish. A nil source
// means receive-only (no hardware is touched).
type TrackSource interface {
	AudioTrack(opts AudioCaptureOptions) (webrtc.TrackLocal, error)
	VideoTrack(opts VideoCaptureOptions) (webrtc.TrackLocal, error)
}

// Controller wraps one media room connection.
//
// Local track publications must be stopped via StopLocalTracks before
// Disconnect: some transports hold track references past a failed
// disconnect, which keeps the OS capture device locked.
type Controller interface {
	Connect(ctx context.Context, token, serverURL string, opts ConnectOptions) error
	SetMicrophoneEnabled(enabled bool) error
	SetCameraEnabled(enabled bool) error
	StopLocalTracks()
	Disconnect() error
	RemoteParticipants() []Participant
}
