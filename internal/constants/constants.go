package constants

type CallType string
type UserRole string
type SessionState string
type NotAllowedReason string

const (
	// wire values expected by the call-token endpoint
	CallTypeAudio CallType = "call"
	CallTypeVideo CallType = "video"
)

const (
	UserRoleUser UserRole = "user"
	// astrologer accounts cannot originate consumer calls; both spellings
	// appear in backend payloads
	UserRoleAstrologer UserRole = "astrologer"
	UserRolePartner    UserRole = "partner"
)

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateInitiating SessionState = "initiating"
	SessionStateConnecting SessionState = "connecting"
	SessionStateJoined     SessionState = "joined"
	SessionStateNotAllowed SessionState = "not_allowed"
	SessionStateEnded      SessionState = "ended"
	SessionStateError      SessionState = "error"
)

func (s SessionState) Terminal() bool {
	return s == SessionStateEnded || s == SessionStateError
}

const (
	ReasonInsufficientBalance NotAllowedReason = "INSUFFICIENT_BALANCE"
	ReasonAlreadyInCall       NotAllowedReason = "ALREADY_IN_CALL"
	ReasonOffline             NotAllowedReason = "OFFLINE"
	ReasonAudioNotAllowed     NotAllowedReason = "AUDIO_NOT_ALLOWED"
)

// AppVersion is sent with every call-token request so the backend can gate
// old clients out of new signaling behavior.
const AppVersion = "1.0.0"
