package signaling

import (
	"github.com/sobhagya/callcore/internal/constants"
)

// Events emitted by the client.
const (
	EventRegister    = "register"
	EventEndCall     = "end_call"
	EventSendGift    = "send_gift"
	EventRequestGift = "request_gift"
)

// Events consumed from the server.
const (
	EventBroadcasterJoined = "broadcaster_joined"
	EventGiftReceived      = "receive_gift"
	EventGiftRequested     = "gift_request"
)

// The server has grown several names for "the call is over" and "the remote
// party dropped". Every one of them must drive the same teardown, so they
// are normalized here and nowhere else.
var terminalEvents = []string{
	"end_call",
	"call_end",
	"partner_disconnect",
	"partner_left",
	"broadcaster_disconnect",
	"broadcaster_left",
	"call_terminated",
}

// TerminalEvents returns the full synonym set for terminal call events.
func TerminalEvents() []string {
	out := make([]string, len(terminalEvents))
	copy(out, terminalEvents)
	return out
}

// IsTerminalEvent reports whether name means the call is over.
func IsTerminalEvent(name string) bool {
	for _, ev := range terminalEvents {
		if ev == name {
			return true
		}
	}
	return false
}

const (
	JoinStatusSuccess    = "SUCCESS"
	JoinStatusAllowed    = "ALLOWED"
	JoinStatusNotAllowed = "NOT_ALLOWED"
)

// BroadcasterJoined is the server's verdict on the join attempt.
type BroadcasterJoined struct {
	Status string                     `json:"status" validate:"required"`
	Reason constants.NotAllowedReason `json:"reason"`
}

func (b *BroadcasterJoined) Allowed() bool {
	return b.Status == JoinStatusSuccess || b.Status == JoinStatusAllowed
}

type registerPayload struct {
	UserID    string `json:"userId"`
	ChannelID string `json:"channelId"`
}

// EndCallPayload notifies the server and remote party of a hangup.
type EndCallPayload struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
	Reason    string `json:"reason"`
}

// Gift is an in-call gift notification, fire-and-forget with ack.
type Gift struct {
	ChannelID string `json:"channelId"`
	GiftID    string `json:"giftId" validate:"required"`
	From      string `json:"from"`
	To        string `json:"to"`
	GiftName  string `json:"giftName"`
	GiftIcon  string `json:"giftIcon"`
}
