package gateway

import (
	"context"

	"github.com/sobhagya/callcore/internal/constants"
)

// CallGrant is everything needed to join one call: the media-room token, the
// room it is bound to, and the signaling endpoint for that room.
type CallGrant struct {
	MediaToken   string
	RoomName     string
	SignalingURL string
}

// AstrologerStatus is the live availability of one astrologer. Cached lists
// go stale fast, so callers re-fetch right before dialing.
type AstrologerStatus struct {
	ID          string
	DisplayName string
	Online      bool
	Busy        bool
}

// Client is the REST boundary to the backend gateway.
type Client interface {
	// RequestCallToken asks the backend to authorize a call and mint a
	// media token for roomName. Failures are classified, see errmap.go.
	RequestCallToken(
		ctx context.Context,
		token string,
		roomName string,
		receiverUserID string,
		callType constants.CallType,
	) (*CallGrant, error)

	// FetchAstrologerStatus re-checks live availability for one astrologer.
	FetchAstrologerStatus(ctx context.Context, token, astrologerID string) (*AstrologerStatus, error)

	// FetchDisplayName resolves an astrologer's display name, best-effort
	// and LRU-cached. Never fails call setup: unknown names fall back to
	// the placeholder.
	FetchDisplayName(ctx context.Context, token, astrologerID string) string

	// FetchWalletBalance returns the current wallet balance. The result is
	// treated as stale immediately after fetch and never cached.
	FetchWalletBalance(ctx context.Context, token string) (float64, error)
}

// wire payloads

type callTokenRequest struct {
	ReceiverUserID string `json:"receiverUserId"`
	Type           string `json:"type"`
	AppVersion     string `json:"appVersion"`
}

type callTokenResponse struct {
	Data *struct {
		Token            string `json:"token"`
		Channel          string `json:"channel"`
		LiveKitSocketURL string `json:"livekitSocketURL"`
	} `json:"data"`
	Message string `json:"message"`
}

type profileResponse struct {
	Data *struct {
		ID          string  `json:"_id"`
		Name        string  `json:"name"`
		DisplayName string  `json:"displayName"`
		IsOnline    *bool   `json:"isOnline"`
		Status      *string `json:"status"`
		IsBusy      bool    `json:"isBusy"`
	} `json:"data"`
	Message string `json:"message"`
}

type walletBalanceResponse struct {
	Data *struct {
		Balance float64 `json:"balance"`
	} `json:"data"`
	Message string `json:"message"`
}
