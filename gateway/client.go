package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sobhagya/callcore/internal/constants"
	"github.com/sobhagya/callcore/internal/errors"
	"github.com/sobhagya/callcore/internal/log"
)

const (
	apiTimeout        = 10 * time.Second
	nameCacheSize     = 128
	fallbackName      = "Astrologer"
	callTokenPath     = "/calling/api/call/call-token-livekit"
	userProfilePath   = "/user/api/users/{id}"
	walletBalancePath = "/payment/api/wallet-balance"
)

type clientImpl struct {
	rest      *resty.Client
	nameCache *lru.Cache[string, string]
	logger    *log.Logger
}

// New creates a backend gateway client rooted at baseURL.
func New(baseURL string, logger *log.Logger) Client {
	if logger == nil {
		panic("logger is required")
	}

	// size is fixed; New only fails on size <= 0
	nameCache, _ := lru.New[string, string](nameCacheSize)

	rest := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(apiTimeout)

	return &clientImpl{
		rest:      rest,
		nameCache: nameCache,
		logger:    logger,
	}
}

func (c *clientImpl) RequestCallToken(
	ctx context.Context,
	token string,
	roomName string,
	receiverUserID string,
	callType constants.CallType,
) (*CallGrant, error) {

	var payload callTokenResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("channel", roomName).
		SetBody(&callTokenRequest{
			ReceiverUserID: receiverUserID,
			Type:           string(callType),
			AppVersion:     constants.AppVersion,
		}).
		SetResult(&payload).
		SetError(&payload).
		Post(callTokenPath)
	if err != nil {
		return nil, errors.Wrap(ErrBadResponse, err, "call token request")
	}

	c.logger.Debug("call token response",
		log.Int("status", resp.StatusCode()),
		log.String("room", roomName))

	if resp.IsError() || payload.Data == nil {
		if payload.Message != "" {
			return nil, ClassifyBackendMessage(payload.Message)
		}
		return nil, errors.Newf(ErrBadResponse, "call token http %d", resp.StatusCode())
	}

	return &CallGrant{
		MediaToken:   payload.Data.Token,
		RoomName:     payload.Data.Channel,
		SignalingURL: payload.Data.LiveKitSocketURL,
	}, nil
}

func (c *clientImpl) FetchAstrologerStatus(
	ctx context.Context,
	token, astrologerID string,
) (*AstrologerStatus, error) {

	var payload profileResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("id", astrologerID).
		SetResult(&payload).
		Get(userProfilePath)
	if err != nil {
		return nil, errors.Wrap(ErrBadResponse, err, "fetch astrologer status")
	}
	if resp.IsError() || payload.Data == nil {
		return nil, errors.Newf(ErrBadResponse, "astrologer status http %d", resp.StatusCode())
	}

	data := payload.Data
	status := &AstrologerStatus{
		ID:          astrologerID,
		DisplayName: displayNameOf(data.DisplayName, data.Name),
		Online:      normalizeOnline(data.Status, data.IsOnline),
		Busy:        data.IsBusy,
	}
	if status.DisplayName != "" {
		c.nameCache.Add(astrologerID, status.DisplayName)
	}
	return status, nil
}

func (c *clientImpl) FetchDisplayName(ctx context.Context, token, astrologerID string) string {
	if name, ok := c.nameCache.Get(astrologerID); ok {
		return name
	}

	status, err := c.FetchAstrologerStatus(ctx, token, astrologerID)
	if err != nil || status.DisplayName == "" {
		c.logger.Warn("display name lookup failed, using placeholder",
			log.String("astrologerId", astrologerID),
			log.Error(err))
		return fallbackName
	}
	return status.DisplayName
}

func (c *clientImpl) FetchWalletBalance(ctx context.Context, token string) (float64, error) {
	var payload walletBalanceResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&payload).
		Get(walletBalancePath)
	if err != nil {
		return 0, errors.Wrap(ErrBadResponse, err, "fetch wallet balance")
	}
	if resp.IsError() || payload.Data == nil {
		return 0, errors.Newf(ErrBadResponse, "wallet balance http %d", resp.StatusCode())
	}
	return payload.Data.Balance, nil
}

// normalizeOnline tolerates both profile shapes: a status string, or only an
// isOnline boolean on older records.
func normalizeOnline(status *string, isOnline *bool) bool {
	if status != nil {
		return strings.EqualFold(*status, "online")
	}
	if isOnline != nil {
		return *isOnline
	}
	return false
}

func displayNameOf(displayName, name string) string {
	if displayName != "" {
		return displayName
	}
	return name
}
