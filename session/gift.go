package session

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/time/rate"

	"github.com/sobhagya/callcore/internal/constants"
	"github.com/sobhagya/callcore/internal/errors"
	"github.com/sobhagya/callcore/internal/log"
	csync "github.com/sobhagya/callcore/internal/sync"
	"github.com/sobhagya/callcore/internal/validation"
	"github.com/sobhagya/callcore/signaling"
)

const (
	ErrGiftRateLimited errors.Code = "gift rate limited"
	ErrGiftUnknown     errors.Code = "unknown gift request"
)

const (
	// how long an incoming gift request stays actionable
	giftRequestTTL = 10 * time.Second

	// outbound gifts: one every two seconds, small burst allowance
	giftSendInterval = 2 * time.Second
	giftSendBurst    = 3
)

type GiftCallbacks struct {
	// OnGift fires when the remote party sends a gift.
	OnGift func(g signaling.Gift)

	// OnGiftRequest fires when the remote party asks for a gift. The request
	// auto-dismisses after its TTL unless answered.
	OnGiftRequest func(g signaling.Gift)

	// OnGiftRequestExpired fires when a pending request auto-dismisses.
	OnGiftRequestExpired func(giftID string)
}

// GiftService is the in-call gift sub-channel. It rides the session's
// signaling connection and shares the session's lifetime: once the call is
// over, every gift operation is refused.
type GiftService struct {
	sess    *Session
	cb      GiftCallbacks
	limiter *rate.Limiter
	logger  *log.Logger

	// incoming requests awaiting an answer, keyed by gift id
	pending *csync.Map[string, signaling.Gift]
}

func newGiftService(sess *Session, cb GiftCallbacks, logger *log.Logger) *GiftService {
	return &GiftService{
		sess:    sess,
		cb:      cb,
		limiter: rate.NewLimiter(rate.Every(giftSendInterval), giftSendBurst),
		logger:  logger,
		pending: csync.NewMap[string, signaling.Gift](),
	}
}

func (g *GiftService) register() {
	g.sess.channel.Handle(signaling.EventGiftReceived, g.handleGift)
	g.sess.channel.Handle(signaling.EventGiftRequested, g.handleGiftRequest)
}

// Send delivers a gift to the remote party. If the signaling channel dropped
// but the call is still live, it reattaches to the room first.
func (g *GiftService) Send(ctx context.Context, gift signaling.Gift) error {
	if err := g.checkSendable(); err != nil {
		return err
	}

	gift.ChannelID = g.sess.Room()
	gift.From = g.sess.init.LocalUserID
	if gift.To == "" {
		gift.To = g.sess.init.AstrologerID
	}

	if _, err := g.sess.channel.Emit(ctx, signaling.EventSendGift, &gift); err != nil {
		return err
	}

	g.logger.Info("gift sent",
		log.String("giftId", gift.GiftID),
		log.String("room", gift.ChannelID))
	return nil
}

// Request asks the remote party for a gift.
func (g *GiftService) Request(ctx context.Context, gift signaling.Gift) error {
	if err := g.checkSendable(); err != nil {
		return err
	}

	gift.ChannelID = g.sess.Room()
	gift.From = g.sess.init.LocalUserID

	_, err := g.sess.channel.Emit(ctx, signaling.EventRequestGift, &gift)
	return err
}

// Answer resolves a pending incoming gift request, cancelling its
// auto-dismiss timer.
func (g *GiftService) Answer(giftID string) (signaling.Gift, error) {
	gift, ok := g.pending.LoadAndDelete(giftID)
	if !ok {
		return signaling.Gift{}, errors.Newf(ErrGiftUnknown, "no pending request %q", giftID)
	}
	g.sess.sched.Cancel(keyGiftReqPrefix + giftID)
	return gift, nil
}

// Pending returns the incoming gift requests still awaiting an answer.
func (g *GiftService) Pending() []signaling.Gift {
	var out []signaling.Gift
	g.pending.Range(func(_ string, gift signaling.Gift) bool {
		out = append(out, gift)
		return true
	})
	return out
}

func (g *GiftService) checkSendable() error {
	if g.sess.tearingDown.Load() || g.sess.State().Terminal() {
		return errors.New(ErrSessionEnded, "gift channel closed with the call")
	}
	if !g.limiter.Allow() {
		return errors.New(ErrGiftRateLimited, "too many gifts, slow down")
	}
	if !g.sess.channel.Connected() {
		// the channel can drop independently of the media room; a live call
		// justifies one reattach attempt
		if err := g.sess.channel.Connect(g.sess.ctx, g.sess.Room()); err != nil {
			return err
		}
	}
	return nil
}

func (g *GiftService) handleGift(data json.RawMessage) {
	var gift signaling.Gift
	if err := validation.Bind(data, &gift); err != nil {
		g.logger.Warn("malformed gift payload", log.Error(err))
		return
	}
	if g.sess.State() != constants.SessionStateJoined {
		g.logger.Debug("dropping gift outside joined state", log.String("giftId", gift.GiftID))
		return
	}
	if g.cb.OnGift != nil {
		g.cb.OnGift(gift)
	}
}

func (g *GiftService) handleGiftRequest(data json.RawMessage) {
	var gift signaling.Gift
	if err := validation.Bind(data, &gift); err != nil {
		g.logger.Warn("malformed gift request payload", log.Error(err))
		return
	}
	if g.sess.State() != constants.SessionStateJoined {
		return
	}

	g.pending.Store(gift.GiftID, gift)
	g.sess.sched.Enqueue(keyGiftReqPrefix+gift.GiftID, giftRequestTTL)

	if g.cb.OnGiftRequest != nil {
		g.cb.OnGiftRequest(gift)
	}
}

// expire fires from the session's timer loop when a request's TTL lapses.
func (g *GiftService) expire(giftID string) {
	if _, ok := g.pending.LoadAndDelete(giftID); !ok {
		return
	}
	g.logger.Debug("gift request expired", log.String("giftId", giftID))
	if g.cb.OnGiftRequestExpired != nil {
		g.cb.OnGiftRequestExpired(giftID)
	}
}
