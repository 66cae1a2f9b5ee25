package call

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sobhagya/callcore/auth"
	"github.com/sobhagya/callcore/gateway"
	"github.com/sobhagya/callcore/internal/constants"
	"github.com/sobhagya/callcore/internal/errors"
	"github.com/sobhagya/callcore/internal/log"
)

const (
	ErrUnauthenticated errors.Code = "unauthenticated"
	ErrRoleNotAllowed  errors.Code = "role not allowed"
)

// Initiation is a successful dial: everything the session needs to connect,
// plus display context for the call screen.
type Initiation struct {
	Grant          gateway.CallGrant
	CallType       constants.CallType
	LocalUserID    string
	AstrologerID   string
	AstrologerName string
	Token          string
	CreatedAt      time.Time
}

// Service validates preconditions and obtains a call grant. It performs no
// navigation and opens no connections; callers feed the Initiation into a
// session.
type Service interface {
	InitiateCall(ctx context.Context, astrologerID string, callType constants.CallType) (*Initiation, error)
}

type Config struct {
	// MinBalance short-circuits dialing locally when the wallet holds less.
	// Zero disables the local gate; the backend check is authoritative
	// either way.
	MinBalance float64
}

type serviceImpl struct {
	cfg      Config
	creds    auth.Provider
	intents  auth.IntentStore
	gw       gateway.Client
	logger   *log.Logger
	roomName func() string
}

func NewService(
	cfg Config,
	creds auth.Provider,
	intents auth.IntentStore,
	gw gateway.Client,
	logger *log.Logger,
) Service {
	if logger == nil {
		panic("logger is required")
	}
	return &serviceImpl{
		cfg:      cfg,
		creds:    creds,
		intents:  intents,
		gw:       gw,
		logger:   logger,
		roomName: newRoomName,
	}
}

func (s *serviceImpl) InitiateCall(
	ctx context.Context,
	astrologerID string,
	callType constants.CallType,
) (*Initiation, error) {

	creds, err := s.creds.Current()
	if err != nil {
		// preserve the dial so it can replay after login
		s.intents.StoreIntent(auth.CallIntent{
			AstrologerID: astrologerID,
			CallType:     callType,
		})
		return nil, errors.Wrap(ErrUnauthenticated, err, "no valid credential")
	}

	if creds.Role == constants.UserRoleAstrologer || creds.Role == constants.UserRolePartner {
		return nil, errors.Newf(ErrRoleNotAllowed, "role %q cannot place calls", creds.Role)
	}

	// live status re-check: cached lists are stale by the time anyone taps
	// the call button
	status, err := s.gw.FetchAstrologerStatus(ctx, creds.Token, astrologerID)
	if err != nil {
		return nil, err
	}
	if !status.Online {
		return nil, errors.New(gateway.ErrTargetOffline, "astrologer went offline")
	}
	if status.Busy {
		return nil, errors.New(gateway.ErrTargetBusy, "astrologer is on another call")
	}

	if s.cfg.MinBalance > 0 {
		balance, err := s.gw.FetchWalletBalance(ctx, creds.Token)
		if err != nil {
			// the token endpoint enforces balance anyway
			s.logger.Warn("wallet precheck failed, deferring to backend", log.Error(err))
		} else if balance < s.cfg.MinBalance {
			return nil, errors.Newf(gateway.ErrInsufficientBalance,
				"balance %.2f below minimum %.2f", balance, s.cfg.MinBalance)
		}
	}

	roomName := s.roomName()
	grant, err := s.gw.RequestCallToken(ctx, creds.Token, roomName, astrologerID, callType)
	if err != nil {
		return nil, err
	}

	// best-effort; a placeholder name must never block call setup
	name := status.DisplayName
	if name == "" {
		name = s.gw.FetchDisplayName(ctx, creds.Token, astrologerID)
	}

	s.intents.ClearIntent()
	s.intents.SetLastAstrologer(astrologerID)

	s.logger.Info("call initiated",
		log.String("room", grant.RoomName),
		log.String("astrologerId", astrologerID),
		log.Any("type", callType))

	return &Initiation{
		Grant:          *grant,
		CallType:       callType,
		LocalUserID:    creds.UserID,
		AstrologerID:   astrologerID,
		AstrologerName: name,
		Token:          creds.Token,
		CreatedAt:      time.Now(),
	}, nil
}

// newRoomName mints a room name unique per attempt. Reusing a room from an
// ended call confuses the signaling server, so a timestamp alone is not
// enough under fast redials.
func newRoomName() string {
	return fmt.Sprintf("room-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
