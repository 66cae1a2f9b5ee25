package auth

import (
	"github.com/sobhagya/callcore/internal/constants"
	"github.com/sobhagya/callcore/internal/errors"
)

const (
	ErrNoToken      errors.Code = "no token"
	ErrInvalidToken errors.Code = "invalid token"
)

// Credentials is what the call core needs to know about the signed-in user.
type Credentials struct {
	Token  string
	UserID string
	Role   constants.UserRole
}

// Provider supplies the current credentials, or ErrNoToken when the user is
// signed out.
type Provider interface {
	Current() (*Credentials, error)
}

// TokenStore is the persistence boundary for the raw auth token. The web
// client kept it in localStorage; embedders supply their own.
type TokenStore interface {
	Token() (string, bool)
	SetToken(token string)
	Clear()
}

// CallIntent is a deferred call action, stored when an unauthenticated user
// tries to dial so the call can be replayed after login.
type CallIntent struct {
	AstrologerID string             `json:"astrologerId"`
	CallType     constants.CallType `json:"callType"`
}

// IntentStore persists the pre-login call intent and post-call navigation
// context.
type IntentStore interface {
	StoreIntent(intent CallIntent)
	PeekIntent() (CallIntent, bool)
	ClearIntent()

	SetLastAstrologer(id string)
	LastAstrologer() (string, bool)
}
