package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/sobhagya/callcore/internal/constants"
	"github.com/sobhagya/callcore/internal/errors"
)

// claims mirrors the fields the backend puts in its access tokens. Only
// identity and role matter client-side; signature verification is the
// backend's job, every API call is re-checked server-side anyway.
type claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type providerImpl struct {
	store  TokenStore
	parser *jwt.Parser
}

func NewProvider(store TokenStore) Provider {
	return &providerImpl{
		store:  store,
		parser: jwt.NewParser(),
	}
}

func (p *providerImpl) Current() (*Credentials, error) {
	token, ok := p.store.Token()
	if !ok || token == "" {
		return nil, ErrNoToken
	}

	cl := &claims{}
	if _, _, err := p.parser.ParseUnverified(token, cl); err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err, "parse access token")
	}
	if cl.UserID == "" {
		return nil, errors.New(ErrInvalidToken, "token missing userId")
	}

	role := constants.UserRole(cl.Role)
	if role == "" {
		role = constants.UserRoleUser
	}

	return &Credentials{
		Token:  token,
		UserID: cl.UserID,
		Role:   role,
	}, nil
}
