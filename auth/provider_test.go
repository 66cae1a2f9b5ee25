package auth

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/sobhagya/callcore/internal/constants"
)

type ProviderTestSuite struct {
	suite.Suite
	store    *MemStore
	provider Provider
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderTestSuite))
}

func (s *ProviderTestSuite) SetupTest() {
	s.store = NewMemStore()
	s.provider = NewProvider(s.store)
}

// token builds an unsigned JWT; only the claims matter client-side.
func (s *ProviderTestSuite) token(claims map[string]any) string {
	encode := func(v any) string {
		bs, err := json.Marshal(v)
		s.Require().NoError(err)
		return base64.RawURLEncoding.EncodeToString(bs)
	}
	header := encode(map[string]string{"alg": "none", "typ": "JWT"})
	return header + "." + encode(claims) + "."
}

func (s *ProviderTestSuite) TestCurrent() {
	s.store.SetToken(s.token(map[string]any{"userId": "user-1", "role": "user"}))

	creds, err := s.provider.Current()
	s.Require().NoError(err)
	s.Assert().Equal("user-1", creds.UserID)
	s.Assert().Equal(constants.UserRoleUser, creds.Role)
	s.Assert().NotEmpty(creds.Token)
}

func (s *ProviderTestSuite) TestSignedOut() {
	_, err := s.provider.Current()
	s.Assert().ErrorIs(err, ErrNoToken)
}

func (s *ProviderTestSuite) TestClearedToken() {
	s.store.SetToken(s.token(map[string]any{"userId": "user-1"}))
	s.store.Clear()

	_, err := s.provider.Current()
	s.Assert().ErrorIs(err, ErrNoToken)
}

func (s *ProviderTestSuite) TestGarbageToken() {
	s.store.SetToken("not-a-jwt")

	_, err := s.provider.Current()
	s.Assert().ErrorIs(err, ErrInvalidToken)
}

func (s *ProviderTestSuite) TestMissingUserID() {
	s.store.SetToken(s.token(map[string]any{"role": "user"}))

	_, err := s.provider.Current()
	s.Assert().ErrorIs(err, ErrInvalidToken)
}

func (s *ProviderTestSuite) TestRoleDefaultsToUser() {
	s.store.SetToken(s.token(map[string]any{"userId": "user-1"}))

	creds, err := s.provider.Current()
	s.Require().NoError(err)
	s.Assert().Equal(constants.UserRoleUser, creds.Role)
}

func (s *ProviderTestSuite) TestAstrologerRolePreserved() {
	s.store.SetToken(s.token(map[string]any{"userId": "astro-1", "role": "astrologer"}))

	creds, err := s.provider.Current()
	s.Require().NoError(err)
	s.Assert().Equal(constants.UserRoleAstrologer, creds.Role)
}

func TestMemStoreIntent(t *testing.T) {
	store := NewMemStore()

	if _, ok := store.PeekIntent(); ok {
		t.Fatal("fresh store should hold no intent")
	}

	store.StoreIntent(CallIntent{AstrologerID: "astro-1", CallType: constants.CallTypeVideo})
	intent, ok := store.PeekIntent()
	if !ok || intent.AstrologerID != "astro-1" {
		t.Fatalf("unexpected intent %+v ok=%v", intent, ok)
	}

	store.ClearIntent()
	if _, ok := store.PeekIntent(); ok {
		t.Fatal("intent should be gone after clear")
	}

	store.SetLastAstrologer("astro-2")
	last, ok := store.LastAstrologer()
	if !ok || last != "astro-2" {
		t.Fatalf("unexpected last astrologer %q ok=%v", last, ok)
	}
}
