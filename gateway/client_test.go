package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/sobhagya/callcore/internal/constants"
	"github.com/sobhagya/callcore/internal/log"
)

type GatewayClientTestSuite struct {
	suite.Suite
	server  *httptest.Server
	handler atomic.Pointer[http.HandlerFunc]
	client  Client
}

func TestGatewayClientSuite(t *testing.T) {
	suite.Run(t, new(GatewayClientTestSuite))
}

func (s *GatewayClientTestSuite) SetupSuite() {
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := s.handler.Load()
		if h == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		(*h)(w, r)
	}))
}

func (s *GatewayClientTestSuite) TearDownSuite() {
	s.server.Close()
}

func (s *GatewayClientTestSuite) SetupTest() {
	s.client = New(s.server.URL, log.NewNop())
}

func (s *GatewayClientTestSuite) respond(fn http.HandlerFunc) {
	s.handler.Store(&fn)
}

func (s *GatewayClientTestSuite) TestRequestCallToken() {
	s.respond(func(w http.ResponseWriter, r *http.Request) {
		s.Assert().Equal(http.MethodPost, r.Method)
		s.Assert().Equal(callTokenPath, r.URL.Path)
		s.Assert().Equal("room-1", r.URL.Query().Get("channel"))
		s.Assert().Equal("Bearer jwt-token", r.Header.Get("Authorization"))

		var body callTokenRequest
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
		s.Assert().Equal("astro-1", body.ReceiverUserID)
		s.Assert().Equal("call", body.Type)
		s.Assert().Equal(constants.AppVersion, body.AppVersion)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"token":            "media-token",
				"channel":          "room-1",
				"livekitSocketURL": "wss://media.example.com",
			},
		})
	})

	grant, err := s.client.RequestCallToken(
		context.Background(), "jwt-token", "room-1", "astro-1", constants.CallTypeAudio)
	s.Require().NoError(err)

	s.Assert().Equal("media-token", grant.MediaToken)
	s.Assert().Equal("room-1", grant.RoomName)
	s.Assert().Equal("wss://media.example.com", grant.SignalingURL)
}

func (s *GatewayClientTestSuite) TestRequestCallTokenClassifiesFailure() {
	s.respond(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "user dont_have_enough_balance",
		})
	})

	_, err := s.client.RequestCallToken(
		context.Background(), "jwt-token", "room-1", "astro-1", constants.CallTypeAudio)
	s.Assert().ErrorIs(err, ErrInsufficientBalance)
}

func (s *GatewayClientTestSuite) TestRequestCallTokenBadResponse() {
	s.respond(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := s.client.RequestCallToken(
		context.Background(), "jwt-token", "room-1", "astro-1", constants.CallTypeAudio)
	s.Assert().ErrorIs(err, ErrBadResponse)
}

func (s *GatewayClientTestSuite) TestFetchAstrologerStatus() {
	s.respond(func(w http.ResponseWriter, r *http.Request) {
		s.Assert().Equal("/user/api/users/astro-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"_id":         "astro-1",
				"displayName": "Guru",
				"status":      "online",
				"isBusy":      true,
			},
		})
	})

	status, err := s.client.FetchAstrologerStatus(context.Background(), "jwt-token", "astro-1")
	s.Require().NoError(err)

	s.Assert().Equal("Guru", status.DisplayName)
	s.Assert().True(status.Online)
	s.Assert().True(status.Busy)
}

func (s *GatewayClientTestSuite) TestFetchDisplayNameCaches() {
	var calls atomic.Int32
	s.respond(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"_id":  "astro-1",
				"name": "Guru",
			},
		})
	})

	ctx := context.Background()
	s.Assert().Equal("Guru", s.client.FetchDisplayName(ctx, "jwt-token", "astro-1"))
	s.Assert().Equal("Guru", s.client.FetchDisplayName(ctx, "jwt-token", "astro-1"))
	s.Assert().Equal(int32(1), calls.Load())
}

func (s *GatewayClientTestSuite) TestFetchDisplayNameFallback() {
	s.respond(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	name := s.client.FetchDisplayName(context.Background(), "jwt-token", "astro-404")
	s.Assert().Equal(fallbackName, name)
}

func (s *GatewayClientTestSuite) TestFetchWalletBalance() {
	s.respond(func(w http.ResponseWriter, r *http.Request) {
		s.Assert().Equal(walletBalancePath, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"balance": 123.45},
		})
	})

	balance, err := s.client.FetchWalletBalance(context.Background(), "jwt-token")
	s.Require().NoError(err)
	s.Assert().Equal(123.45, balance)
}
