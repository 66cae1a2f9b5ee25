package main

import (
	"context"
	"syscall"

	"github.com/spf13/viper"

	"github.com/sobhagya/callcore/auth"
	"github.com/sobhagya/callcore/call"
	"github.com/sobhagya/callcore/gateway"
	"github.com/sobhagya/callcore/internal/config"
	"github.com/sobhagya/callcore/internal/constants"
	"github.com/sobhagya/callcore/internal/log"
	"github.com/sobhagya/callcore/internal/workflow"
	"github.com/sobhagya/callcore/media"
	"github.com/sobhagya/callcore/session"
	"github.com/sobhagya/callcore/signaling"
)

type Config struct {
	App          config.App `mapstructure:"app"`
	GatewayURL   string     `mapstructure:"gateway_url"`
	SignalingURL string     `mapstructure:"signaling_url"`
	AuthToken    string     `mapstructure:"auth_token"`
	AstrologerID string     `mapstructure:"astrologer_id"`
	CallType     string     `mapstructure:"call_type"`
	MinBalance   float64    `mapstructure:"min_balance"`
}

func loadConfig() (*Config, error) {
	return config.Load(&Config{}, func(v *viper.Viper) {
		v.SetDefault("gateway_url", "https://api.sobhagya.in")
		v.SetDefault("signaling_url", "wss://call.sobhagya.in")
		v.SetDefault("call_type", string(constants.CallTypeAudio))
		v.SetDefault("min_balance", 0.0)

		config.Setup(v, "app")
	})
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", err)
	}

	logger, err := log.NewLogger(cfg.App.LogConfigFile)
	if err != nil {
		log.Fatal("Failed to create logger", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	logger.Info("Starting dialer...")

	store := auth.NewMemStore()
	store.SetToken(cfg.AuthToken)

	creds := auth.NewProvider(store)
	gw := gateway.New(cfg.GatewayURL, logger.Module("Gateway"))
	calls := call.NewService(
		call.Config{MinBalance: cfg.MinBalance},
		creds,
		store,
		gw,
		logger.Module("Calls"),
	)

	newChannel := func(userID string) signaling.Channel {
		return signaling.NewChannel(signaling.Config{
			URL:    cfg.SignalingURL,
			UserID: userID,
			Role:   string(constants.UserRoleUser),
		}, logger.Module("Signaling"))
	}
	// headless: join receive-only, no capture hardware
	newMedia := func(cb media.Callbacks) media.Controller {
		return media.NewLiveKitController(nil, cb, logger.Module("Media"))
	}

	mgr := session.NewManager(calls, newChannel, newMedia, logger.Module("Manager"))

	cb := session.Callbacks{
		OnStateChange: func(state session.State, info session.StateInfo) {
			if info.Message != "" {
				logger.Info("call state changed",
					log.Any("state", state),
					log.String("message", info.Message))
				return
			}
			logger.Info("call state changed", log.Any("state", state))
		},
		OnDisconnect: func() {
			logger.Info("call finished")
			// unblock the shutdown waiter
			_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
		},
		Gifts: session.GiftCallbacks{
			OnGift: func(g signaling.Gift) {
				logger.Info("gift received",
					log.String("giftId", g.GiftID),
					log.String("name", g.GiftName))
			},
			OnGiftRequest: func(g signaling.Gift) {
				logger.Info("gift requested",
					log.String("giftId", g.GiftID),
					log.String("name", g.GiftName))
			},
			OnGiftRequestExpired: func(giftID string) {
				logger.Info("gift request expired", log.String("giftId", giftID))
			},
		},
	}

	sess, err := mgr.StartCall(ctx, cfg.AstrologerID, constants.CallType(cfg.CallType), cb)
	if err != nil {
		logger.Fatal("Failed to start call", log.Error(err))
	}
	logger.Info("call started", log.String("room", sess.Room()))

	cleanup := func(ctx context.Context) {
		mgr.Shutdown()
		logger.Info("call duration", log.Duration("duration", sess.Duration()))
	}
	workflow.WaitGracefulShutdown(ctx, logger.Module("CleanUp"), cleanup, cfg.App.ShutdownTimeout)
}
