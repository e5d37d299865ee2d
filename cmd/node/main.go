package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/daehyun-ko/crossfill/params"
	"github.com/daehyun-ko/crossfill/pkg/api"
	"github.com/daehyun-ko/crossfill/pkg/crypto"
	"github.com/daehyun-ko/crossfill/pkg/escrow"
	"github.com/daehyun-ko/crossfill/pkg/feed"
	"github.com/daehyun-ko/crossfill/pkg/match"
	"github.com/daehyun-ko/crossfill/pkg/relay"
	"github.com/daehyun-ko/crossfill/pkg/storage"
	"github.com/daehyun-ko/crossfill/pkg/trigger"
	"github.com/daehyun-ko/crossfill/pkg/util"
	"github.com/daehyun-ko/crossfill/pkg/venue"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	// Setup logging (write to both console and file)
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/node.log"
	}

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Storage ----
	store, err := storage.NewStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("storage_init_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	// ---- Escrow ledger ----
	ledger := escrow.NewLedger(util.RealClock{}, store, sugar)
	if err := ledger.Restore(); err != nil {
		sugar.Fatalw("ledger_restore_failed", "err", err)
	}

	// ---- Venue registry ----
	venues := venue.NewRegistry()
	if cfg.Venue.Asset0 != "" && cfg.Venue.Asset1 != "" {
		v, err := venue.New(
			common.HexToAddress(cfg.Venue.Asset0),
			common.HexToAddress(cfg.Venue.Asset1),
			cfg.Venue.FeeBps,
			cfg.Venue.TickSpacing,
		)
		if err != nil {
			sugar.Fatalw("venue_config_invalid", "err", err)
		}
		if err := venues.Register(v); err != nil {
			sugar.Fatalw("venue_register_failed", "err", err)
		}
		sugar.Infow("venue_registered", "id", v.Fingerprint().Hex())
	}

	// ---- Matching engine ----
	var admin match.AdminPolicy
	if cfg.Node.AdminAddr != "" {
		admin = match.SingleAdmin{Admin: common.HexToAddress(cfg.Node.AdminAddr)}
	}
	coordinator := common.HexToAddress(cfg.Node.CoordinatorAddr)
	engine := match.NewEngine(ledger, util.RealClock{}, sugar, coordinator, admin)

	// ---- Relay channel ----
	var channel relay.Channel
	if cfg.Relay.ListenAddr != "" {
		ch, err := relay.NewPubSubChannel(ctx, relay.PubSubConfig{
			ListenAddr: cfg.Relay.ListenAddr,
			Bootstrap:  cfg.Relay.Bootstrap,
			Logger:     sugar,
		})
		if err != nil {
			sugar.Fatalw("relay_channel_init_failed", "err", err)
		}
		channel = ch
	} else {
		channel = &relay.Loopback{}
	}
	defer channel.Close()

	channel.SetHandler(func(m relay.Message) {
		if _, err := engine.ConsumeAuthorization(m); err != nil {
			sugar.Warnw("authorization_rejected", "order_id", m.Payload.OrderID, "err", err)
		}
	})

	// ---- Trigger authority (optional: requires relay identity) ----
	var authority *trigger.Authority
	if cfg.Relay.PrivateKeyHex != "" {
		signer, err := crypto.FromPrivateKeyHex(cfg.Relay.PrivateKeyHex)
		if err != nil {
			sugar.Fatalw("relay_key_invalid", "err", err)
		}

		authority = trigger.NewAuthority(trigger.Config{
			Clock:          util.RealClock{},
			Log:            sugar,
			Store:          store,
			Channel:        channel,
			Signer:         signer,
			TargetDomain:   cfg.Relay.TargetDomain,
			TargetContract: common.HexToAddress(cfg.Relay.TargetContract),
			GasBudget:      cfg.Relay.GasBudget,
			Beneficiary:    common.HexToAddress(cfg.Relay.Beneficiary),
		})
		if err := authority.Restore(); err != nil {
			sugar.Fatalw("authority_restore_failed", "err", err)
		}

		// Bind the relay identity so relayed fills verify against it.
		if cfg.Node.AdminAddr != "" {
			adminAddr := common.HexToAddress(cfg.Node.AdminAddr)
			if err := engine.BindRelay(adminAddr, signer.Address()); err != nil {
				sugar.Fatalw("relay_bind_failed", "err", err)
			}
		} else {
			sugar.Warn("no admin configured, relay identity left unbound")
		}
		sugar.Infow("authority_started", "relay", signer.Address().Hex())
	} else {
		sugar.Info("no relay key configured, running venue-only")
	}

	// ---- Price feed ----
	if cfg.Feed.URL != "" && authority != nil {
		client := feed.NewClient(cfg.Feed.URL, func(ctx context.Context, price uint64) {
			if fired := authority.OnPriceUpdate(ctx, price); fired > 0 {
				sugar.Infow("price_update_fired", "price", price, "fired", fired)
			}
		}, sugar)
		go func() {
			if err := client.Run(ctx); err != nil && ctx.Err() == nil {
				sugar.Errorw("feed_stopped", "err", err)
			}
		}()
	}

	// ---- API server ----
	apiServer := api.NewServer(ledger, authority, venues)
	engine.SetFillHook(apiServer.BroadcastFill)
	if authority != nil {
		authority.SetFireHook(apiServer.BroadcastTrigger)
	}

	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Node.APIAddr)
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("node_started",
		"api_addr", cfg.Node.APIAddr,
		"db_path", cfg.Node.DBPath,
		"venues", venues.Count())

	<-ctx.Done()
	sugar.Info("shutting down")
}
