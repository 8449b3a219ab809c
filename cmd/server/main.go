// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/zing/internal/auth"
	"github.com/jason-s-yu/zing/internal/broadcast"
	"github.com/jason-s-yu/zing/internal/cache"
	"github.com/jason-s-yu/zing/internal/config"
	"github.com/jason-s-yu/zing/internal/database"
	"github.com/jason-s-yu/zing/internal/handlers"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	expire, err := auth.ParseExpire(cfg.TokenExpire)
	if err != nil {
		return err
	}
	var signer *auth.Signer
	if cfg.JWTPrivateKeyPath != "" {
		signer, err = auth.NewSignerFromPath(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, expire)
	} else {
		logger.Warn("no JWT key paths configured, using an ephemeral key pair")
		signer, err = auth.NewSigner(expire)
	}
	if err != nil {
		return err
	}

	opts := handlers.ServerOptions{
		Logger:       logger,
		Signer:       signer,
		Tokens:       auth.NewReconnectTokens(signer.PrivateKey(), cfg.ReconnectTokenTTL),
		TargetScore:  cfg.TargetScore,
		TurnDuration: cfg.TurnTimer,
		LobbyGrace:   cfg.LobbyGrace,
		MatchGrace:   cfg.MatchGrace,
	}

	// Both sinks end up in postgres, so match results and guests go there directly.
	if cfg.EventSink != config.SinkNone {
		store, err := database.Connect(ctx, cfg.PostgresDSN, logrus.NewEntry(logger))
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		opts.Recorder = store
		opts.Users = store
		opts.Sink = store
		opts.History = store
	}
	if cfg.EventSink == config.SinkRedis {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts.Sink = cache.NewEventQueue(rdb, cfg.QueueName)
	}
	if cfg.NatsURL != "" {
		nc, err := broadcast.Connect(cfg.NatsURL, "zing-server")
		if err != nil {
			return err
		}
		defer nc.Drain()
		opts.Broadcaster = broadcast.NewNATS(nc, logger.WithField("component", "broadcast"))
	}
	logger.Infof("event sink: %s", cfg.EventSink)

	gs := handlers.NewGameServer(opts)
	defer gs.Shutdown()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handlers.Routes(gs, logger, cfg.AllowedOrigins),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
