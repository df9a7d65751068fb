package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/VoiceMesh/internal/adapters/http"
	wsignal "github.com/dkeye/VoiceMesh/internal/adapters/signal"
	"github.com/dkeye/VoiceMesh/internal/app"
	"github.com/dkeye/VoiceMesh/internal/config"
	"github.com/dkeye/VoiceMesh/internal/directory"
	"github.com/dkeye/VoiceMesh/internal/identity"
	"github.com/dkeye/VoiceMesh/internal/notify"
	"github.com/dkeye/VoiceMesh/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(config.ParseLevel(cfg.LogLevel))

	records, err := openStore(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer records.Close()

	var (
		broker  notify.Broker = notify.NewMemory()
		revoked identity.Revocations
	)
	if cfg.Redis.Addr != "" {
		rdb, err := openRedis(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		broker = notify.NewRedis(rdb, cfg.Redis.ChangesTopic)
		revoked = identity.NewRedisRevocations(rdb, cfg.Redis.RevokedPrefix)
	}
	defer broker.Close()

	relay := app.NewRelay(app.RelayOptions{
		QueueSize:    cfg.Signal.QueueSize,
		Policy:       app.PolicyByName(cfg.Signal.Backpressure),
		JoinLimit:    cfg.Signal.JoinLimit,
		JoinInterval: cfg.Signal.JoinInterval,
		RequireAuth:  cfg.Signal.RequireAuth,
	})
	go relay.Run(ctx)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Relay:     relay,
		Identity:  identity.NewProvider(records, revoked, cfg.Secret, cfg.Auth.TokenTTL),
		Directory: directory.NewService(records, broker),
		Signal:    wsignal.NewSignalWSController(relay, cfg.Signal),
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("VoiceMesh relay started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Driver == "postgres" {
		return store.OpenPostgres(cfg.DSN)
	}
	return store.NewMemory(), nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
