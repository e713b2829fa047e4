package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/numer0n/apps/go-server/internal/config"
	"github.com/robalobadob/numer0n/apps/go-server/internal/httpserver"
	"github.com/robalobadob/numer0n/apps/go-server/internal/relay"
	"github.com/robalobadob/numer0n/apps/go-server/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer closeStore()

	reg := relay.NewRegistry(st,
		relay.WithHost(cfg.RelayHost),
		relay.WithPendingTimeout(cfg.PendingTimeout),
		relay.WithSendBuffer(cfg.SendBuffer),
		relay.WithLogger(log.Logger),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpserver.New(reg, httpserver.Options{ClientOrigin: cfg.ClientOrigin, JWTSecret: cfg.JWTSecret}).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Int("relayBasePort", cfg.RelayBasePort).
			Bool("auth", cfg.JWTSecret != "").Msg("starting relay server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		return errors.Join(err, reg.Close())
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server exited")
		closeStore()
		os.Exit(1)
	}
}

// openStore picks SQLite when DATABASE_PATH is set, memory otherwise.
func openStore(cfg config.Config) (store.Store, func(), error) {
	if cfg.DatabasePath == "" {
		log.Info().Msg("using in-memory relay store")
		return store.NewMemoryStore(cfg.RelayBasePort), func() {}, nil
	}
	db, err := store.OpenSQLite(cfg.DatabasePath, cfg.RelayBasePort)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("path", cfg.DatabasePath).Msg("using sqlite relay store")
	return db, func() { _ = db.Close() }, nil
}
