// main.go
//
// Entry point for the puzzle server.
// Startup order: .env → log level → config → SQLite + migrations →
// puzzle catalogue → verifier client → HTTP server.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/codesiege/assets"
	"github.com/robalobadob/codesiege/internal/account"
	"github.com/robalobadob/codesiege/internal/catalog"
	"github.com/robalobadob/codesiege/internal/config"
	"github.com/robalobadob/codesiege/internal/daily"
	"github.com/robalobadob/codesiege/internal/database"
	"github.com/robalobadob/codesiege/internal/httpserver"
	"github.com/robalobadob/codesiege/internal/store"
	"github.com/robalobadob/codesiege/internal/verify"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.DevSecret() {
		log.Warn().Msg("JWT_SECRET not set, using development secret")
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer db.Close()
	if err := database.Migrate(context.Background(), db, assets.Migrations()); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	cat, err := catalog.Load(cfg.PuzzlesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load puzzle catalogue")
	}
	log.Info().Int("puzzles", cat.Len()).Msg("catalogue loaded")

	judge := verify.NewClient(cfg.VerifierURL, cfg.VerifierSecret, cfg.VerifierTimeout)
	sessions := store.NewMemoryStore()
	srv := httpserver.New(httpserver.Deps{
		Config:   cfg,
		Users:    account.NewStore(db),
		Results:  daily.NewStore(db),
		Sessions: sessions,
		Catalog:  cat,
		Judge:    judge,
	})

	httpSrv := &http.Server{Addr: cfg.Addr(), Handler: srv.Router()}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("port", cfg.Port).Str("verifier", cfg.VerifierURL).Msg("starting server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	sessions.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
}
