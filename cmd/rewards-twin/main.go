// rewards-twin serves an in-memory rewards backend for local development
// and integration tests. Point the engine's API base URL at it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/MrEthical07/goRewards/internal/twin"
	"github.com/MrEthical07/goRewards/jwt"
	"github.com/common-nighthawk/go-figure"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	var (
		addr       = flag.String("addr", envOr("REWARDS_TWIN_ADDR", ":8090"), "listen address")
		secret     = flag.String("secret", envOr("REWARDS_TWIN_SECRET", "rewards-twin-dev-secret"), "HS256 session signing secret")
		sessionTTL = flag.Duration("session-ttl", time.Hour, "session token lifetime")
		seedFile   = flag.String("seed", os.Getenv("REWARDS_TWIN_SEED"), "JSON or YAML state file loaded at start")
		logLevel   = flag.String("log-level", envOr("REWARDS_TWIN_LOG_LEVEL", "info"), "zerolog level")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", *logLevel)
		os.Exit(2)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	if err := run(logger, *addr, *secret, *sessionTTL, *seedFile); err != nil {
		logger.Fatal().Err(err).Msg("rewards twin stopped")
	}
}

func run(logger zerolog.Logger, addr, secret string, sessionTTL time.Duration, seedFile string) error {
	displayAppname("rewards-twin")

	tokens, err := jwt.NewManager(jwt.Config{
		SessionTTL:    sessionTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(secret),
		Issuer:        "rewards-twin",
	})
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}

	store := twin.New()
	store.SeedDefaults()
	if seedFile != "" {
		data, err := readSeed(seedFile)
		if err != nil {
			return err
		}
		if err := store.LoadState(data); err != nil {
			return fmt.Errorf("load seed file: %w", err)
		}
		logger.Info().Str("file", seedFile).Msg("loaded seed data")
	}

	handler, err := twin.NewHandler(store, twin.Config{Tokens: tokens, Logger: logger})
	if err != nil {
		return err
	}
	r := chi.NewRouter()
	handler.Routes(r)
	handler.AdminRoutes(r)

	server := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("rewards twin listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-errc:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("rewards twin stopped")
	return nil
}

// readSeed returns the seed file as JSON. YAML files are converted so one
// state schema serves both formats.
func readSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml seed: %w", err)
		}
		return json.Marshal(doc)
	default:
		return data, nil
	}
}

func displayAppname(appname string) {
	figure.NewFigure(appname, "cybermedium", true).Print()
	fmt.Println()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
