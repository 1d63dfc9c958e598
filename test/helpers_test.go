//go:build integration
// +build integration

package test

import (
	"net/http/httptest"
	"testing"
	"time"

	goRewards "github.com/MrEthical07/goRewards"
	"github.com/MrEthical07/goRewards/internal/twin"
	"github.com/MrEthical07/goRewards/jwt"
	"github.com/MrEthical07/goRewards/wallet"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

func newIntegrationTwin(t *testing.T) (*twin.MemoryStore, string) {
	t.Helper()

	tokens, err := jwt.NewManager(jwt.Config{
		SessionTTL:    time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("integration-secret"),
	})
	if err != nil {
		t.Fatalf("jwt.NewManager failed: %v", err)
	}
	store := twin.New()
	store.SeedDefaults()
	h, err := twin.NewHandler(store, twin.Config{Tokens: tokens})
	if err != nil {
		t.Fatalf("twin.NewHandler failed: %v", err)
	}
	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return store, srv.URL
}

func newIntegrationEngine(t *testing.T, rdb redis.UniversalClient, url string, signer wallet.Signer, source wallet.AccountSource) *goRewards.Engine {
	t.Helper()

	cfg := goRewards.DefaultConfig()
	cfg.API.BaseURL = url
	cfg.API.GeoLocationURL = url + "/geolocation"
	cfg.State.RedisPrefix = "rewards-it"

	engine, err := goRewards.New().
		WithConfig(cfg).
		WithSigner(signer).
		WithAccounts(source).
		WithRedis(rdb).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
