package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	goRewards "github.com/MrEthical07/goRewards"
	"github.com/MrEthical07/goRewards/client"
)

type fakeFeature bool

func (f fakeFeature) IsFeatureEnabled(context.Context) bool { return bool(f) }

type fakeGeo goRewards.GeoMetadata

func (f fakeGeo) GetGeoMetadata(context.Context) goRewards.GeoMetadata {
	return goRewards.GeoMetadata(f)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func serve(h http.Handler, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/rewards", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireFeature(t *testing.T) {
	if rec := serve(RequireFeature(fakeFeature(true))(okHandler()), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with feature enabled, got %d", rec.Code)
	}
	if rec := serve(RequireFeature(fakeFeature(false))(okHandler()), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with feature disabled, got %d", rec.Code)
	}
	if rec := serve(RequireFeature(nil)(okHandler()), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without engine, got %d", rec.Code)
	}
}

func TestRequireOptInAllowed(t *testing.T) {
	blocked := fakeGeo{GeoLocation: "UK-ENG", OptInAllowedForGeo: false}
	if rec := serve(RequireOptInAllowed(blocked)(okHandler()), nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for blocked region, got %d", rec.Code)
	}

	var seen goRewards.GeoMetadata
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		geo, ok := GeoFromContext(r.Context())
		if !ok {
			t.Fatal("expected geolocation in request context")
		}
		seen = geo
		w.WriteHeader(http.StatusNoContent)
	})
	allowed := fakeGeo{GeoLocation: "US", OptInAllowedForGeo: true}
	if rec := serve(RequireOptInAllowed(allowed)(next), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for allowed region, got %d", rec.Code)
	}
	if seen.GeoLocation != "US" {
		t.Fatalf("unexpected geolocation %+v", seen)
	}
}

func TestLocaleForwardsPreferredTag(t *testing.T) {
	var got string
	var doer recordingDoer
	c, err := client.New(client.Config{BaseURL: "http://rewards.test", HTTP: &doer})
	if err != nil {
		t.Fatalf("client.New failed: %v", err)
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = c.DiscoverSeasons(r.Context())
		got = doer.lastLanguage
		w.WriteHeader(http.StatusNoContent)
	})

	serve(Locale(next), map[string]string{"Accept-Language": "fr-CA,fr;q=0.9,en;q=0.5"})
	if got != "fr-CA" {
		t.Fatalf("expected fr-CA forwarded, got %q", got)
	}
}

type recordingDoer struct {
	lastLanguage string
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	d.lastLanguage = req.Header.Get("Accept-Language")
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusServiceUnavailable)
	return rec.Result(), nil
}
