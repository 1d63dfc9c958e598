package middleware

import (
	"context"
	"net/http"

	goRewards "github.com/MrEthical07/goRewards"
)

// FeatureSource reports the rewards feature flag. *goRewards.Engine implements it.
type FeatureSource interface {
	IsFeatureEnabled(ctx context.Context) bool
}

// GeoSource resolves the caller's location. *goRewards.Engine implements it.
type GeoSource interface {
	GetGeoMetadata(ctx context.Context) goRewards.GeoMetadata
}

type geoContextKey struct{}

// GeoFromContext returns the geolocation resolved by RequireOptInAllowed.
func GeoFromContext(ctx context.Context) (goRewards.GeoMetadata, bool) {
	geo, ok := ctx.Value(geoContextKey{}).(goRewards.GeoMetadata)
	return geo, ok
}

// RequireFeature answers 404 while the rewards feature is disabled, so the
// routes look absent to clients.
func RequireFeature(engine FeatureSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || !engine.IsFeatureEnabled(r.Context()) {
				http.NotFound(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOptInAllowed answers 403 when opt-in is not allowed at the caller's
// location and otherwise stores the resolved location in the request context.
func RequireOptInAllowed(engine GeoSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			geo := engine.GetGeoMetadata(r.Context())
			if !geo.OptInAllowedForGeo {
				http.Error(w, "rewards opt-in not available in your region", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), geoContextKey{}, geo)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
