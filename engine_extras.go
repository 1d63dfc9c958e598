package goRewards

import (
	"context"
	"strings"

	"github.com/MrEthical07/goRewards/client"
)

// EstimatePoints asks the backend how many points an activity would earn.
// With the feature disabled the estimate is zero.
func (e *Engine) EstimatePoints(ctx context.Context, req EstimatePointsRequest) (EstimatedPoints, error) {
	if err := e.ready(); err != nil {
		return EstimatedPoints{}, err
	}
	if !e.enabled(ctx) {
		return EstimatedPoints{}, nil
	}
	out, err := e.backend.EstimatePoints(ctx, req)
	if err != nil {
		e.log.Error().Err(err).Str("activity", req.ActivityType).Msg("points estimation failed")
		return EstimatedPoints{}, err
	}
	return *out, nil
}

// ValidateReferralCode reports whether code is an existing referral code.
// Codes that are blank or not Config.Referral.CodeLength long are rejected
// without a request.
func (e *Engine) ValidateReferralCode(ctx context.Context, code string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if !e.enabled(ctx) {
		return false, nil
	}
	if strings.TrimSpace(code) == "" || len(code) != e.config.Referral.CodeLength {
		return false, nil
	}
	return e.backend.ValidateReferralCode(ctx, code)
}

// GetGeoMetadata describes the getgeometadata operation and its observable behavior.
//
// GetGeoMetadata reports the caller's location and whether opt-in is
// allowed there: it is not when the location starts with one of
// Config.Geo.BlockedRegions. A successful answer is cached for
// Config.Geo.TTL. When the location cannot be determined the answer is
// UNKNOWN with opt-in allowed, and it is not cached. With the feature
// disabled the answer is UNKNOWN with opt-in not allowed.
func (e *Engine) GetGeoMetadata(ctx context.Context) GeoMetadata {
	if e.ready() != nil || !e.enabled(ctx) {
		return GeoMetadata{GeoLocation: client.UnknownLocation}
	}
	if cached, ok := e.geo.Get(); ok {
		e.metricInc(MetricGeoCacheHit)
		return cached
	}

	v, _, _ := e.geoGroup.Do("geo", func() (any, error) {
		location, err := e.backend.FetchGeoLocation(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("geolocation unavailable")
			return GeoMetadata{GeoLocation: client.UnknownLocation, OptInAllowedForGeo: true}, nil
		}
		out := GeoMetadata{GeoLocation: location, OptInAllowedForGeo: true}
		for _, region := range e.config.Geo.BlockedRegions {
			if strings.HasPrefix(location, region) {
				out.OptInAllowedForGeo = false
				break
			}
		}
		e.geo.Set(out)
		return out, nil
	})
	return v.(GeoMetadata)
}
