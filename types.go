package goRewards

import (
	"context"

	"github.com/MrEthical07/goRewards/client"
	"github.com/MrEthical07/goRewards/internal/flows"
	"github.com/MrEthical07/goRewards/state"
)

// Season types accepted by GetSeasonMetadata.
const (
	SeasonCurrent = state.SeasonCurrent
	SeasonNext    = state.SeasonNext
)

// Backend is the rewards service the engine talks to. *client.Client
// implements it; tests and alternative transports may supply their own.
type Backend interface {
	Login(ctx context.Context, req client.LoginRequest) (*client.LoginResponse, error)
	MobileOptin(ctx context.Context, req client.OptinRequest) (*client.LoginResponse, error)
	MobileJoin(ctx context.Context, req client.LoginRequest, token string) (*client.Subscription, error)
	OptInStatus(ctx context.Context, addresses []string) (*client.OptInStatusResponse, error)
	DiscoverSeasons(ctx context.Context) (*client.DiscoverSeasons, error)
	SeasonMetadata(ctx context.Context, seasonID string) (*client.SeasonMetadata, error)
	SeasonState(ctx context.Context, seasonID, token string) (*client.SeasonState, error)
	EstimatePoints(ctx context.Context, req client.EstimatePointsRequest) (*client.EstimatedPoints, error)
	ValidateReferralCode(ctx context.Context, code string) (bool, error)
	FetchGeoLocation(ctx context.Context) (string, error)
}

var _ Backend = (*client.Client)(nil)

// FeatureGate reports whether the rewards feature is enabled. When it
// reports false every engine operation returns its safe default without
// touching the network.
type FeatureGate func(ctx context.Context) bool

// GeoMetadata describes where the caller is and whether opt-in is allowed there.
type GeoMetadata struct {
	GeoLocation        string `json:"geoLocation"`
	OptInAllowedForGeo bool   `json:"optinAllowedForGeo"`
}

// OptInStatus holds per-address opt-in answers in input order. SIDs[i] is
// empty when the address has no subscription.
type OptInStatus = flows.OptInStatus

// LinkResult reports the outcome of linking one account.
type LinkResult = flows.LinkResult

// EstimatePointsRequest and EstimatedPoints mirror the backend contract.
type (
	EstimatePointsRequest = client.EstimatePointsRequest
	EstimatedPoints       = client.EstimatedPoints
)
