package client

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// MaxOptInAddresses bounds a single opt-in status request.
const MaxOptInAddresses = 500

// LoginRequest is the signed body of login and join calls.
type LoginRequest struct {
	Account   string `json:"account"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// OptinRequest is the signed body of the opt-in call.
type OptinRequest struct {
	Account      string `json:"account"`
	Timestamp    int64  `json:"timestamp"`
	Signature    string `json:"signature"`
	ReferralCode string `json:"referralCode,omitempty"`
}

// SubscriptionAccount is one account bound to a subscription.
type SubscriptionAccount struct {
	Address string `json:"address"`
	ChainID int64  `json:"chainId"`
}

// Subscription is the backend subscription record.
type Subscription struct {
	ID           string                `json:"id"`
	ReferralCode string                `json:"referralCode"`
	Accounts     []SubscriptionAccount `json:"accounts"`
}

// LoginResponse carries the session token and the subscription it grants.
type LoginResponse struct {
	SessionID    string       `json:"sessionId"`
	Subscription Subscription `json:"subscription"`
}

// OptInStatusRequest lists the addresses to check.
type OptInStatusRequest struct {
	Addresses []string `json:"addresses"`
}

// OptInStatusResponse holds one flag and one subscription id per requested
// address, in order. SIDs entries are nil for accounts that are not opted in.
type OptInStatusResponse struct {
	OIS  []bool    `json:"ois"`
	SIDs []*string `json:"sids"`
}

// SubscriptionIDAt returns the subscription id reported for index i, or "".
func (r *OptInStatusResponse) SubscriptionIDAt(i int) string {
	if r == nil || i < 0 || i >= len(r.SIDs) || r.SIDs[i] == nil {
		return ""
	}
	return *r.SIDs[i]
}

// SeasonInfo is the discovery view of a season.
type SeasonInfo struct {
	ID        string     `json:"id"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// DiscoverSeasons names the current and next season, either may be absent.
type DiscoverSeasons struct {
	Current *SeasonInfo `json:"current"`
	Next    *SeasonInfo `json:"next"`
}

// SeasonTier is a tier threshold within a season.
type SeasonTier struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PointsNeeded int64  `json:"pointsNeeded"`
}

// SeasonMetadata is the public description of a season.
type SeasonMetadata struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	StartDate time.Time    `json:"startDate"`
	EndDate   time.Time    `json:"endDate"`
	Tiers     []SeasonTier `json:"tiers"`
}

// SeasonState is the authenticated per-subscription season view.
type SeasonState struct {
	Balance       int64      `json:"balance"`
	CurrentTierID string     `json:"currentTierId"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// EstimatePointsRequest asks for a points estimate for an activity.
type EstimatePointsRequest struct {
	ActivityType    string          `json:"activityType"`
	Account         string          `json:"account"`
	ActivityContext json.RawMessage `json:"activityContext,omitempty"`
}

// EstimatedPoints is the backend's estimate.
type EstimatedPoints struct {
	PointsEstimate int64 `json:"pointsEstimate"`
	BonusBips      int64 `json:"bonusBips"`
}

type referralValidation struct {
	Valid bool `json:"valid"`
}

type errorBody struct {
	Message         string `json:"message"`
	ServerTimestamp any    `json:"serverTimestamp"`
}

// serverTimestampSeconds converts the millisecond server clock to seconds, floored.
func (b errorBody) serverTimestampSeconds() int64 {
	var ms float64
	switch v := b.ServerTimestamp.(type) {
	case float64:
		ms = v
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		ms = parsed
	default:
		return 0
	}
	return int64(math.Floor(ms / 1000))
}
