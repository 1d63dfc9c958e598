package twin

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/goRewards/client"
)

// bonusBipsPerTier is the estimate bonus for each tier above the lowest.
const bonusBipsPerTier = 250

// EstimatePoints handles POST /points-estimation.
//
// Opted-in accounts earn a bonus that grows with their tier in the current
// season.
func (h *Handler) EstimatePoints(w http.ResponseWriter, r *http.Request) {
	var req client.EstimatePointsRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ActivityType == "" {
		writeError(w, http.StatusBadRequest, "activityType is required")
		return
	}

	base := h.store.Estimate(req.ActivityType)
	var bips int64
	if addr := accountAddress(req.Account); addr != "" {
		if sub, ok := h.store.SubscriptionFor(addr); ok {
			if current, _ := h.store.Seasons(); current != nil {
				rank := tierRank(*current, h.store.Balance(sub.ID, current.ID).TierID)
				bips = int64(rank) * bonusBipsPerTier
			}
		}
	}
	writeJSON(w, http.StatusOK, client.EstimatedPoints{
		PointsEstimate: base + base*bips/10_000,
		BonusBips:      bips,
	})
}

// accountAddress accepts either a bare address or a CAIP-10 account id.
func accountAddress(account string) string {
	if i := strings.LastIndex(account, ":"); i >= 0 {
		return account[i+1:]
	}
	return account
}

// ValidateReferralCode handles GET /referral/validate.
func (h *Handler) ValidateReferralCode(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	writeJSON(w, http.StatusOK, map[string]bool{"valid": code != "" && h.store.ReferralCodeValid(code)})
}

// GeoLocation handles GET /geolocation. The body is the bare location.
func (h *Handler) GeoLocation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.store.GeoLocation()))
}
