package twin

import (
	"net/http"
	"sort"

	"github.com/MrEthical07/goRewards/client"
	"github.com/go-chi/chi/v5"
)

func seasonInfo(s *Season) *client.SeasonInfo {
	if s == nil {
		return nil
	}
	start, end := s.StartDate, s.EndDate
	return &client.SeasonInfo{ID: s.ID, StartDate: &start, EndDate: &end}
}

// DiscoverSeasons handles GET /public/seasons/status.
func (h *Handler) DiscoverSeasons(w http.ResponseWriter, r *http.Request) {
	current, next := h.store.Seasons()
	writeJSON(w, http.StatusOK, client.DiscoverSeasons{
		Current: seasonInfo(current),
		Next:    seasonInfo(next),
	})
}

// SeasonMetadata handles GET /public/seasons/{id}/meta.
func (h *Handler) SeasonMetadata(w http.ResponseWriter, r *http.Request) {
	season, ok := h.store.Season(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Season not found")
		return
	}
	out := client.SeasonMetadata{
		ID:        season.ID,
		Name:      season.Name,
		StartDate: season.StartDate,
		EndDate:   season.EndDate,
	}
	for _, t := range season.Tiers {
		out.Tiers = append(out.Tiers, client.SeasonTier{ID: t.ID, Name: t.Name, PointsNeeded: t.PointsNeeded})
	}
	writeJSON(w, http.StatusOK, out)
}

// SeasonState handles GET /seasons/{id}/state.
func (h *Handler) SeasonState(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.authorize(w, r)
	if !ok {
		return
	}
	seasonID := chi.URLParam(r, "id")
	if _, ok := h.store.Season(seasonID); !ok {
		writeError(w, http.StatusNotFound, "Season not found")
		return
	}
	b := h.store.Balance(sub.ID, seasonID)
	updated := h.now().UTC()
	writeJSON(w, http.StatusOK, client.SeasonState{
		Balance:       b.Points,
		CurrentTierID: b.TierID,
		UpdatedAt:     &updated,
	})
}

// tierRank returns the position of tierID among the season's tiers ordered
// by threshold, or 0 when it is unknown.
func tierRank(season Season, tierID string) int {
	tiers := append([]Tier(nil), season.Tiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].PointsNeeded < tiers[j].PointsNeeded })
	for i, t := range tiers {
		if t.ID == tierID {
			return i
		}
	}
	return 0
}
