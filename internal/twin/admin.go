package twin

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// AdminRoutes registers the control plane under /admin.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/reset", h.adminReset)
		r.Get("/state", h.adminSnapshot)
		r.Post("/state", h.adminLoad)
		r.Post("/faults", h.adminFault)
		r.Post("/clock", h.adminClock)
		r.Post("/tokens/revoke", h.adminRevoke)
	})
}

func (h *Handler) adminReset(w http.ResponseWriter, r *http.Request) {
	h.store.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *Handler) adminLoad(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if err := h.store.LoadState(data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminFault(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Route   string `json:"route"`
		Status  int    `json:"status"`
		Message string `json:"message"`
		Count   int    `json:"count"`
	}
	if !decodeJSON(w, r, &req) || req.Route == "" {
		writeError(w, http.StatusBadRequest, "route is required")
		return
	}
	if req.Status == 0 {
		req.Status = http.StatusInternalServerError
	}
	h.store.FailNext(req.Route, req.Status, req.Message, req.Count)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminClock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SkewMillis  int64 `json:"skewMs"`
		DelayMillis int64 `json:"delayMs"`
	}
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.store.SetClockSkew(time.Duration(req.SkewMillis) * time.Millisecond)
	h.store.SetDelay(time.Duration(req.DelayMillis) * time.Millisecond)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminRevoke(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) || req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	h.store.RevokeToken(req.Token)
	w.WriteHeader(http.StatusNoContent)
}
