package twin

import (
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/goRewards/caip"
	"github.com/MrEthical07/goRewards/client"
	"github.com/MrEthical07/goRewards/internal/flows"
	"github.com/MrEthical07/goRewards/wallet"
)

// verifySigned checks the timestamp and signature of a signed request. It
// writes the error response and reports false when the request is rejected.
func (h *Handler) verifySigned(w http.ResponseWriter, account string, timestamp int64, signature string) bool {
	if account == "" || signature == "" {
		writeError(w, http.StatusBadRequest, "account and signature are required")
		return false
	}
	now := h.now()
	drift := now.Sub(time.Unix(timestamp, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > h.tolerance {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Message:         "Invalid timestamp",
			ServerTimestamp: now.UnixMilli(),
		})
		return false
	}
	if err := wallet.VerifyMessage(account, flows.RewardsMessage(account, timestamp), signature); err != nil {
		h.log.Debug().Err(err).Str("account", account).Msg("signature rejected")
		writeError(w, http.StatusBadRequest, "Invalid signature")
		return false
	}
	return true
}

// subscriptionResponse converts a stored subscription to the wire shape.
func subscriptionResponse(sub Subscription) client.Subscription {
	out := client.Subscription{ID: sub.ID, ReferralCode: sub.ReferralCode}
	for _, addr := range sub.Addresses {
		var chainID int64
		if caip.IsEVMAddress(addr) {
			chainID = 1
		}
		out.Accounts = append(out.Accounts, client.SubscriptionAccount{Address: addr, ChainID: chainID})
	}
	return out
}

func (h *Handler) session(w http.ResponseWriter, sub Subscription, account string) {
	token, err := h.tokens.Issue(sub.ID, account)
	if err != nil {
		h.log.Error().Err(err).Msg("issue session token failed")
		writeError(w, http.StatusInternalServerError, "failed to issue session")
		return
	}
	writeJSON(w, http.StatusOK, client.LoginResponse{
		SessionID:    token,
		Subscription: subscriptionResponse(sub),
	})
}

// authorize resolves the subscription of the request's session token. It
// writes the error response and reports false when the token is rejected.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (Subscription, bool) {
	token := r.Header.Get(headerAccessToken)
	if token == "" || h.store.TokenRevoked(token) {
		writeError(w, http.StatusUnauthorized, "Rewards authorization failed")
		return Subscription{}, false
	}
	claims, err := h.tokens.Parse(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Rewards authorization failed")
		return Subscription{}, false
	}
	sub, ok := h.store.Subscription(claims.SubscriptionID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Rewards authorization failed")
		return Subscription{}, false
	}
	return sub, true
}

// Login handles POST /auth/mobile-login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req client.LoginRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !h.verifySigned(w, req.Account, req.Timestamp, req.Signature) {
		return
	}
	sub, ok := h.store.SubscriptionFor(req.Account)
	if !ok {
		writeError(w, http.StatusUnauthorized, "account is not opted in")
		return
	}
	h.session(w, sub, req.Account)
}

// Optin handles POST /auth/mobile-optin.
func (h *Handler) Optin(w http.ResponseWriter, r *http.Request) {
	var req client.OptinRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !h.verifySigned(w, req.Account, req.Timestamp, req.Signature) {
		return
	}
	if req.ReferralCode != "" && !h.store.ReferralCodeValid(req.ReferralCode) {
		writeError(w, http.StatusBadRequest, "Invalid referral code")
		return
	}
	sub, err := h.store.CreateSubscription(req.Account, req.ReferralCode)
	if errors.Is(err, errAlreadyRegistered) {
		writeError(w, http.StatusConflict, "Account already registered")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.session(w, sub, req.Account)
}

// Join handles POST /wr/subscriptions/mobile-join.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req client.LoginRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !h.verifySigned(w, req.Account, req.Timestamp, req.Signature) {
		return
	}
	sub, err := h.store.Join(owner.ID, req.Account)
	switch {
	case errors.Is(err, errAlreadyRegistered):
		writeError(w, http.StatusConflict, "Account already registered")
	case errors.Is(err, errUnknownSubscription):
		writeError(w, http.StatusUnauthorized, "Rewards authorization failed")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, subscriptionResponse(sub))
	}
}

// OptInStatus handles POST /public/rewards/ois.
func (h *Handler) OptInStatus(w http.ResponseWriter, r *http.Request) {
	var req client.OptInStatusRequest
	if !decodeJSON(w, r, &req) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Addresses) == 0 {
		writeError(w, http.StatusBadRequest, "addresses are required")
		return
	}
	if len(req.Addresses) > client.MaxOptInAddresses {
		writeError(w, http.StatusBadRequest, "addresses must be less than 500")
		return
	}

	out := client.OptInStatusResponse{
		OIS:  make([]bool, len(req.Addresses)),
		SIDs: make([]*string, len(req.Addresses)),
	}
	for i, addr := range req.Addresses {
		if sub, ok := h.store.SubscriptionFor(addr); ok {
			id := sub.ID
			out.OIS[i] = true
			out.SIDs[i] = &id
		}
	}
	writeJSON(w, http.StatusOK, out)
}
