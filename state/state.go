package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goRewards/caip"
)

// Season alias keys.
const (
	SeasonCurrent = "current"
	SeasonNext    = "next"
)

// OptIn is a tri-state opt-in flag: unknown, true or false.
// It encodes to JSON as null, true or false.
type OptIn int8

const (
	// OptInUnknown means the last check could not determine the status.
	OptInUnknown OptIn = iota
	// OptInTrue means the account is bound to a subscription.
	OptInTrue
	// OptInFalse means the backend reported the account as not opted in.
	OptInFalse
)

// Known reports whether the flag is true or false.
func (o OptIn) Known() bool { return o == OptInTrue || o == OptInFalse }

// FromBool converts a definite answer to an OptIn.
func FromBool(b bool) OptIn {
	if b {
		return OptInTrue
	}
	return OptInFalse
}

func (o OptIn) MarshalJSON() ([]byte, error) {
	switch o {
	case OptInTrue:
		return []byte("true"), nil
	case OptInFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (o *OptIn) UnmarshalJSON(b []byte) error {
	switch string(bytes.TrimSpace(b)) {
	case "true":
		*o = OptInTrue
	case "false":
		*o = OptInFalse
	case "null":
		*o = OptInUnknown
	default:
		return fmt.Errorf("invalid opt-in value %s", b)
	}
	return nil
}

// AccountState is the per-account rewards record.
type AccountState struct {
	Account                      caip.AccountID `json:"account"`
	HasOptedIn                   OptIn          `json:"hasOptedIn"`
	SubscriptionID               string         `json:"subscriptionId,omitempty"`
	LastFreshOptInStatusCheck    *time.Time     `json:"lastFreshOptInStatusCheck,omitempty"`
	PerpsFeeDiscount             *float64       `json:"perpsFeeDiscount,omitempty"`
	LastPerpsDiscountRateFetched *time.Time     `json:"lastPerpsDiscountRateFetched,omitempty"`
}

// SubscriptionAccount is one account bound to a subscription.
type SubscriptionAccount struct {
	Address string `json:"address"`
	ChainID int64  `json:"chainId"`
}

// Subscription is a backend subscription shared by one or more accounts.
type Subscription struct {
	ID           string                `json:"id"`
	ReferralCode string                `json:"referralCode"`
	Accounts     []SubscriptionAccount `json:"accounts"`
}

// Tier is a season tier threshold.
type Tier struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PointsNeeded int64  `json:"pointsNeeded"`
}

// SeasonMetadata is the cached description of a season.
type SeasonMetadata struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Tiers       []Tier    `json:"tiers"`
	LastFetched time.Time `json:"lastFetched"`
}

// Balance is a subscription's points balance in a season.
type Balance struct {
	Total     int64      `json:"total"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// TierStatus is the tier position derived from a balance.
// NextTier and NextTierPointsNeeded are nil at the top tier.
type TierStatus struct {
	CurrentTier          Tier   `json:"currentTier"`
	NextTier             *Tier  `json:"nextTier"`
	NextTierPointsNeeded *int64 `json:"nextTierPointsNeeded"`
}

// SeasonStatus is the cached per-subscription view of a season.
type SeasonStatus struct {
	Season      SeasonMetadata `json:"season"`
	Balance     Balance        `json:"balance"`
	Tier        TierStatus     `json:"tier"`
	LastFetched time.Time      `json:"lastFetched"`
}

// State is the whole persisted rewards state.
type State struct {
	ActiveAccount  *AccountState                   `json:"activeAccount"`
	Accounts       map[caip.AccountID]AccountState `json:"accounts"`
	Subscriptions  map[string]Subscription         `json:"subscriptions"`
	Seasons        map[string]SeasonMetadata       `json:"seasons"`
	SeasonAliases  map[string]string               `json:"seasonAliases"`
	SeasonStatuses map[string]SeasonStatus         `json:"seasonStatuses"`
	Tokens         map[string]string               `json:"tokens,omitempty"`
}

// Default returns an empty state.
func Default() State {
	return State{
		Accounts:       map[caip.AccountID]AccountState{},
		Subscriptions:  map[string]Subscription{},
		Seasons:        map[string]SeasonMetadata{},
		SeasonAliases:  map[string]string{},
		SeasonStatuses: map[string]SeasonStatus{},
		Tokens:         map[string]string{},
	}
}

// Clone returns a deep copy of s with every map allocated.
func (s State) Clone() State {
	out := Default()
	if s.ActiveAccount != nil {
		a := s.ActiveAccount.clone()
		out.ActiveAccount = &a
	}
	for k, v := range s.Accounts {
		out.Accounts[k] = v.clone()
	}
	for k, v := range s.Subscriptions {
		v.Accounts = append([]SubscriptionAccount(nil), v.Accounts...)
		out.Subscriptions[k] = v
	}
	for k, v := range s.Seasons {
		out.Seasons[k] = v.clone()
	}
	for k, v := range s.SeasonAliases {
		out.SeasonAliases[k] = v
	}
	for k, v := range s.SeasonStatuses {
		out.SeasonStatuses[k] = v.clone()
	}
	for k, v := range s.Tokens {
		out.Tokens[k] = v
	}
	return out
}

// Public returns a copy of s without session tokens.
func (s State) Public() State {
	out := s.Clone()
	out.Tokens = nil
	return out
}

// Account finds the record for id, trying the chain-agnostic EVM keys first.
// It also returns the key the record is stored under.
func (s State) Account(id caip.AccountID) (AccountState, caip.AccountID, bool) {
	for _, key := range caip.LookupKeys(id) {
		if a, ok := s.Accounts[key]; ok {
			return a.clone(), key, true
		}
	}
	return AccountState{}, "", false
}

// PutAccount stores a under the key its account already uses, or under
// a.Account for a new record. The active account is refreshed when it is
// the same account.
func (s *State) PutAccount(a AccountState) {
	key := a.Account
	if _, existing, ok := s.Account(a.Account); ok {
		key = existing
	}
	a.Account = key
	s.Accounts[key] = a
	if s.ActiveAccount != nil && caip.Equal(s.ActiveAccount.Account, key) {
		active := a.clone()
		s.ActiveAccount = &active
	}
}

// SetActive makes a the active account.
func (s *State) SetActive(a AccountState) {
	active := a.clone()
	s.ActiveAccount = &active
}

// Season resolves key as an alias first and as a season id second.
func (s State) Season(key string) (SeasonMetadata, bool) {
	if id, ok := s.SeasonAliases[key]; ok {
		m, ok := s.Seasons[id]
		return m.clone(), ok
	}
	m, ok := s.Seasons[key]
	return m.clone(), ok
}

// PutSeason stores m by id and, when alias is set, binds alias to it.
func (s *State) PutSeason(alias string, m SeasonMetadata) {
	s.Seasons[m.ID] = m.clone()
	if alias != "" && alias != m.ID {
		s.SeasonAliases[alias] = m.ID
	}
}

// ClearSeasons drops all season metadata and every alias to it.
func (s *State) ClearSeasons() {
	s.Seasons = map[string]SeasonMetadata{}
	s.SeasonAliases = map[string]string{}
}

// StatusKey is the season status cache key for a subscription.
func StatusKey(seasonID, subscriptionID string) string {
	return seasonID + ":" + subscriptionID
}

// InvalidateSubscription drops every cached season status of subscriptionID.
func (s *State) InvalidateSubscription(subscriptionID string) {
	suffix := ":" + subscriptionID
	for k := range s.SeasonStatuses {
		if strings.HasSuffix(k, suffix) {
			delete(s.SeasonStatuses, k)
		}
	}
}

// ResetAccountsAndSubscriptions forgets every account, subscription and
// token. The active account is kept but marked not opted in.
func (s *State) ResetAccountsAndSubscriptions() {
	if s.ActiveAccount != nil {
		a := s.ActiveAccount.clone()
		a.HasOptedIn = OptInFalse
		a.SubscriptionID = ""
		a.LastFreshOptInStatusCheck = nil
		s.ActiveAccount = &a
	}
	s.Accounts = map[caip.AccountID]AccountState{}
	s.Subscriptions = map[string]Subscription{}
	s.Tokens = map[string]string{}
}

// AccountsForSubscription returns the records bound to subscriptionID.
func (s State) AccountsForSubscription(subscriptionID string) []AccountState {
	var out []AccountState
	for _, a := range s.Accounts {
		if a.SubscriptionID == subscriptionID {
			out = append(out, a.clone())
		}
	}
	return out
}

// Encode serializes s for durable stores.
func Encode(s State) ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses data produced by Encode.
func Decode(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return s.Clone(), nil
}

func (a AccountState) clone() AccountState {
	a.LastFreshOptInStatusCheck = cloneTime(a.LastFreshOptInStatusCheck)
	a.LastPerpsDiscountRateFetched = cloneTime(a.LastPerpsDiscountRateFetched)
	if a.PerpsFeeDiscount != nil {
		v := *a.PerpsFeeDiscount
		a.PerpsFeeDiscount = &v
	}
	return a
}

func (m SeasonMetadata) clone() SeasonMetadata {
	m.Tiers = append([]Tier(nil), m.Tiers...)
	return m
}

func (s SeasonStatus) clone() SeasonStatus {
	s.Season = s.Season.clone()
	s.Balance.UpdatedAt = cloneTime(s.Balance.UpdatedAt)
	if s.Tier.NextTier != nil {
		t := *s.Tier.NextTier
		s.Tier.NextTier = &t
	}
	if s.Tier.NextTierPointsNeeded != nil {
		v := *s.Tier.NextTierPointsNeeded
		s.Tier.NextTierPointsNeeded = &v
	}
	return s
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
