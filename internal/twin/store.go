package twin

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goRewards/caip"
	"github.com/google/uuid"
)

var (
	// errAlreadyRegistered is returned when an address is already bound to a subscription.
	errAlreadyRegistered = errors.New("account already registered")
	// errUnknownSubscription is returned for a subscription id the store never issued.
	errUnknownSubscription = errors.New("unknown subscription")
)

// Season is a season the twin serves.
type Season struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Tiers     []Tier    `json:"tiers"`
}

// Tier is a season tier threshold.
type Tier struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PointsNeeded int64  `json:"pointsNeeded"`
}

// Subscription is a subscription and the addresses bound to it.
type Subscription struct {
	ID           string   `json:"id"`
	ReferralCode string   `json:"referralCode"`
	Addresses    []string `json:"addresses"`
}

// Balance is a subscription's standing in one season.
type Balance struct {
	Points int64  `json:"points"`
	TierID string `json:"tierId"`
}

type fault struct {
	status  int
	message string
	left    int
}

// MemoryStore holds all twin state in memory.
type MemoryStore struct {
	mu sync.RWMutex

	subscriptions map[string]*Subscription
	byAddress     map[string]string
	current       *Season
	next          *Season
	seasons       map[string]Season
	balances      map[string]map[string]Balance
	referralCodes map[string]bool
	estimates     map[string]int64
	revoked       map[string]bool
	geoLocation   string
	faults        map[string]*fault

	skew     atomic.Int64
	delay    atomic.Int64
	requests sync.Map
}

// New creates an empty MemoryStore.
func New() *MemoryStore {
	s := &MemoryStore{}
	s.reset()
	return s
}

func (s *MemoryStore) reset() {
	s.subscriptions = make(map[string]*Subscription)
	s.byAddress = make(map[string]string)
	s.current = nil
	s.next = nil
	s.seasons = make(map[string]Season)
	s.balances = make(map[string]map[string]Balance)
	s.referralCodes = make(map[string]bool)
	s.estimates = make(map[string]int64)
	s.revoked = make(map[string]bool)
	s.geoLocation = "US"
	s.faults = make(map[string]*fault)
	s.skew.Store(0)
	s.delay.Store(0)
	s.requests.Range(func(k, _ any) bool {
		s.requests.Delete(k)
		return true
	})
}

// Reset clears all state and reloads seed fixtures.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()
	s.SeedDefaults()
}

// SeedDefaults installs a running season with three tiers, a queued next
// season and one referral code.
func (s *MemoryStore) SeedDefaults() {
	now := time.Now().UTC().Truncate(time.Second)
	tiers := []Tier{
		{ID: "bronze", Name: "Bronze", PointsNeeded: 0},
		{ID: "silver", Name: "Silver", PointsNeeded: 1000},
		{ID: "gold", Name: "Gold", PointsNeeded: 5000},
	}
	s.SetSeasons(
		&Season{ID: "season-1", Name: "Season 1", StartDate: now.AddDate(0, -1, 0), EndDate: now.AddDate(0, 2, 0), Tiers: tiers},
		&Season{ID: "season-2", Name: "Season 2", StartDate: now.AddDate(0, 2, 0), EndDate: now.AddDate(0, 5, 0), Tiers: tiers},
	)
	s.AddReferralCode("ABC123")
	s.SetEstimate("SWAP", 100)
	s.SetEstimate("PERPS", 250)
}

// normalize keys EVM addresses case-insensitively and keeps Solana
// addresses as given.
func normalize(addr string) string {
	if caip.IsEVMAddress(addr) {
		return strings.ToLower(addr)
	}
	return addr
}

// CreateSubscription opens a subscription owned by addr.
func (s *MemoryStore) CreateSubscription(addr, referralCode string) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalize(addr)
	if _, ok := s.byAddress[key]; ok {
		return Subscription{}, errAlreadyRegistered
	}
	sub := &Subscription{
		ID:           uuid.NewString(),
		ReferralCode: strings.ToUpper(uuid.NewString()[:6]),
		Addresses:    []string{addr},
	}
	if referralCode != "" {
		s.referralCodes[referralCode] = true
	}
	s.subscriptions[sub.ID] = sub
	s.byAddress[key] = sub.ID
	s.referralCodes[sub.ReferralCode] = true
	return *cloneSubscription(sub), nil
}

// Join binds addr to subscriptionID.
func (s *MemoryStore) Join(subscriptionID, addr string) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[subscriptionID]
	if !ok {
		return Subscription{}, errUnknownSubscription
	}
	key := normalize(addr)
	if _, ok := s.byAddress[key]; ok {
		return Subscription{}, errAlreadyRegistered
	}
	sub.Addresses = append(sub.Addresses, addr)
	s.byAddress[key] = sub.ID
	return *cloneSubscription(sub), nil
}

// SubscriptionFor returns the subscription addr is bound to.
func (s *MemoryStore) SubscriptionFor(addr string) (Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAddress[normalize(addr)]
	if !ok {
		return Subscription{}, false
	}
	return *cloneSubscription(s.subscriptions[id]), true
}

// Subscription returns a subscription by id.
func (s *MemoryStore) Subscription(id string) (Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return Subscription{}, false
	}
	return *cloneSubscription(sub), true
}

// SetSeasons installs the current and next seasons. Either may be nil.
func (s *MemoryStore) SetSeasons(current, next *Season) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current, s.next = nil, nil
	if current != nil {
		c := *current
		s.current = &c
		s.seasons[c.ID] = c
	}
	if next != nil {
		n := *next
		s.next = &n
		s.seasons[n.ID] = n
	}
}

// Seasons returns the current and next seasons.
func (s *MemoryStore) Seasons() (current, next *Season) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current != nil {
		c := *s.current
		current = &c
	}
	if s.next != nil {
		n := *s.next
		next = &n
	}
	return current, next
}

// Season returns a known season by id.
func (s *MemoryStore) Season(id string) (Season, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	season, ok := s.seasons[id]
	return season, ok
}

// RemoveSeason forgets a season so that lookups answer "Season not found".
func (s *MemoryStore) RemoveSeason(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seasons, id)
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	if s.next != nil && s.next.ID == id {
		s.next = nil
	}
}

// SetBalance records a subscription's points in a season.
func (s *MemoryStore) SetBalance(subscriptionID, seasonID string, points int64, tierID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances[subscriptionID] == nil {
		s.balances[subscriptionID] = make(map[string]Balance)
	}
	s.balances[subscriptionID][seasonID] = Balance{Points: points, TierID: tierID}
}

// Balance returns a subscription's standing in a season. Subscriptions
// without points sit in the season's lowest tier.
func (s *MemoryStore) Balance(subscriptionID, seasonID string) Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.balances[subscriptionID][seasonID]; ok {
		return b
	}
	season := s.seasons[seasonID]
	tiers := append([]Tier(nil), season.Tiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].PointsNeeded < tiers[j].PointsNeeded })
	if len(tiers) == 0 {
		return Balance{}
	}
	return Balance{TierID: tiers[0].ID}
}

// AddReferralCode makes code valid.
func (s *MemoryStore) AddReferralCode(code string) {
	s.mu.Lock()
	s.referralCodes[code] = true
	s.mu.Unlock()
}

// ReferralCodeValid reports whether code was issued.
func (s *MemoryStore) ReferralCodeValid(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.referralCodes[code]
}

// SetEstimate sets the points awarded for an activity type.
func (s *MemoryStore) SetEstimate(activityType string, points int64) {
	s.mu.Lock()
	s.estimates[activityType] = points
	s.mu.Unlock()
}

// Estimate returns the points awarded for an activity type.
func (s *MemoryStore) Estimate(activityType string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.estimates[activityType]
}

// RevokeToken makes a previously issued session token fail authorization.
func (s *MemoryStore) RevokeToken(token string) {
	s.mu.Lock()
	s.revoked[token] = true
	s.mu.Unlock()
}

// TokenRevoked reports whether token was revoked.
func (s *MemoryStore) TokenRevoked(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revoked[token]
}

// SetGeoLocation sets the location the geolocation endpoint reports.
func (s *MemoryStore) SetGeoLocation(location string) {
	s.mu.Lock()
	s.geoLocation = location
	s.mu.Unlock()
}

// GeoLocation returns the location the geolocation endpoint reports.
func (s *MemoryStore) GeoLocation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.geoLocation
}

// FailNext makes the next n requests to route answer status with message.
func (s *MemoryStore) FailNext(route string, status int, message string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		delete(s.faults, route)
		return
	}
	s.faults[route] = &fault{status: status, message: message, left: n}
}

// takeFault consumes one pending fault for route.
func (s *MemoryStore) takeFault(route string) (fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.faults[route]
	if !ok {
		return fault{}, false
	}
	f.left--
	if f.left <= 0 {
		delete(s.faults, route)
	}
	return *f, true
}

// SetClockSkew shifts the twin's clock relative to the caller's.
func (s *MemoryStore) SetClockSkew(d time.Duration) { s.skew.Store(int64(d)) }

// ClockSkew returns the configured clock shift.
func (s *MemoryStore) ClockSkew() time.Duration { return time.Duration(s.skew.Load()) }

// SetDelay makes every API request wait d before it is served.
func (s *MemoryStore) SetDelay(d time.Duration) { s.delay.Store(int64(d)) }

// Delay returns the configured request delay.
func (s *MemoryStore) Delay() time.Duration { return time.Duration(s.delay.Load()) }

func (s *MemoryStore) countRequest(route string) {
	v, _ := s.requests.LoadOrStore(route, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

// Requests returns how many requests route has received.
func (s *MemoryStore) Requests(route string) int64 {
	v, ok := s.requests.Load(route)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

func cloneSubscription(sub *Subscription) *Subscription {
	out := *sub
	out.Addresses = append([]string(nil), sub.Addresses...)
	return &out
}

type stateSnapshot struct {
	Subscriptions map[string]Subscription       `json:"subscriptions"`
	Current       *Season                       `json:"current,omitempty"`
	Next          *Season                       `json:"next,omitempty"`
	Balances      map[string]map[string]Balance `json:"balances"`
	ReferralCodes []string                      `json:"referralCodes"`
	Estimates     map[string]int64              `json:"estimates"`
	GeoLocation   string                        `json:"geoLocation"`
}

// Snapshot returns full state as a JSON-serializable value.
func (s *MemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := stateSnapshot{
		Subscriptions: make(map[string]Subscription, len(s.subscriptions)),
		Current:       s.current,
		Next:          s.next,
		Balances:      make(map[string]map[string]Balance, len(s.balances)),
		Estimates:     make(map[string]int64, len(s.estimates)),
		GeoLocation:   s.geoLocation,
	}
	for subID, seasons := range s.balances {
		snap.Balances[subID] = make(map[string]Balance, len(seasons))
		for seasonID, b := range seasons {
			snap.Balances[subID][seasonID] = b
		}
	}
	for activity, points := range s.estimates {
		snap.Estimates[activity] = points
	}
	for id, sub := range s.subscriptions {
		snap.Subscriptions[id] = *cloneSubscription(sub)
	}
	for code := range s.referralCodes {
		snap.ReferralCodes = append(snap.ReferralCodes, code)
	}
	sort.Strings(snap.ReferralCodes)
	return snap
}

// LoadState loads state from JSON on top of the current state.
func (s *MemoryStore) LoadState(data []byte) error {
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.Current != nil || snap.Next != nil {
		s.SetSeasons(snap.Current, snap.Next)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range snap.Subscriptions {
		sub.ID = id
		s.subscriptions[id] = cloneSubscription(&sub)
		for _, addr := range sub.Addresses {
			s.byAddress[normalize(addr)] = id
		}
		if sub.ReferralCode != "" {
			s.referralCodes[sub.ReferralCode] = true
		}
	}
	for subID, seasons := range snap.Balances {
		if s.balances[subID] == nil {
			s.balances[subID] = make(map[string]Balance)
		}
		for seasonID, b := range seasons {
			s.balances[subID][seasonID] = b
		}
	}
	for _, code := range snap.ReferralCodes {
		s.referralCodes[code] = true
	}
	for activity, points := range snap.Estimates {
		s.estimates[activity] = points
	}
	if snap.GeoLocation != "" {
		s.geoLocation = snap.GeoLocation
	}
	return nil
}
