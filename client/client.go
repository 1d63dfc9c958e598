package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
)

const (
	// DefaultTimeout applies to every request unless Config.Timeout overrides it.
	DefaultTimeout = 10 * time.Second
	// FallbackLocale is used when no usable locale is configured.
	FallbackLocale = "en-US"
	// UnknownLocation is reported when geolocation cannot be determined.
	UnknownLocation = "UNKNOWN"

	headerClientID    = "rewards-client-id"
	headerAccessToken = "rewards-access-token"

	defaultReferralCacheSize = 256
	defaultReferralCacheTTL  = 5 * time.Minute
	maxErrorBody             = 64 << 10
)

// Doer is the HTTP transport the client sends requests through.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	BaseURL          string
	GeoLocationURL   string
	ClientID         string
	Locale           string
	Timeout          time.Duration
	HTTP             Doer
	Logger           zerolog.Logger
	ReferralCacheTTL time.Duration
	ReferralCacheMax int
}

// Client is the typed rewards backend client.
type Client struct {
	base     string
	geoURL   string
	clientID string
	locale   string
	timeout  time.Duration
	http     Doer
	log      zerolog.Logger
	referral *expirable.LRU[string, bool]
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("rewards base url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid rewards base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTP == nil {
		cfg.HTTP = &http.Client{}
	}
	if cfg.ReferralCacheMax <= 0 {
		cfg.ReferralCacheMax = defaultReferralCacheSize
	}
	if cfg.ReferralCacheTTL <= 0 {
		cfg.ReferralCacheTTL = defaultReferralCacheTTL
	}

	return &Client{
		base:     base,
		geoURL:   strings.TrimSpace(cfg.GeoLocationURL),
		clientID: cfg.ClientID,
		locale:   cfg.Locale,
		timeout:  cfg.Timeout,
		http:     cfg.HTTP,
		log:      cfg.Logger.With().Str("component", "rewards-client").Logger(),
		referral: expirable.NewLRU[string, bool](cfg.ReferralCacheMax, nil, cfg.ReferralCacheTTL),
	}, nil
}

type localeKey struct{}

// WithLocale attaches a per-call locale that overrides Config.Locale.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// NormalizeLocale converts host locale strings such as "en_US" to canonical BCP 47 tags.
func NormalizeLocale(locale string) string {
	l := strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	if l == "" {
		return FallbackLocale
	}
	tag, err := language.Parse(l)
	if err != nil {
		return FallbackLocale
	}
	return tag.String()
}

func (c *Client) localeFor(ctx context.Context) string {
	if v, ok := ctx.Value(localeKey{}).(string); ok && v != "" {
		return NormalizeLocale(v)
	}
	return NormalizeLocale(c.locale)
}

// do performs one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, op, method, path string, body any, token string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", c.localeFor(ctx))
	if c.clientID != "" {
		req.Header.Set(headerClientID, c.clientID)
	}
	if token != "" {
		req.Header.Set(headerAccessToken, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(raw, &eb)
		err := classify(op, resp.StatusCode, eb)
		c.log.Debug().Str("op", op).Int("status", resp.StatusCode).Str("message", eb.Message).Msg("rewards request failed")
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// Login exchanges a signed challenge for a session token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, "login", http.MethodPost, "/auth/mobile-login", req, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MobileOptin creates a subscription owned by the signing account.
func (c *Client) MobileOptin(ctx context.Context, req OptinRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, "optin", http.MethodPost, "/auth/mobile-optin", req, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MobileJoin binds the signing account to the subscription that token belongs to.
func (c *Client) MobileJoin(ctx context.Context, req LoginRequest, token string) (*Subscription, error) {
	var out Subscription
	if err := c.do(ctx, "mobile join", http.MethodPost, "/wr/subscriptions/mobile-join", req, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OptInStatus returns one opt-in flag per address, in input order.
func (c *Client) OptInStatus(ctx context.Context, addresses []string) (*OptInStatusResponse, error) {
	if len(addresses) == 0 {
		return nil, ErrNoAddresses
	}
	if len(addresses) > MaxOptInAddresses {
		return nil, ErrTooManyAddresses
	}
	var out OptInStatusResponse
	if err := c.do(ctx, "get opt-in status", http.MethodPost, "/public/rewards/ois", OptInStatusRequest{Addresses: addresses}, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DiscoverSeasons returns the current and next season ids.
func (c *Client) DiscoverSeasons(ctx context.Context) (*DiscoverSeasons, error) {
	var out DiscoverSeasons
	if err := c.do(ctx, "get discover seasons", http.MethodGet, "/public/seasons/status", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SeasonMetadata returns the public metadata of a season.
func (c *Client) SeasonMetadata(ctx context.Context, seasonID string) (*SeasonMetadata, error) {
	var out SeasonMetadata
	path := "/public/seasons/" + url.PathEscape(seasonID) + "/meta"
	if err := c.do(ctx, "get season metadata", http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SeasonState returns the subscription's balance and tier for a season.
func (c *Client) SeasonState(ctx context.Context, seasonID, token string) (*SeasonState, error) {
	var out SeasonState
	path := "/seasons/" + url.PathEscape(seasonID) + "/state"
	if err := c.do(ctx, "get season state", http.MethodGet, path, nil, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EstimatePoints asks the backend to estimate points for an activity.
func (c *Client) EstimatePoints(ctx context.Context, req EstimatePointsRequest) (*EstimatedPoints, error) {
	var out EstimatedPoints
	if err := c.do(ctx, "points estimation", http.MethodPost, "/points-estimation", req, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateReferralCode asks the backend whether code exists. Answers are
// cached for the configured TTL.
func (c *Client) ValidateReferralCode(ctx context.Context, code string) (bool, error) {
	if valid, ok := c.referral.Get(code); ok {
		return valid, nil
	}
	var out referralValidation
	path := "/referral/validate?code=" + url.QueryEscape(code)
	if err := c.do(ctx, "validate referral code", http.MethodGet, path, nil, "", &out); err != nil {
		return false, err
	}
	c.referral.Add(code, out.Valid)
	return out.Valid, nil
}

// FetchGeoLocation returns the caller's location as reported by the
// geolocation service, e.g. "US" or "CA-ON".
func (c *Client) FetchGeoLocation(ctx context.Context) (string, error) {
	if c.geoURL == "" {
		return UnknownLocation, errors.New("geolocation url not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.geoURL, nil)
	if err != nil {
		return UnknownLocation, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return UnknownLocation, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return UnknownLocation, &StatusError{Op: "fetch geolocation", Status: resp.StatusCode}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return UnknownLocation, err
	}
	return strings.TrimSpace(string(raw)), nil
}
