package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestIssueAndParseEd25519(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{SessionTTL: time.Hour, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, Issuer: "rewards"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok, err := m.Issue("sub-1", "eip155:1:0xabc")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.SubscriptionID != "sub-1" || claims.Account != "eip155:1:0xabc" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SessionTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := SessionClaims{SubscriptionID: "s1", RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	now := time.Now()
	m, err := NewManager(Config{SessionTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	tok, err := m.Issue("sub-1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := m.Parse(tok); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestVerifyOnlyManagerCannotIssue(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SessionTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.Issue("sub-1", ""); err == nil {
		t.Fatal("expected verify-only manager to refuse issuing")
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []Config{
		{SessionTTL: 0, SigningMethod: MethodHS256, PrivateKey: []byte("k")},
		{SessionTTL: time.Minute, SigningMethod: MethodHS256},
		{SessionTTL: time.Minute, SigningMethod: MethodEd25519},
		{SessionTTL: time.Minute, SigningMethod: "rs256", PrivateKey: []byte("k")},
		{SessionTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestUsable(t *testing.T) {
	now := time.Now()
	m, err := NewManager(Config{SessionTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	tok, err := m.Issue("sub-1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if !Usable(tok, now) {
		t.Fatal("fresh token should be usable")
	}
	if Usable(tok, now.Add(2*time.Minute)) {
		t.Fatal("expired token should not be usable")
	}
	if !Usable("opaque-session-id", now) {
		t.Fatal("opaque token should be usable")
	}
	if Usable("", now) {
		t.Fatal("empty token should not be usable")
	}
}

func TestIssueSameSecondTokensDiffer(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	m, err := NewManager(Config{SessionTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("secret"), Now: func() time.Time { return fixed }})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	a, err := m.Issue("sub-1", "acct")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	b, err := m.Issue("sub-1", "acct")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct tokens for repeated sessions")
	}
}
