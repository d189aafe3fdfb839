package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
		Issuer:        "gotoken-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestCreateAndParseRoundTrip(t *testing.T) {
	m := newTestManager(t)

	token, err := m.CreateAccess("user-1", "alice@example.com", "admin")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UID != "user-1" || claims.Email != "alice@example.com" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("unexpected token type %q", claims.TokenType)
	}
	if claims.Issuer != "gotoken-test" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
}

func TestNewManagerRejectsShortHS256Secret(t *testing.T) {
	_, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("too-short"),
	})
	if err == nil {
		t.Fatal("expected short hs256 secret to be rejected")
	}
}

func TestNewManagerRejectsZeroTTL(t *testing.T) {
	_, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
	})
	if err == nil {
		t.Fatal("expected zero TTL to be rejected")
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	m := newTestManager(t)

	other, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("ffffffffffffffffffffffffffffffff"),
		Issuer:        "gotoken-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := other.CreateAccess("user-1", "", "")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected foreign-key token to be rejected")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m := newTestManager(t)

	past := time.Now().Add(-time.Hour)
	m.SetClock(func() time.Time { return past })

	token, err := m.CreateAccess("user-1", "", "")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	m.SetClock(time.Now)

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseHonorsInjectedClock(t *testing.T) {
	m := newTestManager(t)

	// A virtual epoch years behind the wall clock: the token is long
	// expired in real time but live on the injected clock.
	epoch := time.Unix(1_700_000_000, 0)
	m.SetClock(func() time.Time { return epoch })

	token, err := m.CreateAccess("user-1", "a@b.c", "admin")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	if _, err := m.ParseAccess(token); err != nil {
		t.Fatalf("parse against the minting clock failed: %v", err)
	}

	// Advancing the same clock past AccessTTL expires it.
	m.SetClock(func() time.Time { return epoch.Add(16 * time.Minute) })
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected expiry on the injected clock")
	}
}

func TestParseRejectsWrongTokenType(t *testing.T) {
	m := newTestManager(t)

	// Sign a structurally valid token with typ=refresh using the same key.
	claims := AccessClaims{
		UID:       "user-1",
		TokenType: "refresh",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
			Issuer:    "gotoken-test",
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := m.ParseAccess(token); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestParseRejectsMissingUID(t *testing.T) {
	m := newTestManager(t)

	claims := AccessClaims{
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "gotoken-test",
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected empty uid to be rejected")
	}
}

func TestParseRejectsAlgorithmConfusion(t *testing.T) {
	m := newTestManager(t)

	// Token signed with none algorithm must never pass.
	claims := AccessClaims{
		UID:       "user-1",
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "gotoken-test",
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, claims).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected alg=none token to be rejected")
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	m := newTestManager(t)

	claims := AccessClaims{
		UID:       "user-1",
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "someone-else",
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}

func TestParseRejectsFutureIssuedAt(t *testing.T) {
	m := newTestManager(t)

	claims := AccessClaims{
		UID:       "user-1",
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(2 * time.Hour)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "gotoken-test",
		},
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected far-future iat to be rejected")
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	m, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if m.Algorithm() != "EdDSA" {
		t.Fatalf("unexpected algorithm %q", m.Algorithm())
	}

	token, err := m.CreateAccess("user-1", "", "member")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UID != "user-1" || claims.Role != "member" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestEd25519RequiresVerifyMaterial(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	if _, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
	}); err == nil {
		t.Fatal("expected missing verify material to be rejected")
	}
}
