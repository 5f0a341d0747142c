package services

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/groupcal/backend/internal/apperr"
	"github.com/groupcal/backend/internal/models"
	"github.com/groupcal/backend/pkg/utils"
)

const testClientID = "groupcal-test.apps.googleusercontent.com"

type idTokenSigner struct {
	key *rsa.PrivateKey
}

func newIDTokenSigner(t *testing.T) (*idTokenSigner, *OIDCVerifier) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed generating key: %v", err)
	}
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return &idTokenSigner{key: key}, NewOIDCVerifier(googleIssuer, keySet, testClientID)
}

func (s *idTokenSigner) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	base := jwt.MapClaims{
		"iss":            googleIssuer,
		"aud":            testClientID,
		"sub":            "google-sub-1",
		"email":          "Newcomer@Example.com",
		"email_verified": true,
		"given_name":     "New",
		"family_name":    "Comer",
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		base[k] = v
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, base).SignedString(s.key)
	if err != nil {
		t.Fatalf("failed signing token: %v", err)
	}
	return raw
}

func TestAuthService_Login(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "alice")
	auth := NewAuthService(db, nil)
	ctx := context.Background()

	res, err := auth.Login(ctx, "  ALICE@test.local ", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claims, err := utils.ValidateToken(res.Token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected token for %s, got %s", user.ID, claims.UserID)
	}

	if _, err := auth.Login(ctx, "alice@test.local", "wrong"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := auth.Login(ctx, "nobody@test.local", "password123"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := auth.Login(ctx, "", ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAuthService_GoogleLogin(t *testing.T) {
	db := setupTestDB(t)
	signer, verifier := newIDTokenSigner(t)
	auth := NewAuthService(db, verifier)
	ctx := context.Background()

	t.Run("first sign-in provisions the user", func(t *testing.T) {
		res, err := auth.GoogleLogin(ctx, signer.sign(t, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.User.Email != "newcomer@example.com" || res.User.Username != "newcomer" {
			t.Fatalf("unexpected user %+v", res.User)
		}
		if res.User.AuthProvider == nil || *res.User.AuthProvider != "google" {
			t.Fatalf("expected google provider, got %v", res.User.AuthProvider)
		}
		if res.Token == "" {
			t.Fatal("expected a session token")
		}
	})

	t.Run("second sign-in reuses the user", func(t *testing.T) {
		if _, err := auth.GoogleLogin(ctx, signer.sign(t, nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var count int64
		db.Model(&models.User{}).Where("email = ?", "newcomer@example.com").Count(&count)
		if count != 1 {
			t.Fatalf("expected one user, got %d", count)
		}
	})

	t.Run("username collisions get a suffix", func(t *testing.T) {
		res, err := auth.GoogleLogin(ctx, signer.sign(t, jwt.MapClaims{"email": "newcomer@other.org", "sub": "google-sub-2"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.User.Username != "newcomer2" {
			t.Fatalf("expected newcomer2, got %s", res.User.Username)
		}
	})

	t.Run("rejected tokens", func(t *testing.T) {
		cases := map[string]string{
			"wrong audience": signer.sign(t, jwt.MapClaims{"aud": "someone-else"}),
			"expired":        signer.sign(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()}),
			"unverified":     signer.sign(t, jwt.MapClaims{"email_verified": false}),
			"garbage":        "not-a-jwt",
		}
		for name, token := range cases {
			if _, err := auth.GoogleLogin(ctx, token); !errors.Is(err, apperr.ErrUnauthorized) {
				t.Fatalf("%s: expected ErrUnauthorized, got %v", name, err)
			}
		}

		other, _ := newIDTokenSigner(t)
		if _, err := auth.GoogleLogin(ctx, other.sign(t, nil)); !errors.Is(err, apperr.ErrUnauthorized) {
			t.Fatalf("expected foreign signature to be rejected, got %v", err)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		if _, err := NewAuthService(db, nil).GoogleLogin(ctx, "x"); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})
}
