package provider

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const testKeyID = "test-key-1"

// jwksServer serves a JWKS containing the public half of key.
func jwksServer(t *testing.T, key *rsa.PrivateKey) *httptest.Server {
	t.Helper()
	jwks := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": testKeyID,
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(jwks); err != nil {
			t.Errorf("encoding jwks: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return key
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":         "https://issuer.example.com",
		"sub":         "subject-1",
		"aud":         "client-1",
		"exp":         time.Now().Add(time.Hour).Unix(),
		"email":       "ada@example.com",
		"given_name":  "Ada",
		"family_name": "Lovelace",
		"picture":     "https://example.com/ada.png",
	}
}

func baseExpectation() Expectation {
	return Expectation{
		Issuers:      []string{"https://issuer.example.com"},
		Audiences:    []string{"client-1"},
		RequireEmail: true,
	}
}

func TestVerifyIDToken(t *testing.T) {
	key := newSigningKey(t)
	srv := jwksServer(t, key)
	ctx := context.Background()

	keys := NewKeySet(srv.URL)
	raw := signToken(t, key, testKeyID, baseClaims())

	claims, err := VerifyIDToken(ctx, keys, raw, baseExpectation(), time.Time{})
	if err != nil {
		t.Fatalf("VerifyIDToken: %v", err)
	}
	if claims.Subject != "subject-1" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "subject-1")
	}
	if claims.Email != "ada@example.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "ada@example.com")
	}
	if claims.GivenName != "Ada" || claims.FamilyName != "Lovelace" {
		t.Errorf("name = %q %q, want Ada Lovelace", claims.GivenName, claims.FamilyName)
	}
	if !keys.Ready() {
		t.Error("KeySet should be ready after a verification")
	}
}

func TestVerifyIDTokenFailures(t *testing.T) {
	key := newSigningKey(t)
	srv := jwksServer(t, key)
	ctx := context.Background()

	otherKey := newSigningKey(t)

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		want    Expectation
		wantErr error
	}{
		{
			name:    "not a jwt",
			token:   func(t *testing.T) string { return "definitely-not-a-jwt" },
			want:    baseExpectation(),
			wantErr: ErrInvalidTokenFormat,
		},
		{
			name:    "missing kid",
			token:   func(t *testing.T) string { return signToken(t, key, "", baseClaims()) },
			want:    baseExpectation(),
			wantErr: ErrNoMatchingKey,
		},
		{
			name:    "signed by unknown key",
			token:   func(t *testing.T) string { return signToken(t, otherKey, testKeyID, baseClaims()) },
			want:    baseExpectation(),
			wantErr: ErrSignatureInvalid,
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				claims := baseClaims()
				claims["exp"] = time.Now().Add(-time.Hour).Unix()
				return signToken(t, key, testKeyID, claims)
			},
			want:    baseExpectation(),
			wantErr: ErrTokenExpired,
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				claims := baseClaims()
				claims["iss"] = "https://evil.example.com"
				return signToken(t, key, testKeyID, claims)
			},
			want:    baseExpectation(),
			wantErr: ErrIssuerInvalid,
		},
		{
			name: "wrong audience",
			token: func(t *testing.T) string {
				claims := baseClaims()
				claims["aud"] = "someone-elses-client"
				return signToken(t, key, testKeyID, claims)
			},
			want:    baseExpectation(),
			wantErr: ErrAudienceInvalid,
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				claims := baseClaims()
				delete(claims, "sub")
				return signToken(t, key, testKeyID, claims)
			},
			want:    baseExpectation(),
			wantErr: ErrMissingClaims,
		},
		{
			name: "missing email when required",
			token: func(t *testing.T) string {
				claims := baseClaims()
				delete(claims, "email")
				return signToken(t, key, testKeyID, claims)
			},
			want:    baseExpectation(),
			wantErr: ErrMissingClaims,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := NewKeySet(srv.URL)
			_, err := VerifyIDToken(ctx, keys, tt.token(t), tt.want, time.Time{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifyIDToken error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyIDTokenEmailOptional(t *testing.T) {
	key := newSigningKey(t)
	srv := jwksServer(t, key)

	claims := baseClaims()
	delete(claims, "email")
	raw := signToken(t, key, testKeyID, claims)

	want := baseExpectation()
	want.RequireEmail = false
	got, err := VerifyIDToken(context.Background(), NewKeySet(srv.URL), raw, want, time.Time{})
	if err != nil {
		t.Fatalf("VerifyIDToken: %v", err)
	}
	if got.Email != "" {
		t.Errorf("Email = %q, want empty", got.Email)
	}
}

func TestVerifyIDTokenAudienceArray(t *testing.T) {
	key := newSigningKey(t)
	srv := jwksServer(t, key)

	claims := baseClaims()
	claims["aud"] = []string{"other-client", "client-1"}
	raw := signToken(t, key, testKeyID, claims)

	got, err := VerifyIDToken(context.Background(), NewKeySet(srv.URL), raw, baseExpectation(), time.Time{})
	if err != nil {
		t.Fatalf("VerifyIDToken: %v", err)
	}
	if len(got.Audience) != 2 {
		t.Errorf("Audience = %v, want both entries", got.Audience)
	}
}

func TestVerifyIDTokenKeySetUnavailable(t *testing.T) {
	key := newSigningKey(t)
	srv := jwksServer(t, key)
	srv.Close()

	raw := signToken(t, key, testKeyID, baseClaims())
	_, err := VerifyIDToken(context.Background(), NewKeySet(srv.URL), raw, baseExpectation(), time.Time{})
	if !errors.Is(err, ErrKeySetUnavailable) {
		t.Errorf("VerifyIDToken error = %v, want %v", err, ErrKeySetUnavailable)
	}
}

func TestKeySetRefreshIsIdempotent(t *testing.T) {
	key := newSigningKey(t)
	srv := jwksServer(t, key)
	ctx := context.Background()

	keys := NewKeySet(srv.URL)
	if keys.Ready() {
		t.Error("KeySet should not be ready before first use")
	}
	raw := signToken(t, key, testKeyID, baseClaims())
	if _, err := VerifyIDToken(ctx, keys, raw, baseExpectation(), time.Time{}); err != nil {
		t.Fatalf("VerifyIDToken: %v", err)
	}

	keys.Refresh(ctx)
	keys.Refresh(ctx)
	if keys.Ready() {
		t.Error("KeySet should report not ready after Refresh until refetched")
	}
	if _, err := VerifyIDToken(ctx, keys, raw, baseExpectation(), time.Time{}); err != nil {
		t.Fatalf("VerifyIDToken after refresh: %v", err)
	}
	if !keys.Ready() {
		t.Error("KeySet should be ready again after verification")
	}
}

func TestWrapExchangeError(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		wantUnavailable bool
	}{
		{
			"connection refused",
			&url.Error{Op: "Post", URL: "https://oauth2.googleapis.com/token", Err: errors.New("connect: connection refused")},
			true,
		},
		{
			"token endpoint 5xx",
			&oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusServiceUnavailable}},
			true,
		},
		{
			"token endpoint rejects the code",
			&oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadRequest}},
			false,
		},
		{
			"retrieve error without response",
			&oauth2.RetrieveError{},
			true,
		},
		{
			"non-network failure",
			errors.New("unexpected payload"),
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := WrapExchangeError("token exchange", tt.err)
			if got := errors.Is(wrapped, ErrProviderUnavailable); got != tt.wantUnavailable {
				t.Errorf("errors.Is(ErrProviderUnavailable) = %v, want %v (err %v)", got, tt.wantUnavailable, wrapped)
			}
			if !tt.wantUnavailable && !errors.Is(wrapped, tt.err) {
				t.Errorf("original error should remain inspectable: %v", wrapped)
			}
		})
	}
}
