package jwt

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testSecret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := IssueIdentityToken("alice", testSecret)
	if err != nil {
		t.Fatalf("IssueIdentityToken: %v", err)
	}

	payload, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if payload.Username != "alice" {
		t.Fatalf("Username = %q, want alice", payload.Username)
	}
	if payload.Issuer != TokenIssuer || payload.Subject != "alice" {
		t.Fatalf("claims = %+v, want issuer %q and subject alice", payload.StandardClaims, TokenIssuer)
	}
}

func TestParseTokenRejects(t *testing.T) {
	expired, _ := GenerateToken(&Payload{Username: "alice"}, testSecret, -time.Minute)
	wrongKey, _ := GenerateToken(&Payload{Username: "alice"}, "other", time.Minute)
	anonymous, _ := GenerateToken(&Payload{}, testSecret, time.Minute)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expired, ErrInvalidToken},
		{"wrong key", wrongKey, ErrInvalidToken},
		{"no username", anonymous, ErrNoIdentity},
		{"garbage", "not-a-token", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, testSecret); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIdentityExtractorMiddleware(t *testing.T) {
	token, _ := GenerateToken(&Payload{Username: "bob"}, testSecret, time.Minute)

	var seen string
	handler := IdentityExtractorMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = Username(r)
	}))

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    string
	}{
		{"header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, "bob"},
		{"query", func(r *http.Request) { r.URL.RawQuery = TokenQueryParam + "=" + token }, "bob"},
		{"missing", func(r *http.Request) {}, ""},
		{"malformed header", func(r *http.Request) { r.Header.Set("Authorization", token) }, ""},
		{"invalid token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = "unset"
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			tt.prepare(req)
			handler.ServeHTTP(httptest.NewRecorder(), req)
			if seen != tt.want {
				t.Fatalf("username = %q, want %q", seen, tt.want)
			}
		})
	}
}
