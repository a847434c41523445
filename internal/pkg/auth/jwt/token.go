package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// IdentityExpiration is how long a login token stays valid.
	IdentityExpiration = 24 * time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "pairchat"
)

var (
	ErrInvalidToken = errors.New("jwt: invalid or expired token")
	ErrNoIdentity   = errors.New("jwt: token carries no username")
)

// IssueIdentityToken returns a login token for username valid for IdentityExpiration.
func IssueIdentityToken(username, secretKey string) (string, error) {
	return GenerateToken(&Payload{Username: username}, secretKey, IdentityExpiration)
}

// GenerateToken signs a new HS256 token for payload, valid for duration.
// The username doubles as the token subject.
func GenerateToken(payload *Payload, secretKey string, duration time.Duration) (string, error) {
	now := time.Now()

	payload.StandardClaims = jwt.StandardClaims{
		ExpiresAt: now.Add(duration).Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    TokenIssuer,
		Subject:   payload.Username,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("sign token for %s: %w", payload.Username, err)
	}

	return signed, nil
}

// ParseToken verifies tokenString with secretKey and returns its claims.
// Only HMAC-signed tokens issued to a username are accepted.
func ParseToken(tokenString string, secretKey string) (*Payload, error) {
	claims := &Payload{}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Username == "" {
		return nil, ErrNoIdentity
	}

	return claims, nil
}
