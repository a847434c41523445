package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set carried by pairchat tokens.
type Payload struct {
	jwt.StandardClaims `json:"standard_claims"`

	// Username is the stable identity the token was issued to.
	Username string `json:"username"`
}
