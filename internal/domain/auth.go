package domain

import "github.com/golang-jwt/jwt/v5"

// AccessClaims are the JWT claims this service reads. Token issuance and
// the rest of the auth surface live in the external identity service; only
// the owner identity is consumed here.
type AccessClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
