package domain

import "time"

// AuthClaims identifies the operator behind an API request.
type AuthClaims struct {
	Subject   string    `json:"sub"`
	Scope     string    `json:"scope,omitempty"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}
