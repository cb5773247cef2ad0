package jwt

import "github.com/golang-jwt/jwt/v5"

// SessionClaims defines the JWT claims that make up the client-held session
// cache. Besides the registered claims it carries the username and a denormalized
// snapshot of the user's progression, so a client can render its header before
// the authoritative record is re-fetched. On restore the remote record wins.
type SessionClaims struct {
	jwt.RegisteredClaims

	// Username is the unique identifier of the signed-in user.
	Username string `json:"username"`

	// XP is the experience-point counter at the time the token was minted.
	XP int `json:"xp"`

	// Level is the level at the time the token was minted.
	Level int `json:"level"`
}
