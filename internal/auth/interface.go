package auth

import "reqforge/internal/domain/models"

// JWTVerifier validates bearer tokens for the HTTP and socket entry points.
type JWTVerifier interface {
	// VerifyToken returns the parsed claims, or domain.ErrUnauthorized when
	// the token is invalid, expired or signed with an unexpected key.
	VerifyToken(tokenString string) (*models.SupabaseClaims, error)

	// Close releases resources held by the verifier
	Close() error
}
