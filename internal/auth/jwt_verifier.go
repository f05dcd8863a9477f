package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"reqforge/internal/domain"
	"reqforge/internal/domain/models"
)

// allowedAlgs guards against algorithm confusion.
var allowedAlgs = []string{"RS256", "ES256"}

// SupabaseJWTVerifier checks tokens against the keys of a JWKS endpoint.
type SupabaseJWTVerifier struct {
	keyfunc jwt.Keyfunc
	cancel  context.CancelFunc
	logger  *slog.Logger
}

// NewJWTVerifier fetches public keys from jwksURL. keyfunc refreshes them
// in the background until Close.
func NewJWTVerifier(jwksURL string, logger *slog.Logger) (JWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)

	return &SupabaseJWTVerifier{
		keyfunc: jwks.Keyfunc,
		cancel:  cancel,
		logger:  logger,
	}, nil
}

// NewJWTVerifierWithKeyfunc builds a verifier over a fixed key lookup.
func NewJWTVerifierWithKeyfunc(kf jwt.Keyfunc, logger *slog.Logger) *SupabaseJWTVerifier {
	return &SupabaseJWTVerifier{keyfunc: kf, cancel: func() {}, logger: logger}
}

// VerifyToken validates the signature, expiry, subject and role of a token.
func (v *SupabaseJWTVerifier) VerifyToken(tokenString string) (*models.SupabaseClaims, error) {
	claims := &models.SupabaseClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyfunc, jwt.WithValidMethods(allowedAlgs))
	if err != nil || !token.Valid {
		v.logger.Debug("token rejected", "error", err)
		return nil, domain.ErrUnauthorized
	}

	if claims.Subject == "" {
		v.logger.Debug("token missing subject claim")
		return nil, domain.ErrUnauthorized
	}

	// Anonymous sessions carry role "anon"
	if claims.Role != "authenticated" {
		v.logger.Info("token has unexpected role", "role", claims.Role, "user_id", claims.Subject)
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}

func (v *SupabaseJWTVerifier) Close() error {
	v.cancel()
	v.logger.Info("JWT verifier closed")
	return nil
}

// StaticVerifier accepts any token as a fixed user. Only for local
// development without an identity provider.
type StaticVerifier struct {
	UserID string
}

func (s StaticVerifier) VerifyToken(string) (*models.SupabaseClaims, error) {
	claims := &models.SupabaseClaims{Role: "authenticated"}
	claims.Subject = s.UserID
	return claims, nil
}

func (StaticVerifier) Close() error { return nil }
