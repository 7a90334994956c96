package signal

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "roomlink/pkg/errors"
)

// validateBearerToken inspects the configured bearer token before any
// network attempt. The relay verifies the signature; the client only checks
// that a token is present, structurally a JWT, and not already expired, so
// a join that cannot possibly be accepted fails fast and offline.
func validateBearerToken(token string) error {
	if token == "" {
		return apperrors.NewAuthenticationRequiredError("no auth token configured")
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeAuthenticationRequired, "malformed auth token")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeAuthenticationRequired, "invalid token expiry")
	}
	if exp != nil && exp.Before(time.Now()) {
		return apperrors.NewAuthenticationRequiredError("auth token expired")
	}

	return nil
}
