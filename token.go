package sessiongate

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenInfo is the unverified portion of a bearer token the client can see.
// The gateway treats tokens as opaque credentials; this peek exists only to
// annotate logs and forced-logout errors with expiry information, never to
// grant access.
type TokenInfo struct {
	Subject   string
	ExpiresAt *time.Time
	Expired   bool
}

// PeekToken decodes token claims without verifying the signature. Returns
// an error for tokens that are not JWTs; callers should treat those as
// opaque and move on.
func PeekToken(raw string) (*TokenInfo, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()

	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "token is not a decodable JWT")
	}

	info := &TokenInfo{}

	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		info.ExpiresAt = &t
		info.Expired = t.Before(time.Now())
	}

	return info, nil
}

func tokenMetadata(raw string) map[string]any {
	if raw == "" {
		return nil
	}

	info, err := PeekToken(raw)
	if err != nil {
		return nil
	}

	meta := map[string]any{"token_expired": info.Expired}
	if info.ExpiresAt != nil {
		meta["token_expires_at"] = info.ExpiresAt.Format(time.RFC3339)
	}
	return meta
}
