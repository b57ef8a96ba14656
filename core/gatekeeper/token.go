package gatekeeper

import (
	"context"
	"errors"

	"github.com/hivechat/realtime/pkg/jwt"
)

// Claims is the identity extracted from a verified credential.
type Claims struct {
	// UserID is the authenticated user, from the subject claim.
	UserID string
	// TokenID is the credential's unique ID (jti), used for revocation
	// checks. May be empty for tokens issued without one.
	TokenID string
}

// TokenVerifier checks a raw credential and extracts its claims. Failures
// must be returned as *AuthError so the handshake can map them to close
// codes.
type TokenVerifier interface {
	Verify(ctx context.Context, credential string) (Claims, error)
}

// JWTVerifier verifies HMAC-SHA256 signed tokens.
type JWTVerifier struct {
	service *jwt.Service
}

// NewJWTVerifier creates a verifier for tokens signed with the given secret.
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	service, err := jwt.NewFromString(secret)
	if err != nil {
		return nil, err
	}
	return &JWTVerifier{service: service}, nil
}

func (v *JWTVerifier) Verify(_ context.Context, credential string) (Claims, error) {
	var claims jwt.StandardClaims
	if err := v.service.Parse(credential, &claims); err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return Claims{}, &AuthError{Reason: ReasonExpired, Err: err}
		}
		return Claims{}, &AuthError{Reason: ReasonInvalid, Err: err}
	}
	if claims.Subject == "" {
		return Claims{}, &AuthError{Reason: ReasonInvalid, Err: errors.New("token has no subject")}
	}
	return Claims{UserID: claims.Subject, TokenID: claims.ID}, nil
}
