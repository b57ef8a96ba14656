package jwt

import (
	"encoding/json"
	"errors"
	"fmt"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// StandardClaims carries the RFC 7519 registered claims. Embed it in a custom
// struct to attach application-specific claims alongside the standard set.
type StandardClaims struct {
	ID        string `json:"jti,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	Audience  string `json:"aud,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

// Service signs and verifies tokens with a single HMAC-SHA256 key.
type Service struct {
	signingKey []byte
}

// New creates a token service with the given signing key.
func New(signingKey []byte) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}
	return &Service{signingKey: signingKey}, nil
}

// NewFromString creates a token service from a string signing key.
func NewFromString(signingKey string) (*Service, error) {
	return New([]byte(signingKey))
}

// Generate signs the given claims and returns the compact token string.
// Claims can be any JSON-serializable value; StandardClaims fields are
// recognized by their registered JSON names.
func (s *Service) Generate(claims any) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}

	raw, err := json.Marshal(claims)
	if err != nil {
		return "", errors.Join(ErrMissingClaims, err)
	}
	mapped := jwtlib.MapClaims{}
	if err := json.Unmarshal(raw, &mapped); err != nil {
		return "", errors.Join(ErrMissingClaims, err)
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, mapped)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the token signature and temporal claims, then unmarshals the
// payload into claims. The claims argument must be a pointer.
func (s *Service) Parse(token string, claims any) error {
	mapped := jwtlib.MapClaims{}
	_, err := jwtlib.ParseWithClaims(token, mapped, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, ErrUnexpectedSigningMethod
		}
		return s.signingKey, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil {
		return classifyParseError(err)
	}

	raw, err := json.Marshal(mapped)
	if err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	if err := json.Unmarshal(raw, claims); err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	return nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return errors.Join(ErrExpiredToken, err)
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
		return errors.Join(ErrInvalidSignature, err)
	case errors.Is(err, ErrUnexpectedSigningMethod):
		return ErrUnexpectedSigningMethod
	default:
		return errors.Join(ErrInvalidToken, err)
	}
}
