// Package jwt provides HMAC-SHA256 signing and verification of JSON Web
// Tokens with support for standard and custom claim structures.
//
// # Usage
//
//	service, err := jwt.NewFromString("your-256-bit-secret")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	type AccessClaims struct {
//		jwt.StandardClaims
//		Username string `json:"username"`
//	}
//
//	token, err := service.Generate(AccessClaims{
//		StandardClaims: jwt.StandardClaims{
//			Subject:   "user123",
//			ExpiresAt: time.Now().Add(time.Hour).Unix(),
//			IssuedAt:  time.Now().Unix(),
//		},
//		Username: "john.doe",
//	})
//
// Parsing validates the signature and temporal claims before unmarshaling:
//
//	var claims AccessClaims
//	if err := service.Parse(token, &claims); err != nil {
//		switch {
//		case errors.Is(err, jwt.ErrExpiredToken):
//			// prompt re-authentication
//		case errors.Is(err, jwt.ErrInvalidSignature):
//			// reject outright
//		}
//	}
//
// # Error Handling
//
// Parse failures map to sentinel errors:
//   - ErrInvalidToken: malformed structure or nbf validation failure
//   - ErrExpiredToken: token past expiration time
//   - ErrInvalidSignature: signature verification failed
//   - ErrUnexpectedSigningMethod: algorithm other than HS256
//
// The jti claim is the hook for revocation checks; pair it with a denylist
// when tokens must be invalidated before their natural expiry.
package jwt
