package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/schoolerp/backend/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidIssuer    = errors.New("token issued by an unknown issuer")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrMissingUserID    = errors.New("missing user_id in claims")
	ErrMissingUsername  = errors.New("missing username in claims")
)

// parseFailures maps the library's validation errors onto the errors the
// HTTP layer switches on when picking a response code.
var parseFailures = []struct {
	library error
	mapped  error
}{
	{jwt.ErrTokenExpired, ErrExpiredToken},
	{jwt.ErrTokenNotValidYet, ErrTokenNotYetValid},
	{jwt.ErrTokenInvalidIssuer, ErrInvalidIssuer},
}

// Claims are the identity fields the school's identity provider embeds in
// its access tokens. Only the fields this service consumes are declared;
// the operator's username becomes the recorded_by value on payment
// transactions.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// JWTService validates access tokens issued by the school's identity
// provider. Token issuance, refresh and revocation live with the provider;
// this service only needs to answer "who is calling".
type JWTService struct {
	secret []byte
	issuer string
}

// NewJWTService creates a new JWT validation service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
	}
}

// ValidateAccessToken validates an access token and returns its claims
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	var opts []jwt.ParserOption
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		// Reject anything but HMAC, including alg=none
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, keyFunc, opts...)
	if err != nil {
		for _, f := range parseFailures {
			if errors.Is(err, f.library) {
				return nil, f.mapped
			}
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	switch {
	case claims.UserID == "":
		return nil, ErrMissingUserID
	case claims.Username == "":
		return nil, ErrMissingUsername
	}

	return claims, nil
}
