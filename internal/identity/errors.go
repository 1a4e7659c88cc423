package identity

import "errors"

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidIssuer   = errors.New("invalid token issuer")
	ErrInvalidAudience = errors.New("invalid token audience")
	ErrTokenExpired    = errors.New("token expired or not yet valid")
	ErrInvalidSubject  = errors.New("invalid token subject")
)
