package identity

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/cwrk-planet/qaroom/internal/domain"
)

// ViewerClaims — access-токен зрителя: sub = id, плюс имя и аватар для подписи вопросов.
type ViewerClaims struct {
	jwt.StandardClaims
	Name   string `json:"name,omitempty"`
	Avatar string `json:"picture,omitempty"`
}

// Valid отключает встроенную проверку времени jwt: exp/nbf проверяются
// в Verify с допуском clockSkew и переданным now.
func (c *ViewerClaims) Valid() error { return nil }

// TokenVerifier проверяет подпись (HS256 или RS256), issuer, audience и время жизни.
// Пустые issuer/audience не проверяются.
type TokenVerifier struct {
	method    jwt.SigningMethod
	key       any
	issuer    string
	audience  string
	clockSkew time.Duration
}

func NewHMACVerifier(secret []byte, issuer, audience string, clockSkew time.Duration) *TokenVerifier {
	return &TokenVerifier{
		method:    jwt.SigningMethodHS256,
		key:       secret,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}
}

func NewRSAVerifier(public *rsa.PublicKey, issuer, audience string, clockSkew time.Duration) *TokenVerifier {
	return &TokenVerifier{
		method:    jwt.SigningMethodRS256,
		key:       public,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}
}

// Verify разбирает токен и возвращает зрителя из его клеймов.
func (v *TokenVerifier) Verify(tokenStr string, now time.Time) (*domain.Viewer, error) {
	claims := &ViewerClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != v.method.Alg() {
			return nil, fmt.Errorf("unexpected alg %s", t.Method.Alg())
		}
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, ErrInvalidIssuer
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, ErrInvalidAudience
	}

	// временные клеймы с люфтом clockSkew
	nbf := time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)
	exp := time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)
	if now.Before(nbf) || now.After(exp) {
		return nil, ErrTokenExpired
	}

	if claims.Subject == "" {
		return nil, ErrInvalidSubject
	}
	return &domain.Viewer{
		ID:     domain.UserID(claims.Subject),
		Name:   claims.Name,
		Avatar: claims.Avatar,
	}, nil
}

// Signer выпускает токены зрителей. В проде этим занимается внешний
// auth-сервис; здесь он нужен для `qaroom token` и тестов.
type Signer struct {
	method   jwt.SigningMethod
	key      any
	issuer   string
	audience string
	ttl      time.Duration
}

func NewHMACSigner(secret []byte, issuer, audience string, ttl time.Duration) *Signer {
	return &Signer{method: jwt.SigningMethodHS256, key: secret, issuer: issuer, audience: audience, ttl: ttl}
}

func NewRSASigner(private *rsa.PrivateKey, issuer, audience string, ttl time.Duration) *Signer {
	return &Signer{method: jwt.SigningMethodRS256, key: private, issuer: issuer, audience: audience, ttl: ttl}
}

func (s *Signer) Sign(v domain.Viewer, now time.Time) (string, error) {
	claims := &ViewerClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   string(v.ID),
			Issuer:    s.issuer,
			Audience:  s.audience,
			IssuedAt:  now.Unix(),
			NotBefore: now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
		Name:   v.Name,
		Avatar: v.Avatar,
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(s.key)
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(b)
}

func LoadRSAPrivateKeyFromPEM(path string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPrivateKeyFromPEM(b)
}
