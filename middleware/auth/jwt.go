package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learning-rewards/clock"

	"github.com/golang-jwt/jwt/v5"
)

/*
Verificação de tokens do provedor de identidade:
- só HS256 (alg=none e troca de algoritmo são rejeitados)
- exp obrigatório
- iss/aud conferidos quando configurados
- sub é o id do usuário
*/

type JWTVerifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	clock    clock.Clock
}

type JWTOption func(*JWTVerifier)

func WithIssuer(iss string) JWTOption { return func(v *JWTVerifier) { v.issuer = iss } }

func WithAudience(aud string) JWTOption { return func(v *JWTVerifier) { v.audience = aud } }

func WithLeeway(d time.Duration) JWTOption { return func(v *JWTVerifier) { v.leeway = d } }

func WithJWTClock(c clock.Clock) JWTOption { return func(v *JWTVerifier) { v.clock = c } }

func NewJWTVerifier(secret []byte, opts ...JWTOption) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	v := &JWTVerifier{secret: secret, clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *JWTVerifier) Authenticate(_ context.Context, token string) (string, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return claims.Subject, nil
}
