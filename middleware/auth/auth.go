// Package auth consome o token do provedor de identidade: extrai o bearer,
// verifica e coloca o usuário no contexto da requisição.
//
// Nenhum token é emitido aqui.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Authenticator resolve um token para o id do usuário.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (userID string, err error)
}

// AuthenticatorFunc adapta uma função para Authenticator.
type AuthenticatorFunc func(ctx context.Context, token string) (string, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

var bearerRe = regexp.MustCompile(`(?i)^Bearer\s+(.+)$`)

// BearerToken extrai o token do header Authorization. O prefixo "Bearer" não
// diferencia maiúsculas.
func BearerToken(r *http.Request) (string, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", ErrMissingToken
	}
	m := bearerRe.FindStringSubmatch(h)
	if m == nil {
		return "", ErrMissingToken
	}
	tok := strings.TrimSpace(m[1])
	if tok == "" {
		return "", ErrMissingToken
	}
	return tok, nil
}

// Middleware exige um usuário autenticado; sem ele responde 401 e a
// requisição não segue adiante.
func Middleware(a Authenticator, logger *log.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, err := BearerToken(r)
			if err != nil {
				unauthorized(w, "Missing auth")
				return
			}

			userID, err := a.Authenticate(r.Context(), tok)
			if err != nil || userID == "" {
				if !errors.Is(err, ErrInvalidToken) {
					logger.Printf("auth_failed path=%s err=%v", r.URL.Path, err)
				}
				unauthorized(w, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
