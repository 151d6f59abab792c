package ratelimit

import (
	"net/http"
	"strings"

	"learning-rewards/middleware/ratelimit/domain"
)

// KeyFunc extrai a identidade do chamador de uma requisição.
type KeyFunc func(r *http.Request) domain.Key

// ClientIP retorna a identidade do cliente pelos headers de encaminhamento, em ordem:
// primeiro IP de X-Forwarded-For, X-Real-IP, CF-Connecting-IP. Sem nenhum deles
// retorna domain.UnknownKey, e todos esses chamadores dividem o mesmo bucket.
func ClientIP(r *http.Request) domain.Key {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return domain.Key(ip)
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return domain.Key(ip)
	}
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return domain.Key(ip)
	}
	return domain.UnknownKey
}

// HeaderOrClientIP usa o valor de keyHeader (ex: X-Api-Key) quando presente,
// senão ClientIP. Com keyHeader vazio é o próprio ClientIP.
func HeaderOrClientIP(keyHeader string) KeyFunc {
	if keyHeader == "" {
		return ClientIP
	}
	return func(r *http.Request) domain.Key {
		if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
			return domain.Key(v)
		}
		return ClientIP(r)
	}
}
