// Package jsonguard barra corpos que não são JSON em métodos que alteram estado
// e limita o tamanho do corpo.
package jsonguard

import (
	"encoding/json"
	"net/http"
	"strings"
)

// DefaultMaxBytes é o teto padrão do corpo (64 KiB).
const DefaultMaxBytes int64 = 64 << 10

type Options struct {
	// MaxBytes <= 0 usa DefaultMaxBytes.
	MaxBytes int64
}

// New devolve o middleware. GET, HEAD e OPTIONS passam direto; os demais
// métodos precisam de Content-Type application/json (415 caso contrário).
func New(opts Options) func(next http.Handler) http.Handler {
	limit := opts.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			if !IsJSON(r.Header.Get("Content-Type")) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Content-Type must be application/json"})
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// IsJSON aceita application/json com parâmetros (ex: charset).
func IsJSON(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "application/json")
}
