package domain

import "errors"

var (
	ErrInvalidUser      = errors.New("invalid user id")
	ErrInvalidEventKind = errors.New("invalid event kind")
	ErrInvalidSlug      = errors.New("invalid slug")

	// ErrDuplicate é devolvido pelos stores quando a linha viola a unicidade.
	// Não é falha: é o resultado normal de uma repetição.
	ErrDuplicate = errors.New("duplicate record")

	ErrBackendUnavailable = errors.New("backend unavailable")
)

// IsValidation indica erro de entrada (400), detectado antes de tocar o store.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidUser) ||
		errors.Is(err, ErrInvalidEventKind) ||
		errors.Is(err, ErrInvalidSlug)
}
