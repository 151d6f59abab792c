package auth

import "context"

type contextKey string

const userIDKey contextKey = "auth_user_id"

// WithUserID anexa o usuário autenticado ao contexto.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFrom devolve o usuário autenticado, se houver.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}
