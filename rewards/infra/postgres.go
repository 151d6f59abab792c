package infra

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"learning-rewards/clock"
	"learning-rewards/rewards/domain"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// uniqueViolation é o SQLSTATE de violação de índice único.
const uniqueViolation = "23505"

// PostgresStore implementa todos os stores de recompensas sobre PostgreSQL.
// Cada operação roda com timeout próprio; estourar o timeout é falha do backend.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

type PostgresOption func(*PostgresStore)

func WithQueryTimeout(d time.Duration) PostgresOption {
	return func(s *PostgresStore) { s.timeout = d }
}

func NewPostgresStore(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, timeout: 3 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenPostgres abre o pool e valida a conexão.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate cria as tabelas e índices se ainda não existem.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SeedRules grava (ou atualiza) as regras de XP.
func (s *PostgresStore) SeedRules(ctx context.Context, rules []domain.XpRule) error {
	for _, r := range rules {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO xp_rules (event_kind, delta) VALUES ($1, $2)
			ON CONFLICT (event_kind) DO UPDATE SET delta = EXCLUDED.delta`,
			r.Kind, r.Delta)
		if err != nil {
			return fmt.Errorf("seed rule %s: %w", r.Kind, err)
		}
	}
	return nil
}

func (s *PostgresStore) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func backendErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrBackendUnavailable, op, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *PostgresStore) InsertEvent(ctx context.Context, ev domain.XpEvent) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO xp_events (id, user_id, event_kind, module_ref, unit_ref, occurrence_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID,
		ev.Event.UserID,
		ev.Event.Kind,
		nullString(ev.Event.ModuleRef),
		nullString(ev.Event.UnitRef),
		nullString(string(ev.Event.Date)),
		ev.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return backendErr("insert xp_event", err)
	}
	return nil
}

func (s *PostgresStore) TotalXP(ctx context.Context, userID string) (int, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(r.delta), 0)
		FROM xp_events e
		JOIN xp_rules r ON r.event_kind = e.event_kind
		WHERE e.user_id = $1`, userID).Scan(&total)
	if err != nil {
		return 0, backendErr("total xp", err)
	}
	return total, nil
}

func (s *PostgresStore) LookupDelta(ctx context.Context, kind string) (int, bool, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var delta int
	err := s.db.QueryRowContext(ctx, `SELECT delta FROM xp_rules WHERE event_kind = $1`, kind).Scan(&delta)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, backendErr("lookup delta", err)
	}
	return delta, true, nil
}

func (s *PostgresStore) GetStreak(ctx context.Context, userID string) (domain.StreakState, bool, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	st := domain.StreakState{UserID: userID}
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT current_streak, best_streak, last_active
		FROM user_streaks WHERE user_id = $1`, userID).Scan(&st.Current, &st.Best, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StreakState{UserID: userID}, false, nil
	}
	if err != nil {
		return domain.StreakState{}, false, backendErr("get streak", err)
	}
	if last.Valid {
		st.LastActive = clock.DayOf(last.Time)
	}
	return st, true, nil
}

func (s *PostgresStore) UpsertStreak(ctx context.Context, st domain.StreakState) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_streaks (user_id, current_streak, best_streak, last_active, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			best_streak    = EXCLUDED.best_streak,
			last_active    = EXCLUDED.last_active,
			updated_at     = EXCLUDED.updated_at`,
		st.UserID, st.Current, st.Best, nullString(string(st.LastActive)))
	if err != nil {
		return backendErr("upsert streak", err)
	}
	return nil
}

func (s *PostgresStore) InsertBadge(ctx context.Context, b domain.UserBadge) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_badges (user_id, badge_key, awarded_at) VALUES ($1, $2, $3)`,
		b.UserID, b.BadgeKey, b.AwardedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return backendErr("insert badge", err)
	}
	return nil
}

func (s *PostgresStore) ListBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT badge_key, awarded_at FROM user_badges
		WHERE user_id = $1
		ORDER BY awarded_at DESC, badge_key`, userID)
	if err != nil {
		return nil, backendErr("list badges", err)
	}
	defer rows.Close()

	var out []domain.UserBadge
	for rows.Next() {
		b := domain.UserBadge{UserID: userID}
		if err := rows.Scan(&b.BadgeKey, &b.AwardedAt); err != nil {
			return nil, backendErr("scan badge", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr("list badges", err)
	}
	return out, nil
}

func (s *PostgresStore) UpsertUnitProgress(ctx context.Context, userID, module, unit string, at time.Time) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO unit_progress (user_id, module_ref, unit_ref, completed_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, module_ref, unit_ref) DO UPDATE SET completed_at = EXCLUDED.completed_at`,
		userID, module, unit, at)
	if err != nil {
		return backendErr("upsert unit progress", err)
	}
	return nil
}

func (s *PostgresStore) UpsertModuleProgress(ctx context.Context, userID, module string, at time.Time) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO module_progress (user_id, module_ref, quiz_passed_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, module_ref) DO UPDATE SET quiz_passed_at = EXCLUDED.quiz_passed_at`,
		userID, module, at)
	if err != nil {
		return backendErr("upsert module progress", err)
	}
	return nil
}

func (s *PostgresStore) CountUnits(ctx context.Context, userID string) (int, error) {
	return s.count(ctx, "count units", `SELECT COUNT(*) FROM unit_progress WHERE user_id = $1`, userID)
}

func (s *PostgresStore) CountModules(ctx context.Context, userID string) (int, error) {
	return s.count(ctx, "count modules",
		`SELECT COUNT(*) FROM module_progress WHERE user_id = $1 AND quiz_passed_at IS NOT NULL`, userID)
}

func (s *PostgresStore) count(ctx context.Context, op, query, userID string) (int, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, backendErr(op, err)
	}
	return n, nil
}
