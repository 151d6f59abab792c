// Package config lê a configuração do servidor: variáveis de ambiente e, se
// CONFIG_FILE estiver definido, um arquivo YAML com a tabela de políticas de
// rate limit e as regras de XP.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	rldomain "learning-rewards/middleware/ratelimit/domain"
	"learning-rewards/rewards/domain"
)

// Nomes das rotas limitadas, usados como chave da tabela de políticas.
const (
	RouteMe             = "me"
	RouteStreakTick     = "streak_tick"
	RouteProgressUnit   = "progress_unit"
	RouteProgressModule = "progress_module"
	RouteXPAward        = "xp_award"
	RouteBadges         = "badges"
)

type Config struct {
	ListenAddr string
	ConfigFile string

	RateStore           string // memory | redis
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	RateRedisPrefix     string
	RateStoreTimeout    time.Duration
	RateMemoryShards    int
	RateMemoryMaxKeys   int
	RateCleanupEvery    time.Duration
	RateKeyHeader       string
	AddRateLimitHeaders bool

	RateStatsEnabled   bool
	RateStatsPrefix    string
	RateStatsTTL       time.Duration
	RateStatsBucket    string
	RateStatsTrackKeys bool

	Store       string // memory | postgres
	DatabaseURL string
	DBTimeout   time.Duration

	AuthJWTSecret string
	AuthIssuer    string
	AuthAudience  string

	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration
	MaxBodyBytes       int64

	Policies map[string]rldomain.Policy
	XPRules  []domain.XpRule
}

// DefaultPolicies é a tabela de limites por rota (janela de 1 minuto).
func DefaultPolicies() map[string]rldomain.Policy {
	return map[string]rldomain.Policy{
		RouteMe:             {KeyPrefix: "api:me", Limit: 60, Window: time.Minute},
		RouteStreakTick:     {KeyPrefix: "api:streak", Limit: 10, Window: time.Minute},
		RouteProgressUnit:   {KeyPrefix: "api:progress:unit", Limit: 30, Window: time.Minute},
		RouteProgressModule: {KeyPrefix: "api:progress:module", Limit: 20, Window: time.Minute},
		RouteXPAward:        {KeyPrefix: "api:xp", Limit: 20, Window: time.Minute},
		RouteBadges:         {KeyPrefix: "api:badges", Limit: 60, Window: time.Minute},
	}
}

func DefaultXPRules() []domain.XpRule {
	return []domain.XpRule{
		{Kind: domain.KindUnitCompleted, Delta: 10},
		{Kind: domain.KindModuleCompleted, Delta: 50},
		{Kind: domain.KindStreakDaily, Delta: 5},
	}
}

// Load lê o ambiente, aplica o arquivo opcional e valida.
func Load() (Config, error) {
	cfg := Config{}
	cfg.ListenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.ConfigFile = getenvDefault("CONFIG_FILE", "")

	cfg.RateStore = strings.ToLower(getenvDefault("RATE_STORE", "memory"))
	cfg.RedisAddr = getenvDefault("REDIS_ADDR", "")
	cfg.RedisPassword = getenvDefault("REDIS_PASSWORD", "")
	cfg.RedisDB = getenvIntDefault("REDIS_DB", 0)
	cfg.RateRedisPrefix = getenvDefault("RATE_REDIS_PREFIX", "ratelimit:")
	cfg.RateStoreTimeout = getenvDurationDefault("RATE_STORE_TIMEOUT", 100*time.Millisecond)
	cfg.RateMemoryShards = getenvIntDefault("RATE_MEMORY_SHARDS", 32)
	cfg.RateMemoryMaxKeys = getenvIntDefault("RATE_MEMORY_MAX_KEYS", 0)
	cfg.RateCleanupEvery = getenvDurationDefault("RATE_CLEANUP_EVERY", time.Minute)
	cfg.RateKeyHeader = getenvDefault("RATE_KEY_HEADER", "")
	cfg.AddRateLimitHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)

	cfg.RateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.RateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	cfg.RateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.RateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.RateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	cfg.Store = strings.ToLower(getenvDefault("STORE", "memory"))
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", "")
	cfg.DBTimeout = getenvDurationDefault("DB_TIMEOUT", 3*time.Second)

	cfg.AuthJWTSecret = getenvDefault("AUTH_JWT_SECRET", "")
	cfg.AuthIssuer = getenvDefault("AUTH_ISSUER", "")
	cfg.AuthAudience = getenvDefault("AUTH_AUDIENCE", "")

	cfg.ConcurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.ConcurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)
	cfg.MaxBodyBytes = getenvInt64Default("MAX_BODY_BYTES", 64<<10)

	cfg.Policies = DefaultPolicies()
	cfg.XPRules = DefaultXPRules()

	if cfg.ConfigFile != "" {
		f, err := LoadFile(cfg.ConfigFile)
		if err != nil {
			return Config{}, err
		}
		f.apply(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.RateStore {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.RedisAddr) == "" {
			return errors.New("REDIS_ADDR is required when RATE_STORE=redis")
		}
	default:
		return fmt.Errorf("RATE_STORE must be memory or redis, got %q", c.RateStore)
	}

	switch c.Store {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required when STORE=postgres")
		}
	default:
		return fmt.Errorf("STORE must be memory or postgres, got %q", c.Store)
	}

	if c.RateStatsEnabled && strings.TrimSpace(c.RedisAddr) == "" {
		return errors.New("REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	if strings.TrimSpace(c.AuthJWTSecret) == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	if c.RateStoreTimeout <= 0 {
		return errors.New("RATE_STORE_TIMEOUT must be > 0")
	}
	if c.RateMemoryShards <= 0 {
		return errors.New("RATE_MEMORY_SHARDS must be > 0")
	}
	if c.RateMemoryMaxKeys < 0 {
		return errors.New("RATE_MEMORY_MAX_KEYS must be >= 0")
	}
	if c.ConcurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}

	for name, p := range c.Policies {
		if p.Disabled() {
			continue
		}
		if strings.TrimSpace(p.KeyPrefix) == "" {
			return fmt.Errorf("policy %s: prefix is required", name)
		}
	}
	for _, r := range c.XPRules {
		if !domain.IsSafeKind(r.Kind) {
			return fmt.Errorf("xp rule: invalid event kind %q", r.Kind)
		}
	}
	return nil
}
