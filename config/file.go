package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	rldomain "learning-rewards/middleware/ratelimit/domain"
	"learning-rewards/rewards/domain"

	"gopkg.in/yaml.v3"
)

/*
Formato do arquivo:

	policies:
	  me:          { prefix: "api:me", limit: 60, window: 1m }
	  streak_tick: { limit: 5 }
	xp_rules:
	  - event_kind: unit:completed
	    delta: 10

Políticas citadas sobrescrevem só os campos informados; as demais ficam com o
padrão. Se xp_rules estiver presente, substitui a lista inteira.
*/

type PolicyEntry struct {
	Prefix string `yaml:"prefix"`
	Limit  *int   `yaml:"limit"`
	Window string `yaml:"window"`
}

type File struct {
	Policies map[string]PolicyEntry `yaml:"policies"`
	XPRules  []domain.XpRule         `yaml:"xp_rules"`

	windows map[string]time.Duration
}

// LoadFile lê e valida o arquivo. Nada é aplicado se houver erro.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseFile(data)
}

func ParseFile(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("invalid YAML: %w", err)
	}

	known := DefaultPolicies()
	f.windows = make(map[string]time.Duration, len(f.Policies))
	for name, e := range f.Policies {
		if _, ok := known[name]; !ok {
			return File{}, fmt.Errorf("policy %q: unknown route", name)
		}
		if e.Limit != nil && *e.Limit < 0 {
			return File{}, fmt.Errorf("policy %q: limit must be >= 0", name)
		}
		if strings.TrimSpace(e.Window) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(e.Window))
			if err != nil || d <= 0 {
				return File{}, fmt.Errorf("policy %q: invalid window %q", name, e.Window)
			}
			f.windows[name] = d
		}
	}

	seen := make(map[string]bool, len(f.XPRules))
	for i, r := range f.XPRules {
		r.Kind = strings.TrimSpace(r.Kind)
		if !domain.IsSafeKind(r.Kind) {
			return File{}, fmt.Errorf("xp_rules[%d]: invalid event_kind %q", i, r.Kind)
		}
		if seen[r.Kind] {
			return File{}, fmt.Errorf("xp_rules[%d]: duplicate event_kind %q", i, r.Kind)
		}
		seen[r.Kind] = true
		f.XPRules[i] = r
	}
	return f, nil
}

func (f File) apply(cfg *Config) {
	for name, e := range f.Policies {
		p := cfg.Policies[name]
		if e.Prefix != "" {
			p.KeyPrefix = strings.TrimSpace(e.Prefix)
		}
		if e.Limit != nil {
			p.Limit = *e.Limit
		}
		if d, ok := f.windows[name]; ok {
			p.Window = d
		}
		cfg.Policies[name] = p
	}
	if f.XPRules != nil {
		cfg.XPRules = f.XPRules
	}
}

// Policy devolve a política da rota; rota desconhecida fica desligada.
func (c Config) Policy(route string) rldomain.Policy {
	return c.Policies[route]
}
