package domain

import (
	"regexp"
	"strings"
	"time"

	"learning-rewards/clock"
)

// Tipos de evento emitidos pelo próprio backend.
const (
	KindUnitCompleted   = "unit:completed"
	KindModuleCompleted = "module:completed"
	KindStreakDaily     = "streak:daily"
)

const maxSlugLen = 120

var (
	kindRe = regexp.MustCompile(`^[a-zA-Z0-9:._-]{3,120}$`)
	slugRe = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
)

// Event é uma ocorrência recompensável. Campos opcionais vazios significam "não definido".
type Event struct {
	UserID    string
	Kind      string
	ModuleRef string
	UnitRef   string
	Date      clock.Day
}

// XpEvent é a linha persistida no ledger.
type XpEvent struct {
	ID        string
	Event     Event
	CreatedAt time.Time
}

// IdempotencyKey identifica a ocorrência para um usuário. Atributos não
// definidos entram como vazios, então sem módulo/unidade/dia a chave é só o tipo.
func (e Event) IdempotencyKey() string {
	return e.Kind + "|" + e.ModuleRef + "|" + e.UnitRef + "|" + string(e.Date)
}

// IsSafeKind valida o tipo do evento: 3 a 120 caracteres de [a-z0-9:._-].
func IsSafeKind(kind string) bool {
	return kindRe.MatchString(strings.TrimSpace(kind))
}

// IsSlug valida um identificador de módulo/unidade.
func IsSlug(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && len(s) <= maxSlugLen && slugRe.MatchString(s)
}

// OptionalSlug devolve o slug normalizado, ou "" se ausente/inválido.
func OptionalSlug(s string) string {
	if !IsSlug(s) {
		return ""
	}
	return strings.TrimSpace(s)
}

// NormalizeEvent valida e normaliza um evento antes de qualquer acesso ao store.
// Tipo inválido é erro; atributos opcionais inválidos viram "não definido".
func NormalizeEvent(e Event) (Event, error) {
	e.UserID = strings.TrimSpace(e.UserID)
	if e.UserID == "" {
		return Event{}, ErrInvalidUser
	}
	if !IsSafeKind(e.Kind) {
		return Event{}, ErrInvalidEventKind
	}
	e.Kind = strings.TrimSpace(e.Kind)
	e.ModuleRef = OptionalSlug(e.ModuleRef)
	e.UnitRef = OptionalSlug(e.UnitRef)
	if e.Date != "" {
		d, err := clock.ParseDay(strings.TrimSpace(string(e.Date)))
		if err != nil {
			d = ""
		}
		e.Date = d
	}
	return e, nil
}

type Status int

const (
	Awarded Status = iota + 1
	AlreadyAwarded
)

func (s Status) String() string {
	switch s {
	case Awarded:
		return "awarded"
	case AlreadyAwarded:
		return "already_awarded"
	default:
		return "unknown"
	}
}

// Outcome é o resultado de registrar um evento.
//
// Delta é sempre o valor configurado na regra do tipo (0 sem regra), tanto na
// primeira concessão quanto na repetição. Se o XP foi aplicado é decidido pela
// existência do evento, não pela resposta.
type Outcome struct {
	Status Status
	Delta  int
}

func (o Outcome) Awarded() bool { return o.Status == Awarded }

// XpRule é dado de referência: quanto XP um tipo de evento vale.
type XpRule struct {
	Kind  string `yaml:"event_kind"`
	Delta int    `yaml:"delta"`
}
