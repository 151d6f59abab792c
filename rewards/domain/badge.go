package domain

import "time"

// Counter nomeia um contador agregado usado por regras de badge.
type Counter string

const (
	CounterUnits   Counter = "units_completed"
	CounterModules Counter = "modules_completed"
	CounterStreak  Counter = "streak_days"
)

// Counts são os valores atuais dos contadores de um usuário. Contadores ausentes
// não são avaliados.
type Counts map[Counter]int

// BadgeRule concede Key quando Counts[Counter] >= Threshold.
type BadgeRule struct {
	Key         string  `json:"badgeKey"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	SortOrder   int     `json:"sortOrder"`
	Counter     Counter `json:"-"`
	Threshold   int     `json:"-"`
}

// DefaultBadges é o catálogo padrão, ordenado por SortOrder.
var DefaultBadges = []BadgeRule{
	{Key: "first_unit", Title: "First Steps", Description: "Complete your first unit", Icon: "footprints", SortOrder: 10, Counter: CounterUnits, Threshold: 1},
	{Key: "three_units", Title: "On a Roll", Description: "Complete three units", Icon: "rocket", SortOrder: 20, Counter: CounterUnits, Threshold: 3},
	{Key: "first_module", Title: "Module Master", Description: "Pass your first module quiz", Icon: "trophy", SortOrder: 30, Counter: CounterModules, Threshold: 1},
	{Key: "streak_7", Title: "Week Warrior", Description: "Keep a 7-day streak", Icon: "flame", SortOrder: 40, Counter: CounterStreak, Threshold: 7},
}

// UserBadge é uma concessão. Única por (UserID, BadgeKey) e nunca revogada.
type UserBadge struct {
	UserID    string    `json:"-"`
	BadgeKey  string    `json:"badgeKey"`
	AwardedAt time.Time `json:"awardedAt"`
}
