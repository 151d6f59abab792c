// Package clock fornece a fonte de tempo usada pelo rate limit e pelo motor de streak.
//
// Todo "dia" neste projeto é um dia de calendário em UTC.
package clock

import (
	"sync"
	"time"
)

// DayLayout é o formato ISO de um dia de calendário (ex: 2024-01-02).
const DayLayout = "2006-01-02"

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// Day é um dia de calendário em UTC, no formato DayLayout.
type Day string

// DayOf converte um instante para o dia de calendário em UTC.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(DayLayout))
}

// Today é um atalho para DayOf(c.Now()).
func Today(c Clock) Day {
	return DayOf(c.Now())
}

// ParseDay valida e normaliza um dia no formato ISO.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", err
	}
	return DayOf(t), nil
}

func (d Day) String() string { return string(d) }

func (d Day) IsZero() bool { return d == "" }

// Prev retorna o dia anterior. Para um Day inválido retorna "".
func (d Day) Prev() Day {
	t, err := time.Parse(DayLayout, string(d))
	if err != nil {
		return ""
	}
	return DayOf(t.AddDate(0, 0, -1))
}

// Fake é um relógio manual para testes. Seguro para uso concorrente.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start.UTC()}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC()
}
