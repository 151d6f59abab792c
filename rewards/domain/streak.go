package domain

import "learning-rewards/clock"

// StreakState é o streak de um usuário. Invariante: Best >= Current >= 0.
type StreakState struct {
	UserID     string
	Current    int
	Best       int
	LastActive clock.Day
}

// NextStreak aplica o tick do dia today:
//
//	LastActive == today     -> Current inalterado
//	LastActive == ontem     -> Current + 1
//	qualquer outro caso     -> Current = 1 (quebrou ou primeiro tick)
//
// Best = max(Best, Current) e LastActive = today. Dois ticks no mesmo dia
// produzem o mesmo estado.
func NextStreak(s StreakState, today clock.Day) StreakState {
	if s.Current < 0 {
		s.Current = 0
	}
	if s.Best < s.Current {
		s.Best = s.Current
	}

	switch {
	case s.LastActive == today:
	case s.LastActive != "" && s.LastActive == today.Prev():
		s.Current++
	default:
		s.Current = 1
	}

	if s.Current > s.Best {
		s.Best = s.Current
	}
	s.LastActive = today
	return s
}
