// Package application orquestra os casos de uso de recompensas sobre os stores
// do pacote domain: registrar eventos de XP (Ledger), tick diário (Streaks),
// progresso de unidades/módulos (Progress) e badges (Badges).
//
// Efeitos primários (progresso, streak, evento de XP) propagam erro. Efeitos
// secundários (badges, delta, total de XP) são best-effort: a falha é logada e
// não muda o resultado do efeito primário.
package application

import (
	"io"
	"log"
)

func discardIfNil(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard, "", 0)
	}
	return l
}
