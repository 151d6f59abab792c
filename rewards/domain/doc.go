// Package domain define os tipos e contratos do sistema de recompensas:
// eventos de XP idempotentes, streak diário e badges.
//
// A idempotência não depende de locks em processo: cada store garante unicidade
// (índice único no Postgres, checagem sob mutex na memória) e devolve
// ErrDuplicate para a segunda inserção da mesma ocorrência.
package domain
