// Package infra implementa os stores de recompensas.
//
//   - PostgresStore: database/sql + github.com/lib/pq; unicidade garantida por
//     índices únicos, violação (23505) traduzida para domain.ErrDuplicate
//   - MemoryStore: mesma semântica num único processo, para desenvolvimento e testes
package infra
