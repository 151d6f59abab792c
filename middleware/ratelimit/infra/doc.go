// Package infra contém implementações concretas para os contratos do pacote domain.
//
//   - MemoryStore: janela fixa por chave em mapa particionado (shards), com janitor
//   - RedisStore: janela fixa compartilhada entre instâncias (INCR + PEXPIRE atômico)
//   - FallbackStore: usa o store compartilhado com timeout e cai para memória em falha
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore: estatísticas de decisões
package infra
