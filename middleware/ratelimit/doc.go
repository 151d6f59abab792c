// Package ratelimit fornece adapters HTTP (net/http) para rate limit de janela fixa
// e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (Policy, Bucket, CounterStore, Decision)
//   - application: decisão allow/deny e retry-after, acquire com timeout
//   - infra: stores concretos (memória, Redis, fallback), semáforo, estatísticas
//   - ratelimit (este pacote): middlewares HTTP, extração da identidade do cliente,
//     tradução para status/headers
//
// Fluxo por rota:
//
//  1. Extrai a identidade do cliente (X-Forwarded-For, X-Real-IP, CF-Connecting-IP)
//  2. Chama application.Service.Check com a política da rota
//  3. Se bloqueado, responde 429 com Retry-After em segundos inteiros
//  4. Se permitido, chama o próximo handler
//
// Os headers de encaminhamento são confiáveis apenas atrás de um proxy reverso que
// os sobrescreva; sem isso qualquer cliente escolhe o próprio bucket.
package ratelimit
