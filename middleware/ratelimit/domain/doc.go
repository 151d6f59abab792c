// Package domain define contratos e tipos de domínio para rate limit (janela fixa)
// e limite de concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas de storage
// (memória, Redis). Assim o serviço de decisão é testável com stores falsos.
package domain
