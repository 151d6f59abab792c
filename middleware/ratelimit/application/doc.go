// Package application contém os casos de uso de rate limit e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Check(ctx, key, policy) retorna uma Decision (allow/deny + retry-after).
package application
