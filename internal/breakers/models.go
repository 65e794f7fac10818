// Package breakers implements the circuit-breaker subsystem of spec.md
// §4.8: stateless trigger functions plus a stateful manager tracking active
// breakers with triggered/expires timestamps. Grounded on
// original_source/breakers/{models,triggers,manager}.py and generalized
// to the decimal-typed, mutex-guarded shape of
// tommy-ca-opensqt_market_maker/market_maker/internal/risk/circuit_breaker.go.
package breakers

import "time"

// ActiveBreaker records one currently-tripped breaker.
type ActiveBreaker struct {
	BreakerType string
	TriggeredAt time.Time
	ExpiresAt   time.Time
	Reason      string
	Context     map[string]float64
}
