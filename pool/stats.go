package pool

import "sync/atomic"

// counters are the pool's cumulative atomics.
type counters struct {
	dials          atomic.Uint64
	dialFailures   atomic.Uint64
	hits           atomic.Uint64
	discards       atomic.Uint64
	reaped         atomic.Uint64
	healthFailures atomic.Uint64
	exhausted      atomic.Uint64
	waiting        atomic.Int64
}

// Stats is a snapshot of the pool's cumulative counters.
type Stats struct {
	// Dials counts successful connection dials.
	Dials uint64
	// DialFailures counts failed dial attempts.
	DialFailures uint64
	// Hits counts acquires served from the idle set.
	Hits uint64
	// Discards counts connections dropped by Conn.Discard.
	Discards uint64
	// Reaped counts connections closed for idling or old age.
	Reaped uint64
	// HealthFailures counts checkout pings that failed.
	HealthFailures uint64
	// Exhausted counts acquires that timed out at the bound.
	Exhausted uint64
}

// Stats returns a snapshot of the cumulative counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Dials:          p.stats.dials.Load(),
		DialFailures:   p.stats.dialFailures.Load(),
		Hits:           p.stats.hits.Load(),
		Discards:       p.stats.discards.Load(),
		Reaped:         p.stats.reaped.Load(),
		HealthFailures: p.stats.healthFailures.Load(),
		Exhausted:      p.stats.exhausted.Load(),
	}
}
