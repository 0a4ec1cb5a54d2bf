// Package budget tracks the chargeable external calls of one scan run and
// enforces hard cost and call ceilings. A single Governor instance is
// shared by every component that spends money; nothing here is persisted
// across runs.
package budget

import "sync"

// Governor owns the run's cost ledger. Admit and Settle serialize on one
// mutex so two workers can never both be admitted when only one call's
// worth of budget remains.
type Governor struct {
	mu        sync.Mutex
	calls     int
	spent     float64
	maxCalls  int
	maxCost   float64
	exhausted bool
}

// New creates a governor with the given ceilings. Ceilings of zero or
// below mean no chargeable call is ever admitted.
func New(maxCalls int, maxCost float64) *Governor {
	return &Governor{maxCalls: maxCalls, maxCost: maxCost}
}

// Admit checks and reserves budget for one chargeable call in a single
// critical section. Ties go to denial: a call that would push cost or call
// count to the ceiling is refused. Once denied for ceiling reasons, every
// later request is denied for the rest of the run.
func (g *Governor) Admit(estimatedCost float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.exhausted {
		return false
	}
	if g.calls+1 >= g.maxCalls || g.spent+estimatedCost >= g.maxCost {
		g.exhausted = true
		return false
	}
	g.calls++
	g.spent += estimatedCost
	return true
}

// Settle replaces a reserved estimate with the actual cost of the call.
// Recorded spend never exceeds the cost ceiling: an actual cost that
// crosses it is capped there and exhausts the governor for the rest of
// the run.
func (g *Governor) Settle(estimatedCost, actualCost float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.spent += actualCost - estimatedCost
	if g.spent >= g.maxCost {
		g.spent = g.maxCost
		g.exhausted = true
	}
}

// Remaining reports how much budget is left.
func (g *Governor) Remaining() (callsLeft int, costLeft float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	callsLeft = g.maxCalls - g.calls
	if callsLeft < 0 {
		callsLeft = 0
	}
	costLeft = g.maxCost - g.spent
	if costLeft < 0 {
		costLeft = 0
	}
	return callsLeft, costLeft
}

// Spent reports the calls made and cost recorded so far.
func (g *Governor) Spent() (calls int, costUSD float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls, g.spent
}

// Exhausted reports whether a ceiling has been hit. After this returns
// true the scan keeps running but every chargeable call is skipped.
func (g *Governor) Exhausted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exhausted
}
