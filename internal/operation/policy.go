// Package operation waits on long-running provider operations until
// they report done or a poll budget runs out.
package operation

import "time"

// Action is the poll loop's next move.
type Action int

const (
	// Continue means sleep one interval and poll again.
	Continue Action = iota
	// Done means the operation finished.
	Done
	// TimedOut means the budget is spent and the operation is still
	// running.
	TimedOut
)

// Policy fixes the poll cadence: one poll per Interval, giving up once
// Budget has elapsed. The zero value is unusable; use DefaultPolicy.
type Policy struct {
	Interval time.Duration
	Budget   time.Duration
}

// DefaultPolicy polls every two seconds for up to ten minutes, three
// hundred polls at most.
func DefaultPolicy() Policy {
	return Policy{
		Interval: 2 * time.Second,
		Budget:   600 * time.Second,
	}
}

// Step decides what follows a poll. Elapsed is the virtual time spent
// so far, counted in whole intervals including the poll just made. A
// finished operation wins over an exhausted budget.
func (p Policy) Step(elapsed time.Duration, done bool) Action {
	if done {
		return Done
	}
	if elapsed >= p.Budget {
		return TimedOut
	}
	return Continue
}

// MaxPolls returns how many polls the policy allows before timing out.
func (p Policy) MaxPolls() int {
	if p.Interval <= 0 {
		return 0
	}
	return int(p.Budget / p.Interval)
}
