package timertree

import "time"

// timing is the start/stop state machine of one node as seen by one team
// member. Its zero value is a stopped timer that never ran.
type timing struct {
	active bool
	start  time.Time
	total  time.Duration
	calls  int64

	workUnits     float64
	workUnitLabel string
}

func (t *timing) begin(now time.Time) {
	t.active = true
	t.start = now
	t.calls++
}

// end reports false, leaving t untouched, if t is not running.
func (t *timing) end(now time.Time, workUnits float64, workUnitLabel string) bool {
	if !t.active {
		return false
	}
	t.active = false
	t.total += now.Sub(t.start)
	if workUnits >= 0 {
		t.workUnits += workUnits
	}
	if workUnitLabel != "" {
		t.workUnitLabel = workUnitLabel
	}
	return true
}

// elapsed is the accumulated time plus the running interval, if any.
func (t *timing) elapsed(now time.Time) time.Duration {
	if t.active {
		return t.total + now.Sub(t.start)
	}
	return t.total
}

func (t *timing) average(now time.Time) time.Duration {
	calls := t.calls
	if calls < 1 {
		calls = 1
	}
	return t.elapsed(now) / time.Duration(calls)
}

func (t *timing) reset(resetWallTime time.Time) {
	t.total = 0
	if t.active && !resetWallTime.IsZero() {
		t.start = resetWallTime
	}
}

func (t *timing) shift(d time.Duration) {
	if t.active {
		t.start = t.start.Add(d)
	}
}
