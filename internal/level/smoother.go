// Package level provides the exponential level smoothing shared by every
// signal consumer in the visualizer.
package level

// Next advances current toward target by one smoothing step. The rate is
// chosen by direction: riseRate when the target is above the current value,
// fallRate when it is below. Rates in (0,1) converge without overshoot;
// distinct rise and fall rates produce the fast-attack slow-decay envelope.
func Next(current, target, riseRate, fallRate float64) float64 {
	rate := fallRate
	if target > current {
		rate = riseRate
	}
	return current + (target-current)*rate
}

// Clamp limits v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Follower is a stateful smoothed level with asymmetric attack and decay.
type Follower struct {
	value    float64
	riseRate float64
	fallRate float64
}

// NewFollower returns a Follower starting at zero with the given rates.
func NewFollower(riseRate, fallRate float64) *Follower {
	return &Follower{riseRate: riseRate, fallRate: fallRate}
}

// Update advances the follower toward target and returns the new value.
func (f *Follower) Update(target float64) float64 {
	f.value = Next(f.value, target, f.riseRate, f.fallRate)
	return f.value
}

// Value returns the current smoothed value.
func (f *Follower) Value() float64 {
	return f.value
}

// Reset sets the follower back to zero.
func (f *Follower) Reset() {
	f.value = 0
}
