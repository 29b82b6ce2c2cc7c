package level

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStaysBetweenCurrentAndTarget(t *testing.T) {
	cases := []struct {
		name            string
		current, target float64
	}{
		{"rising", 0.1, 0.9},
		{"falling", 0.8, 0.2},
		{"small step", 0.5, 0.51},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next := Next(tc.current, tc.target, 0.6, 0.12)
			if tc.target > tc.current {
				assert.Greater(t, next, tc.current)
				assert.Less(t, next, tc.target)
			} else {
				assert.Less(t, next, tc.current)
				assert.Greater(t, next, tc.target)
			}
		})
	}
}

func TestNextAtTargetIsStable(t *testing.T) {
	assert.Equal(t, 0.5, Next(0.5, 0.5, 0.6, 0.12))
}

func TestNextConverges(t *testing.T) {
	v := 0.0
	for range 200 {
		v = Next(v, 1.0, 0.06, 0.06)
	}
	assert.InDelta(t, 1.0, v, 0.001)

	for range 200 {
		v = Next(v, 0.0, 0.06, 0.06)
	}
	assert.InDelta(t, 0.0, v, 0.001)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.3, 0, 1))
	assert.Equal(t, 1.0, Clamp(1.7, 0, 1))
	assert.Equal(t, 0.4, Clamp(0.4, 0, 1))
}

func TestFollowerAsymmetricRates(t *testing.T) {
	f := NewFollower(0.6, 0.12)

	rise := f.Update(1.0)
	assert.InDelta(t, 0.6, rise, 1e-9)

	// Decay from the risen value is slower than the attack was.
	fall := f.Update(0.0)
	assert.InDelta(t, rise*(1-0.12), fall, 1e-9)
	assert.Greater(t, rise-0.0, rise-fall)

	f.Reset()
	assert.Equal(t, 0.0, f.Value())
}
