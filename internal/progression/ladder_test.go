package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLevelBoundaries(t *testing.T) {
	ladder := MustLadder(DefaultThresholds)
	cases := map[int64]int{
		0:         0,
		99:        0,
		100:       1,
		1499:      1,
		1500:      2,
		9999:      2,
		10000:     3,
		40000:     5,
		99999:     5,
		100000:    6,
		1_000_000: 6,
	}
	for xp, want := range cases {
		assert.Equal(t, want, ladder.Level(xp), "xp=%d", xp)
	}
}

func TestProgressMidLevel(t *testing.T) {
	p := MustLadder(DefaultThresholds).Progress(800)
	assert.Equal(t, 1, p.CurrentLevel)
	assert.Equal(t, 2, p.NextLevel)
	assert.Equal(t, int64(1500), p.NextThreshold)
	assert.Equal(t, int64(700), p.XPNeeded)
	assert.InDelta(t, 0.5, p.Fraction, 1e-9)
}

func TestProgressLevelZero(t *testing.T) {
	p := MustLadder(DefaultThresholds).Progress(50)
	assert.Equal(t, 0, p.CurrentLevel)
	assert.Equal(t, 1, p.NextLevel)
	assert.Equal(t, int64(50), p.XPNeeded)
	assert.InDelta(t, 0.5, p.Fraction, 1e-9)
}

func TestProgressAtMax(t *testing.T) {
	ladder := MustLadder(DefaultThresholds)
	for _, xp := range []int64{100000, 250000} {
		p := ladder.Progress(xp)
		assert.Equal(t, 6, p.CurrentLevel)
		assert.Equal(t, 6, p.NextLevel)
		assert.Equal(t, int64(0), p.XPNeeded)
		assert.Equal(t, 1.0, p.Fraction)
	}
}

func TestNewLadderValidation(t *testing.T) {
	_, err := NewLadder(nil)
	assert.Error(t, err)
	_, err = NewLadder([]int64{100, 100})
	assert.Error(t, err)
	_, err = NewLadder([]int64{0, 5})
	assert.Error(t, err)
	l, err := NewLadder([]int64{10, 20})
	require.NoError(t, err)
	assert.Equal(t, 2, l.MaxLevel())
}

func TestProgressFractionBounds(t *testing.T) {
	ladder := MustLadder(DefaultThresholds)
	rapid.Check(t, func(rt *rapid.T) {
		xp := rapid.Int64Range(0, 5_000_000).Draw(rt, "xp")
		p := ladder.Progress(xp)
		if p.Fraction < 0 || p.Fraction > 1 {
			rt.Fatalf("fraction %v out of bounds for xp %d", p.Fraction, xp)
		}
		atMax := p.CurrentLevel == ladder.MaxLevel()
		if atMax != (p.Fraction == 1) {
			rt.Fatalf("fraction %v at level %d for xp %d", p.Fraction, p.CurrentLevel, xp)
		}
		if p.XPNeeded < 0 {
			rt.Fatalf("negative xp needed")
		}
	})
}

func TestLevelMonotonic(t *testing.T) {
	ladder := MustLadder(DefaultThresholds)
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.Int64Range(0, 200_000).Draw(rt, "a")
		b := rapid.Int64Range(a, 200_000).Draw(rt, "b")
		if ladder.Level(a) > ladder.Level(b) {
			rt.Fatalf("level(%d) > level(%d)", a, b)
		}
	})
}
