// Package progression derives VIP levels from lifetime VIP XP.
package progression

import (
	"errors"
	"fmt"
)

// DefaultThresholds are the XP needed for levels 1..6.
var DefaultThresholds = []int64{100, 1500, 10000, 20000, 40000, 100000}

// Ladder is an ordered list of level thresholds. Level i is reached at thresholds[i-1].
type Ladder struct {
	thresholds []int64
}

func NewLadder(thresholds []int64) (*Ladder, error) {
	if len(thresholds) == 0 {
		return nil, errors.New("ladder needs at least one threshold")
	}
	prev := int64(0)
	for i, t := range thresholds {
		if t <= prev {
			return nil, fmt.Errorf("threshold %d (%d) must be greater than %d", i+1, t, prev)
		}
		prev = t
	}
	copied := make([]int64, len(thresholds))
	copy(copied, thresholds)
	return &Ladder{thresholds: copied}, nil
}

// MustLadder panics on invalid thresholds. Use for constants only.
func MustLadder(thresholds []int64) *Ladder {
	l, err := NewLadder(thresholds)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Ladder) MaxLevel() int { return len(l.thresholds) }

// Threshold returns the XP at which level starts; level 0 starts at 0.
func (l *Ladder) Threshold(level int) int64 {
	switch {
	case level <= 0:
		return 0
	case level > len(l.thresholds):
		return l.thresholds[len(l.thresholds)-1]
	default:
		return l.thresholds[level-1]
	}
}

// Level is the largest i with xp >= T[i], or 0.
func (l *Ladder) Level(xp int64) int {
	level := 0
	for i, t := range l.thresholds {
		if xp < t {
			break
		}
		level = i + 1
	}
	return level
}

// Progress describes the position of xp on the ladder.
type Progress struct {
	VipXP         int64   `json:"vipXp"`
	CurrentLevel  int     `json:"currentLevel"`
	NextLevel     int     `json:"nextLevel"`
	NextThreshold int64   `json:"nextThreshold"`
	XPNeeded      int64   `json:"xpNeeded"`
	Fraction      float64 `json:"fraction"`
}

func (l *Ladder) Progress(xp int64) Progress {
	if xp < 0 {
		xp = 0
	}
	current := l.Level(xp)
	p := Progress{VipXP: xp, CurrentLevel: current}

	if current == l.MaxLevel() {
		p.NextLevel = current
		p.NextThreshold = l.Threshold(current)
		p.Fraction = 1
		return p
	}

	p.NextLevel = current + 1
	p.NextThreshold = l.Threshold(p.NextLevel)
	p.XPNeeded = max(0, p.NextThreshold-xp)

	base := l.Threshold(current)
	span := p.NextThreshold - base
	p.Fraction = min(1, max(0, float64(xp-base)/float64(span)))
	return p
}
