package session

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Reward tiers.
const (
	HighFocus = 67 // average at or above earns the top coin rate
	MidFocus  = 34 // average at or above earns the middle coin rate
	PetFocus  = 70 // average at or above cheers up the pet

	XPPerMinute    = 5
	XPPerFocusStep = 10 // per 10 points of average focus
)

// Rewards is the outcome of an ended session.
type Rewards struct {
	AverageFocus float64 `json:"average_focus"`
	Minutes      int     `json:"minutes"`
	Coins        int     `json:"coins"`
	XP           int     `json:"xp"`
	PetHappiness int     `json:"pet_happiness"`
}

// CoinsPerMinute returns the coin rate for an average focus.
func CoinsPerMinute(avg float64) int {
	switch {
	case avg >= HighFocus:
		return 3
	case avg >= MidFocus:
		return 2
	default:
		return 1
	}
}

// Compute derives rewards from a session's duration and focus logs.
// Partial minutes are dropped. With no logs the average is 0.
func Compute(duration time.Duration, logs []FocusLog) Rewards {
	minutes := int(duration / time.Minute)
	if minutes < 0 {
		minutes = 0
	}

	avg := AverageScore(logs)
	steps := int(math.Floor(avg / 10))

	r := Rewards{
		AverageFocus: avg,
		Minutes:      minutes,
		Coins:        minutes * CoinsPerMinute(avg),
		XP:           minutes*XPPerMinute + steps*XPPerFocusStep,
	}
	if avg >= PetFocus {
		r.PetHappiness = steps
	}
	return r
}

// AverageScore is the mean logged score, 0 when there are no logs.
func AverageScore(logs []FocusLog) float64 {
	if len(logs) == 0 {
		return 0
	}
	scores := make([]float64, len(logs))
	for i, l := range logs {
		scores[i] = float64(l.Score)
	}
	return stat.Mean(scores, nil)
}
