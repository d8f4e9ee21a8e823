package sm2

import (
	"math"
	"time"
)

const (
	// DefaultEase is the ease factor assumed for a card that has never been reviewed.
	DefaultEase = 2.5
	// MinEase is the floor applied to every computed ease factor.
	MinEase = 1.3

	// MinQuality and MaxQuality bound the quality score after clamping.
	MinQuality = 0
	MaxQuality = 5
	// PassingQuality is the lowest quality counted as a successful recall.
	PassingQuality = 3

	// MaxIntervalDays caps every scheduled interval at about a century, which
	// keeps NextReviewAt representable however many successes accumulate.
	MaxIntervalDays = 36500

	// defaultMatureInterval stands in for a missing previous interval on a mature success.
	defaultMatureInterval = 6
)

// RetentionCard is the scheduling state of one (learner, topic) pair.
// Values are replaced on every review, never mutated.
type RetentionCard struct {
	EaseFactor     float64   `json:"ease_factor"`
	IntervalDays   int       `json:"interval_days"`
	Repetitions    int       `json:"repetitions"`
	LastReviewedAt time.Time `json:"last_reviewed_at"`
	NextReviewAt   time.Time `json:"next_review_at"`
}

// IsDue reports whether the card should be reviewed at now.
func (c RetentionCard) IsDue(now time.Time) bool {
	return !now.Before(c.NextReviewAt)
}

// Result is the outcome of scheduling a single review.
type Result struct {
	Card          RetentionCard `json:"card"`
	WasSuccessful bool          `json:"was_successful"`
}

// Update schedules the next review of a card.
// previous is nil for a topic the learner has never reviewed.
// quality is rounded to the nearest integer and clamped to [0, 5].
func Update(previous *RetentionCard, quality float64, now time.Time) Result {
	q := NormalizeQuality(quality)
	successful := q >= PassingQuality

	prevEase := DefaultEase
	if previous != nil && !math.IsNaN(previous.EaseFactor) && !math.IsInf(previous.EaseFactor, 0) {
		prevEase = previous.EaseFactor
	}
	ease := nextEase(prevEase, q)

	var reps, interval int
	switch classify(previous, successful) {
	case failure:
		reps, interval = 0, 1
	case firstSuccess:
		reps, interval = 1, 1
	case secondSuccess:
		reps, interval = 2, 6
	case matureSuccess:
		prevReps, prevInterval := 2, defaultMatureInterval
		if previous != nil {
			prevReps, prevInterval = previous.Repetitions, previous.IntervalDays
		}
		reps = prevReps + 1
		interval = matureInterval(prevInterval, ease)
	}

	return Result{
		Card: RetentionCard{
			EaseFactor:     ease,
			IntervalDays:   interval,
			Repetitions:    reps,
			LastReviewedAt: now,
			NextReviewAt:   now.AddDate(0, 0, interval),
		},
		WasSuccessful: successful,
	}
}

// NormalizeQuality rounds q to the nearest integer and clamps it to
// [MinQuality, MaxQuality]. NaN maps to MinQuality.
func NormalizeQuality(q float64) int {
	if math.IsNaN(q) {
		return MinQuality
	}
	r := math.Round(q)
	if r < MinQuality {
		return MinQuality
	}
	if r > MaxQuality {
		return MaxQuality
	}
	return int(r)
}

// matureInterval grows the previous interval by ease. The product is
// saturated before conversion so it cannot wrap.
func matureInterval(prev int, ease float64) int {
	days := math.Round(float64(prev) * ease)
	return int(min(max(days, 1), MaxIntervalDays))
}

// nextEase applies the SM-2 ease update, the 1.3 floor and two-decimal rounding.
func nextEase(prev float64, quality int) float64 {
	d := float64(MaxQuality - quality)
	ease := prev + (0.1 - d*(0.08+d*0.02))
	if ease < MinEase {
		ease = MinEase
	}
	return math.Round(ease*100) / 100
}
