package filter

import (
	"math"
	"time"

	"bgm-radar/internal/domain"
)

// Month is the fixed month length used for every age computation.
const Month = 30 * 24 * time.Hour

// MaxGrowthRate caps the growth score.
const MaxGrowthRate = 999

// ScoreFunc computes a growth score from subscribers and the effective start date.
type ScoreFunc func(subscribers int64, start, now time.Time) int

// GrowthRate scores 1000 subscribers gained per month since start as 100.
// Non-positive ages score 0.
func GrowthRate(subscribers int64, start, now time.Time) int {
	ageInMonths := float64(now.Sub(start)) / float64(Month)
	if ageInMonths <= 0 {
		return 0
	}
	if subscribers < 0 {
		subscribers = 0
	}
	rate := float64(subscribers) / ageInMonths / 1000 * 100
	return int(math.Round(math.Min(MaxGrowthRate, rate)))
}

// EffectiveStart is the first upload date when known, else the channel creation date.
func EffectiveStart(ch *domain.ChannelCandidate, first *domain.VideoRef) time.Time {
	if first != nil && !first.PublishedAt.IsZero() {
		return first.PublishedAt
	}
	return ch.PublishedAt
}
