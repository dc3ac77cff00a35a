package filter

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"bgm-radar/internal/domain"
	"bgm-radar/pkg/logger"
)

// AdmissionConfig holds the thresholds a channel must meet to be stored.
// Callers supply every field; the filter applies no defaults.
type AdmissionConfig struct {
	MonthsThreshold int   `json:"months_threshold" koanf:"months_threshold"`
	MinSubscribers  int64 `json:"min_subscribers" koanf:"min_subscribers"`
	MaxSubscribers  int64 `json:"max_subscribers" koanf:"max_subscribers"`
	MinVideos       int64 `json:"min_videos" koanf:"min_videos"`
	MinGrowthRate   int   `json:"min_growth_rate" koanf:"min_growth_rate"`
}

// Validate rejects configurations that can never admit a channel.
func (c AdmissionConfig) Validate() error {
	switch {
	case c.MonthsThreshold <= 0:
		return fmt.Errorf("months threshold must be positive, got %d", c.MonthsThreshold)
	case c.MinSubscribers < 0:
		return fmt.Errorf("min subscribers must not be negative, got %d", c.MinSubscribers)
	case c.MaxSubscribers < c.MinSubscribers:
		return fmt.Errorf("max subscribers %d is below min subscribers %d", c.MaxSubscribers, c.MinSubscribers)
	case c.MinVideos < 0:
		return fmt.Errorf("min videos must not be negative, got %d", c.MinVideos)
	case c.MinGrowthRate < 0 || c.MinGrowthRate > MaxGrowthRate:
		return fmt.Errorf("min growth rate must be within 0-%d, got %d", MaxGrowthRate, c.MinGrowthRate)
	}
	return nil
}

// Filter applies the admission gates in order and builds the stored record.
type Filter struct {
	classifier *Classifier
	score      ScoreFunc
	log        *logger.Logger
}

// NewFilter returns a Filter using GrowthRate for scoring.
func NewFilter(classifier *Classifier, log *logger.Logger) *Filter {
	return NewFilterWithScorer(classifier, GrowthRate, log)
}

// NewFilterWithScorer allows substituting the growth scorer.
func NewFilterWithScorer(classifier *Classifier, score ScoreFunc, log *logger.Logger) *Filter {
	if log == nil {
		log = logger.NewNop()
	}
	return &Filter{classifier: classifier, score: score, log: log}
}

// Admit returns the record for an admitted channel and nil otherwise.
func (f *Filter) Admit(ch *domain.ChannelCandidate, first *domain.VideoRef, cfg AdmissionConfig, now time.Time) *domain.ChannelRecord {
	rec, _ := f.Evaluate(ch, first, cfg, now)
	return rec
}

// Evaluate is Admit plus the name of the first failed gate.
func (f *Filter) Evaluate(ch *domain.ChannelCandidate, first *domain.VideoRef, cfg AdmissionConfig, now time.Time) (*domain.ChannelRecord, domain.RejectionReason) {
	if ch == nil || ch.ChannelID == "" {
		f.log.Debug("Channel rejected", zap.String("reason", string(domain.RejectMissingID)))
		return nil, domain.RejectMissingID
	}

	log := f.log.With(zap.String("channel_id", ch.ChannelID), zap.String("title", ch.Title))

	if !f.classifier.IsBgmRelevant(ch.Title, ch.Description) {
		log.Debug("Channel rejected", zap.String("reason", string(domain.RejectNotBGM)))
		return nil, domain.RejectNotBGM
	}

	if ch.SubscriberCount < cfg.MinSubscribers || ch.SubscriberCount > cfg.MaxSubscribers {
		log.Debug("Channel rejected",
			zap.String("reason", string(domain.RejectSubscribers)),
			zap.Int64("subscribers", ch.SubscriberCount))
		return nil, domain.RejectSubscribers
	}

	if ch.VideoCount < cfg.MinVideos {
		log.Debug("Channel rejected",
			zap.String("reason", string(domain.RejectTooFewVideos)),
			zap.Int64("videos", ch.VideoCount))
		return nil, domain.RejectTooFewVideos
	}

	// Recency uses the channel creation date, not the first upload.
	cutoff := now.Add(-time.Duration(cfg.MonthsThreshold) * Month)
	if ch.PublishedAt.Before(cutoff) {
		log.Debug("Channel rejected",
			zap.String("reason", string(domain.RejectTooOld)),
			zap.Time("published_at", ch.PublishedAt))
		return nil, domain.RejectTooOld
	}

	growth := f.score(ch.SubscriberCount, EffectiveStart(ch, first), now)
	if growth < cfg.MinGrowthRate {
		log.Debug("Channel rejected",
			zap.String("reason", string(domain.RejectLowGrowth)),
			zap.Int("growth_rate", growth))
		return nil, domain.RejectLowGrowth
	}

	return f.record(ch, first, growth, now), domain.RejectNone
}

// Record builds the stored form of a channel without applying any gate. It is
// used for operator intake, where a person has already vetted the channel.
func (f *Filter) Record(ch *domain.ChannelCandidate, first *domain.VideoRef, now time.Time) *domain.ChannelRecord {
	if ch == nil || ch.ChannelID == "" {
		return nil
	}
	return f.record(ch, first, f.score(ch.SubscriberCount, EffectiveStart(ch, first), now), now)
}

func (f *Filter) record(ch *domain.ChannelCandidate, first *domain.VideoRef, growth int, now time.Time) *domain.ChannelRecord {
	return &domain.ChannelRecord{
		ChannelID:       ch.ChannelID,
		Title:           ch.Title,
		Description:     ch.Description,
		ThumbnailURL:    ch.ThumbnailURL,
		ChannelURL:      ch.URL(),
		SubscriberCount: ch.SubscriberCount,
		VideoCount:      ch.VideoCount,
		TotalViews:      ch.TotalViews,
		PublishedAt:     ch.PublishedAt,
		FirstVideoDate:  EffectiveStart(ch, first),
		GrowthRate:      growth,
		RelevanceScore:  f.classifier.RelevanceScore(ch.Title, ch.Description),
		Keywords:        f.classifier.MatchingKeywords(ch.Title, ch.Description),
		Status:          domain.StatusUnset,
		CreatedAt:       now,
	}
}
