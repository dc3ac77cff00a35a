package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bgm-radar/internal/domain"
	"bgm-radar/internal/quota"
	"bgm-radar/internal/repository"
	"bgm-radar/pkg/errors"
	"bgm-radar/pkg/logger"
)

// DefaultHistoryDays is the window History and Trend read when days is not positive.
const DefaultHistoryDays = 30

// TrackingDeps wires a TrackingService. Cache and Clock are optional.
type TrackingDeps struct {
	YouTube   ChannelFetcher
	Channels  repository.ChannelRepository
	Snapshots repository.SnapshotRepository
	Tracker   *quota.Tracker
	Cache     *CacheService
	Clock     Clock
	Logger    *logger.Logger
}

// TrackingService samples tracked channels once a day.
type TrackingService struct {
	youtube   ChannelFetcher
	channels  repository.ChannelRepository
	snapshots repository.SnapshotRepository
	tracker   *quota.Tracker
	cache     *CacheService
	now       Clock
	delay     time.Duration
	logger    *logger.Logger
}

// NewTrackingService creates a new tracking service. delay spaces channel fetches.
func NewTrackingService(deps TrackingDeps, delay time.Duration) *TrackingService {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	return &TrackingService{
		youtube:   deps.YouTube,
		channels:  deps.Channels,
		snapshots: deps.Snapshots,
		tracker:   deps.Tracker,
		cache:     deps.Cache,
		now:       deps.Clock,
		delay:     delay,
		logger:    deps.Logger.Component("tracker"),
	}
}

// UpdateAll snapshots every channel in tracking status. Per-channel failures
// are counted; only a failure to list tracked channels is returned.
func (s *TrackingService) UpdateAll(ctx context.Context) (*domain.TrackingReport, error) {
	tracked, err := s.channels.QueryByStatus(ctx, domain.StatusTracking)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked channels: %w", err)
	}

	report := &domain.TrackingReport{Total: len(tracked)}
	limiter := newLimiter(s.delay)
	startUsed := s.tracker.Used()

	for i, rec := range tracked {
		if !s.tracker.HasCapacity(quota.Cost(quota.KindChannels)) {
			s.logger.Warn("Quota exhausted, stopping tracking", zap.Int("pending", len(tracked)-i))
			report.Failed += len(tracked) - i
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			report.Failed += len(tracked) - i
			break
		}

		if _, err := s.snapshot(ctx, rec.ChannelID); err != nil {
			s.logger.WithError(err).Warn("Failed to track channel", zap.String("channel_id", rec.ChannelID))
			report.Failed++
			if errors.IsType(err, errors.ErrorTypeQuota) {
				report.Failed += len(tracked) - i - 1
				break
			}
			continue
		}
		report.Successful++
	}

	if s.cache != nil {
		s.cache.RecordQuota(context.Background(), quota.Day(s.now()), s.tracker.Used()-startUsed)
	}

	s.logger.Info("Tracking pass finished",
		zap.Int("total", report.Total),
		zap.Int("successful", report.Successful),
		zap.Int("failed", report.Failed))
	return report, nil
}

// Enroll moves a stored channel into tracking and records its first snapshot.
func (s *TrackingService) Enroll(ctx context.Context, channelID string) (*domain.TrackingSnapshot, error) {
	found, err := s.channels.UpdateStatus(ctx, domain.StatusChange{
		ChannelID: channelID,
		Status:    domain.StatusTracking,
	}, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to enroll channel: %w", err)
	}
	if !found {
		return nil, errors.NewNotFoundError(fmt.Sprintf("channel %s not found", channelID))
	}
	if s.cache != nil {
		s.cache.InvalidateStats(ctx)
	}

	snap, err := s.snapshot(ctx, channelID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Channel enrolled", zap.String("channel_id", channelID))
	return snap, nil
}

// History returns the channel's snapshots from the last days, oldest first.
func (s *TrackingService) History(ctx context.Context, channelID string, days int) ([]domain.TrackingSnapshot, error) {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	rec, err := s.channels.Get(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	if rec == nil {
		return nil, errors.NewNotFoundError(fmt.Sprintf("channel %s not found", channelID))
	}

	since := domain.SnapshotDay(s.now()).AddDate(0, 0, -days)
	snaps, err := s.snapshots.Snapshots(ctx, channelID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}
	return snaps, nil
}

// Trend summarises subscriber, video and view growth over the last days.
func (s *TrackingService) Trend(ctx context.Context, channelID string, days int) (*domain.GrowthTrend, error) {
	snaps, err := s.History(ctx, channelID, days)
	if err != nil {
		return nil, err
	}
	trend := domain.ComputeTrend(channelID, snaps)
	return &trend, nil
}

func (s *TrackingService) snapshot(ctx context.Context, channelID string) (*domain.TrackingSnapshot, error) {
	ch, err := s.youtube.GetChannel(ctx, channelID)
	s.tracker.RecordUsage(quota.KindChannels, 1)
	if err != nil {
		return nil, err
	}

	now := s.now()
	snap := &domain.TrackingSnapshot{
		ChannelID:       channelID,
		SubscriberCount: ch.SubscriberCount,
		VideoCount:      ch.VideoCount,
		TotalViews:      ch.TotalViews,
		RecordedAt:      now,
	}
	if err := s.snapshots.AppendSnapshot(ctx, channelID, domain.SnapshotDay(now), snap); err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}
	return snap, nil
}

