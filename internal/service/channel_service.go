package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"bgm-radar/internal/domain"
	"bgm-radar/internal/repository"
	"bgm-radar/pkg/errors"
	"bgm-radar/pkg/logger"
)

// MaxListLimit caps a single listing.
const MaxListLimit = 500

// BulkResult reports a bulk status change.
type BulkResult struct {
	Updated  int      `json:"updated"`
	NotFound []string `json:"not_found,omitempty"`
}

// ChannelService reads and curates the stored channel catalogue.
type ChannelService struct {
	channels repository.ChannelRepository
	cache    *CacheService
	now      Clock
	logger   *logger.Logger
}

// NewChannelService creates a new channel service. cache may be nil.
func NewChannelService(channels repository.ChannelRepository, cache *CacheService, clock Clock, log *logger.Logger) *ChannelService {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ChannelService{
		channels: channels,
		cache:    cache,
		now:      clock,
		logger:   log.Component("channels"),
	}
}

// List returns channels matching filter, capped at MaxListLimit.
func (s *ChannelService) List(ctx context.Context, filter repository.ListFilter) ([]*domain.ChannelRecord, error) {
	switch filter.OrderBy {
	case "", repository.OrderByGrowthRate, repository.OrderBySubscribers, repository.OrderByCreatedAt:
	default:
		return nil, errors.NewValidationError("Invalid order", map[string]interface{}{
			"order_by": filter.OrderBy,
			"allowed":  []string{repository.OrderByGrowthRate, repository.OrderBySubscribers, repository.OrderByCreatedAt},
		})
	}
	if filter.MaxSubscribers > 0 && filter.MaxSubscribers < filter.MinSubscribers {
		return nil, errors.NewValidationError("max_subscribers must not be below min_subscribers", nil)
	}
	if filter.Limit <= 0 || filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}

	recs, err := s.channels.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return recs, nil
}

// Get returns one channel or a not-found error.
func (s *ChannelService) Get(ctx context.Context, channelID string) (*domain.ChannelRecord, error) {
	rec, err := s.channels.Get(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	if rec == nil {
		return nil, errors.NewNotFoundError(fmt.Sprintf("channel %s not found", channelID))
	}
	return rec, nil
}

// UpdateStatus applies one triage decision and returns the updated channel.
func (s *ChannelService) UpdateStatus(ctx context.Context, change domain.StatusChange) (*domain.ChannelRecord, error) {
	change.Reason = strings.TrimSpace(change.Reason)

	found, err := s.channels.UpdateStatus(ctx, change, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	if !found {
		return nil, errors.NewNotFoundError(fmt.Sprintf("channel %s not found", change.ChannelID))
	}
	s.invalidate(ctx)

	s.logger.Info("Channel status updated",
		zap.String("channel_id", change.ChannelID),
		zap.String("status", string(change.Status)))
	return s.Get(ctx, change.ChannelID)
}

// BulkUpdateStatus applies every change and collects the ids that do not exist.
// A storage error aborts the batch; earlier changes stay applied.
func (s *ChannelService) BulkUpdateStatus(ctx context.Context, changes []domain.StatusChange) (*BulkResult, error) {
	if len(changes) == 0 {
		return nil, errors.NewValidationError("No status changes given", nil)
	}

	result := &BulkResult{}
	at := s.now()
	for _, change := range lo.UniqBy(changes, func(c domain.StatusChange) string { return c.ChannelID }) {
		change.Reason = strings.TrimSpace(change.Reason)
		found, err := s.channels.UpdateStatus(ctx, change, at)
		if err != nil {
			s.invalidate(ctx)
			return result, fmt.Errorf("failed to update status of %s: %w", change.ChannelID, err)
		}
		if !found {
			result.NotFound = append(result.NotFound, change.ChannelID)
			continue
		}
		result.Updated++
	}

	if result.Updated > 0 {
		s.invalidate(ctx)
	}
	s.logger.Info("Bulk status update",
		zap.Int("updated", result.Updated),
		zap.Int("not_found", len(result.NotFound)))
	return result, nil
}

// Stats summarises the catalogue. Cached when a cache is configured.
func (s *ChannelService) Stats(ctx context.Context) (*domain.ChannelStats, error) {
	compute := func(ctx context.Context) (*domain.ChannelStats, error) {
		recs, err := s.channels.List(ctx, repository.ListFilter{})
		if err != nil {
			return nil, fmt.Errorf("failed to list channels: %w", err)
		}
		stats := domain.ComputeStats(recs)
		return &stats, nil
	}
	if s.cache == nil {
		return compute(ctx)
	}
	return s.cache.GetStatsWithCache(ctx, compute)
}

// StatusStats counts channels per triage status.
func (s *ChannelService) StatusStats(ctx context.Context) (*domain.StatusStats, error) {
	compute := func(ctx context.Context) (*domain.StatusStats, error) {
		recs, err := s.channels.List(ctx, repository.ListFilter{})
		if err != nil {
			return nil, fmt.Errorf("failed to list channels: %w", err)
		}
		stats := &domain.StatusStats{}
		for _, rec := range recs {
			stats.Add(rec.Status)
		}
		return stats, nil
	}
	if s.cache == nil {
		return compute(ctx)
	}
	return s.cache.GetStatusStatsWithCache(ctx, compute)
}

func (s *ChannelService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateStats(ctx)
	}
}
