package service

import (
	"context"

	"go.uber.org/zap"

	"bgm-radar/internal/domain"
	"bgm-radar/internal/filter"
	"bgm-radar/internal/quota"
	"bgm-radar/pkg/errors"
)

// IntakeOptions control a manual channel intake.
type IntakeOptions struct {
	Admission filter.AdmissionConfig
	// Force stores the channel even when an admission gate fails.
	Force bool
	// DryRun evaluates the channel without storing it.
	DryRun bool
}

// AddChannel fetches one channel named by id or URL, runs it through the
// admission gates and stores it when admitted or forced.
func (s *CollectionService) AddChannel(ctx context.Context, ref string, opts IntakeOptions) (*domain.IntakeResult, error) {
	if err := opts.Admission.Validate(); err != nil {
		return nil, errors.NewValidationError("Invalid admission config", map[string]interface{}{"error": err.Error()})
	}
	channelID, err := domain.ParseChannelRef(ref)
	if err != nil {
		return nil, errors.NewValidationError("Invalid channel reference", map[string]interface{}{"channel": ref})
	}

	log := s.logger.WithFields(map[string]interface{}{
		"channel_id": channelID,
		"force":      opts.Force,
		"dry_run":    opts.DryRun,
	})
	result := &domain.IntakeResult{ChannelID: channelID}

	existing, err := s.channels.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		result.AlreadyStored = true
		result.Record = existing
		if !opts.DryRun {
			log.Info("Channel already stored, skipping")
			return result, nil
		}
	}

	if !s.tracker.Reserve(quota.PerChannelCost) {
		return nil, errors.NewQuotaError("Insufficient quota to fetch channel", nil)
	}
	defer s.tracker.Release(quota.PerChannelCost)

	now := s.now()
	ch, err := s.youtube.GetChannel(ctx, channelID)
	s.tracker.RecordUsage(quota.KindChannels, 1)
	if err != nil {
		return nil, err
	}

	first, quotaHit := s.scan(ctx, ch.UploadsPlaylistID, domain.Oldest, s.settings.MaxPlaylistPages, log)
	if quotaHit {
		return nil, errors.NewQuotaError("Quota exceeded while scanning uploads", nil)
	}

	rec, reason := s.filter.Evaluate(ch, first, opts.Admission, now)
	result.Admitted = rec != nil
	result.RejectionReason = reason
	if rec == nil {
		rec = s.filter.Record(ch, first, now)
	}

	if opts.DryRun {
		if result.Record == nil {
			result.Record = rec
		}
		log.Info("Channel validated", zap.Bool("admitted", result.Admitted), zap.String("reason", string(reason)))
		return result, nil
	}
	result.Record = rec

	if !result.Admitted && !opts.Force {
		log.Info("Channel not admitted", zap.String("reason", string(reason)))
		return result, nil
	}

	latest, quotaHit := s.scan(ctx, ch.UploadsPlaylistID, domain.Newest, 1, log)
	if quotaHit {
		return nil, errors.NewQuotaError("Quota exceeded while scanning uploads", nil)
	}
	rec.LatestVideo = latest

	inserted, err := s.channels.InsertIfAbsent(ctx, rec)
	if err != nil {
		return nil, errors.NewInternalError("Failed to save channel", err)
	}
	result.Saved = inserted
	result.AlreadyStored = !inserted
	if inserted && s.cache != nil {
		s.cache.InvalidateStats(ctx)
	}

	log.Info("Channel added",
		zap.String("title", rec.Title),
		zap.Bool("saved", inserted),
		zap.Int("growth_rate", rec.GrowthRate))
	return result, nil
}

// ValidateChannel reports how the admission gates judge a channel without storing it.
func (s *CollectionService) ValidateChannel(ctx context.Context, ref string, admission filter.AdmissionConfig) (*domain.IntakeResult, error) {
	return s.AddChannel(ctx, ref, IntakeOptions{Admission: admission, DryRun: true})
}
