package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"bgm-radar/internal/config"
	"bgm-radar/internal/domain"
	"bgm-radar/internal/filter"
	"bgm-radar/internal/keywords"
	"bgm-radar/internal/quota"
	"bgm-radar/internal/repository"
	"bgm-radar/pkg/errors"
	"bgm-radar/pkg/logger"
)

// Halt reasons reported on a CollectionReport.
const (
	HaltQuotaExhausted = "quota_exhausted"
	HaltUpstreamQuota  = "upstream_quota_exceeded"
	HaltResetImminent  = "quota_reset_imminent"
	HaltInsufficient   = "insufficient_quota"
	HaltRunInProgress  = "run_in_progress"
	HaltCancelled      = "cancelled"
)

// RunOptions parameterise one collection run.
type RunOptions struct {
	Mode config.Mode
	// Keywords, when set, replaces strategy based selection.
	Keywords          []string
	Strategy          keywords.Strategy
	KeywordCount      int
	VideosPerKeyword  int
	MaxChannelsPerRun int
	SearchWindow      time.Duration
	Admission         filter.AdmissionConfig
	AdaptToQuota      bool
	RespectReset      bool
	ChannelSearch     bool
}

// RunOptionsFromPreset copies a preset into run options.
func RunOptionsFromPreset(p config.Preset) RunOptions {
	return RunOptions{
		Mode:              p.Mode,
		Strategy:          p.Strategy,
		KeywordCount:      p.KeywordCount,
		VideosPerKeyword:  p.VideosPerKeyword,
		MaxChannelsPerRun: p.MaxChannelsPerRun,
		SearchWindow:      p.Window(),
		Admission:         p.Admission,
		AdaptToQuota:      p.AdaptToQuota,
		RespectReset:      p.RespectReset,
		ChannelSearch:     p.ChannelSearch,
	}
}

// CollectionSettings are the operational knobs shared by every run.
type CollectionSettings struct {
	SearchDelay        time.Duration
	ChannelDelay       time.Duration
	MaxPlaylistPages   int
	ChannelConcurrency int
}

// CollectionDeps wires a CollectionService. Cache, Locker and Clock are optional.
type CollectionDeps struct {
	YouTube  YouTubeClient
	Channels repository.ChannelRepository
	Tracker  *quota.Tracker
	Keywords *keywords.Source
	Filter   *filter.Filter
	Cache    *CacheService
	Locker   RunLocker
	Clock    Clock
	Logger   *logger.Logger
}

// CollectionService discovers, filters and stores new BGM channels.
type CollectionService struct {
	youtube  YouTubeClient
	channels repository.ChannelRepository
	tracker  *quota.Tracker
	keywords *keywords.Source
	filter   *filter.Filter
	cache    *CacheService
	locker   RunLocker
	now      Clock
	settings CollectionSettings
	logger   *logger.Logger
}

// NewCollectionService creates a new collection service
func NewCollectionService(deps CollectionDeps, settings CollectionSettings) *CollectionService {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if settings.MaxPlaylistPages <= 0 {
		settings.MaxPlaylistPages = 10
	}
	if settings.ChannelConcurrency <= 0 {
		settings.ChannelConcurrency = 1
	}
	return &CollectionService{
		youtube:  deps.YouTube,
		channels: deps.Channels,
		tracker:  deps.Tracker,
		keywords: deps.Keywords,
		filter:   deps.Filter,
		cache:    deps.Cache,
		locker:   deps.Locker,
		now:      deps.Clock,
		settings: settings,
		logger:   deps.Logger.Component("collector"),
	}
}

// run holds the mutable state of one Run call.
type run struct {
	opts      RunOptions
	now       time.Time
	report    *domain.CollectionReport
	mu        sync.Mutex
	stop      bool
	searchLim *rate.Limiter
	chanLim   *rate.Limiter
}

func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Run executes one discovery pass. Per-keyword and per-channel failures are
// counted on the report; only storage failures and bad options return an error.
func (s *CollectionService) Run(ctx context.Context, opts RunOptions) (*domain.CollectionReport, error) {
	if err := opts.Admission.Validate(); err != nil {
		return nil, err
	}

	r := &run{
		opts:      opts,
		now:       s.now(),
		report:    domain.NewCollectionReport(),
		searchLim: newLimiter(s.settings.SearchDelay),
		chanLim:   newLimiter(s.settings.ChannelDelay),
	}
	log := s.logger.WithField("mode", string(opts.Mode))

	if opts.RespectReset {
		if reset := quota.NextReset(r.now); !reset.CanRunToday {
			log.Info("Skipping run, quota reset is imminent", zap.Int("hours_until_reset", reset.HoursUntilReset))
			r.report.Halt(HaltResetImminent)
			return r.report, nil
		}
	}

	if opts.AdaptToQuota {
		params := s.tracker.RecommendedParams()
		log.Info("Sizing run from remaining quota",
			zap.String("plan", string(params.Mode)),
			zap.Int("remaining", s.tracker.Remaining()))
		if params.Mode == quota.ModeNone {
			r.report.Halt(HaltInsufficient)
			return r.report, nil
		}
		r.opts.KeywordCount = params.KeywordCount
		r.opts.VideosPerKeyword = params.VideosPerKeyword
		r.opts.MaxChannelsPerRun = params.MaxChannelsPerRun
	}

	if s.locker != nil {
		release, err := s.locker.AcquireRunLock(ctx, string(opts.Mode))
		if err != nil {
			log.Warn("Collection run already in progress", zap.Error(err))
			r.report.Halt(HaltRunInProgress)
			return r.report, nil
		}
		defer release()
	}

	startUsed := s.tracker.Used()
	defer func() {
		r.report.QuotaUsed = s.tracker.Used() - startUsed
		if s.cache != nil {
			s.cache.RecordQuota(context.Background(), quota.Day(r.now), r.report.QuotaUsed)
		}
	}()

	ids := s.searchStage(ctx, r, log)
	r.report.Found = len(ids)

	existing, err := s.channels.ListIDs(ctx)
	if err != nil {
		return r.report, fmt.Errorf("failed to list stored channels: %w", err)
	}

	fresh := lo.Filter(ids, func(id string, _ int) bool {
		_, stored := existing[id]
		return !stored
	})
	r.report.Skipped += len(ids) - len(fresh)

	if limit := r.opts.MaxChannelsPerRun; limit > 0 && len(fresh) > limit {
		fresh = fresh[:limit]
	}

	s.channelStage(ctx, r, fresh, log)

	if r.report.Saved > 0 && s.cache != nil {
		s.cache.InvalidateStats(ctx)
	}

	log.Info("Collection run finished",
		zap.Int("found", r.report.Found),
		zap.Int("processed", r.report.Processed),
		zap.Int("filtered", r.report.Filtered),
		zap.Int("saved", r.report.Saved),
		zap.Int("skipped", r.report.Skipped),
		zap.Int("errors", r.report.Errors),
		zap.Bool("halted", r.report.Halted),
		zap.String("halt_reason", r.report.HaltReason))

	return r.report, nil
}

func (s *CollectionService) selectKeywords(r *run) []string {
	if len(r.opts.Keywords) > 0 {
		return lo.Uniq(r.opts.Keywords)
	}
	count := r.opts.KeywordCount
	if count <= 0 {
		count = 10
	}
	return s.keywords.Select(r.opts.Strategy, count, r.now)
}

// searchStage returns unique channel ids in discovery order.
func (s *CollectionService) searchStage(ctx context.Context, r *run, log *logger.Logger) []string {
	window := r.opts.SearchWindow
	if window <= 0 {
		window = time.Duration(r.opts.Admission.MonthsThreshold) * filter.Month
	}

	queries := lo.Map(s.selectKeywords(r), func(kw string, _ int) domain.SearchQuery {
		return domain.SearchQuery{
			Keyword:        kw,
			Type:           domain.SearchVideos,
			MaxResults:     r.opts.VideosPerKeyword,
			PublishedAfter: r.now.Add(-window),
		}
	})
	if r.opts.ChannelSearch {
		for _, pattern := range keywords.ChannelNamePatterns {
			queries = append(queries, domain.SearchQuery{
				Keyword:    pattern,
				Type:       domain.SearchChannels,
				MaxResults: r.opts.VideosPerKeyword,
			})
		}
	}

	seen := make(map[string]struct{})
	var ids []string

	for _, q := range queries {
		if !s.tracker.HasCapacity(quota.Cost(quota.KindSearch)) {
			log.Warn("Quota exhausted, stopping searches", zap.Int("remaining", s.tracker.Remaining()))
			r.report.Halt(HaltQuotaExhausted)
			break
		}
		if err := r.searchLim.Wait(ctx); err != nil {
			r.report.Halt(HaltCancelled)
			break
		}

		results, err := s.youtube.SearchVideos(ctx, q)
		s.tracker.RecordUsage(quota.KindSearch, 1)
		r.report.Searches++
		if err != nil {
			if errors.IsType(err, errors.ErrorTypeQuota) {
				log.Warn("Upstream quota exceeded, stopping searches", zap.String("keyword", q.Keyword))
				r.report.Halt(HaltUpstreamQuota)
				break
			}
			log.WithError(err).Warn("Search failed, continuing", zap.String("keyword", q.Keyword))
			r.report.Errors++
			continue
		}

		added := 0
		for _, res := range results {
			if _, dup := seen[res.ChannelID]; dup || res.ChannelID == "" {
				continue
			}
			seen[res.ChannelID] = struct{}{}
			ids = append(ids, res.ChannelID)
			added++
		}
		log.Debug("Keyword searched",
			zap.String("keyword", q.Keyword),
			zap.String("type", string(q.Type)),
			zap.Int("results", len(results)),
			zap.Int("new_channels", added))
	}

	return ids
}

type outcome int

const (
	outcomeSaved outcome = iota
	outcomeDuplicate
	outcomeRejected
	outcomeNotFound
	outcomeFailed
	outcomeQuota
	outcomeExhausted
	outcomeCancelled
)

func (s *CollectionService) channelStage(ctx context.Context, r *run, ids []string, log *logger.Logger) {
	// Searches stopped by the local gate still leave room for channel calls.
	if r.report.HaltReason == HaltUpstreamQuota || r.report.HaltReason == HaltCancelled {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.ChannelConcurrency)

	for _, id := range ids {
		if r.stopped() {
			break
		}

		id := id
		g.Go(func() error {
			if r.stopped() {
				return nil
			}
			// The estimate stays debited while the channel is in flight and is
			// released once the real calls have been recorded.
			if !s.tracker.Reserve(quota.PerChannelCost) {
				log.Warn("Quota exhausted, stopping channel processing", zap.Int("remaining", s.tracker.Remaining()))
				r.record(id, outcomeExhausted, "")
				return nil
			}
			res, reason := s.processChannel(gctx, r, id)
			s.tracker.Release(quota.PerChannelCost)
			r.record(id, res, reason)
			return nil
		})
	}

	_ = g.Wait()
}

// processChannel fetches, scores and stores one channel.
func (s *CollectionService) processChannel(ctx context.Context, r *run, channelID string) (outcome, domain.RejectionReason) {
	log := s.logger.WithField("channel_id", channelID)

	if err := r.chanLim.Wait(ctx); err != nil {
		return outcomeCancelled, ""
	}

	ch, err := s.youtube.GetChannel(ctx, channelID)
	s.tracker.RecordUsage(quota.KindChannels, 1)
	switch {
	case errors.IsNotFound(err):
		log.Debug("Channel not found, skipping")
		return outcomeNotFound, ""
	case errors.IsType(err, errors.ErrorTypeQuota):
		return outcomeQuota, ""
	case err != nil:
		log.WithError(err).Warn("Failed to fetch channel")
		return outcomeFailed, ""
	}

	first, quotaHit := s.scan(ctx, ch.UploadsPlaylistID, domain.Oldest, s.settings.MaxPlaylistPages, log)
	if quotaHit {
		return outcomeQuota, ""
	}

	rec, reason := s.filter.Evaluate(ch, first, r.opts.Admission, r.now)
	if rec == nil {
		return outcomeRejected, reason
	}

	latest, quotaHit := s.scan(ctx, ch.UploadsPlaylistID, domain.Newest, 1, log)
	if quotaHit {
		return outcomeQuota, ""
	}
	rec.LatestVideo = latest

	inserted, err := s.channels.InsertIfAbsent(ctx, rec)
	if err != nil {
		log.WithError(err).Error("Failed to save channel")
		return outcomeFailed, ""
	}
	if !inserted {
		return outcomeDuplicate, ""
	}

	log.Info("Channel saved",
		zap.String("title", rec.Title),
		zap.Int64("subscribers", rec.SubscriberCount),
		zap.Int("growth_rate", rec.GrowthRate))
	return outcomeSaved, ""
}

// scan reads one end of an uploads playlist and reports whether the upstream
// quota ran out. Other failures degrade to a nil video so admission falls
// back to the channel creation date.
func (s *CollectionService) scan(ctx context.Context, playlistID string, dir domain.PlaylistDirection, pages int, log *logger.Logger) (*domain.VideoRef, bool) {
	scan, err := s.youtube.ScanPlaylist(ctx, playlistID, dir, pages)
	if scan != nil && scan.Pages > 0 {
		s.tracker.RecordUsage(quota.KindPlaylistItems, scan.Pages)
	}
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeQuota) {
			return nil, true
		}
		log.WithError(err).Warn("Playlist scan failed", zap.String("direction", string(dir)))
		return nil, false
	}
	if scan == nil {
		return nil, false
	}
	return scan.Video, false
}

func (r *run) stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop
}

func (r *run) record(channelID string, res outcome, reason domain.RejectionReason) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch res {
	case outcomeSaved:
		r.report.Processed++
		r.report.Saved++
		r.report.SavedChannels = append(r.report.SavedChannels, channelID)
	case outcomeDuplicate:
		r.report.Processed++
		r.report.Skipped++
	case outcomeRejected:
		r.report.Processed++
		r.report.Reject(reason)
	case outcomeNotFound:
		r.report.Skipped++
	case outcomeFailed:
		r.report.Errors++
	case outcomeQuota:
		r.stop = true
		r.report.Halt(HaltUpstreamQuota)
	case outcomeExhausted:
		r.stop = true
		r.report.Halt(HaltQuotaExhausted)
	case outcomeCancelled:
		r.stop = true
		r.report.Halt(HaltCancelled)
	}
}
