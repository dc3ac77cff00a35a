package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgm-radar/internal/domain"
	"bgm-radar/internal/filter"
	"bgm-radar/internal/keywords"
	"bgm-radar/internal/quota"
	"bgm-radar/internal/repository"
	"bgm-radar/pkg/errors"
	"bgm-radar/pkg/logger"
)

var testAdmission = filter.AdmissionConfig{
	MonthsThreshold: 3,
	MinSubscribers:  1000,
	MaxSubscribers:  500000,
	MinVideos:       5,
	MinGrowthRate:   1,
}

type collectionFixture struct {
	yt      *fakeYouTube
	repos   *repository.Repositories
	tracker *quota.Tracker
	locker  *fakeLocker
	svc     *CollectionService
}

func newCollectionFixture(t *testing.T, settings CollectionSettings) *collectionFixture {
	t.Helper()
	f := &collectionFixture{
		yt:      newFakeYouTube(),
		repos:   repository.NewMemoryRepositories(),
		tracker: quota.NewTracker(quota.DefaultDailyLimit, nil),
		locker:  &fakeLocker{},
	}
	source := keywords.NewSource(nil, nil)
	f.svc = NewCollectionService(CollectionDeps{
		YouTube:  f.yt,
		Channels: f.repos.Channels,
		Tracker:  f.tracker,
		Keywords: source,
		Filter:   filter.NewFilter(filter.NewClassifier(source.Vocabulary()), nil),
		Locker:   f.locker,
		Clock:    fixedClock,
		Logger:   logger.NewNop(),
	}, settings)
	return f
}

func lofiOptions() RunOptions {
	return RunOptions{
		Mode:             "collect",
		Keywords:         []string{"lofi"},
		VideosPerKeyword: 50,
		Admission:        testAdmission,
	}
}

func TestCollection_LofiScenario(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})

	a := bgmChannel("A", 5000)
	b := bgmChannel("B", 5000)
	b.Title = "Lofi Room B"
	b.Description = "gaming lofi highlights"
	f.yt.channels["A"] = a
	f.yt.channels["B"] = b
	f.yt.searches["lofi"] = []domain.SearchResult{
		{VideoID: "v1", ChannelID: "A"},
		{VideoID: "v2", ChannelID: "A"},
		{VideoID: "v3", ChannelID: "B"},
	}
	f.yt.oldest["UUA"] = &domain.VideoRef{VideoID: "first", PublishedAt: testNow.AddDate(0, 0, -18)}
	f.yt.newest["UUA"] = &domain.VideoRef{VideoID: "latest", PublishedAt: testNow.AddDate(0, 0, -1)}

	report, err := f.svc.Run(context.Background(), lofiOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Found)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Saved)
	assert.Equal(t, 1, report.Filtered)
	assert.Equal(t, 1, report.Rejections[domain.RejectNotBGM])
	assert.Equal(t, []string{"A"}, report.SavedChannels)
	assert.False(t, report.Halted)
	assert.Equal(t, 1, f.yt.searchCalls)

	rec, err := f.repos.Channels.Get(context.Background(), "A")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Greater(t, rec.GrowthRate, 0)
	assert.Equal(t, testNow.AddDate(0, 0, -18), rec.FirstVideoDate)
	require.NotNil(t, rec.LatestVideo)
	assert.Equal(t, "latest", rec.LatestVideo.VideoID)
	assert.Equal(t, domain.StatusUnset, rec.Status)

	missing, err := f.repos.Channels.Get(context.Background(), "B")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// search 100 + A details/oldest/newest 3 + B details/oldest 2
	assert.Equal(t, 105, report.QuotaUsed)
	assert.Equal(t, 1, f.locker.acquired)
	assert.Equal(t, 1, f.locker.released)
}

func TestCollection_DedupAcrossRuns(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})
	for _, id := range []string{"A", "B", "C"} {
		f.yt.addChannel("lofi", bgmChannel(id, 5000))
	}

	first, err := f.svc.Run(context.Background(), lofiOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Saved)

	callsAfterFirst := f.yt.channelCalls
	second, err := f.svc.Run(context.Background(), lofiOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, second.Saved)
	assert.Equal(t, second.Found, second.Skipped)
	assert.Equal(t, 3, second.Found)
	assert.Equal(t, callsAfterFirst, f.yt.channelCalls, "stored channels must not be refetched")
}

func TestCollection_QuotaGatingIssuesNoSearch(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})
	f.yt.addChannel("lofi", bgmChannel("A", 5000))
	f.tracker.Preload(quota.DefaultDailyLimit - 50)

	report, err := f.svc.Run(context.Background(), lofiOptions())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Zero(t, f.yt.searchCalls)
	assert.Zero(t, report.Found)
	assert.Zero(t, report.Saved)
	assert.True(t, report.Halted)
	assert.Equal(t, HaltQuotaExhausted, report.HaltReason)
}

func TestCollection_QuotaRunsOutMidRun(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})
	for i := 0; i < 5; i++ {
		f.yt.addChannel("lofi", bgmChannel(fmt.Sprintf("C%d", i), 5000))
	}
	// one search plus two channels' worth of units
	f.tracker.Preload(quota.DefaultDailyLimit - 100 - 2*quota.PerChannelCost)

	report, err := f.svc.Run(context.Background(), lofiOptions())
	require.NoError(t, err)

	assert.Equal(t, 5, report.Found)
	assert.Equal(t, 2, report.Saved)
	assert.True(t, report.Halted)
	assert.Equal(t, 2, f.yt.channelCalls)
	assert.Zero(t, f.tracker.Remaining())
}

func TestCollection_ErrorIsolation(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})
	f.yt.addChannel("lofi", bgmChannel("A", 5000))
	f.yt.addChannel("lofi", bgmChannel("BAD", 5000))
	f.yt.addChannel("chill", bgmChannel("C", 5000))
	f.yt.searches["lofi"] = append(f.yt.searches["lofi"], domain.SearchResult{ChannelID: "GONE"})
	f.yt.channelErr["BAD"] = errors.NewTransientError("channel BAD failed", fmt.Errorf("timeout"))
	f.yt.searchErr["broken"] = errors.NewTransientError("search broken failed", fmt.Errorf("502"))

	opts := lofiOptions()
	opts.Keywords = []string{"lofi", "broken", "chill"}

	report, err := f.svc.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 3, f.yt.searchCalls)
	assert.Equal(t, 4, report.Found)
	assert.Equal(t, 2, report.Saved)
	assert.Equal(t, 2, report.Errors)
	assert.Equal(t, 1, report.Skipped, "a channel that no longer resolves is skipped")
	assert.Zero(t, report.Filtered)
	assert.False(t, report.Halted)
}

func TestCollection_UpstreamQuotaHaltsSearches(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})
	f.yt.addChannel("lofi", bgmChannel("A", 5000))
	f.yt.searchErr["chill"] = errors.NewQuotaError("search chill: quota exceeded", nil)

	opts := lofiOptions()
	opts.Keywords = []string{"lofi", "chill", "jazz"}

	report, err := f.svc.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 2, f.yt.searchCalls)
	assert.True(t, report.Halted)
	assert.Equal(t, HaltUpstreamQuota, report.HaltReason)
	assert.Equal(t, 1, report.Found)
	assert.Zero(t, f.yt.channelCalls)
}

func TestCollection_MaxChannelsPerRun(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})
	for i := 0; i < 6; i++ {
		f.yt.addChannel("lofi", bgmChannel(fmt.Sprintf("C%d", i), 5000))
	}
	opts := lofiOptions()
	opts.MaxChannelsPerRun = 4

	report, err := f.svc.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Found)
	assert.Equal(t, 4, report.Saved)
	assert.Equal(t, []string{"C0", "C1", "C2", "C3"}, report.SavedChannels)
}

func TestCollection_ConcurrentChannelStage(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{ChannelConcurrency: 4})
	for i := 0; i < 20; i++ {
		f.yt.addChannel("lofi", bgmChannel(fmt.Sprintf("C%02d", i), 5000))
	}

	report, err := f.svc.Run(context.Background(), lofiOptions())
	require.NoError(t, err)
	assert.Equal(t, 20, report.Saved)
	assert.Len(t, report.SavedChannels, 20)

	ids, err := f.repos.Channels.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 20)
}

func TestCollection_ConcurrentStageStaysWithinBudget(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{ChannelConcurrency: 4})
	f.yt.channelDelay = 20 * time.Millisecond
	for i := 0; i < 8; i++ {
		f.yt.addChannel("lofi", bgmChannel(fmt.Sprintf("C%d", i), 5000))
	}
	// one search plus exactly one channel
	f.tracker.Preload(quota.DefaultDailyLimit - 100 - quota.PerChannelCost)

	report, err := f.svc.Run(context.Background(), lofiOptions())
	require.NoError(t, err)

	assert.LessOrEqual(t, f.tracker.Used(), f.tracker.Limit())
	assert.Equal(t, 1, f.yt.channelCalls)
	assert.Equal(t, 1, report.Saved)
	assert.Equal(t, HaltQuotaExhausted, report.HaltReason)
}

func TestCollection_ChannelSearchPatterns(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})
	opts := lofiOptions()
	opts.ChannelSearch = true

	_, err := f.svc.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1+len(keywords.ChannelNamePatterns), f.yt.searchCalls)
	assert.Equal(t, domain.SearchVideos, f.yt.queries[0].Type)
	assert.Equal(t, domain.SearchChannels, f.yt.queries[1].Type)
	assert.Equal(t, testNow.Add(-3*filter.Month), f.yt.queries[0].PublishedAfter)
}

func TestCollection_StrategySelection(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})

	_, err := f.svc.Run(context.Background(), RunOptions{
		Strategy:     keywords.StrategyPriority,
		KeywordCount: 3,
		Admission:    testAdmission,
	})
	require.NoError(t, err)

	expected := keywords.NewSource(nil, nil).HighPriority(3)
	require.Len(t, f.yt.queries, 3)
	for i, q := range f.yt.queries {
		assert.Equal(t, expected[i], q.Keyword)
	}
}

func TestCollection_RunLockHeld(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})
	f.locker.err = errors.NewValidationError("collect run already in progress", nil)

	report, err := f.svc.Run(context.Background(), lofiOptions())
	require.NoError(t, err)
	assert.True(t, report.Halted)
	assert.Equal(t, HaltRunInProgress, report.HaltReason)
	assert.Zero(t, f.yt.searchCalls)
}

func TestCollection_SmartModeGuards(t *testing.T) {
	t.Run("insufficient quota", func(t *testing.T) {
		f := newCollectionFixture(t, CollectionSettings{})
		f.tracker.Preload(quota.DefaultDailyLimit - 300)
		opts := lofiOptions()
		opts.AdaptToQuota = true

		report, err := f.svc.Run(context.Background(), opts)
		require.NoError(t, err)
		assert.Equal(t, HaltInsufficient, report.HaltReason)
		assert.Zero(t, f.yt.searchCalls)
	})

	t.Run("reset imminent", func(t *testing.T) {
		f := newCollectionFixture(t, CollectionSettings{})
		la, err := time.LoadLocation("America/Los_Angeles")
		require.NoError(t, err)
		f.svc.now = func() time.Time { return time.Date(2024, 6, 1, 23, 30, 0, 0, la) }
		opts := lofiOptions()
		opts.RespectReset = true

		report, err := f.svc.Run(context.Background(), opts)
		require.NoError(t, err)
		assert.Equal(t, HaltResetImminent, report.HaltReason)
		assert.Zero(t, f.yt.searchCalls)
	})

	t.Run("adapted sizes", func(t *testing.T) {
		f := newCollectionFixture(t, CollectionSettings{})
		f.tracker.Preload(quota.DefaultDailyLimit - 2500)
		opts := lofiOptions()
		opts.Keywords = nil
		opts.Strategy = keywords.StrategyRotating
		opts.AdaptToQuota = true

		_, err := f.svc.Run(context.Background(), opts)
		require.NoError(t, err)
		plan := quota.RecommendedParams(2500)
		assert.Equal(t, plan.KeywordCount, f.yt.searchCalls)
		assert.Equal(t, plan.VideosPerKeyword, f.yt.queries[0].MaxResults)
	})
}

func TestCollection_InvalidAdmission(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})
	opts := lofiOptions()
	opts.Admission.MinSubscribers = 10
	opts.Admission.MaxSubscribers = 5

	_, err := f.svc.Run(context.Background(), opts)
	require.Error(t, err)
	assert.Zero(t, f.yt.searchCalls)
}

func TestCollection_SearchGateStillProcessesFoundChannels(t *testing.T) {
	f := newCollectionFixture(t, CollectionSettings{})
	f.yt.addChannel("lofi", bgmChannel("A", 5000))
	f.yt.addChannel("chill", bgmChannel("B", 5000))
	f.tracker.Preload(quota.DefaultDailyLimit - 150)

	opts := lofiOptions()
	opts.Keywords = []string{"lofi", "chill"}

	report, err := f.svc.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, f.yt.searchCalls)
	assert.Equal(t, HaltQuotaExhausted, report.HaltReason)
	assert.Equal(t, 1, report.Saved)
	assert.Equal(t, []string{"A"}, report.SavedChannels)
}
