package quota

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUsageCosts(t *testing.T) {
	tr := NewTracker(DefaultDailyLimit, nil)

	assert.Equal(t, 100, tr.RecordUsage(KindSearch, 1))
	assert.Equal(t, 101, tr.RecordUsage(KindChannels, 1))
	assert.Equal(t, 104, tr.RecordUsage(KindPlaylistItems, 3))
	assert.Equal(t, 105, tr.RecordUsage(Kind("captions"), 1))
	assert.Equal(t, DefaultDailyLimit-105, tr.Remaining())
}

func TestHasCapacity(t *testing.T) {
	tr := NewTracker(DefaultDailyLimit, nil)
	tr.Preload(DefaultDailyLimit - 50)

	assert.False(t, tr.HasCapacity(Cost(KindSearch)))
	assert.True(t, tr.HasCapacity(PerChannelCost))
	assert.True(t, tr.HasCapacity(50))
	assert.False(t, tr.HasCapacity(51))
}

func TestRemainingNeverNegative(t *testing.T) {
	tr := NewTracker(100, nil)
	tr.RecordUsage(KindSearch, 2)

	assert.Equal(t, 0, tr.Remaining())
	assert.Equal(t, 200, tr.Used())
}

func TestTrackersAreIndependent(t *testing.T) {
	a := NewTracker(DefaultDailyLimit, nil)
	b := NewTracker(DefaultDailyLimit, nil)

	a.RecordUsage(KindSearch, 5)

	assert.Equal(t, 500, a.Used())
	assert.Zero(t, b.Used())
}

func TestConcurrentUsage(t *testing.T) {
	tr := NewTracker(DefaultDailyLimit, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordUsage(KindChannels, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, tr.Used())
}

func TestRecommendedParams(t *testing.T) {
	tests := []struct {
		remaining int
		mode      Mode
		keywords  int
		videos    int
		channels  int
	}{
		{10000, ModeFull, 15, 30, 300},
		{5000, ModeFull, 15, 30, 300},
		{4999, ModeStandard, 8, 20, 150},
		{2000, ModeStandard, 8, 20, 150},
		{1999, ModeConservative, 3, 10, 50},
		{500, ModeConservative, 3, 10, 50},
		{499, ModeNone, 0, 0, 0},
		{0, ModeNone, 0, 0, 0},
	}
	for _, tt := range tests {
		p := RecommendedParams(tt.remaining)
		assert.Equal(t, tt.mode, p.Mode, "remaining %d", tt.remaining)
		assert.Equal(t, tt.keywords, p.KeywordCount)
		assert.Equal(t, tt.videos, p.VideosPerKeyword)
		assert.Equal(t, tt.channels, p.MaxChannelsPerRun)
		assert.Equal(t, tt.keywords*100+tt.channels*3, p.EstimatedCost)
		assert.Equal(t, tt.remaining-p.EstimatedCost, p.RemainingAfter)
	}
}

func TestRecommendedParamsFitsBudget(t *testing.T) {
	for _, remaining := range []int{500, 1999, 2000, 4999, 5000, 10000} {
		p := RecommendedParams(remaining)
		assert.GreaterOrEqual(t, p.RemainingAfter, 0, "remaining %d", remaining)
	}
}

func TestNextReset(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	now := time.Date(2024, 7, 10, 21, 30, 0, 0, loc)
	info := NextReset(now)

	assert.Equal(t, time.Date(2024, 7, 11, 0, 0, 0, 0, loc), info.ResetAt)
	assert.Equal(t, 3, info.HoursUntilReset)
	assert.True(t, info.CanRunToday)

	late := NextReset(time.Date(2024, 7, 10, 23, 15, 0, 0, loc))
	assert.Equal(t, 1, late.HoursUntilReset)
	assert.False(t, late.CanRunToday)
}

func TestStatus(t *testing.T) {
	tr := NewTracker(1000, nil)
	tr.RecordUsage(KindSearch, 1)

	st := tr.Status(time.Now())

	assert.Equal(t, 100, st.Used)
	assert.Equal(t, 900, st.Remaining)
	assert.InDelta(t, 10.0, st.UsagePercent, 0.001)
}

func TestDayUsesPacificDate(t *testing.T) {
	// 03:00 UTC is still the previous evening in Los Angeles
	assert.Equal(t, "2024-07-10", Day(time.Date(2024, 7, 11, 3, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-07-11", Day(time.Date(2024, 7, 11, 12, 0, 0, 0, time.UTC)))
}

func TestReserveRelease(t *testing.T) {
	tr := NewTracker(DefaultDailyLimit, nil)
	tr.Preload(DefaultDailyLimit - 5)

	require.True(t, tr.Reserve(PerChannelCost))
	assert.Equal(t, 2, tr.Remaining())
	assert.False(t, tr.Reserve(PerChannelCost))

	tr.RecordUsage(KindChannels, 1)
	tr.Release(PerChannelCost)
	assert.Equal(t, 4, tr.Remaining())
}

func TestReserveConcurrent(t *testing.T) {
	tr := NewTracker(30, nil)
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.Reserve(PerChannelCost) {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted)
	assert.Equal(t, 30, tr.Used())
}
