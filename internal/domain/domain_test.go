package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannelStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    ChannelStatus
		wantErr bool
	}{
		{"tracking", StatusTracking, false},
		{" Non-Tracking ", StatusNonTracking, false},
		{"rejected", StatusRejected, false},
		{"unset", StatusUnset, false},
		{"", StatusUnset, false},
		{"archived", StatusUnset, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChannelStatus(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnapshotKeyUsesUTCDate(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	at := time.Date(2024, 3, 2, 5, 0, 0, 0, jst) // 2024-03-01 20:00 UTC

	assert.Equal(t, "UC1_2024-03-01", SnapshotKey("UC1", at))
}

func TestComputeTrend(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	snaps := []TrackingSnapshot{
		{ChannelID: "UC1", SubscriberCount: 1000, VideoCount: 10, TotalViews: 5000, RecordedAt: base},
		{ChannelID: "UC1", SubscriberCount: 1200, VideoCount: 11, TotalViews: 7000, RecordedAt: base.AddDate(0, 0, 5)},
		{ChannelID: "UC1", SubscriberCount: 2000, VideoCount: 14, TotalViews: 9000, RecordedAt: base.AddDate(0, 0, 10)},
	}

	trend := ComputeTrend("UC1", snaps)

	assert.Equal(t, 3, trend.Snapshots)
	assert.Equal(t, int64(1000), trend.SubscriberDelta)
	assert.Equal(t, int64(4), trend.VideoDelta)
	assert.Equal(t, int64(4000), trend.ViewDelta)
	assert.InDelta(t, 10.0, trend.Days, 0.001)
	assert.InDelta(t, 100.0, trend.SubscribersPerDay, 0.001)
}

func TestComputeTrendSingleSnapshot(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	trend := ComputeTrend("UC1", []TrackingSnapshot{{ChannelID: "UC1", SubscriberCount: 10, RecordedAt: at}})

	assert.Equal(t, 1, trend.Snapshots)
	assert.Zero(t, trend.SubscriberDelta)
	assert.Equal(t, at, trend.From)
}

func TestComputeStats(t *testing.T) {
	records := []*ChannelRecord{
		{ChannelID: "a", SubscriberCount: 1000, GrowthRate: 10},
		{ChannelID: "b", SubscriberCount: 3000, GrowthRate: 50},
	}

	stats := ComputeStats(records)

	assert.Equal(t, 2, stats.TotalChannels)
	assert.Equal(t, int64(2000), stats.AverageSubscribers)
	assert.Equal(t, 30, stats.AverageGrowthRate)
	require.NotNil(t, stats.TopChannel)
	assert.Equal(t, "b", stats.TopChannel.ChannelID)

	assert.Nil(t, ComputeStats(nil).TopChannel)
}

func TestCollectionReportMerge(t *testing.T) {
	a := NewCollectionReport()
	a.Saved = 1
	a.Reject(RejectNotBGM)

	b := NewCollectionReport()
	b.Saved = 2
	b.Reject(RejectNotBGM)
	b.Halt("quota")

	a.Merge(b)

	assert.Equal(t, 3, a.Saved)
	assert.Equal(t, 2, a.Filtered)
	assert.Equal(t, 2, a.Rejections[RejectNotBGM])
	assert.True(t, a.Halted)
	assert.Equal(t, "quota", a.HaltReason)
}

func TestParseChannelRef(t *testing.T) {
	const id = "UCabcdefghijklmnopqrstuv"
	tests := []struct {
		in      string
		wantErr bool
	}{
		{id, false},
		{"  " + id + " ", false},
		{"https://www.youtube.com/channel/" + id, false},
		{"youtube.com/channel/" + id + "/videos", false},
		{"https://m.youtube.com/channel/" + id + "?sub_confirmation=1", false},
		{"https://www.youtube.com/@lofigirl", true},
		{"https://example.com/channel/" + id, true},
		{"UCshort", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChannelRef(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id, got)
		})
	}
}
