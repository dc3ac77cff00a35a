package domain

import "time"

// TrackingSnapshot is a point-in-time reading of a tracked channel's counters.
type TrackingSnapshot struct {
	ChannelID       string    `json:"channel_id"`
	SubscriberCount int64     `json:"subscriber_count"`
	VideoCount      int64     `json:"video_count"`
	TotalViews      int64     `json:"total_views"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// SnapshotDay truncates t to its UTC calendar date.
func SnapshotDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SnapshotKey is the per-channel, per-day identity of a snapshot.
func SnapshotKey(channelID string, day time.Time) string {
	return channelID + "_" + SnapshotDay(day).Format("2006-01-02")
}

// GrowthTrend compares the oldest and newest snapshots inside a window.
type GrowthTrend struct {
	ChannelID         string    `json:"channel_id"`
	From              time.Time `json:"from"`
	To                time.Time `json:"to"`
	Days              float64   `json:"days"`
	Snapshots         int       `json:"snapshots"`
	SubscriberDelta   int64     `json:"subscriber_delta"`
	VideoDelta        int64     `json:"video_delta"`
	ViewDelta         int64     `json:"view_delta"`
	SubscribersPerDay float64   `json:"subscribers_per_day"`
}

// ComputeTrend expects snapshots ordered by RecordedAt. Fewer than two snapshots give a zero trend.
func ComputeTrend(channelID string, snaps []TrackingSnapshot) GrowthTrend {
	trend := GrowthTrend{ChannelID: channelID, Snapshots: len(snaps)}
	if len(snaps) < 2 {
		if len(snaps) == 1 {
			trend.From, trend.To = snaps[0].RecordedAt, snaps[0].RecordedAt
		}
		return trend
	}
	first, last := snaps[0], snaps[len(snaps)-1]
	trend.From, trend.To = first.RecordedAt, last.RecordedAt
	trend.Days = last.RecordedAt.Sub(first.RecordedAt).Hours() / 24
	trend.SubscriberDelta = last.SubscriberCount - first.SubscriberCount
	trend.VideoDelta = last.VideoCount - first.VideoCount
	trend.ViewDelta = last.TotalViews - first.TotalViews
	if trend.Days > 0 {
		trend.SubscribersPerDay = float64(trend.SubscriberDelta) / trend.Days
	}
	return trend
}
