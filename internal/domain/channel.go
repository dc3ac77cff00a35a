package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ChannelStatus is the triage state assigned to a stored channel.
type ChannelStatus string

const (
	StatusUnset       ChannelStatus = ""
	StatusTracking    ChannelStatus = "tracking"
	StatusNonTracking ChannelStatus = "non-tracking"
	StatusRejected    ChannelStatus = "rejected"
)

// ParseChannelStatus validates a user supplied status. "unset" and "" both map to StatusUnset.
func ParseChannelStatus(s string) (ChannelStatus, error) {
	switch ChannelStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusUnset, "unset":
		return StatusUnset, nil
	case StatusTracking:
		return StatusTracking, nil
	case StatusNonTracking:
		return StatusNonTracking, nil
	case StatusRejected:
		return StatusRejected, nil
	}
	return StatusUnset, fmt.Errorf("unknown channel status %q", s)
}

// ChannelCandidate is a channel as returned by the details endpoint, before filtering.
type ChannelCandidate struct {
	ChannelID         string    `json:"channel_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	ThumbnailURL      string    `json:"thumbnail_url,omitempty"`
	SubscriberCount   int64     `json:"subscriber_count"`
	VideoCount        int64     `json:"video_count"`
	TotalViews        int64     `json:"total_views"`
	PublishedAt       time.Time `json:"published_at"`
	UploadsPlaylistID string    `json:"uploads_playlist_id,omitempty"`
}

// URL returns the public channel page.
func (c *ChannelCandidate) URL() string {
	return ChannelURL(c.ChannelID)
}

// ChannelURL builds the public page URL for a channel id.
func ChannelURL(channelID string) string {
	return "https://www.youtube.com/channel/" + channelID
}

// VideoRef identifies a single upload.
type VideoRef struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}

// URL returns the watch page of the video.
func (v *VideoRef) URL() string {
	return "https://www.youtube.com/watch?v=" + v.VideoID
}

// SearchResult is one hit from a keyword search.
type SearchResult struct {
	VideoID     string    `json:"video_id"`
	ChannelID   string    `json:"channel_id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}

// ChannelRecord is an admitted channel as persisted by the store.
type ChannelRecord struct {
	ChannelID       string        `json:"channel_id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	ThumbnailURL    string        `json:"thumbnail_url,omitempty"`
	ChannelURL      string        `json:"channel_url"`
	SubscriberCount int64         `json:"subscriber_count"`
	VideoCount      int64         `json:"video_count"`
	TotalViews      int64         `json:"total_views"`
	PublishedAt     time.Time     `json:"published_at"`
	FirstVideoDate  time.Time     `json:"first_video_date"`
	LatestVideo     *VideoRef     `json:"latest_video,omitempty"`
	GrowthRate      int           `json:"growth_rate"`
	RelevanceScore  int           `json:"relevance_score"`
	Keywords        []string      `json:"keywords"`
	Status          ChannelStatus `json:"status"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	StatusUpdatedAt *time.Time    `json:"status_updated_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// StatusChange is a triage update for a single channel.
type StatusChange struct {
	ChannelID string        `json:"channel_id"`
	Status    ChannelStatus `json:"status"`
	Reason    string        `json:"reason,omitempty"`
}

// ChannelStats summarises the stored catalogue.
type ChannelStats struct {
	TotalChannels      int            `json:"total_channels"`
	AverageSubscribers int64          `json:"average_subscribers"`
	AverageGrowthRate  int            `json:"average_growth_rate"`
	TopChannel         *ChannelRecord `json:"top_channel,omitempty"`
}

// StatusStats counts channels per triage status.
type StatusStats struct {
	Total       int `json:"total"`
	Unset       int `json:"unset"`
	Tracking    int `json:"tracking"`
	NonTracking int `json:"non_tracking"`
	Rejected    int `json:"rejected"`
}

// Add counts one channel with the given status.
func (s *StatusStats) Add(status ChannelStatus) {
	s.Total++
	switch status {
	case StatusTracking:
		s.Tracking++
	case StatusNonTracking:
		s.NonTracking++
	case StatusRejected:
		s.Rejected++
	default:
		s.Unset++
	}
}

// ComputeStats derives catalogue statistics from a full listing.
func ComputeStats(records []*ChannelRecord) ChannelStats {
	stats := ChannelStats{TotalChannels: len(records)}
	if len(records) == 0 {
		return stats
	}
	var subs int64
	var growth int
	for _, r := range records {
		subs += r.SubscriberCount
		growth += r.GrowthRate
		if stats.TopChannel == nil || r.GrowthRate > stats.TopChannel.GrowthRate {
			stats.TopChannel = r
		}
	}
	stats.AverageSubscribers = subs / int64(len(records))
	stats.AverageGrowthRate = growth / len(records)
	return stats
}

var channelIDPattern = regexp.MustCompile(`^UC[0-9A-Za-z_-]{22}$`)

// ParseChannelRef extracts a channel id from a bare id or a /channel/ page URL.
// Handles and custom URLs need a lookup and are not accepted.
func ParseChannelRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if channelIDPattern.MatchString(ref) {
		return ref, nil
	}

	raw := ref
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err == nil && (u.Hostname() == "youtube.com" || strings.HasSuffix(u.Hostname(), ".youtube.com")) {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) >= 2 && parts[0] == "channel" && channelIDPattern.MatchString(parts[1]) {
			return parts[1], nil
		}
	}
	return "", fmt.Errorf("%q is not a channel id or /channel/ URL", ref)
}
