package repository

import (
	"context"
	"time"

	"bgm-radar/internal/domain"
)

// DefaultTenant scopes single-tenant deployments.
const DefaultTenant = "default"

// Sort orders accepted by List.
const (
	OrderByGrowthRate  = "growth_rate"
	OrderBySubscribers = "subscriber_count"
	OrderByCreatedAt   = "created_at"
)

// ListFilter narrows a channel listing. Zero values mean "no constraint".
type ListFilter struct {
	Status         *domain.ChannelStatus
	MinSubscribers int64
	MaxSubscribers int64
	MinGrowthRate  int
	OrderBy        string
	Limit          int
}

// Matches reports whether rec passes every constraint of f except ordering and limit.
func (f ListFilter) Matches(rec *domain.ChannelRecord) bool {
	if f.Status != nil && rec.Status != *f.Status {
		return false
	}
	if f.MinSubscribers > 0 && rec.SubscriberCount < f.MinSubscribers {
		return false
	}
	if f.MaxSubscribers > 0 && rec.SubscriberCount > f.MaxSubscribers {
		return false
	}
	return rec.GrowthRate >= f.MinGrowthRate
}

// ChannelRepository stores admitted channels keyed by channel id
type ChannelRepository interface {
	// InsertIfAbsent stores rec unless the channel id already exists. It reports whether a row was written.
	InsertIfAbsent(ctx context.Context, rec *domain.ChannelRecord) (bool, error)

	// Get returns the channel, or nil without error when it does not exist
	Get(ctx context.Context, channelID string) (*domain.ChannelRecord, error)

	// ListIDs returns every stored channel id
	ListIDs(ctx context.Context) (map[string]struct{}, error)

	// List returns channels matching the filter
	List(ctx context.Context, filter ListFilter) ([]*domain.ChannelRecord, error)

	// QueryByStatus returns all channels with the given status
	QueryByStatus(ctx context.Context, status domain.ChannelStatus) ([]*domain.ChannelRecord, error)

	// UpdateStatus applies a triage change. It reports false when the channel does not exist.
	UpdateStatus(ctx context.Context, change domain.StatusChange, at time.Time) (bool, error)
}

// SnapshotRepository stores the tracking time series
type SnapshotRepository interface {
	// AppendSnapshot records snap for the channel and UTC day. A second call for the same day is a no-op.
	AppendSnapshot(ctx context.Context, channelID string, day time.Time, snap *domain.TrackingSnapshot) error

	// Snapshots returns the channel's snapshots recorded on or after since, oldest first
	Snapshots(ctx context.Context, channelID string, since time.Time) ([]domain.TrackingSnapshot, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Channels  ChannelRepository
	Snapshots SnapshotRepository
}

// rejectionReasonFor keeps a reason only for rejected channels.
func rejectionReasonFor(change domain.StatusChange) string {
	if change.Status == domain.StatusRejected {
		return change.Reason
	}
	return ""
}
