package repository

import (
	"context"
	"fmt"
	"time"

	"bgm-radar/internal/domain"
	"bgm-radar/pkg/database"
)

// snapshotRepository handles tracking snapshots with PostgreSQL
type snapshotRepository struct {
	db     *database.PostgresDB
	tenant string
}

// NewSnapshotRepository creates a snapshot repository scoped to tenant
func NewSnapshotRepository(db *database.PostgresDB, tenant string) SnapshotRepository {
	if tenant == "" {
		tenant = DefaultTenant
	}
	return &snapshotRepository{db: db, tenant: tenant}
}

// NewPostgresRepositories wires both PostgreSQL repositories for one tenant
func NewPostgresRepositories(db *database.PostgresDB, tenant string) *Repositories {
	return &Repositories{
		Channels:  NewChannelRepository(db, tenant),
		Snapshots: NewSnapshotRepository(db, tenant),
	}
}

// AppendSnapshot stores one snapshot per channel and day
func (r *snapshotRepository) AppendSnapshot(ctx context.Context, channelID string, day time.Time, snap *domain.TrackingSnapshot) error {
	query := `
		INSERT INTO tracking_snapshots (tenant_id, channel_id, snapshot_date, subscriber_count, video_count, total_views, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, channel_id, snapshot_date) DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query,
		r.tenant,
		channelID,
		domain.SnapshotDay(day).Format("2006-01-02"),
		snap.SubscriberCount,
		snap.VideoCount,
		snap.TotalViews,
		snap.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append snapshot %s: %w", domain.SnapshotKey(channelID, day), err)
	}

	return nil
}

// Snapshots retrieves the channel's history since the given time
func (r *snapshotRepository) Snapshots(ctx context.Context, channelID string, since time.Time) ([]domain.TrackingSnapshot, error) {
	query := `
		SELECT channel_id, subscriber_count, video_count, total_views, recorded_at
		FROM tracking_snapshots
		WHERE tenant_id = $1 AND channel_id = $2 AND recorded_at >= $3
		ORDER BY recorded_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, r.tenant, channelID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []domain.TrackingSnapshot{}
	for rows.Next() {
		var s domain.TrackingSnapshot
		if err := rows.Scan(&s.ChannelID, &s.SubscriberCount, &s.VideoCount, &s.TotalViews, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snaps, nil
}
