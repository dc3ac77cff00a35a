package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bgm-radar/internal/domain"
	"bgm-radar/pkg/database"
)

// sqliteStore implements both repositories on a local SQLite file
type sqliteStore struct {
	db     *sql.DB
	tenant string
}

// NewSQLiteRepositories wires both repositories for one tenant on a SQLite database
func NewSQLiteRepositories(db *database.SQLiteDB, tenant string) *Repositories {
	if tenant == "" {
		tenant = DefaultTenant
	}
	store := &sqliteStore{db: db.DB, tenant: tenant}
	return &Repositories{Channels: store, Snapshots: store}
}

// sqliteTimeLayout is fixed width so stored timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

func (s *sqliteStore) InsertIfAbsent(ctx context.Context, rec *domain.ChannelRecord) (bool, error) {
	latest, err := encodeVideoRef(rec.LatestVideo)
	if err != nil {
		return false, fmt.Errorf("failed to encode latest video: %w", err)
	}
	keywords, err := json.Marshal(keywordsOrEmpty(rec.Keywords))
	if err != nil {
		return false, fmt.Errorf("failed to encode keywords: %w", err)
	}
	var statusUpdated interface{}
	if rec.StatusUpdatedAt != nil {
		statusUpdated = formatTime(*rec.StatusUpdatedAt)
	}
	var latestCol interface{}
	if latest != nil {
		latestCol = string(latest)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO channels (tenant_id, `+channelColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.tenant,
		rec.ChannelID,
		rec.Title,
		rec.Description,
		rec.ThumbnailURL,
		rec.ChannelURL,
		rec.SubscriberCount,
		rec.VideoCount,
		rec.TotalViews,
		formatTime(rec.PublishedAt),
		formatTime(rec.FirstVideoDate),
		latestCol,
		rec.GrowthRate,
		rec.RelevanceScore,
		string(keywords),
		string(rec.Status),
		rec.RejectionReason,
		statusUpdated,
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert channel %s: %w", rec.ChannelID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n == 1, nil
}

func (s *sqliteStore) Get(ctx context.Context, channelID string) (*domain.ChannelRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE tenant_id = ? AND channel_id = ?`,
		s.tenant, channelID)
	rec, err := scanSQLiteChannel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get channel %s: %w", channelID, err)
	}
	return rec, nil
}

func (s *sqliteStore) ListIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT channel_id FROM channels WHERE tenant_id = ?`, s.tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list channel ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan channel id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (s *sqliteStore) List(ctx context.Context, filter ListFilter) ([]*domain.ChannelRecord, error) {
	conds := []string{"tenant_id = ?"}
	args := []interface{}{s.tenant}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.MinSubscribers > 0 {
		conds = append(conds, "subscriber_count >= ?")
		args = append(args, filter.MinSubscribers)
	}
	if filter.MaxSubscribers > 0 {
		conds = append(conds, "subscriber_count <= ?")
		args = append(args, filter.MaxSubscribers)
	}
	if filter.MinGrowthRate > 0 {
		conds = append(conds, "growth_rate >= ?")
		args = append(args, filter.MinGrowthRate)
	}

	query := `SELECT ` + channelColumns + ` FROM channels WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY ` + orderClause(filter.OrderBy)
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var records []*domain.ChannelRecord
	for rows.Next() {
		rec, err := scanSQLiteChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channels: %w", err)
	}
	return records, nil
}

func (s *sqliteStore) QueryByStatus(ctx context.Context, status domain.ChannelStatus) ([]*domain.ChannelRecord, error) {
	return s.List(ctx, ListFilter{Status: &status, OrderBy: OrderByCreatedAt})
}

func (s *sqliteStore) UpdateStatus(ctx context.Context, change domain.StatusChange, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE channels SET status = ?, rejection_reason = ?, status_updated_at = ? WHERE tenant_id = ? AND channel_id = ?`,
		string(change.Status), rejectionReasonFor(change), formatTime(at), s.tenant, change.ChannelID)
	if err != nil {
		return false, fmt.Errorf("failed to update status of %s: %w", change.ChannelID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	return n > 0, nil
}

func (s *sqliteStore) AppendSnapshot(ctx context.Context, channelID string, day time.Time, snap *domain.TrackingSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO tracking_snapshots (tenant_id, channel_id, snapshot_date, subscriber_count, video_count, total_views, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.tenant,
		channelID,
		domain.SnapshotDay(day).Format("2006-01-02"),
		snap.SubscriberCount,
		snap.VideoCount,
		snap.TotalViews,
		formatTime(snap.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append snapshot %s: %w", domain.SnapshotKey(channelID, day), err)
	}
	return nil
}

func (s *sqliteStore) Snapshots(ctx context.Context, channelID string, since time.Time) ([]domain.TrackingSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id, subscriber_count, video_count, total_views, recorded_at
		FROM tracking_snapshots
		WHERE tenant_id = ? AND channel_id = ? AND recorded_at >= ?
		ORDER BY recorded_at ASC`,
		s.tenant, channelID, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []domain.TrackingSnapshot{}
	for rows.Next() {
		var (
			snap       domain.TrackingSnapshot
			recordedAt string
		)
		if err := rows.Scan(&snap.ChannelID, &snap.SubscriberCount, &snap.VideoCount, &snap.TotalViews, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if snap.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snaps, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteChannel(row rowScanner) (*domain.ChannelRecord, error) {
	rec := &domain.ChannelRecord{}
	var (
		publishedAt, firstVideo, createdAt, status, keywords string
		latest, statusUpdated                               sql.NullString
	)
	err := row.Scan(
		&rec.ChannelID,
		&rec.Title,
		&rec.Description,
		&rec.ThumbnailURL,
		&rec.ChannelURL,
		&rec.SubscriberCount,
		&rec.VideoCount,
		&rec.TotalViews,
		&publishedAt,
		&firstVideo,
		&latest,
		&rec.GrowthRate,
		&rec.RelevanceScore,
		&keywords,
		&status,
		&rec.RejectionReason,
		&statusUpdated,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = domain.ChannelStatus(status)
	if rec.PublishedAt, err = parseTime(publishedAt); err != nil {
		return nil, fmt.Errorf("published_at: %w", err)
	}
	if rec.FirstVideoDate, err = parseTime(firstVideo); err != nil {
		return nil, fmt.Errorf("first_video_date: %w", err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if statusUpdated.Valid {
		t, err := parseTime(statusUpdated.String)
		if err != nil {
			return nil, fmt.Errorf("status_updated_at: %w", err)
		}
		rec.StatusUpdatedAt = &t
	}
	if latest.Valid {
		if rec.LatestVideo, err = decodeVideoRef([]byte(latest.String)); err != nil {
			return nil, fmt.Errorf("latest_video: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(keywords), &rec.Keywords); err != nil {
		return nil, fmt.Errorf("keywords: %w", err)
	}
	return rec, nil
}
