package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"bgm-radar/internal/domain"
	"bgm-radar/pkg/database"
)

// channelRepository handles channel records with PostgreSQL
type channelRepository struct {
	db     *database.PostgresDB
	tenant string
}

// NewChannelRepository creates a channel repository scoped to tenant
func NewChannelRepository(db *database.PostgresDB, tenant string) ChannelRepository {
	if tenant == "" {
		tenant = DefaultTenant
	}
	return &channelRepository{db: db, tenant: tenant}
}

const channelColumns = `channel_id, title, description, thumbnail_url, channel_url,
	subscriber_count, video_count, total_views, published_at, first_video_date,
	latest_video, growth_rate, relevance_score, keywords, status, rejection_reason,
	status_updated_at, created_at`

// InsertIfAbsent inserts the record unless the channel already exists
func (r *channelRepository) InsertIfAbsent(ctx context.Context, rec *domain.ChannelRecord) (bool, error) {
	latest, err := encodeVideoRef(rec.LatestVideo)
	if err != nil {
		return false, fmt.Errorf("failed to encode latest video: %w", err)
	}

	query := `
		INSERT INTO channels (tenant_id, ` + channelColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (tenant_id, channel_id) DO NOTHING
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		r.tenant,
		rec.ChannelID,
		rec.Title,
		rec.Description,
		rec.ThumbnailURL,
		rec.ChannelURL,
		rec.SubscriberCount,
		rec.VideoCount,
		rec.TotalViews,
		rec.PublishedAt,
		rec.FirstVideoDate,
		latest,
		rec.GrowthRate,
		rec.RelevanceScore,
		keywordsOrEmpty(rec.Keywords),
		string(rec.Status),
		rec.RejectionReason,
		rec.StatusUpdatedAt,
		rec.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert channel %s: %w", rec.ChannelID, err)
	}

	return tag.RowsAffected() == 1, nil
}

// Get retrieves a channel by id
func (r *channelRepository) Get(ctx context.Context, channelID string) (*domain.ChannelRecord, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE tenant_id = $1 AND channel_id = $2`

	rec, err := scanChannel(r.db.Pool.QueryRow(ctx, query, r.tenant, channelID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get channel %s: %w", channelID, err)
	}

	return rec, nil
}

// ListIDs returns every channel id of the tenant
func (r *channelRepository) ListIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT channel_id FROM channels WHERE tenant_id = $1`, r.tenant)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel ids: %w", err)
	}

	return ids, nil
}

// List retrieves channels matching the filter
func (r *channelRepository) List(ctx context.Context, filter ListFilter) ([]*domain.ChannelRecord, error) {
	conds := []string{"tenant_id = $1"}
	args := []interface{}{r.tenant}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}
	if filter.MinSubscribers > 0 {
		add("subscriber_count >= $%d", filter.MinSubscribers)
	}
	if filter.MaxSubscribers > 0 {
		add("subscriber_count <= $%d", filter.MaxSubscribers)
	}
	if filter.MinGrowthRate > 0 {
		add("growth_rate >= $%d", filter.MinGrowthRate)
	}

	query := `SELECT ` + channelColumns + ` FROM channels WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY ` + orderClause(filter.OrderBy)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var records []*domain.ChannelRecord
	for rows.Next() {
		rec, err := scanChannel(rows)
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

// QueryByStatus retrieves all channels with the given status
func (r *channelRepository) QueryByStatus(ctx context.Context, status domain.ChannelStatus) ([]*domain.ChannelRecord, error) {
	return r.List(ctx, ListFilter{Status: &status, OrderBy: OrderByCreatedAt})
}

// UpdateStatus applies a triage change
func (r *channelRepository) UpdateStatus(ctx context.Context, change domain.StatusChange, at time.Time) (bool, error) {
	query := `
		UPDATE channels
		SET status = $1, rejection_reason = $2, status_updated_at = $3
		WHERE tenant_id = $4 AND channel_id = $5
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		string(change.Status),
		rejectionReasonFor(change),
		at,
		r.tenant,
		change.ChannelID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update status of %s: %w", change.ChannelID, err)
	}

	return tag.RowsAffected() > 0, nil
}

func scanChannel(row pgx.Row) (*domain.ChannelRecord, error) {
	rec := &domain.ChannelRecord{}
	var (
		status string
		latest []byte
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
		&rec.PublishedAt,
		&rec.FirstVideoDate,
		&latest,
		&rec.GrowthRate,
		&rec.RelevanceScore,
		&rec.Keywords,
		&status,
		&rec.RejectionReason,
		&rec.StatusUpdatedAt,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.ChannelStatus(status)
	if rec.LatestVideo, err = decodeVideoRef(latest); err != nil {
		return nil, fmt.Errorf("failed to decode latest video: %w", err)
	}
	return rec, nil
}

func orderClause(orderBy string) string {
	switch orderBy {
	case OrderBySubscribers:
		return "subscriber_count DESC, channel_id"
	case OrderByCreatedAt:
		return "created_at DESC, channel_id"
	default:
		return "growth_rate DESC, channel_id"
	}
}

// encodeVideoRef returns nil for a missing video so the column stays NULL.
func encodeVideoRef(v *domain.VideoRef) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeVideoRef(raw []byte) (*domain.VideoRef, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	v := &domain.VideoRef{}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	return v, nil
}

func keywordsOrEmpty(kw []string) []string {
	if kw == nil {
		return []string{}
	}
	return kw
}
