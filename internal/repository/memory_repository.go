package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"bgm-radar/internal/domain"
)

// MemoryStore keeps channels and snapshots in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	channels  map[string]*domain.ChannelRecord
	snapshots map[string]domain.TrackingSnapshot
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		channels:  make(map[string]*domain.ChannelRecord),
		snapshots: make(map[string]domain.TrackingSnapshot),
	}
}

// NewMemoryRepositories exposes one MemoryStore through both interfaces.
func NewMemoryRepositories() *Repositories {
	store := NewMemoryStore()
	return &Repositories{Channels: store, Snapshots: store}
}

func cloneRecord(rec *domain.ChannelRecord) *domain.ChannelRecord {
	cp := *rec
	cp.Keywords = append([]string(nil), rec.Keywords...)
	if rec.LatestVideo != nil {
		v := *rec.LatestVideo
		cp.LatestVideo = &v
	}
	if rec.StatusUpdatedAt != nil {
		t := *rec.StatusUpdatedAt
		cp.StatusUpdatedAt = &t
	}
	return &cp
}

func (s *MemoryStore) InsertIfAbsent(_ context.Context, rec *domain.ChannelRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[rec.ChannelID]; ok {
		return false, nil
	}
	s.channels[rec.ChannelID] = cloneRecord(rec)
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, channelID string) (*domain.ChannelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.channels[channelID]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) ListIDs(_ context.Context) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]struct{}, len(s.channels))
	for id := range s.channels {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *MemoryStore) List(_ context.Context, filter ListFilter) ([]*domain.ChannelRecord, error) {
	s.mu.RLock()
	out := make([]*domain.ChannelRecord, 0, len(s.channels))
	for _, rec := range s.channels {
		if filter.Matches(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	s.mu.RUnlock()

	sortRecords(out, filter.OrderBy)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) QueryByStatus(ctx context.Context, status domain.ChannelStatus) ([]*domain.ChannelRecord, error) {
	return s.List(ctx, ListFilter{Status: &status, OrderBy: OrderByCreatedAt})
}

func (s *MemoryStore) UpdateStatus(_ context.Context, change domain.StatusChange, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.channels[change.ChannelID]
	if !ok {
		return false, nil
	}
	rec.Status = change.Status
	rec.RejectionReason = rejectionReasonFor(change)
	ts := at
	rec.StatusUpdatedAt = &ts
	return true, nil
}

func (s *MemoryStore) AppendSnapshot(_ context.Context, channelID string, day time.Time, snap *domain.TrackingSnapshot) error {
	key := domain.SnapshotKey(channelID, day)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[key]; ok {
		return nil
	}
	stored := *snap
	stored.ChannelID = channelID
	s.snapshots[key] = stored
	return nil
}

func (s *MemoryStore) Snapshots(_ context.Context, channelID string, since time.Time) ([]domain.TrackingSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.TrackingSnapshot{}
	for _, snap := range s.snapshots {
		if snap.ChannelID == channelID && !snap.RecordedAt.Before(since) {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

// sortRecords orders newest-first for created_at and highest-first for the numeric keys.
func sortRecords(recs []*domain.ChannelRecord, orderBy string) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		switch orderBy {
		case OrderBySubscribers:
			if a.SubscriberCount != b.SubscriberCount {
				return a.SubscriberCount > b.SubscriberCount
			}
		case OrderByCreatedAt:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		default:
			if a.GrowthRate != b.GrowthRate {
				return a.GrowthRate > b.GrowthRate
			}
		}
		return a.ChannelID < b.ChannelID
	})
}
