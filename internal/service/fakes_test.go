package service

import (
	"context"
	"sync"
	"time"

	"bgm-radar/internal/domain"
	"bgm-radar/pkg/errors"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// fakeYouTube is an in-memory YouTubeClient.
type fakeYouTube struct {
	mu         sync.Mutex
	searches   map[string][]domain.SearchResult
	searchErr  map[string]error
	channels   map[string]*domain.ChannelCandidate
	channelErr map[string]error
	oldest     map[string]*domain.VideoRef
	newest     map[string]*domain.VideoRef
	// channelDelay slows GetChannel so concurrent calls overlap.
	channelDelay time.Duration

	searchCalls  int
	channelCalls int
	scanCalls    int
	queries      []domain.SearchQuery
}

func newFakeYouTube() *fakeYouTube {
	return &fakeYouTube{
		searches:   make(map[string][]domain.SearchResult),
		searchErr:  make(map[string]error),
		channels:   make(map[string]*domain.ChannelCandidate),
		channelErr: make(map[string]error),
		oldest:     make(map[string]*domain.VideoRef),
		newest:     make(map[string]*domain.VideoRef),
	}
}

func (f *fakeYouTube) SearchVideos(_ context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	f.queries = append(f.queries, q)
	if err := f.searchErr[q.Keyword]; err != nil {
		return nil, err
	}
	return f.searches[q.Keyword], nil
}

func (f *fakeYouTube) GetChannel(_ context.Context, id string) (*domain.ChannelCandidate, error) {
	if f.channelDelay > 0 {
		time.Sleep(f.channelDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelCalls++
	if err := f.channelErr[id]; err != nil {
		return nil, err
	}
	ch, ok := f.channels[id]
	if !ok {
		return nil, errors.NewNotFoundError("channel " + id + " not found")
	}
	cp := *ch
	return &cp, nil
}

func (f *fakeYouTube) ScanPlaylist(_ context.Context, playlistID string, dir domain.PlaylistDirection, _ int) (*domain.PlaylistScan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if playlistID == "" {
		return &domain.PlaylistScan{}, nil
	}
	f.scanCalls++
	src := f.oldest
	if dir == domain.Newest {
		src = f.newest
	}
	return &domain.PlaylistScan{Video: src[playlistID], Pages: 1}, nil
}

// addChannel registers a channel and makes keyword return one video of it.
func (f *fakeYouTube) addChannel(keyword string, ch *domain.ChannelCandidate) {
	f.channels[ch.ChannelID] = ch
	f.searches[keyword] = append(f.searches[keyword], domain.SearchResult{
		VideoID:   "v-" + ch.ChannelID,
		ChannelID: ch.ChannelID,
	})
}

func bgmChannel(id string, subs int64) *domain.ChannelCandidate {
	return &domain.ChannelCandidate{
		ChannelID:         id,
		Title:             "Lofi Room " + id,
		Description:       "lofi chill beats",
		SubscriberCount:   subs,
		VideoCount:        10,
		TotalViews:        subs * 20,
		PublishedAt:       testNow.AddDate(0, 0, -20),
		UploadsPlaylistID: "UU" + id,
	}
}

type fakeLocker struct {
	err      error
	acquired int
	released int
}

func (l *fakeLocker) AcquireRunLock(_ context.Context, _ string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() { l.released++ }, nil
}
