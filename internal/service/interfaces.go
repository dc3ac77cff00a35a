package service

import (
	"context"
	"time"

	"bgm-radar/internal/domain"
	"bgm-radar/internal/filter"
	"bgm-radar/internal/repository"
)

// VideoSearcher runs keyword searches against YouTube
type VideoSearcher interface {
	// SearchVideos returns the hits of one keyword search
	SearchVideos(ctx context.Context, q domain.SearchQuery) ([]domain.SearchResult, error)
}

// ChannelFetcher resolves channel details
type ChannelFetcher interface {
	// GetChannel returns the channel's snippet and statistics, or a not-found error
	GetChannel(ctx context.Context, channelID string) (*domain.ChannelCandidate, error)
}

// PlaylistScanner walks uploads playlists
type PlaylistScanner interface {
	// ScanPlaylist resolves the oldest or newest upload of a playlist
	ScanPlaylist(ctx context.Context, playlistID string, dir domain.PlaylistDirection, maxPages int) (*domain.PlaylistScan, error)
}

// YouTubeClient is everything the pipeline needs from the Data API
type YouTubeClient interface {
	VideoSearcher
	ChannelFetcher
	PlaylistScanner
}

// RunLocker keeps two collector runs of the same tenant from overlapping
type RunLocker interface {
	// AcquireRunLock takes the lock for job and returns its release func
	AcquireRunLock(ctx context.Context, job string) (func(), error)
}

// Collector runs one discovery pass
type Collector interface {
	Run(ctx context.Context, opts RunOptions) (*domain.CollectionReport, error)
}

// ChannelIntake adds or checks a single channel named by an operator
type ChannelIntake interface {
	// AddChannel fetches, evaluates and, when admitted or forced, stores one channel
	AddChannel(ctx context.Context, ref string, opts IntakeOptions) (*domain.IntakeResult, error)

	// ValidateChannel evaluates one channel without storing it
	ValidateChannel(ctx context.Context, ref string, admission filter.AdmissionConfig) (*domain.IntakeResult, error)
}

// ChannelTracker records and reads growth snapshots
type ChannelTracker interface {
	// UpdateAll snapshots every channel in tracking status
	UpdateAll(ctx context.Context) (*domain.TrackingReport, error)

	// Enroll marks a channel as tracking and records its first snapshot
	Enroll(ctx context.Context, channelID string) (*domain.TrackingSnapshot, error)

	// History returns snapshots from the last days, oldest first
	History(ctx context.Context, channelID string, days int) ([]domain.TrackingSnapshot, error)

	// Trend summarises growth over the last days
	Trend(ctx context.Context, channelID string, days int) (*domain.GrowthTrend, error)
}

// ChannelCatalog reads and curates collected channels
type ChannelCatalog interface {
	List(ctx context.Context, lf repository.ListFilter) ([]*domain.ChannelRecord, error)
	Get(ctx context.Context, channelID string) (*domain.ChannelRecord, error)
	UpdateStatus(ctx context.Context, change domain.StatusChange) (*domain.ChannelRecord, error)
	BulkUpdateStatus(ctx context.Context, changes []domain.StatusChange) (*BulkResult, error)
	Stats(ctx context.Context) (*domain.ChannelStats, error)
	StatusStats(ctx context.Context) (*domain.StatusStats, error)
}

// Clock lets tests pin the current time
type Clock func() time.Time

// Services aggregates all service interfaces
type Services struct {
	Collector Collector
	Intake    ChannelIntake
	Tracker   ChannelTracker
	Catalog   ChannelCatalog
	Batch     *BatchService
	Cache     *CacheService
}

// TokenValidator authenticates operator bearer tokens
type TokenValidator interface {
	// ValidateJWTToken validates a JWT token and returns auth claims
	ValidateJWTToken(ctx context.Context, token string) (*domain.AuthClaims, error)
}
