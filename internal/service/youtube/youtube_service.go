package youtube

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"bgm-radar/internal/config"
	"bgm-radar/internal/domain"
	"bgm-radar/pkg/errors"
	"bgm-radar/pkg/logger"
)

// pageSize is the Data API maximum for list calls.
const pageSize = 50

var searchOrders = []string{"relevance", "date", "viewCount"}

// Settings tune the client. Zero values fall back to sensible defaults.
type Settings struct {
	RegionCode        string
	RelevanceLanguage string
	CallTimeout       time.Duration
	// Endpoint and HTTPClient are for tests against a fake server.
	Endpoint   string
	HTTPClient *http.Client
}

// Client is a Data API v3 adapter for search, channel details and uploads scans.
type Client struct {
	svc      *youtube.Service
	settings Settings
	logger   *logger.Logger
}

// NewClient creates a Data API client authenticated by cred.
func NewClient(ctx context.Context, cred config.Credential, settings Settings, log *logger.Logger) (*Client, error) {
	if settings.CallTimeout <= 0 {
		settings.CallTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	opts := cred.ClientOptions()
	if settings.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(settings.Endpoint))
	}
	if settings.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(settings.HTTPClient))
	}

	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		log.WithError(err).Error("Failed to create YouTube service")
		return nil, errors.NewConfigurationError("Failed to initialize YouTube service", err)
	}

	return &Client{svc: svc, settings: settings, logger: log}, nil
}

// SearchVideos runs one keyword search and returns the hits.
// Channel-type queries return channel hits with an empty VideoID.
func (c *Client) SearchVideos(ctx context.Context, q domain.SearchQuery) ([]domain.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.settings.CallTimeout)
	defer cancel()

	searchType := q.Type
	if searchType == "" {
		searchType = domain.SearchVideos
	}
	order := q.Order
	if order == "" {
		order = lo.Sample(searchOrders)
	}
	maxResults := q.MaxResults
	if maxResults <= 0 || maxResults > pageSize {
		maxResults = pageSize
	}

	call := c.svc.Search.List([]string{"snippet"}).
		Q(q.Keyword).
		Type(string(searchType)).
		MaxResults(int64(maxResults)).
		Order(order).
		Context(ctx)
	if c.settings.RegionCode != "" {
		call = call.RegionCode(c.settings.RegionCode)
	}
	if c.settings.RelevanceLanguage != "" {
		call = call.RelevanceLanguage(c.settings.RelevanceLanguage)
	}
	if !q.PublishedAfter.IsZero() {
		call = call.PublishedAfter(q.PublishedAfter.UTC().Format(time.RFC3339))
	}

	resp, err := call.Do()
	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"keyword": q.Keyword,
			"type":    searchType,
		}).WithError(err).Warn("Search failed")
		return nil, classify("search "+q.Keyword, err)
	}

	results := make([]domain.SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Snippet == nil {
			continue
		}
		r := domain.SearchResult{
			ChannelID:   item.Snippet.ChannelId,
			Title:       item.Snippet.Title,
			PublishedAt: parseTime(item.Snippet.PublishedAt),
		}
		if item.Id != nil {
			r.VideoID = item.Id.VideoId
			if r.ChannelID == "" {
				r.ChannelID = item.Id.ChannelId
			}
		}
		if r.ChannelID != "" {
			results = append(results, r)
		}
	}

	c.logger.Debug("Search completed",
		zap.String("keyword", q.Keyword),
		zap.String("order", order),
		zap.Int("results", len(results)))
	return results, nil
}

// GetChannel fetches snippet, statistics and content details of one channel.
func (c *Client) GetChannel(ctx context.Context, channelID string) (*domain.ChannelCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.settings.CallTimeout)
	defer cancel()

	resp, err := c.svc.Channels.List([]string{"snippet", "statistics", "contentDetails"}).
		Id(channelID).
		Context(ctx).
		Do()
	if err != nil {
		c.logger.WithField("channel_id", channelID).WithError(err).Warn("Failed to get channel details")
		return nil, classify("channel "+channelID, err)
	}

	if len(resp.Items) == 0 {
		return nil, errors.NewNotFoundError(fmt.Sprintf("channel %s not found", channelID))
	}

	return toCandidate(resp.Items[0]), nil
}

func toCandidate(ch *youtube.Channel) *domain.ChannelCandidate {
	cand := &domain.ChannelCandidate{ChannelID: ch.Id}
	if s := ch.Snippet; s != nil {
		cand.Title = s.Title
		cand.Description = s.Description
		cand.PublishedAt = parseTime(s.PublishedAt)
		if s.Thumbnails != nil {
			switch {
			case s.Thumbnails.High != nil:
				cand.ThumbnailURL = s.Thumbnails.High.Url
			case s.Thumbnails.Default != nil:
				cand.ThumbnailURL = s.Thumbnails.Default.Url
			}
		}
	}
	if st := ch.Statistics; st != nil {
		if !st.HiddenSubscriberCount {
			cand.SubscriberCount = int64(st.SubscriberCount)
		}
		cand.VideoCount = int64(st.VideoCount)
		cand.TotalViews = int64(st.ViewCount)
	}
	if cd := ch.ContentDetails; cd != nil && cd.RelatedPlaylists != nil {
		cand.UploadsPlaylistID = cd.RelatedPlaylists.Uploads
	}
	return cand
}

// ScanPlaylist resolves the oldest or newest upload of a playlist.
// Oldest walks up to maxPages pages; newest reads only the first page.
// A missing or empty playlist yields a nil Video without error.
func (c *Client) ScanPlaylist(ctx context.Context, playlistID string, dir domain.PlaylistDirection, maxPages int) (*domain.PlaylistScan, error) {
	scan := &domain.PlaylistScan{}
	if playlistID == "" {
		return scan, nil
	}
	if dir == domain.Newest || maxPages <= 0 {
		maxPages = 1
	}

	pageToken := ""
	for scan.Pages < maxPages {
		resp, err := c.playlistPage(ctx, playlistID, pageToken)
		scan.Pages++
		if err != nil {
			if errors.IsNotFound(err) {
				return scan, nil
			}
			return scan, err
		}

		for _, item := range resp.Items {
			v := toVideoRef(item)
			if v == nil {
				continue
			}
			if scan.Video == nil ||
				(dir == domain.Newest && v.PublishedAt.After(scan.Video.PublishedAt)) ||
				(dir != domain.Newest && v.PublishedAt.Before(scan.Video.PublishedAt)) {
				scan.Video = v
			}
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return scan, nil
}

func (c *Client) playlistPage(ctx context.Context, playlistID, pageToken string) (*youtube.PlaylistItemListResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.settings.CallTimeout)
	defer cancel()

	call := c.svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(pageSize).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		c.logger.WithField("playlist_id", playlistID).WithError(err).Warn("Failed to get playlist page")
		return nil, classify("playlist "+playlistID, err)
	}
	return resp, nil
}

func toVideoRef(item *youtube.PlaylistItem) *domain.VideoRef {
	v := &domain.VideoRef{}
	if item.Snippet != nil {
		v.Title = item.Snippet.Title
		v.PublishedAt = parseTime(item.Snippet.PublishedAt)
		if item.Snippet.ResourceId != nil {
			v.VideoID = item.Snippet.ResourceId.VideoId
		}
	}
	if cd := item.ContentDetails; cd != nil {
		if v.VideoID == "" {
			v.VideoID = cd.VideoId
		}
		if t := parseTime(cd.VideoPublishedAt); !t.IsZero() {
			v.PublishedAt = t
		}
	}
	if v.VideoID == "" || v.PublishedAt.IsZero() {
		return nil
	}
	return v
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var quotaReasons = []string{"quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded"}

// classify maps API failures onto the error taxonomy.
func classify(what string, err error) error {
	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return errors.NewNotFoundError(what + " not found")
		case apiErr.Code == http.StatusForbidden && hasReason(apiErr, quotaReasons...):
			return errors.NewQuotaError(what+": quota exceeded", err)
		}
	}
	return errors.NewTransientError(what+" failed", err)
}

func hasReason(apiErr *googleapi.Error, reasons ...string) bool {
	for _, item := range apiErr.Errors {
		if lo.Contains(reasons, item.Reason) {
			return true
		}
	}
	return strings.Contains(apiErr.Message, "quota")
}
