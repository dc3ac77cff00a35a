package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bgm-radar/internal/domain"
	"bgm-radar/internal/filter"
	"bgm-radar/internal/middleware"
	"bgm-radar/internal/quota"
	"bgm-radar/internal/repository"
	"bgm-radar/internal/service"
	"bgm-radar/internal/service/auth"
	apperrors "bgm-radar/pkg/errors"
	"bgm-radar/pkg/logger"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type stubFetcher map[string]*domain.ChannelCandidate

func (s stubFetcher) GetChannel(_ context.Context, id string) (*domain.ChannelCandidate, error) {
	if ch, ok := s[id]; ok {
		return ch, nil
	}
	return nil, apperrors.NewNotFoundError("channel not found")
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   struct {
		Type string `json:"type"`
	} `json:"error"`
}

type fixture struct {
	router http.Handler
	repos  *repository.Repositories
}

func newFixture(t *testing.T, protect func(http.Handler) http.Handler) *fixture {
	t.Helper()
	log := logger.NewNop()
	repos := repository.NewMemoryRepositories()
	ctx := context.Background()
	for _, rec := range []*domain.ChannelRecord{
		{ChannelID: "A", Title: "Lofi A", SubscriberCount: 1000, GrowthRate: 50, CreatedAt: testNow},
		{ChannelID: "B", Title: "Piano B", SubscriberCount: 8000, GrowthRate: 300, Status: domain.StatusTracking, CreatedAt: testNow},
		{ChannelID: "C", Title: "Jazz C", SubscriberCount: 3000, GrowthRate: 120, CreatedAt: testNow},
	} {
		_, err := repos.Channels.InsertIfAbsent(ctx, rec)
		require.NoError(t, err)
	}

	tracker := service.NewTrackingService(service.TrackingDeps{
		YouTube:   stubFetcher{"A": {ChannelID: "A", SubscriberCount: 1200, VideoCount: 40, TotalViews: 90000}},
		Channels:  repos.Channels,
		Snapshots: repos.Snapshots,
		Tracker:   quota.NewTracker(quota.DefaultDailyLimit, log),
		Clock:     fixedClock,
	}, 0)
	catalog := service.NewChannelService(repos.Channels, nil, fixedClock, log)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		NewChannelHandler(catalog, tracker, log).RegisterRoutes(r, protect)
		NewQuotaHandler(quota.DefaultDailyLimit, nil, fixedClock, log).RegisterRoutes(r)
	})
	return &fixture{router: r, repos: repos}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func channelIDs(t *testing.T, raw json.RawMessage) []string {
	t.Helper()
	var recs []domain.ChannelRecord
	require.NoError(t, json.Unmarshal(raw, &recs))
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ChannelID)
	}
	return ids
}

func TestChannelHandler_List(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "default order is growth rate", query: "", want: []string{"B", "C", "A"}},
		{name: "status filter", query: "?status=tracking", want: []string{"B"}},
		{name: "unset status", query: "?status=unset&order_by=subscriber_count", want: []string{"C", "A"}},
		{name: "subscriber range", query: "?min_subscribers=2000&max_subscribers=5000", want: []string{"C"}},
		{name: "growth floor and limit", query: "?min_growth_rate=100&limit=1", want: []string{"B"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := f.do(t, http.MethodGet, "/api/channels"+tc.query, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, env.Success)
			assert.Equal(t, tc.want, channelIDs(t, env.Data))
		})
	}
}

func TestChannelHandler_ListRejectsBadQuery(t *testing.T) {
	f := newFixture(t, nil)

	for _, query := range []string{"?status=maybe", "?min_subscribers=lots", "?order_by=title", "?min_subscribers=10&max_subscribers=5"} {
		rec, env := f.do(t, http.MethodGet, "/api/channels"+query, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
		assert.False(t, env.Success)
		assert.Equal(t, "validation", env.Error.Type, query)
	}
}

func TestChannelHandler_Get(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodGet, "/api/channels/C", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.ChannelRecord
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Jazz C", got.Title)

	rec, env = f.do(t, http.MethodGet, "/api/channels/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Type)
}

func TestChannelHandler_UpdateStatus(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodPut, "/api/channels/A/status", `{"status":"rejected","reason":"vocals"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Status updated", env.Message)

	stored, err := f.repos.Channels.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, stored.Status)
	assert.Equal(t, "vocals", stored.RejectionReason)

	rec, env = f.do(t, http.MethodPut, "/api/channels/A/status", `{"status":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", env.Error.Type)

	rec, _ = f.do(t, http.MethodPut, "/api/channels/A/status", `{"status":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPut, "/api/channels/nope/status", `{"status":"tracking"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChannelHandler_BulkUpdateStatus(t *testing.T) {
	f := newFixture(t, nil)

	body := `{"changes":[
		{"channel_id":"A","status":"non-tracking"},
		{"channel_id":"C","status":"tracking"},
		{"channel_id":"Z","status":"tracking"}
	]}`
	rec, env := f.do(t, http.MethodPost, "/api/channels/status", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result service.BulkResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, []string{"Z"}, result.NotFound)

	rec, _ = f.do(t, http.MethodPost, "/api/channels/status", `{"changes":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChannelHandler_TrackHistoryTrend(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodPost, "/api/channels/A/track", "")
	require.Equal(t, http.StatusOK, rec.Code, string(env.Data))
	var snap domain.TrackingSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, int64(1200), snap.SubscriberCount)

	rec, env = f.do(t, http.MethodGet, "/api/channels/A/history?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []domain.TrackingSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 1)

	rec, env = f.do(t, http.MethodGet, "/api/channels/A/trend", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var trend domain.GrowthTrend
	require.NoError(t, json.Unmarshal(env.Data, &trend))
	assert.Equal(t, 1, trend.Snapshots)

	rec, _ = f.do(t, http.MethodGet, "/api/channels/A/history?days=week", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/channels/C/track", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChannelHandler_Stats(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 3, stats.Channels.TotalChannels)
	assert.Equal(t, int64(4000), stats.Channels.AverageSubscribers)
	assert.Equal(t, 1, stats.Status.Tracking)
	assert.Equal(t, 2, stats.Status.Unset)
}

func TestChannelHandler_ProtectedRoutes(t *testing.T) {
	log := logger.NewNop()
	authService := auth.NewService("handler-test-secret", log)
	f := newFixture(t, middleware.Auth(authService, log))

	rec, env := f.do(t, http.MethodPut, "/api/channels/A/status", `{"status":"tracking"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication", env.Error.Type)

	rec, _ = f.do(t, http.MethodGet, "/api/channels", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	token, err := authService.IssueToken("operator", "channels:write", time.Hour)
	require.NoError(t, err)
	rec, _ = f.do(t, http.MethodPut, "/api/channels/A/status", `{"status":"tracking"}`, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type stubIntake struct {
	last service.IntakeOptions
}

func (s *stubIntake) AddChannel(_ context.Context, ref string, opts service.IntakeOptions) (*domain.IntakeResult, error) {
	s.last = opts
	if ref != "UCabcdefghijklmnopqrstuv" {
		return nil, apperrors.NewValidationError("Invalid channel reference", nil)
	}
	return &domain.IntakeResult{ChannelID: ref, Admitted: !opts.DryRun, Saved: !opts.DryRun}, nil
}

func (s *stubIntake) ValidateChannel(ctx context.Context, ref string, admission filter.AdmissionConfig) (*domain.IntakeResult, error) {
	return s.AddChannel(ctx, ref, service.IntakeOptions{Admission: admission, DryRun: true})
}

func TestChannelHandler_Intake(t *testing.T) {
	log := logger.NewNop()
	repos := repository.NewMemoryRepositories()
	intake := &stubIntake{}
	admission := filter.AdmissionConfig{MonthsThreshold: 3, MinSubscribers: 1000, MaxSubscribers: 500000, MinVideos: 5, MinGrowthRate: 10}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		NewChannelHandler(service.NewChannelService(repos.Channels, nil, fixedClock, log), nil, log).
			WithIntake(intake, admission).
			RegisterRoutes(r, nil)
	})
	f := &fixture{router: r, repos: repos}

	rec, env := f.do(t, http.MethodPost, "/api/channels", `{"channel":"UCabcdefghijklmnopqrstuv","force":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Channel added", env.Message)
	assert.True(t, intake.last.Force)
	assert.Equal(t, admission, intake.last.Admission)

	rec, env = f.do(t, http.MethodPost, "/api/channels/validate", `{"channel":"UCabcdefghijklmnopqrstuv"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var result domain.IntakeResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.False(t, result.Saved)
	assert.True(t, intake.last.DryRun)

	rec, env = f.do(t, http.MethodPost, "/api/channels", `{"channel":"@lofi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", env.Error.Type)
}

func TestQuotaHandler_Plan(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodGet, "/api/quota/plan", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp QuotaResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, quota.DefaultDailyLimit, resp.Status.Remaining)
	assert.Equal(t, quota.ModeFull, resp.Plan.Mode)
	assert.Equal(t, 19, resp.Status.Reset.HoursUntilReset)

	rec, env = f.do(t, http.MethodGet, "/api/quota/plan?remaining=2500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, quota.ModeStandard, resp.Plan.Mode)

	rec, _ = f.do(t, http.MethodGet, "/api/quota/plan?remaining=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler_Check(t *testing.T) {
	log := logger.NewNop()

	healthy := NewHealthHandler(map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
		"redis": nil,
	}, "test", fixedClock, log)

	rec := httptest.NewRecorder()
	healthy.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, map[string]string{"store": "healthy"}, resp.Components)

	degraded := NewHealthHandler(map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}, "test", fixedClock, log)

	rec = httptest.NewRecorder()
	degraded.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["redis"])
}
