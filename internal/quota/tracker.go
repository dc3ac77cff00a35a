package quota

import (
	"math"
	"sync"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"bgm-radar/pkg/logger"
)

// DefaultDailyLimit is the standard Data API v3 allowance.
const DefaultDailyLimit = 10000

// Kind is an API method billed against the daily quota.
type Kind string

const (
	KindSearch        Kind = "search"
	KindChannels      Kind = "channels"
	KindPlaylistItems Kind = "playlistItems"
	KindVideos        Kind = "videos"
)

var costs = map[Kind]int{
	KindSearch:        100,
	KindChannels:      1,
	KindPlaylistItems: 1,
	KindVideos:        1,
}

// Cost returns the units billed for one call of kind. Unknown kinds cost 1.
func Cost(kind Kind) int {
	if c, ok := costs[kind]; ok {
		return c
	}
	return 1
}

// PerChannelCost approximates one details call plus up to two playlist pages.
const PerChannelCost = 3

const warnRatio = 0.9

// Tracker counts quota units spent by one run or one tenant. It is not persisted.
type Tracker struct {
	mu     sync.Mutex
	used   int
	limit  int
	warned bool
	log    *logger.Logger
}

// NewTracker returns a tracker with nothing used.
func NewTracker(dailyLimit int, log *logger.Logger) *Tracker {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Tracker{limit: dailyLimit, log: log}
}

// RecordUsage bills count calls of kind and returns the new total.
func (t *Tracker) RecordUsage(kind Kind, count int) int {
	if count <= 0 {
		count = 1
	}
	cost := Cost(kind) * count

	t.mu.Lock()
	t.used += cost
	total := t.used
	crossed := !t.warned && float64(total) > float64(t.limit)*warnRatio
	if crossed {
		t.warned = true
	}
	t.mu.Unlock()

	t.log.Debug("Quota usage recorded",
		zap.String("kind", string(kind)),
		zap.Int("cost", cost),
		zap.Int("used", total),
		zap.Int("limit", t.limit))
	if crossed {
		t.log.Warn("Approaching quota limit", zap.Int("used", total), zap.Int("limit", t.limit))
	}
	return total
}

// Preload marks units as already spent, e.g. by an earlier process today.
func (t *Tracker) Preload(units int) {
	t.mu.Lock()
	t.used += units
	t.mu.Unlock()
}

// Reserve debits units only if they are all still available. Concurrent
// callers use it instead of HasCapacity so that no two of them can claim the
// same remaining units.
func (t *Tracker) Reserve(units int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.limit-t.used < units {
		return false
	}
	t.used += units
	return true
}

// Release returns units taken by Reserve once the real cost has been recorded.
func (t *Tracker) Release(units int) {
	t.mu.Lock()
	t.used -= units
	if t.used < 0 {
		t.used = 0
	}
	t.mu.Unlock()
}

// HasCapacity reports whether required units are still available.
func (t *Tracker) HasCapacity(required int) bool {
	remaining := t.Remaining()
	if remaining < required {
		t.log.Info("Insufficient quota", zap.Int("required", required), zap.Int("remaining", remaining))
		return false
	}
	return true
}

// Used returns the units spent so far.
func (t *Tracker) Used() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

// Remaining returns the unspent units, never negative.
func (t *Tracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.used >= t.limit {
		return 0
	}
	return t.limit - t.used
}

// Limit returns the daily allowance.
func (t *Tracker) Limit() int {
	return t.limit
}

// Status is a snapshot of a tracker for reporting.
type Status struct {
	Used         int       `json:"used"`
	Limit        int       `json:"limit"`
	Remaining    int       `json:"remaining"`
	UsagePercent float64   `json:"usage_percent"`
	Reset        ResetInfo `json:"reset"`
}

// Status reports the current usage together with reset timing.
func (t *Tracker) Status(now time.Time) Status {
	used := t.Used()
	return Status{
		Used:         used,
		Limit:        t.limit,
		Remaining:    t.Remaining(),
		UsagePercent: math.Round(float64(used)/float64(t.limit)*1000) / 10,
		Reset:        NextReset(now),
	}
}
