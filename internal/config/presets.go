package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"bgm-radar/internal/filter"
	"bgm-radar/internal/keywords"
)

// Mode names a collection preset.
type Mode string

const (
	ModeCollect  Mode = "collect"
	ModeSmart    Mode = "smart"
	ModeEnhanced Mode = "enhanced"
	ModeBatch    Mode = "batch"
)

// Preset is the full parameter set of one collection mode.
type Preset struct {
	Mode              Mode
	Admission         filter.AdmissionConfig
	Strategy          keywords.Strategy
	KeywordCount      int
	VideosPerKeyword  int
	MaxChannelsPerRun int
	// SearchWindow bounds search results by publish date. Zero means MonthsThreshold months.
	SearchWindow time.Duration
	// AdaptToQuota sizes the run from the remaining quota instead of the counts above.
	AdaptToQuota bool
	// RespectReset skips the run when the daily reset is less than an hour away.
	RespectReset bool
	// ChannelSearch adds channel-name searches to the video searches.
	ChannelSearch bool
}

// Presets returns a fresh copy of every preset.
func Presets() map[Mode]Preset {
	return map[Mode]Preset{
		ModeCollect: {
			Mode:              ModeCollect,
			Admission:         filter.AdmissionConfig{MonthsThreshold: 3, MinSubscribers: 1000, MaxSubscribers: 500000, MinVideos: 5, MinGrowthRate: 10},
			Strategy:          keywords.StrategyRandom,
			KeywordCount:      10,
			VideosPerKeyword:  50,
			MaxChannelsPerRun: 200,
		},
		ModeSmart: {
			Mode:         ModeSmart,
			Admission:    filter.AdmissionConfig{MonthsThreshold: 3, MinSubscribers: 500, MaxSubscribers: 1000, MinVideos: 2, MinGrowthRate: 3},
			Strategy:     keywords.StrategyRotating,
			SearchWindow: 6 * filter.Month,
			AdaptToQuota: true,
			RespectReset: true,
		},
		ModeEnhanced: {
			Mode:              ModeEnhanced,
			Admission:         filter.AdmissionConfig{MonthsThreshold: 12, MinSubscribers: 50, MaxSubscribers: 2000000, MinVideos: 1, MinGrowthRate: 1},
			Strategy:          keywords.StrategyPriority,
			KeywordCount:      30,
			VideosPerKeyword:  50,
			MaxChannelsPerRun: 1000,
			ChannelSearch:     true,
		},
		ModeBatch: {
			Mode:              ModeBatch,
			Admission:         filter.AdmissionConfig{MonthsThreshold: 3, MinSubscribers: 1000, MaxSubscribers: 500000, MinVideos: 5, MinGrowthRate: 10},
			Strategy:          keywords.StrategyPriority,
			KeywordCount:      8,
			VideosPerKeyword:  40,
			MaxChannelsPerRun: 150,
		},
	}
}

// PresetFor returns the named preset with ADMISSION_* environment overrides applied.
func PresetFor(mode Mode) (Preset, error) {
	p, ok := Presets()[mode]
	if !ok {
		return Preset{}, fmt.Errorf("unknown collection mode %q", mode)
	}
	p.Admission = AdmissionFromEnv(p.Admission)
	return p, nil
}

// AdmissionFromEnv overrides fields of base from ADMISSION_* variables.
func AdmissionFromEnv(base filter.AdmissionConfig) filter.AdmissionConfig {
	base.MonthsThreshold = getIntEnv("ADMISSION_MONTHS_THRESHOLD", base.MonthsThreshold)
	base.MinSubscribers = getInt64Env("ADMISSION_MIN_SUBSCRIBERS", base.MinSubscribers)
	base.MaxSubscribers = getInt64Env("ADMISSION_MAX_SUBSCRIBERS", base.MaxSubscribers)
	base.MinVideos = getInt64Env("ADMISSION_MIN_VIDEOS", base.MinVideos)
	base.MinGrowthRate = getIntEnv("ADMISSION_MIN_GROWTH_RATE", base.MinGrowthRate)
	return base
}

// Window resolves the search window of the preset.
func (p Preset) Window() time.Duration {
	if p.SearchWindow > 0 {
		return p.SearchWindow
	}
	return time.Duration(p.Admission.MonthsThreshold) * filter.Month
}

func getInt64Env(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
