package quota

import "time"

// Mode names a recommendation band.
type Mode string

const (
	ModeFull         Mode = "full"
	ModeStandard     Mode = "standard"
	ModeConservative Mode = "conservative"
	ModeNone         Mode = "none"
)

// Params is a collection size that fits a remaining budget.
type Params struct {
	Mode              Mode   `json:"mode"`
	Message           string `json:"message"`
	KeywordCount      int    `json:"keyword_count"`
	VideosPerKeyword  int    `json:"videos_per_keyword"`
	MaxChannelsPerRun int    `json:"max_channels_per_run"`
	EstimatedCost     int    `json:"estimated_cost"`
	RemainingAfter    int    `json:"remaining_after"`
}

// RecommendedParams picks a collection size for the remaining budget.
func RecommendedParams(remaining int) Params {
	var p Params
	switch {
	case remaining >= 5000:
		p = Params{Mode: ModeFull, Message: "Full collection mode", KeywordCount: 15, VideosPerKeyword: 30, MaxChannelsPerRun: 300}
	case remaining >= 2000:
		p = Params{Mode: ModeStandard, Message: "Standard collection mode", KeywordCount: 8, VideosPerKeyword: 20, MaxChannelsPerRun: 150}
	case remaining >= 500:
		p = Params{Mode: ModeConservative, Message: "Conservative collection mode", KeywordCount: 3, VideosPerKeyword: 10, MaxChannelsPerRun: 50}
	default:
		p = Params{Mode: ModeNone, Message: "Insufficient quota - skip collection"}
	}
	p.EstimatedCost = p.KeywordCount*Cost(KindSearch) + p.MaxChannelsPerRun*PerChannelCost
	p.RemainingAfter = remaining - p.EstimatedCost
	return p
}

// RecommendedParams sizes a run from this tracker's remaining budget.
func (t *Tracker) RecommendedParams() Params {
	return RecommendedParams(t.Remaining())
}

// ResetInfo describes the next daily quota reset.
type ResetInfo struct {
	ResetAt         time.Time `json:"reset_at"`
	HoursUntilReset int       `json:"hours_until_reset"`
	CanRunToday     bool      `json:"can_run_today"`
}

var pacific = mustLoad("America/Los_Angeles")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("PST", -8*3600)
	}
	return loc
}

// NextReset returns the next Pacific midnight after now.
func NextReset(now time.Time) ResetInfo {
	local := now.In(pacific)
	y, m, d := local.Date()
	reset := time.Date(y, m, d+1, 0, 0, 0, 0, pacific)
	until := reset.Sub(now)
	hours := int(until / time.Hour)
	if until%time.Hour != 0 {
		hours++
	}
	return ResetInfo{
		ResetAt:         reset,
		HoursUntilReset: hours,
		CanRunToday:     hours > 1,
	}
}

// Day is the Pacific calendar date that now's quota is billed to.
func Day(now time.Time) string {
	return now.In(pacific).Format("2006-01-02")
}
