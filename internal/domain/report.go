package domain

// RejectionReason names the admission gate a channel failed.
type RejectionReason string

const (
	RejectNone         RejectionReason = ""
	RejectMissingID    RejectionReason = "missing_channel_id"
	RejectNotBGM       RejectionReason = "not_bgm"
	RejectSubscribers  RejectionReason = "subscribers_out_of_range"
	RejectTooFewVideos RejectionReason = "too_few_videos"
	RejectTooOld       RejectionReason = "channel_too_old"
	RejectLowGrowth    RejectionReason = "growth_below_minimum"
)

// CollectionReport is the per-run summary returned by the collection pipeline.
type CollectionReport struct {
	Found         int                     `json:"found"`
	Processed     int                     `json:"processed"`
	Filtered      int                     `json:"filtered"`
	Saved         int                     `json:"saved"`
	Skipped       int                     `json:"skipped"`
	Errors        int                     `json:"errors"`
	Searches      int                     `json:"searches"`
	QuotaUsed     int                     `json:"quota_used"`
	Halted        bool                    `json:"halted"`
	HaltReason    string                  `json:"halt_reason,omitempty"`
	Rejections    map[RejectionReason]int `json:"rejections,omitempty"`
	SavedChannels []string                `json:"saved_channels,omitempty"`
}

// NewCollectionReport returns a zeroed report ready for counting.
func NewCollectionReport() *CollectionReport {
	return &CollectionReport{Rejections: make(map[RejectionReason]int)}
}

// Reject counts a channel that failed admission.
func (r *CollectionReport) Reject(reason RejectionReason) {
	r.Filtered++
	r.Rejections[reason]++
}

// Halt marks the run as stopped early. The first reason wins.
func (r *CollectionReport) Halt(reason string) {
	if r.Halted {
		return
	}
	r.Halted = true
	r.HaltReason = reason
}

// Merge adds the counters of other into r.
func (r *CollectionReport) Merge(other *CollectionReport) {
	if other == nil {
		return
	}
	r.Found += other.Found
	r.Processed += other.Processed
	r.Filtered += other.Filtered
	r.Saved += other.Saved
	r.Skipped += other.Skipped
	r.Errors += other.Errors
	r.Searches += other.Searches
	r.QuotaUsed += other.QuotaUsed
	r.SavedChannels = append(r.SavedChannels, other.SavedChannels...)
	for k, v := range other.Rejections {
		if r.Rejections == nil {
			r.Rejections = make(map[RejectionReason]int)
		}
		r.Rejections[k] += v
	}
	if other.Halted {
		r.Halt(other.HaltReason)
	}
}

// IntakeResult is the outcome of adding or validating one channel by hand.
type IntakeResult struct {
	ChannelID       string          `json:"channel_id"`
	Admitted        bool            `json:"admitted"`
	RejectionReason RejectionReason `json:"rejection_reason,omitempty"`
	Saved           bool            `json:"saved"`
	AlreadyStored   bool            `json:"already_stored"`
	Record          *ChannelRecord  `json:"record,omitempty"`
}

// TrackingReport summarises one tracking pass.
type TrackingReport struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Merge adds the counters of other into r.
func (r *TrackingReport) Merge(other *TrackingReport) {
	if other == nil {
		return
	}
	r.Total += other.Total
	r.Successful += other.Successful
	r.Failed += other.Failed
}
