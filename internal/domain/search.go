package domain

import "time"

// SearchType is the kind of resource a keyword search returns.
type SearchType string

const (
	SearchVideos   SearchType = "video"
	SearchChannels SearchType = "channel"
)

// SearchQuery parameterises one keyword search.
type SearchQuery struct {
	Keyword        string
	Type           SearchType
	MaxResults     int
	PublishedAfter time.Time
	// Order is relevance, date or viewCount. Empty lets the client pick.
	Order string
}

// PlaylistDirection selects which end of an uploads playlist to resolve.
type PlaylistDirection string

const (
	Oldest PlaylistDirection = "oldest"
	Newest PlaylistDirection = "newest"
)

// PlaylistScan is the outcome of walking an uploads playlist.
type PlaylistScan struct {
	Video *VideoRef
	Pages int
}
