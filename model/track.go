package model

import "time"

// HeatBaseline is the score of a track nobody has voted on yet.
const HeatBaseline = 30

// Track represents an audio track in the discovery catalog.
type Track struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Artist          string    `json:"artist"`
	Genre           string    `json:"genre"`
	CoverArtURL     string    `json:"coverArtUrl"`
	AudioURL        string    `json:"audioUrl"`   // full-length source
	PreviewURL      string    `json:"previewUrl"` // truncated 30s source
	DurationSeconds float32   `json:"durationSeconds"`
	Upvotes         int       `json:"upvotes"`
	Downvotes       int       `json:"downvotes"`
	HeatScore       int       `json:"heatScore"`
	Placeholder     bool      `json:"placeholder,omitempty"` // shown when the catalog is empty; rejects votes and playback
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// VoteDirection is the ephemeral input of the vote operation.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// PlaceholderTrack is what the dashboard shows before any artist has
// uploaded. It carries no sources and cannot be voted on or played.
func PlaceholderTrack() Track {
	return Track{
		ID:          "placeholder",
		Title:       "Nothing here yet",
		Artist:      "EmberFM",
		Placeholder: true,
		HeatScore:   HeatBaseline,
	}
}
