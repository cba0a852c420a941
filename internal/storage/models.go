package storage

import (
	"errors"
	"time"

	"github.com/kalambet/musicdoc/internal/timeline"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Playlist is a finished (or client-saved) documentary.
type Playlist struct {
	ID                   string           `json:"id"`
	OwnerID              string           `json:"ownerId"`
	Title                string           `json:"title"`
	Topic                string           `json:"topic"`
	Summary              string           `json:"summary"`
	Timeline             []timeline.Entry `json:"timeline"`
	Source               string           `json:"source,omitempty"`
	NarrationAlbumArtURL string           `json:"narrationAlbumArtUrl,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

// PlaylistUpdate is a partial update. Nil fields are left unchanged.
type PlaylistUpdate struct {
	Title                *string          `json:"title,omitempty"`
	Topic                *string          `json:"topic,omitempty"`
	Summary              *string          `json:"summary,omitempty"`
	Timeline             []timeline.Entry `json:"timeline,omitempty"`
	NarrationAlbumArtURL *string          `json:"narrationAlbumArtUrl,omitempty"`
}

// NarrationAsset records one synthesized narration file of a playlist.
type NarrationAsset struct {
	PlaylistID string
	Index      int
	FileName   string
	URL        string
	Bytes      int64
	CreatedAt  time.Time
}
