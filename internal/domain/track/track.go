// Package track provides the Track domain entity.
package track

import "fmt"

// Track represents a catalog track.
// Identity is by ID; everything else is metadata the catalog may or may
// not provide. Tracks are treated as immutable once placed in a queue.
type Track struct {
	ID            string         `mapstructure:"id"`
	Title         string         `mapstructure:"title"`
	Artist        Artist         `mapstructure:"user"`
	Duration      float64        `mapstructure:"duration"` // Seconds, 0 until known
	Genre         string         `mapstructure:"genre"`
	Artwork       Artwork        `mapstructure:"artwork"`
	FavoriteCount int            `mapstructure:"favorite_count"`
	PlayCount     int            `mapstructure:"play_count"`
	Extra         map[string]any `mapstructure:",remain"` // Passthrough fields
}

// Artist represents the uploading artist of a track.
type Artist struct {
	ID     string `mapstructure:"id"`
	Handle string `mapstructure:"handle"`
	Name   string `mapstructure:"name"`
}

// Artwork holds artwork URLs keyed by size.
type Artwork struct {
	Small  string `mapstructure:"150x150"`
	Medium string `mapstructure:"480x480"`
	Large  string `mapstructure:"1000x1000"`
}

// DisplayArtist returns the best available artist label.
func (t Track) DisplayArtist() string {
	if t.Artist.Name != "" {
		return t.Artist.Name
	}
	return t.Artist.Handle
}

// FormatDuration renders the duration as m:ss.
func (t Track) FormatDuration() string {
	s := int(t.Duration)
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
