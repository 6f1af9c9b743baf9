package models

import "time"

const (
	PLAYLIST_TYPE_EXPERIMENT      = "experiment"
	PLAYLIST_TYPE_DISCOVER_WEEKLY = "discover_weekly"
	PLAYLIST_TYPE_MEMBER_FAVORITE = "member_favorite"

	PLAYLIST_LENGTH_SHORT = "short"
	PLAYLIST_LENGTH_LONG  = "long"
)

// Minimum valid (non-duplicated) tracks per importable playlist type.
const (
	MIN_FAVORITE_TRACKS = 12
	MIN_DISCOVER_TRACKS = 20
)

// PlaylistLengths maps a length type to its track count.
var PlaylistLengths = map[string]int{
	PLAYLIST_LENGTH_SHORT: 10,
	PLAYLIST_LENGTH_LONG:  20,
}

// Playlist belongs to a member; at most one per importable type is maintained by import.
type Playlist struct {
	ID                        uint            `gorm:"primaryKey" json:"id"`
	MemberID                  uint            `gorm:"not null;index" json:"member_id"`
	ExternalID                string          `gorm:"type:varchar(100);default:''" json:"external_id"`
	Type                      string          `gorm:"type:varchar(30);not null;index" json:"type"`
	LengthType                string          `gorm:"type:varchar(10);default:''" json:"length_type"`
	FavoriteTrackPositionType string          `gorm:"type:varchar(30);default:''" json:"favorite_track_position_type"`
	ExperimentPhase           int             `gorm:"default:0" json:"experiment_phase"`
	Description               string          `gorm:"type:varchar(255);default:''" json:"description"`
	Tracks                    []PlaylistTrack `gorm:"foreignKey:PlaylistID" json:"tracks,omitempty"`
	CreatedAt                 time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                 time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsImportableType reports whether t can be validated and imported from the provider.
func IsImportableType(t string) bool {
	return t == PLAYLIST_TYPE_MEMBER_FAVORITE || t == PLAYLIST_TYPE_DISCOVER_WEEKLY
}

// MinimumTracksFor returns the minimum valid track count for an importable type.
func MinimumTracksFor(t string) int {
	switch t {
	case PLAYLIST_TYPE_MEMBER_FAVORITE:
		return MIN_FAVORITE_TRACKS
	case PLAYLIST_TYPE_DISCOVER_WEEKLY:
		return MIN_DISCOVER_TRACKS
	}
	return 0
}

// PlaylistTrack places a track at a 1-based position in a playlist.
type PlaylistTrack struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PlaylistID uint      `gorm:"not null;index:ux_playlist_tracks_playlist_track,unique,priority:1" json:"playlist_id"`
	TrackID    uint      `gorm:"not null;index:ux_playlist_tracks_playlist_track,unique,priority:2" json:"track_id"`
	Track      *Track    `gorm:"foreignKey:TrackID" json:"track,omitempty"`
	Position   int       `gorm:"not null;default:0" json:"position"`
	IsFavorite bool      `gorm:"not null" json:"is_favorite"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
