package models

import "time"

// Genre is a provider-scoped genre label.
type Genre struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(100);not null;index:ux_genres_name_provider,unique,priority:1" json:"name"`
	Category   *string   `gorm:"type:varchar(100)" json:"category"`
	ProviderID uint      `gorm:"not null;index:ux_genres_name_provider,unique,priority:2" json:"provider_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Artist is deduplicated by (external_id, provider). A row created from a track
// payload is a stub until its details are fetched.
type Artist struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ExternalID     string    `gorm:"type:varchar(100);not null;index:ux_artists_external_provider,unique,priority:1" json:"external_id"`
	ProviderID     uint      `gorm:"not null;index:ux_artists_external_provider,unique,priority:2" json:"provider_id"`
	Name           string    `gorm:"type:varchar(200);default:''" json:"name"`
	Popularity     *int      `json:"popularity"`
	FollowersCount *int      `json:"followers_count"`
	Genres         []Genre   `gorm:"many2many:artist_genres;" json:"genres,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NeedsDetails reports whether the artist is still a stub.
func (a *Artist) NeedsDetails() bool {
	return a.Popularity == nil || a.FollowersCount == nil || a.Name == ""
}

// Track is deduplicated by (external_id, provider).
type Track struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ExternalID string    `gorm:"type:varchar(100);not null;index:ux_tracks_external_provider,unique,priority:1" json:"external_id"`
	ProviderID uint      `gorm:"not null;index:ux_tracks_external_provider,unique,priority:2" json:"provider_id"`
	Name       string    `gorm:"type:varchar(255);default:''" json:"name"`
	Popularity int       `gorm:"default:0" json:"popularity"`
	IsPlayable bool      `gorm:"not null" json:"is_playable"`
	ISRC       string    `gorm:"column:isrc;type:varchar(30);default:''" json:"isrc"`
	Artists    []Artist  `gorm:"many2many:track_artists;" json:"artists,omitempty"`
	Genres     []Genre   `gorm:"many2many:track_genres;" json:"genres,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
