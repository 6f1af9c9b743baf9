package models

import "time"

const (
	CONTEXT_TYPE_PLAYLIST = "playlist"
	CONTEXT_TYPE_ALBUM    = "album"
	CONTEXT_TYPE_ARTIST   = "artist"

	CONTEXT_RESOURCE_USER     = "user"
	CONTEXT_RESOURCE_OFFICIAL = "official"
)

// PlayLogContext is the playlist/album/artist a track was played from.
type PlayLogContext struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Type       string         `gorm:"type:varchar(20);not null;index:ux_play_log_contexts_type_external,unique,priority:1" json:"type"`
	ExternalID string         `gorm:"type:varchar(100);not null;index:ux_play_log_contexts_type_external,unique,priority:2" json:"external_id"`
	Details    map[string]any `gorm:"serializer:json;type:text" json:"details"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasDetails reports whether enrichment already filled the details.
func (c *PlayLogContext) HasDetails() bool {
	return len(c.Details) > 0
}

// PlayLog is one historical play. Natural key: (member, track, provider, played_at).
type PlayLog struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	MemberID   uint            `gorm:"not null;index:ux_play_logs_natural,unique,priority:1" json:"member_id"`
	TrackID    uint            `gorm:"not null;index:ux_play_logs_natural,unique,priority:2" json:"track_id"`
	ProviderID uint            `gorm:"not null;index:ux_play_logs_natural,unique,priority:3" json:"provider_id"`
	PlayedAt   time.Time       `gorm:"not null;precision:3;index:ux_play_logs_natural,unique,priority:4" json:"played_at"`
	ContextID  *uint           `gorm:"index" json:"context_id"`
	Context    *PlayLogContext `gorm:"foreignKey:ContextID" json:"context,omitempty"`
	Track      *Track          `gorm:"foreignKey:TrackID" json:"track,omitempty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
