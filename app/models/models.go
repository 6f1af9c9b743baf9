package models

// All returns every model managed by AutoMigrate, in dependency order.
func All() []interface{} {
	return []interface{}{
		&Provider{},
		&Member{},
		&APIToken{},
		&ProxyAccount{},
		&Genre{},
		&Artist{},
		&Track{},
		&PlayLogContext{},
		&PlayLog{},
		&Playlist{},
		&PlaylistTrack{},
	}
}
