package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/app/repository"
	"github.com/ManuelReschke/Walrus/internal/pkg/metrics"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
	"github.com/ManuelReschke/Walrus/internal/pkg/spotify"
)

// TrackInfo is the display form of one fetched playlist track.
type TrackInfo struct {
	Order        int      `json:"order"`
	Name         string   `json:"name"`
	Artists      []string `json:"artists"`
	ExternalID   string   `json:"external_id"`
	ImageURL     string   `json:"image_url,omitempty"`
	IsDuplicated bool     `json:"is_duplicated"`
}

// ValidationResult reports whether a provider playlist can be imported as a given type.
type ValidationResult struct {
	IsValid          bool        `json:"is_valid"`
	TrackCount       int         `json:"track_count"`
	ValidTrackCount  int         `json:"valid_track_count"`
	RequiredMinimum  int         `json:"required_minimum"`
	PlaylistType     string      `json:"playlist_type"`
	Tracks           []TrackInfo `json:"tracks"`
	ValidationErrors []string    `json:"validation_errors"`
}

var playlistTitles = map[string]string{
	models.PLAYLIST_TYPE_MEMBER_FAVORITE: "Favorite Playlist",
	models.PLAYLIST_TYPE_DISCOVER_WEEKLY: "Discover Weekly",
}

func checkImportableType(playlistType string) error {
	if models.IsImportableType(playlistType) {
		return nil
	}
	return provider.NewError(provider.CodeValidation, fmt.Sprintf("unsupported playlist type %q", playlistType), map[string]any{
		"playlist_type": playlistType,
	})
}

// markDuplicates flags tracks repeated within the list or already present in
// the member's other non-experiment playlists of a different type.
func (s *Service) markDuplicates(member *models.Member, tracks []*spotify.Track, playlistType string) ([]bool, error) {
	others, err := s.playlists.TrackExternalIDsExcludingTypes(member.ID, []string{models.PLAYLIST_TYPE_EXPERIMENT, playlistType})
	if err != nil {
		return nil, fmt.Errorf("load other playlists: %w", err)
	}
	taken := make(map[string]struct{}, len(others))
	for _, id := range others {
		taken[id] = struct{}{}
	}

	dup := make([]bool, len(tracks))
	seen := make(map[string]struct{}, len(tracks))
	for i, t := range tracks {
		_, inList := seen[t.ID]
		_, inOther := taken[t.ID]
		dup[i] = inList || inOther
		seen[t.ID] = struct{}{}
	}
	return dup, nil
}

func dedupedIDs(tracks []*spotify.Track, dup []bool) []string {
	ids := make([]string, 0, len(tracks))
	for i, t := range tracks {
		if !dup[i] {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func (s *Service) fetchPlaylistTracks(ctx context.Context, member *models.Member, playlistID string) (*models.Provider, []*spotify.Track, error) {
	p, token, err := s.session(ctx, member)
	if err != nil {
		return nil, nil, err
	}
	tracks, err := s.client.AllPlaylistTracks(ctx, token, playlistID, s.market)
	if err != nil {
		return nil, nil, err
	}
	return p, tracks, nil
}

// ValidatePlaylist checks a provider playlist against the minimum of its type
// and remembers the de-duplicated track order for a following import.
func (s *Service) ValidatePlaylist(ctx context.Context, member *models.Member, playlistID, playlistType string) (*ValidationResult, error) {
	if err := checkImportableType(playlistType); err != nil {
		return nil, err
	}
	_, tracks, err := s.fetchPlaylistTracks(ctx, member, playlistID)
	if err != nil {
		return nil, err
	}
	dup, err := s.markDuplicates(member, tracks, playlistType)
	if err != nil {
		return nil, err
	}

	res := &ValidationResult{
		TrackCount:       len(tracks),
		RequiredMinimum:  models.MinimumTracksFor(playlistType),
		PlaylistType:     playlistType,
		Tracks:           make([]TrackInfo, 0, len(tracks)),
		ValidationErrors: []string{},
	}
	for i, t := range tracks {
		info := TrackInfo{
			Order:        i + 1,
			Name:         t.Name,
			ExternalID:   t.ID,
			ImageURL:     t.ImageURL(),
			IsDuplicated: dup[i],
			Artists:      make([]string, 0, len(t.Artists)),
		}
		for _, a := range t.Artists {
			info.Artists = append(info.Artists, a.Name)
		}
		res.Tracks = append(res.Tracks, info)
		if !dup[i] {
			res.ValidTrackCount++
		}
	}

	if res.ValidTrackCount < res.RequiredMinimum {
		res.ValidationErrors = append(res.ValidationErrors, fmt.Sprintf(
			"%s needs at least %d valid (non-duplicated) tracks, found %d tracks of which %d are valid",
			playlistTitles[playlistType], res.RequiredMinimum, res.TrackCount, res.ValidTrackCount))
	}
	res.IsValid = len(res.ValidationErrors) == 0

	if err := s.orders.Set(ctx, member.ID, playlistType, dedupedIDs(tracks, dup)); err != nil {
		return nil, fmt.Errorf("cache playlist order: %w", err)
	}
	log.Infof("[Playlist] Validated %s %s for member %d: %d/%d valid", playlistType, playlistID, member.ID, res.ValidTrackCount, res.TrackCount)
	return res, nil
}

// CachePlaylistOrder replaces the remembered order with the one the client displayed.
// Repeated ids keep their first position.
func (s *Service) CachePlaylistOrder(ctx context.Context, member *models.Member, playlistType string, trackIDs []string) error {
	if err := checkImportableType(playlistType); err != nil {
		return err
	}
	return s.orders.Set(ctx, member.ID, playlistType, uniqueIDs(trackIDs))
}

func uniqueIDs(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, id := range list {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ImportPlaylist stores a provider playlist in the order remembered by the
// last validation. It fails without touching any playlist row when the
// remembered order is missing or the playlist's tracks changed since.
// A nil playlist with a nil error means there was nothing to import.
func (s *Service) ImportPlaylist(ctx context.Context, member *models.Member, playlistID, playlistType string) (*models.Playlist, error) {
	if err := checkImportableType(playlistType); err != nil {
		return nil, err
	}
	cached, ok, err := s.orders.Get(ctx, member.ID, playlistType)
	if err != nil {
		return nil, fmt.Errorf("read playlist order: %w", err)
	}
	if !ok {
		return nil, provider.NewError(provider.CodePlaylistOrderCacheMissing, "", map[string]any{
			"member_id":     member.ID,
			"playlist_type": playlistType,
		})
	}

	p, tracks, err := s.fetchPlaylistTracks(ctx, member, playlistID)
	if err != nil {
		return nil, err
	}
	dup, err := s.markDuplicates(member, tracks, playlistType)
	if err != nil {
		return nil, err
	}
	current := dedupedIDs(tracks, dup)

	if !sameSet(cached, current) {
		return nil, provider.NewError(provider.CodePlaylistOrderMismatch, "", map[string]any{
			"cached_count":      len(cached),
			"current_count":     len(current),
			"cached_track_ids":  cached,
			"current_track_ids": current,
		})
	}
	if len(current) == 0 {
		log.Warnf("[Playlist] No tracks to import from %s for member %d", playlistID, member.ID)
		return nil, nil
	}

	byID := make(map[string]*spotify.Track, len(tracks))
	for i, t := range tracks {
		if !dup[i] {
			byID[t.ID] = t
		}
	}
	ordered := make([]*spotify.Track, 0, len(cached))
	for _, id := range cached {
		if t, ok := byID[id]; ok {
			ordered = append(ordered, t)
			delete(byID, id)
		}
	}

	return s.storePlaylist(member, p, playlistID, playlistType, ordered)
}

func (s *Service) storePlaylist(member *models.Member, p *models.Provider, playlistID, playlistType string, tracks []*spotify.Track) (*models.Playlist, error) {
	stored, _, err := s.saveCatalog(p.ID, tracks)
	if err != nil {
		return nil, err
	}
	trackIDs := make([]uint, 0, len(tracks))
	for _, t := range tracks {
		if row, ok := stored[t.ID]; ok {
			trackIDs = append(trackIDs, row.ID)
		}
	}

	var (
		playlist *models.Playlist
		created  bool
		added    int
	)
	err = s.playlists.Transaction(func(repo repository.PlaylistRepository) error {
		var err error
		playlist, created, err = repo.GetOrCreate(member.ID, playlistType)
		if err != nil {
			return fmt.Errorf("load playlist: %w", err)
		}
		playlist.ExternalID = playlistID
		playlist.Description = fmt.Sprintf("%s - %s", playlistTitles[playlistType], s.now().UTC().Format("2006-01-02"))
		if err := repo.Update(playlist); err != nil {
			return fmt.Errorf("update playlist: %w", err)
		}
		added, err = repo.ReplaceTracks(playlist.ID, trackIDs)
		if err != nil {
			return fmt.Errorf("store playlist tracks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	playlist.Tracks, err = s.playlists.ListTracks(playlist.ID)
	if err != nil {
		return nil, err
	}

	action := "Updated"
	if created {
		action = "Created"
	}
	metrics.IngestedRecords.WithLabelValues("playlist_track").Add(float64(added))
	log.Infof("[Playlist] %s %s playlist %d with %d tracks for member %d", action, playlistType, playlist.ID, added, member.ID)
	return playlist, nil
}

// sameSet compares a and b as sets of ids.
func sameSet(a, b []string) bool {
	left := make(map[string]struct{}, len(a))
	for _, id := range a {
		left[id] = struct{}{}
	}
	right := make(map[string]struct{}, len(b))
	for _, id := range b {
		right[id] = struct{}{}
	}
	if len(left) != len(right) {
		return false
	}
	for id := range left {
		if _, ok := right[id]; !ok {
			return false
		}
	}
	return true
}

// MemberPlaylist returns the member's stored playlist of playlistType with its tracks.
func (s *Service) MemberPlaylist(member *models.Member, playlistType string) (*models.Playlist, error) {
	playlist, err := s.playlists.FindByMemberAndType(member.ID, playlistType)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, provider.NewError(provider.CodeNotFound, fmt.Sprintf("no %s playlist imported", playlistType), nil)
	}
	if err != nil {
		return nil, err
	}
	playlist.Tracks, err = s.playlists.ListTracks(playlist.ID)
	return playlist, err
}
