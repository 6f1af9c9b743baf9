package ingestion

import (
	"fmt"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/internal/pkg/spotify"
)

// saveCatalog inserts the artists and tracks referenced by tracks, leaving
// existing rows untouched, and links tracks to their artists. It returns the
// stored tracks by external id and the ids of artists created by this call.
func (s *Service) saveCatalog(providerID uint, tracks []*spotify.Track) (map[string]models.Track, []uint, error) {
	artistData := spotify.ArtistsFromTracks(tracks)
	artistExtIDs := make([]string, 0, len(artistData))
	for _, a := range artistData {
		artistExtIDs = append(artistExtIDs, a.ExternalID)
	}

	before, err := s.catalog.FindArtistsByExternalIDs(providerID, artistExtIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load artists: %w", err)
	}
	var stubs []models.Artist
	for _, a := range artistData {
		if _, ok := before[a.ExternalID]; ok {
			continue
		}
		stubs = append(stubs, models.Artist{ExternalID: a.ExternalID, ProviderID: providerID, Name: a.Name})
	}
	if err := s.catalog.CreateArtistsIgnoringConflicts(stubs); err != nil {
		return nil, nil, fmt.Errorf("create artists: %w", err)
	}
	artists, err := s.catalog.FindArtistsByExternalIDs(providerID, artistExtIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load artists: %w", err)
	}
	var created []uint
	for _, a := range artistData {
		if _, ok := before[a.ExternalID]; ok {
			continue
		}
		if row, ok := artists[a.ExternalID]; ok {
			created = append(created, row.ID)
		}
	}

	trackData := spotify.ParseTracks(tracks)
	trackExtIDs := make([]string, 0, len(trackData))
	rows := make([]models.Track, 0, len(trackData))
	for _, t := range trackData {
		trackExtIDs = append(trackExtIDs, t.ExternalID)
		row := models.Track{
			ExternalID: t.ExternalID,
			ProviderID: providerID,
			Name:       t.Name,
			IsPlayable: t.IsPlayable,
			ISRC:       t.ISRC,
		}
		if t.Popularity != nil {
			row.Popularity = *t.Popularity
		}
		rows = append(rows, row)
	}
	if err := s.catalog.CreateTracksIgnoringConflicts(rows); err != nil {
		return nil, nil, fmt.Errorf("create tracks: %w", err)
	}
	stored, err := s.catalog.FindTracksByExternalIDs(providerID, trackExtIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load tracks: %w", err)
	}

	links := make(map[uint][]uint, len(trackData))
	for _, t := range trackData {
		track, ok := stored[t.ExternalID]
		if !ok {
			continue
		}
		for _, extID := range t.ArtistExternalIDs {
			if a, ok := artists[extID]; ok {
				links[track.ID] = append(links[track.ID], a.ID)
			}
		}
	}
	if err := s.catalog.LinkTrackArtists(links); err != nil {
		return nil, nil, fmt.Errorf("link track artists: %w", err)
	}
	return stored, created, nil
}
