package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/internal/pkg/metrics"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
	"github.com/ManuelReschke/Walrus/internal/pkg/spotify"
)

// UpdateArtistDetails fills name, popularity, followers and genres of the
// given artists using memberID's token. It returns the number of artists updated.
func (s *Service) UpdateArtistDetails(ctx context.Context, artistIDs []uint, memberID uint) (int, error) {
	if len(artistIDs) == 0 {
		return 0, nil
	}
	member, err := s.member(memberID)
	if err != nil {
		return 0, err
	}
	p, token, err := s.session(ctx, member)
	if err != nil {
		return 0, err
	}

	artists, err := s.catalog.GetArtistsByIDs(artistIDs)
	if err != nil {
		return 0, fmt.Errorf("load artists: %w", err)
	}
	byExternalID := make(map[string]models.Artist, len(artists))
	extIDs := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.ProviderID != p.ID {
			continue
		}
		byExternalID[a.ExternalID] = a
		extIDs = append(extIDs, a.ExternalID)
	}
	if len(extIDs) == 0 {
		return 0, nil
	}

	raw, err := s.client.SeveralArtists(ctx, token, extIDs)
	if err != nil {
		return 0, err
	}
	details := spotify.ParseArtists(raw)

	var genreNames []string
	seen := make(map[string]struct{})
	for _, d := range details {
		for _, g := range d.Genres {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			genreNames = append(genreNames, g)
		}
	}
	genres, err := s.catalog.EnsureGenres(p.ID, genreNames)
	if err != nil {
		return 0, fmt.Errorf("create genres: %w", err)
	}

	updated := 0
	for _, d := range details {
		artist, ok := byExternalID[d.ExternalID]
		if !ok {
			continue
		}
		artist.Name = d.Name
		artist.Popularity = d.Popularity
		artist.FollowersCount = d.FollowersCount
		if err := s.catalog.UpdateArtistDetails(&artist); err != nil {
			return updated, fmt.Errorf("update artist %d: %w", artist.ID, err)
		}

		var linked []models.Genre
		for _, g := range d.Genres {
			if row, ok := genres[g]; ok {
				linked = append(linked, row)
			}
		}
		if len(linked) > 0 {
			if err := s.catalog.ReplaceArtistGenres(artist.ID, linked); err != nil {
				return updated, fmt.Errorf("link artist %d genres: %w", artist.ID, err)
			}
		}
		updated++
	}

	metrics.IngestedRecords.WithLabelValues("artist_details").Add(float64(updated))
	log.Infof("[PlayLog] Updated details of %d artists", updated)
	return updated, nil
}

// UpdatePlaylistContextDetails fetches name, owner and visibility of playlist
// contexts. Playlists the provider answers with 404 are its own editorial
// playlists and are marked official.
func (s *Service) UpdatePlaylistContextDetails(ctx context.Context, contextIDs []uint, memberID uint) (int, error) {
	if len(contextIDs) == 0 {
		return 0, nil
	}
	member, err := s.member(memberID)
	if err != nil {
		return 0, err
	}
	_, token, err := s.session(ctx, member)
	if err != nil {
		return 0, err
	}

	contexts, err := s.playLogs.GetContextsByIDs(contextIDs)
	if err != nil {
		return 0, fmt.Errorf("load contexts: %w", err)
	}

	updated := 0
	for _, c := range contexts {
		if c.Type != models.CONTEXT_TYPE_PLAYLIST {
			continue
		}
		var details map[string]any
		pl, err := s.client.Playlist(ctx, token, c.ExternalID)
		switch {
		case err == nil:
			details = map[string]any{
				"name":          pl.Name,
				"owner_name":    pl.Owner.DisplayName,
				"is_public":     pl.Public,
				"resource_type": models.CONTEXT_RESOURCE_USER,
			}
		case provider.ExternalStatus(err) == http.StatusNotFound:
			log.Infof("[PlayLog] Playlist %s is official (404)", c.ExternalID)
			details = map[string]any{"resource_type": models.CONTEXT_RESOURCE_OFFICIAL}
		default:
			log.Warnf("[PlayLog] Failed to fetch playlist %s: %v", c.ExternalID, err)
			continue
		}
		if err := s.playLogs.UpdateContextDetails(c.ID, details); err != nil {
			return updated, fmt.Errorf("update context %d: %w", c.ID, err)
		}
		updated++
	}

	metrics.IngestedRecords.WithLabelValues("context_details").Add(float64(updated))
	log.Infof("[PlayLog] Updated %d playlist contexts", updated)
	return updated, nil
}

// staffSession picks the staff member whose token runs the sweeps.
func (s *Service) staffSession() (*models.Member, *models.Provider, error) {
	staff, err := s.members.FirstStaff()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	p, err := s.memberProvider(staff)
	if err != nil {
		return nil, nil, err
	}
	return staff, p, nil
}

// SweepMissingArtistDetails queues enrichment for every artist that is still a stub.
// It returns the number of queued batches.
func (s *Service) SweepMissingArtistDetails(ctx context.Context) (int, error) {
	staff, p, err := s.staffSession()
	if err != nil {
		return 0, err
	}
	if staff == nil {
		log.Warnf("[PlayLog] No staff member found for updating artist details")
		return 0, nil
	}
	ids, err := s.catalog.ListArtistIDsMissingDetails(p.ID, 0)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		log.Infof("[PlayLog] No artists need updating")
		return 0, nil
	}
	return s.enqueueBatches(ctx, ids, func(batch []uint) error {
		return s.scheduler.EnqueueArtistDetails(ctx, batch, staff.ID)
	})
}

// SweepMissingPlaylistContextDetails queues enrichment for playlist contexts without details.
func (s *Service) SweepMissingPlaylistContextDetails(ctx context.Context) (int, error) {
	staff, _, err := s.staffSession()
	if err != nil {
		return 0, err
	}
	if staff == nil {
		log.Warnf("[PlayLog] No staff member found for updating playlist context details")
		return 0, nil
	}
	ids, err := s.playLogs.ListContextIDsMissingDetails(models.CONTEXT_TYPE_PLAYLIST, 0)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		log.Infof("[PlayLog] No playlist contexts need updating")
		return 0, nil
	}
	return s.enqueueBatches(ctx, ids, func(batch []uint) error {
		return s.scheduler.EnqueuePlaylistContextDetails(ctx, batch, staff.ID)
	})
}

func (s *Service) enqueueBatches(ctx context.Context, ids []uint, enqueue func([]uint) error) (int, error) {
	if s.scheduler == nil {
		return 0, fmt.Errorf("no scheduler configured")
	}
	batches := chunkIDs(ids, EnrichmentBatchSize)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := enqueue(batch); err != nil {
			return i, err
		}
	}
	log.Infof("[PlayLog] Found %d records to update, queued %d batches", len(ids), len(batches))
	return len(batches), nil
}
