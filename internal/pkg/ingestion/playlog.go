package ingestion

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/app/repository"
	"github.com/ManuelReschke/Walrus/internal/pkg/metrics"
	"github.com/ManuelReschke/Walrus/internal/pkg/spotify"
)

// CollectResult summarizes one recently played collection.
type CollectResult struct {
	Fetched     int              `json:"fetched"`
	Parsed      int              `json:"parsed"`
	Created     int64            `json:"created"`
	NewArtists  int              `json:"new_artists"`
	NewContexts int              `json:"new_contexts"`
	Logs        []models.PlayLog `json:"-"`
}

// CollectRecentlyPlayed stores the member's plays of the last days. Plays
// already on file are left as they are, so overlapping windows are safe.
func (s *Service) CollectRecentlyPlayed(ctx context.Context, member *models.Member, days int) (*CollectResult, error) {
	if days <= 0 {
		days = DefaultLookbackDays
	}
	p, token, err := s.session(ctx, member)
	if err != nil {
		return nil, err
	}

	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	log.Infof("[PlayLog] Fetching recently played for member %d, last %d days", member.ID, days)
	raw, err := s.client.AllRecentlyPlayed(ctx, token, since)
	if err != nil {
		return nil, err
	}

	res := &CollectResult{Fetched: len(raw)}
	if len(raw) == 0 {
		log.Infof("[PlayLog] No recently played items for member %d", member.ID)
		return res, nil
	}

	raw = spotify.DedupeHistory(raw)
	tracks := make([]*spotify.Track, 0, len(raw))
	for _, item := range raw {
		if item.Track != nil {
			tracks = append(tracks, item.Track)
		}
	}
	plays := spotify.DedupePlays(spotify.ParsePlays(raw))
	res.Parsed = len(plays)

	trackMap, newArtists, err := s.saveCatalog(p.ID, tracks)
	if err != nil {
		return nil, err
	}
	res.NewArtists = len(newArtists)

	var keys []repository.ContextKey
	for _, play := range plays {
		if play.ContextType != "" && play.ContextExternalID != "" {
			keys = append(keys, repository.ContextKey{Type: play.ContextType, ExternalID: play.ContextExternalID})
		}
	}
	contexts, newContexts, err := s.playLogs.GetOrCreateContexts(keys)
	if err != nil {
		return nil, fmt.Errorf("resolve play contexts: %w", err)
	}
	res.NewContexts = len(newContexts)

	logs := make([]models.PlayLog, 0, len(plays))
	var from, to time.Time
	for _, play := range plays {
		track, ok := trackMap[play.TrackExternalID]
		if !ok {
			continue
		}
		pl := models.PlayLog{
			MemberID:   member.ID,
			TrackID:    track.ID,
			ProviderID: p.ID,
			PlayedAt:   play.PlayedAt,
		}
		if c, ok := contexts[repository.ContextKey{Type: play.ContextType, ExternalID: play.ContextExternalID}]; ok {
			id := c.ID
			pl.ContextID = &id
		}
		if from.IsZero() || play.PlayedAt.Before(from) {
			from = play.PlayedAt
		}
		if play.PlayedAt.After(to) {
			to = play.PlayedAt
		}
		logs = append(logs, pl)
	}

	if len(logs) > 0 {
		existing, err := s.playLogs.ExistingPlayKeys(member.ID, p.ID, from, to)
		if err != nil {
			return nil, fmt.Errorf("load existing plays: %w", err)
		}
		fresh := logs[:0]
		for _, pl := range logs {
			if _, ok := existing[repository.PlayKey{TrackID: pl.TrackID, PlayedAt: pl.PlayedAt.UnixMilli()}]; ok {
				continue
			}
			fresh = append(fresh, pl)
		}
		logs = fresh
	}

	created, err := s.playLogs.CreateIgnoringConflicts(logs)
	if err != nil {
		return nil, fmt.Errorf("store play logs: %w", err)
	}
	res.Created = created
	res.Logs = logs
	metrics.IngestedRecords.WithLabelValues("play_log").Add(float64(created))
	metrics.IngestedRecords.WithLabelValues("artist").Add(float64(len(newArtists)))
	log.Infof("[PlayLog] Member %d: fetched %d, parsed %d, created %d play logs", member.ID, res.Fetched, res.Parsed, created)

	s.scheduleEnrichment(ctx, member.ID, newArtists, contexts)
	return res, nil
}

func (s *Service) scheduleEnrichment(ctx context.Context, memberID uint, artistIDs []uint, contexts map[repository.ContextKey]models.PlayLogContext) {
	if s.scheduler == nil {
		return
	}
	for _, batch := range chunkIDs(artistIDs, EnrichmentBatchSize) {
		if err := s.scheduler.EnqueueArtistDetails(ctx, batch, memberID); err != nil {
			log.Warnf("[PlayLog] Could not enqueue artist details: %v", err)
		}
	}

	var pending []uint
	for _, c := range contexts {
		if c.Type == models.CONTEXT_TYPE_PLAYLIST && !c.HasDetails() {
			pending = append(pending, c.ID)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })
	for _, batch := range chunkIDs(pending, EnrichmentBatchSize) {
		if err := s.scheduler.EnqueuePlaylistContextDetails(ctx, batch, memberID); err != nil {
			log.Warnf("[PlayLog] Could not enqueue playlist context details: %v", err)
		}
	}
}

// CollectAll queues a collection for every member with a linked provider.
func (s *Service) CollectAll(ctx context.Context, days int) (int, error) {
	members, err := s.members.ListCollectable()
	if err != nil {
		return 0, err
	}
	if s.scheduler == nil {
		return 0, fmt.Errorf("no scheduler configured")
	}
	queued := 0
	for _, m := range members {
		if err := s.scheduler.EnqueueCollect(ctx, m.ID, days); err != nil {
			log.Warnf("[PlayLog] Could not enqueue collection for member %d: %v", m.ID, err)
			continue
		}
		queued++
	}
	log.Infof("[PlayLog] Queued collection for %d members", queued)
	return queued, nil
}

// CollectForMember loads memberID and collects its recently played tracks.
// Inactive members are skipped.
func (s *Service) CollectForMember(ctx context.Context, memberID uint, days int) (*CollectResult, error) {
	member, err := s.member(memberID)
	if err != nil {
		return nil, err
	}
	if !member.IsActive() {
		log.Infof("[PlayLog] Skipping inactive member %d", memberID)
		return &CollectResult{}, nil
	}
	return s.CollectRecentlyPlayed(ctx, member, days)
}
