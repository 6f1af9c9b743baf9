package ingestion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/app/repository"
	"github.com/ManuelReschke/Walrus/internal/pkg/spotify"
)

func intPtr(v int) *int { return &v }

func TestUpdateArtistDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, created, err := f.svc.saveCatalog(f.provider.ID, []*spotify.Track{track("t-a", "ar-1", "ar-2")})
	require.NoError(t, err)
	require.Len(t, created, 2)

	f.api.setArtist(&spotify.Artist{
		ID:         "ar-1",
		Name:       "Band One",
		Popularity: intPtr(61),
		Followers:  &spotify.Followers{Total: intPtr(1200)},
		Genres:     []string{"indie pop", "mandopop"},
	})
	f.api.setArtist(&spotify.Artist{
		ID:         "ar-2",
		Name:       "Band Two",
		Popularity: intPtr(7),
		Followers:  &spotify.Followers{Total: intPtr(30)},
	})

	updated, err := f.svc.UpdateArtistDetails(ctx, created, f.member.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	var artists []models.Artist
	require.NoError(t, f.db.Preload("Genres").Where("id IN ?", created).Order("external_id ASC").Find(&artists).Error)
	require.Len(t, artists, 2)
	assert.Equal(t, "Band One", artists[0].Name)
	require.NotNil(t, artists[0].Popularity)
	assert.Equal(t, 61, *artists[0].Popularity)
	assert.Len(t, artists[0].Genres, 2)
	assert.Empty(t, artists[1].Genres)
	require.NotNil(t, artists[1].FollowersCount)
	assert.Equal(t, 30, *artists[1].FollowersCount)

	missing, err := f.repos.Catalog.ListArtistIDsMissingDetails(f.provider.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestUpdateArtistDetailsSkipsUnknownArtists(t *testing.T) {
	f := newFixture(t)

	_, created, err := f.svc.saveCatalog(f.provider.ID, []*spotify.Track{track("t-a", "ar-gone")})
	require.NoError(t, err)

	updated, err := f.svc.UpdateArtistDetails(context.Background(), created, f.member.ID)
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestUpdatePlaylistContextDetails(t *testing.T) {
	f := newFixture(t)
	public := true
	f.api.setPlaylistMeta(&spotify.Playlist{
		ID:     "pl-user",
		Name:   "Road trip",
		Public: &public,
		Owner:  spotify.PlaylistOwner{ID: "u1", DisplayName: "Alex"},
	})

	contexts, _, err := f.repos.PlayLog.GetOrCreateContexts([]repository.ContextKey{
		{Type: models.CONTEXT_TYPE_PLAYLIST, ExternalID: "pl-user"},
		{Type: models.CONTEXT_TYPE_PLAYLIST, ExternalID: "37i9dQZF1DX"},
		{Type: models.CONTEXT_TYPE_ALBUM, ExternalID: "al-1"},
	})
	require.NoError(t, err)
	var contextIDs []uint
	for _, c := range contexts {
		contextIDs = append(contextIDs, c.ID)
	}

	updated, err := f.svc.UpdatePlaylistContextDetails(context.Background(), contextIDs, f.member.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	rows, err := f.repos.PlayLog.GetContextsByIDs(contextIDs)
	require.NoError(t, err)
	byExternal := make(map[string]models.PlayLogContext)
	for _, c := range rows {
		byExternal[c.ExternalID] = c
	}
	user := byExternal["pl-user"].Details
	assert.Equal(t, "Road trip", user["name"])
	assert.Equal(t, "Alex", user["owner_name"])
	assert.Equal(t, true, user["is_public"])
	assert.Equal(t, models.CONTEXT_RESOURCE_USER, user["resource_type"])
	assert.Equal(t, map[string]any{"resource_type": models.CONTEXT_RESOURCE_OFFICIAL}, byExternal["37i9dQZF1DX"].Details)
	album := byExternal["al-1"]
	assert.False(t, album.HasDetails())

	missing, err := f.repos.PlayLog.ListContextIDsMissingDetails(models.CONTEXT_TYPE_PLAYLIST, 0)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestSweepMissingArtistDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	batches, err := f.svc.SweepMissingArtistDetails(ctx)
	require.NoError(t, err)
	assert.Zero(t, batches, "no staff member")

	staff := f.newMember(t, models.ROLE_STAFF)
	var list []*spotify.Track
	for i := 0; i < 60; i++ {
		list = append(list, track(fmt.Sprintf("t-%d", i), fmt.Sprintf("ar-%d", i)))
	}
	_, _, err = f.svc.saveCatalog(f.provider.ID, list)
	require.NoError(t, err)

	batches, err = f.svc.SweepMissingArtistDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, batches)

	calls := f.scheduler.byKind("artists")
	require.Len(t, calls, 2)
	assert.Len(t, calls[0].ids, EnrichmentBatchSize)
	assert.Len(t, calls[1].ids, 10)
	assert.Equal(t, staff.ID, calls[0].memberID)
}

func TestSweepMissingPlaylistContextDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staff := f.newMember(t, models.ROLE_STAFF)

	f.api.addPlays(play(track("t-a"), f.now.Add(-time.Hour), "spotify:playlist:pl-1"))
	_, err := f.svc.CollectRecentlyPlayed(ctx, f.member, 1)
	require.NoError(t, err)

	batches, err := f.svc.SweepMissingPlaylistContextDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, batches)

	calls := f.scheduler.byKind("contexts")
	require.NotEmpty(t, calls)
	last := calls[len(calls)-1]
	assert.Equal(t, staff.ID, last.memberID)
	assert.Len(t, last.ids, 1)
}

func TestChunkIDs(t *testing.T) {
	assert.Nil(t, chunkIDs(nil, 50))
	assert.Equal(t, [][]uint{{1, 2}, {3}}, chunkIDs([]uint{1, 2, 3}, 2))
}
