package ingestion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/internal/pkg/spotify"
)

func TestCollectRecentlyPlayedStoresPlaysOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, b := track("t-a", "ar-1", "ar-2"), track("t-b", "ar-2")
	first := play(a, f.now.Add(-1*time.Hour), "spotify:playlist:pl-user")
	f.api.addPlays(
		first,
		first,
		play(b, f.now.Add(-2*time.Hour), "spotify:album:al-1"),
		play(a, f.now.Add(-3*time.Hour), ""),
	)

	res, err := f.svc.CollectRecentlyPlayed(ctx, f.member, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Fetched)
	assert.Equal(t, 3, res.Parsed)
	assert.EqualValues(t, 3, res.Created)
	assert.Equal(t, 2, res.NewArtists)
	assert.Equal(t, 2, res.NewContexts)

	res, err = f.svc.CollectRecentlyPlayed(ctx, f.member, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.Created)
	assert.Equal(t, 0, res.NewArtists)

	count, err := f.repos.PlayLog.CountByMember(f.member.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	f.api.addPlays(play(b, f.now.Add(-10*time.Minute), ""))
	res, err = f.svc.CollectRecentlyPlayed(ctx, f.member, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Created)

	count, err = f.repos.PlayLog.CountByMember(f.member.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
}

func TestCollectRecentlyPlayedOverlappingRunsDoNotDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, id := range []string{"t-1", "t-2", "t-3", "t-4", "t-5"} {
		f.api.addPlays(play(track(id, "ar-x"), f.now.Add(-time.Duration(i+1)*time.Hour), ""))
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CollectRecentlyPlayed(ctx, f.member, 3)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	count, err := f.repos.PlayLog.CountByMember(f.member.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)
}

func TestCollectRecentlyPlayedRespectsLookback(t *testing.T) {
	f := newFixture(t)

	f.api.addPlays(
		play(track("t-new"), f.now.Add(-12*time.Hour), ""),
		play(track("t-old"), f.now.Add(-5*24*time.Hour), ""),
	)

	res, err := f.svc.CollectRecentlyPlayed(context.Background(), f.member, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetched)
	require.Len(t, res.Logs, 1)
	assert.True(t, res.Logs[0].PlayedAt.Equal(f.now.Add(-12*time.Hour)))
}

func TestCollectRecentlyPlayedSchedulesEnrichment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.api.addPlays(
		play(track("t-a", "ar-1"), f.now.Add(-1*time.Hour), "spotify:playlist:pl-1"),
		play(track("t-b", "ar-2"), f.now.Add(-2*time.Hour), "spotify:playlist:pl-2"),
		play(track("t-c", "ar-1"), f.now.Add(-3*time.Hour), "spotify:artist:ar-1"),
	)

	_, err := f.svc.CollectRecentlyPlayed(ctx, f.member, 3)
	require.NoError(t, err)

	artists := f.scheduler.byKind("artists")
	require.Len(t, artists, 1)
	assert.Len(t, artists[0].ids, 2)
	assert.Equal(t, f.member.ID, artists[0].memberID)

	contexts := f.scheduler.byKind("contexts")
	require.Len(t, contexts, 1)
	assert.Len(t, contexts[0].ids, 2, "only playlist contexts are enriched")

	_, err = f.svc.CollectRecentlyPlayed(ctx, f.member, 3)
	require.NoError(t, err)
	assert.Len(t, f.scheduler.byKind("artists"), 1, "known artists are not queued again")
}

func TestCollectRecentlyPlayedWithoutProvider(t *testing.T) {
	f := newFixture(t)
	m := &models.Member{ID: 99, Role: models.ROLE_MEMBER}

	_, err := f.svc.CollectRecentlyPlayed(context.Background(), m, 3)
	require.Error(t, err)
	assert.Zero(t, f.api.count("recently_played"))
}

func TestCollectAllQueuesCollectableMembers(t *testing.T) {
	f := newFixture(t)
	second := f.newMember(t, models.ROLE_MEMBER)
	f.newMember(t, models.ROLE_STAFF)

	queued, err := f.svc.CollectAll(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 2, queued)

	var got []uint
	for _, c := range f.scheduler.byKind("collect") {
		assert.Equal(t, 3, c.days)
		got = append(got, c.memberID)
	}
	assert.ElementsMatch(t, []uint{f.member.ID, second.ID}, got)
}

func TestSaveCatalogLinksArtists(t *testing.T) {
	f := newFixture(t)

	stored, created, err := f.svc.saveCatalog(f.provider.ID, []*spotify.Track{
		track("t-a", "ar-1", "ar-2"),
		track("t-b", "ar-2"),
	})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Len(t, created, 2)

	_, created, err = f.svc.saveCatalog(f.provider.ID, []*spotify.Track{track("t-c", "ar-1", "ar-3")})
	require.NoError(t, err)
	assert.Len(t, created, 1)
}
