package spotify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestParseTrackDefaultsAndTruncation(t *testing.T) {
	long := strings.Repeat("あ", 250)
	d, err := ParseTrack(&Track{
		ID:          "t1",
		Name:        long,
		Artists:     []SimpleArtist{{ID: "a1"}, {Name: "no id"}, {ID: "a2"}},
		ExternalIDs: map[string]string{"isrc": strings.Repeat("X", 40)},
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", d.ExternalID)
	assert.Len(t, []rune(d.Name), 200)
	assert.True(t, d.IsPlayable)
	assert.Len(t, d.ISRC, 30)
	assert.Equal(t, []string{"a1", "a2"}, d.ArtistExternalIDs)

	notPlayable := false
	d, err = ParseTrack(&Track{ID: "t2", IsPlayable: &notPlayable})
	require.NoError(t, err)
	assert.False(t, d.IsPlayable)
	assert.Empty(t, d.ISRC)

	_, err = ParseTrack(&Track{Name: "missing id"})
	assert.True(t, errors.Is(err, ErrInvalidItem))
}

func TestParseArtist(t *testing.T) {
	d, err := ParseArtist(&Artist{ID: "a1", Name: "A", Popularity: intPtr(40), Followers: &Followers{Total: intPtr(1000)}})
	require.NoError(t, err)
	assert.Equal(t, 40, *d.Popularity)
	assert.Equal(t, 1000, *d.FollowersCount)

	list := ParseArtists([]*Artist{{ID: "a1"}, {Name: "bad"}, nil})
	assert.Len(t, list, 1)
}

func TestArtistsFromTracksDedupes(t *testing.T) {
	out := ArtistsFromTracks([]*Track{
		{ID: "t1", Artists: []SimpleArtist{{ID: "a1", Name: "One"}, {ID: "a2", Name: "Two"}}},
		{ID: "t2", Artists: []SimpleArtist{{ID: "a2", Name: "Two"}, {ID: ""}}},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "a1", out[0].ExternalID)
	assert.Equal(t, "a2", out[1].ExternalID)
}

func TestParsePlayedAt(t *testing.T) {
	withFraction, err := ParsePlayedAt("2024-11-08T12:34:56.789Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 11, 8, 12, 34, 56, 789e6, time.UTC), withFraction)

	plain, err := ParsePlayedAt("2024-11-08T12:34:56Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 11, 8, 12, 34, 56, 0, time.UTC), plain)

	offset, err := ParsePlayedAt("2024-11-08T20:34:56+08:00")
	require.NoError(t, err)
	assert.True(t, offset.Equal(plain))

	_, err = ParsePlayedAt("yesterday")
	assert.True(t, errors.Is(err, ErrInvalidItem))
}

func TestParsePlayContext(t *testing.T) {
	d, err := ParsePlay(PlayHistory{
		Track:    &Track{ID: "t1"},
		PlayedAt: "2024-11-08T12:34:56.789Z",
		Context:  &Context{Type: "playlist", URI: "spotify:playlist:37i9dQZF1DX"},
	})
	require.NoError(t, err)
	assert.Equal(t, "playlist", d.ContextType)
	assert.Equal(t, "37i9dQZF1DX", d.ContextExternalID)

	d, err = ParsePlay(PlayHistory{Track: &Track{ID: "t1"}, PlayedAt: "2024-11-08T12:34:56Z"})
	require.NoError(t, err)
	assert.Empty(t, d.ContextType)

	assert.Empty(t, ContextExternalID("spotify:album"))

	plays := ParsePlays([]PlayHistory{
		{Track: &Track{ID: "t1"}, PlayedAt: "2024-11-08T12:34:56Z"},
		{Track: &Track{}, PlayedAt: "2024-11-08T12:34:56Z"},
		{Track: &Track{ID: "t2"}},
	})
	assert.Len(t, plays, 1)
}

func TestDedupe(t *testing.T) {
	items := []PlayHistory{
		{Track: &Track{ID: "t1"}, PlayedAt: "2024-11-08T12:00:00Z"},
		{Track: &Track{ID: "t1"}, PlayedAt: "2024-11-08T12:00:00Z"},
		{Track: &Track{ID: "t1"}, PlayedAt: "2024-11-08T12:00:00.000Z"},
		{Track: &Track{ID: "t2"}, PlayedAt: "2024-11-08T12:00:00Z"},
	}
	raw := DedupeHistory(items)
	assert.Len(t, raw, 3)

	plays := DedupePlays(ParsePlays(raw))
	assert.Len(t, plays, 2)
}
