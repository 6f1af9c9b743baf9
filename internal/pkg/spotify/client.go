package spotify

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
)

const (
	// PageSize is the largest page the Web API serves for the endpoints used here.
	PageSize        = 50
	ArtistBatchSize = 50
	DefaultMarket   = "TW"
)

// Client calls the Spotify Web API through a provider gateway.
type Client struct {
	gw *provider.Gateway
}

func NewClient(gw *provider.Gateway) *Client {
	return &Client{gw: gw}
}

// RecentlyPlayed returns one page of plays after afterMs (unix millis).
func (c *Client) RecentlyPlayed(ctx context.Context, token string, afterMs int64, limit int) (*RecentlyPlayedPage, error) {
	if limit <= 0 || limit > PageSize {
		limit = PageSize
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if afterMs > 0 {
		q.Set("after", strconv.FormatInt(afterMs, 10))
	}
	var page RecentlyPlayedPage
	err := c.gw.Do(ctx, provider.Request{
		Endpoint: "recently_played",
		Path:     "me/player/recently-played",
		Query:    q,
		Token:    token,
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// AllRecentlyPlayed pages through plays since since. The cursor advances to
// the last item's played_at; it stops on a short page or when the cursor
// does not move forward.
func (c *Client) AllRecentlyPlayed(ctx context.Context, token string, since time.Time) ([]PlayHistory, error) {
	var all []PlayHistory
	after := since.UnixMilli()

	for {
		page, err := c.RecentlyPlayed(ctx, token, after, PageSize)
		if err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			break
		}
		all = append(all, page.Items...)

		last, err := ParsePlayedAt(page.Items[len(page.Items)-1].PlayedAt)
		if err != nil {
			log.Warnf("[Spotify] Stopping pagination, bad played_at: %v", err)
			break
		}
		next := last.UnixMilli()
		if next <= after {
			break
		}
		after = next

		if len(page.Items) < PageSize {
			break
		}
	}
	return all, nil
}

// SeveralArtists fetches artists in batches. Unknown ids are skipped.
func (c *Client) SeveralArtists(ctx context.Context, token string, ids []string) ([]*Artist, error) {
	var out []*Artist
	for start := 0; start < len(ids); start += ArtistBatchSize {
		end := start + ArtistBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		var resp severalArtistsResponse
		err := c.gw.Do(ctx, provider.Request{
			Endpoint: "several_artists",
			Path:     "artists",
			Query:    url.Values{"ids": {strings.Join(ids[start:end], ",")}},
			Token:    token,
		}, &resp)
		if err != nil {
			return nil, err
		}
		for _, a := range resp.Artists {
			if a != nil {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (c *Client) Playlist(ctx context.Context, token, playlistID string) (*Playlist, error) {
	var pl Playlist
	err := c.gw.Do(ctx, provider.Request{
		Endpoint: "playlist",
		Path:     "playlists/" + url.PathEscape(playlistID),
		Query:    url.Values{"fields": {"id,name,public,owner(id,display_name)"}},
		Token:    token,
	}, &pl)
	if err != nil {
		return nil, err
	}
	return &pl, nil
}

func (c *Client) PlaylistTracks(ctx context.Context, token, playlistID, market string, offset, limit int) (*PlaylistTracksPage, error) {
	if limit <= 0 || limit > PageSize {
		limit = PageSize
	}
	q := url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
	if market != "" {
		q.Set("market", market)
	}
	var page PlaylistTracksPage
	err := c.gw.Do(ctx, provider.Request{
		Endpoint: "playlist_tracks",
		Path:     "playlists/" + url.PathEscape(playlistID) + "/tracks",
		Query:    q,
		Token:    token,
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// AllPlaylistTracks returns every track of a playlist in provider order.
// Episodes and removed tracks are dropped.
func (c *Client) AllPlaylistTracks(ctx context.Context, token, playlistID, market string) ([]*Track, error) {
	var tracks []*Track
	offset := 0
	for {
		page, err := c.PlaylistTracks(ctx, token, playlistID, market, offset, PageSize)
		if err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			break
		}
		for _, item := range page.Items {
			if item.Track != nil && item.Track.Type == "track" {
				tracks = append(tracks, item.Track)
			}
		}
		offset += len(page.Items)
		if len(page.Items) < PageSize {
			break
		}
	}
	return tracks, nil
}
