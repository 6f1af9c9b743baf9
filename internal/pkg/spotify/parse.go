package spotify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const (
	maxNameLength = 200
	maxISRCLength = 30
)

// ErrInvalidItem marks a provider item that lacks a required field.
var ErrInvalidItem = errors.New("invalid spotify item")

// ArtistData is a normalized artist ready for persistence.
type ArtistData struct {
	ExternalID     string
	Name           string
	Popularity     *int
	FollowersCount *int
	Genres         []string
}

// TrackData is a normalized track.
type TrackData struct {
	ExternalID        string
	Name              string
	ArtistExternalIDs []string
	Popularity        *int
	IsPlayable        bool
	ISRC              string
}

// PlayData is a normalized play of the recently played endpoint.
type PlayData struct {
	TrackExternalID   string
	PlayedAt          time.Time
	ContextType       string
	ContextExternalID string
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func ParseArtist(a *Artist) (ArtistData, error) {
	if a == nil || a.ID == "" {
		return ArtistData{}, fmt.Errorf("%w: artist missing id", ErrInvalidItem)
	}
	d := ArtistData{
		ExternalID: a.ID,
		Name:       truncate(a.Name, maxNameLength),
		Popularity: a.Popularity,
		Genres:     a.Genres,
	}
	if a.Followers != nil {
		d.FollowersCount = a.Followers.Total
	}
	return d, nil
}

// ParseArtists keeps the valid artists and logs the rest.
func ParseArtists(list []*Artist) []ArtistData {
	out := make([]ArtistData, 0, len(list))
	for _, a := range list {
		d, err := ParseArtist(a)
		if err != nil {
			log.Warnf("[Spotify] Skipping artist: %v", err)
			continue
		}
		out = append(out, d)
	}
	return out
}

// ArtistsFromTracks collects the distinct artists referenced by tracks in first-seen order.
func ArtistsFromTracks(tracks []*Track) []ArtistData {
	seen := make(map[string]struct{})
	var out []ArtistData
	for _, t := range tracks {
		if t == nil {
			continue
		}
		for _, a := range t.Artists {
			if a.ID == "" {
				continue
			}
			if _, ok := seen[a.ID]; ok {
				continue
			}
			seen[a.ID] = struct{}{}
			out = append(out, ArtistData{ExternalID: a.ID, Name: truncate(a.Name, maxNameLength)})
		}
	}
	return out
}

func ParseTrack(t *Track) (TrackData, error) {
	if t == nil || t.ID == "" {
		return TrackData{}, fmt.Errorf("%w: track missing id", ErrInvalidItem)
	}
	d := TrackData{
		ExternalID: t.ID,
		Name:       truncate(t.Name, maxNameLength),
		Popularity: t.Popularity,
		IsPlayable: true,
		ISRC:       truncate(t.ExternalIDs["isrc"], maxISRCLength),
	}
	if t.IsPlayable != nil {
		d.IsPlayable = *t.IsPlayable
	}
	for _, a := range t.Artists {
		if a.ID != "" {
			d.ArtistExternalIDs = append(d.ArtistExternalIDs, a.ID)
		}
	}
	return d, nil
}

// ParseTracks keeps the first occurrence of every valid track.
func ParseTracks(tracks []*Track) []TrackData {
	seen := make(map[string]struct{}, len(tracks))
	out := make([]TrackData, 0, len(tracks))
	for _, t := range tracks {
		d, err := ParseTrack(t)
		if err != nil {
			log.Warnf("[Spotify] Skipping track: %v", err)
			continue
		}
		if _, ok := seen[d.ExternalID]; ok {
			continue
		}
		seen[d.ExternalID] = struct{}{}
		out = append(out, d)
	}
	return out
}

// ParsePlayedAt accepts RFC 3339 timestamps with or without fractional seconds.
// The result is UTC with millisecond precision.
func ParsePlayedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty played_at", ErrInvalidItem)
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: played_at %q: %v", ErrInvalidItem, s, err)
	}
	return ts.UTC().Truncate(time.Millisecond), nil
}

// ContextExternalID extracts the id of a "spotify:<type>:<id>" uri.
func ContextExternalID(uri string) string {
	parts := strings.Split(uri, ":")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

func ParsePlay(item PlayHistory) (PlayData, error) {
	if item.Track == nil || item.Track.ID == "" {
		return PlayData{}, fmt.Errorf("%w: play missing track id", ErrInvalidItem)
	}
	playedAt, err := ParsePlayedAt(item.PlayedAt)
	if err != nil {
		return PlayData{}, err
	}
	d := PlayData{TrackExternalID: item.Track.ID, PlayedAt: playedAt}
	if item.Context != nil {
		d.ContextType = item.Context.Type
		d.ContextExternalID = ContextExternalID(item.Context.URI)
	}
	return d, nil
}

func ParsePlays(items []PlayHistory) []PlayData {
	out := make([]PlayData, 0, len(items))
	for _, item := range items {
		d, err := ParsePlay(item)
		if err != nil {
			log.Warnf("[Spotify] Skipping play: %v", err)
			continue
		}
		out = append(out, d)
	}
	return out
}

// DedupeHistory drops repeated (track id, played_at) items, keeping the first.
func DedupeHistory(items []PlayHistory) []PlayHistory {
	type key struct{ track, playedAt string }
	seen := make(map[key]struct{}, len(items))
	out := make([]PlayHistory, 0, len(items))
	for _, item := range items {
		k := key{playedAt: item.PlayedAt}
		if item.Track != nil {
			k.track = item.Track.ID
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

// DedupePlays drops plays sharing a track and instant after parsing, which
// catches the same instant written with different precision.
func DedupePlays(plays []PlayData) []PlayData {
	type key struct {
		track string
		at    int64
	}
	seen := make(map[key]struct{}, len(plays))
	out := make([]PlayData, 0, len(plays))
	for _, p := range plays {
		k := key{p.TrackExternalID, p.PlayedAt.UnixMilli()}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}
