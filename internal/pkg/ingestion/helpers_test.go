package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/app/repository"
	"github.com/ManuelReschke/Walrus/internal/pkg/cache"
	"github.com/ManuelReschke/Walrus/internal/pkg/database"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
	"github.com/ManuelReschke/Walrus/internal/pkg/spotify"
)

type staticTokens struct{}

func (staticTokens) GetAccessToken(_ context.Context, owner provider.Owner, _ string) (string, error) {
	return fmt.Sprintf("tok-%d", owner.ID()), nil
}

type call struct {
	kind     string
	ids      []uint
	memberID uint
	days     int
}

type recordingScheduler struct {
	mu    sync.Mutex
	calls []call
}

func (r *recordingScheduler) add(c call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return nil
}

func (r *recordingScheduler) EnqueueCollect(_ context.Context, memberID uint, days int) error {
	return r.add(call{kind: "collect", memberID: memberID, days: days})
}

func (r *recordingScheduler) EnqueueArtistDetails(_ context.Context, ids []uint, memberID uint) error {
	return r.add(call{kind: "artists", ids: append([]uint(nil), ids...), memberID: memberID})
}

func (r *recordingScheduler) EnqueuePlaylistContextDetails(_ context.Context, ids []uint, memberID uint) error {
	return r.add(call{kind: "contexts", ids: append([]uint(nil), ids...), memberID: memberID})
}

func (r *recordingScheduler) byKind(kind string) []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call
	for _, c := range r.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// fakeAPI serves the Web API endpoints the service uses from in-memory data.
type fakeAPI struct {
	mu        sync.Mutex
	plays     []spotify.PlayHistory
	playlists map[string][]*spotify.Track
	meta      map[string]*spotify.Playlist
	artists   map[string]*spotify.Artist
	requests  map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		playlists: make(map[string][]*spotify.Track),
		meta:      make(map[string]*spotify.Playlist),
		artists:   make(map[string]*spotify.Artist),
		requests:  make(map[string]int),
	}
}

func (f *fakeAPI) setPlaylist(id string, tracks []*spotify.Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlists[id] = tracks
}

func (f *fakeAPI) setArtist(a *spotify.Artist) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artists[a.ID] = a
}

func (f *fakeAPI) setPlaylistMeta(pl *spotify.Playlist) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta[pl.ID] = pl
}

func (f *fakeAPI) addPlays(items ...spotify.PlayHistory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, items...)
}

func (f *fakeAPI) count(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[endpoint]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404, "message": "Resource not found"}})
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := strings.TrimPrefix(r.URL.Path, "/v1/")
	q := r.URL.Query()

	switch {
	case path == "me/player/recently-played":
		f.requests["recently_played"]++
		after, _ := strconv.ParseInt(q.Get("after"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))
		var items []spotify.PlayHistory
		for _, p := range f.plays {
			at, err := time.Parse(time.RFC3339Nano, p.PlayedAt)
			if err != nil || at.UnixMilli() > after {
				items = append(items, p)
			}
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].PlayedAt < items[j].PlayedAt })
		if len(items) > limit {
			items = items[:limit]
		}
		writeJSON(w, http.StatusOK, spotify.RecentlyPlayedPage{Items: items, Limit: limit})

	case path == "artists":
		f.requests["artists"]++
		resp := map[string][]*spotify.Artist{"artists": {}}
		for _, id := range strings.Split(q.Get("ids"), ",") {
			resp["artists"] = append(resp["artists"], f.artists[id])
		}
		writeJSON(w, http.StatusOK, resp)

	case strings.HasPrefix(path, "playlists/") && strings.HasSuffix(path, "/tracks"):
		f.requests["playlist_tracks"]++
		id := strings.TrimSuffix(strings.TrimPrefix(path, "playlists/"), "/tracks")
		tracks, ok := f.playlists[id]
		if !ok {
			notFound(w)
			return
		}
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		var items []spotify.PlaylistItem
		for i := offset; i < len(tracks) && i < offset+limit; i++ {
			items = append(items, spotify.PlaylistItem{Track: tracks[i]})
		}
		writeJSON(w, http.StatusOK, spotify.PlaylistTracksPage{Items: items, Offset: offset, Limit: limit, Total: len(tracks)})

	case strings.HasPrefix(path, "playlists/"):
		f.requests["playlist"]++
		pl, ok := f.meta[strings.TrimPrefix(path, "playlists/")]
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, pl)

	default:
		notFound(w)
	}
}

type fixture struct {
	svc       *Service
	db        *gorm.DB
	repos     *repository.Repositories
	provider  *models.Provider
	member    *models.Member
	api       *fakeAPI
	orders    *cache.PlaylistOrderCache
	scheduler *recordingScheduler
	now       time.Time
	seq       int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := database.NewTestDB(t)
	repos := repository.NewRepositories(db)

	def, err := provider.Lookup(provider.CodeSpotify)
	require.NoError(t, err)
	p := def.Row()
	require.NoError(t, repos.Provider.Ensure(p))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	api := newFakeAPI()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	gw := provider.NewGateway(provider.Config{Code: provider.CodeSpotify, APIBaseURL: srv.URL + "/v1"}, srv.Client())

	f := &fixture{
		db:        db,
		repos:     repos,
		provider:  p,
		api:       api,
		orders:    cache.NewPlaylistOrderCache(rdb, 0),
		scheduler: &recordingScheduler{},
		now:       time.Date(2024, 11, 8, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(repos, staticTokens{}, spotify.NewClient(gw), f.orders, f.scheduler)
	f.svc.now = func() time.Time { return f.now }
	f.member = f.newMember(t, models.ROLE_MEMBER)
	return f
}

func (f *fixture) newMember(t *testing.T, role string) *models.Member {
	t.Helper()
	f.seq++
	m := &models.Member{
		Name:       fmt.Sprintf("member-%d", f.seq),
		Email:      fmt.Sprintf("member-%d@example.com", f.seq),
		Role:       role,
		Status:     models.STATUS_ACTIVE,
		APIKeyHash: models.HashAPIKey(fmt.Sprintf("key-%d", f.seq)),
		ProviderID: &f.provider.ID,
	}
	require.NoError(t, f.repos.Member.Create(m))
	return m
}

func track(id string, artistIDs ...string) *spotify.Track {
	t := &spotify.Track{ID: id, Name: "Track " + id, Type: "track"}
	for _, a := range artistIDs {
		t.Artists = append(t.Artists, spotify.SimpleArtist{ID: a, Name: "Artist " + a})
	}
	return t
}

func tracks(prefix string, n int) []*spotify.Track {
	out := make([]*spotify.Track, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, track(fmt.Sprintf("%s%02d", prefix, i), "ar-"+prefix))
	}
	return out
}

func ids(list []*spotify.Track) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.ID)
	}
	return out
}

func play(t *spotify.Track, at time.Time, contextURI string) spotify.PlayHistory {
	item := spotify.PlayHistory{Track: t, PlayedAt: at.Format("2006-01-02T15:04:05.000Z")}
	if contextURI != "" {
		parts := strings.Split(contextURI, ":")
		item.Context = &spotify.Context{Type: parts[1], URI: contextURI}
	}
	return item
}
