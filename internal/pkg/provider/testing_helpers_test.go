package provider

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/app/repository"
	"github.com/ManuelReschke/Walrus/internal/pkg/cache"
	"github.com/ManuelReschke/Walrus/internal/pkg/database"
	"github.com/ManuelReschke/Walrus/internal/pkg/secretstore"
)

// memoryStorage is an in-memory fiber.Storage.
type memoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{data: make(map[string][]byte)}
}

func (m *memoryStorage) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryStorage) Set(key string, val []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = val
	return nil
}

func (m *memoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryStorage) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}

func (m *memoryStorage) Close() error {
	return nil
}

// tokenServer emulates the provider token endpoint.
type tokenServer struct {
	*httptest.Server
	calls    atomic.Int32
	response func(r *http.Request) (int, map[string]any)
}

func newTokenServer(t *testing.T) *tokenServer {
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		assert.NoError(t, r.ParseForm())
		status, body := ts.response(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

type fixture struct {
	mr       *miniredis.Miniredis
	repos    *repository.Repositories
	provider *models.Provider
	member   *models.Member
	tokens   *TokenService
	states   *StateStore
	box      *secretstore.Box
	server   *tokenServer
}

func testConfig(tokenURL string) Config {
	return Config{
		Code:              CodeSpotify,
		ClientID:          "client",
		ClientSecret:      "secret",
		MemberRedirectURI: "http://localhost/api/v1/spotify/auth/member/authorize-callback",
		ProxyRedirectURI:  "http://localhost/api/v1/spotify/auth/proxy-account/authorize-callback",
		AuthURL:           "https://accounts.example.com/authorize",
		TokenURL:          tokenURL,
		APIBaseURL:        "https://api.example.com/v1",
		Scopes:            []string{"user-read-recently-played"},
		UseBasicAuth:      true,
		DefaultExpiration: 3600,
		HTTPTimeout:       5 * time.Second,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := database.NewTestDB(t)
	repos := repository.NewRepositories(db)

	def, err := Lookup(CodeSpotify)
	require.NoError(t, err)
	p := def.Row()
	require.NoError(t, repos.Provider.Ensure(p))

	m := &models.Member{Name: "m", Email: "m@example.com", Role: models.ROLE_MEMBER, Status: models.STATUS_ACTIVE, APIKeyHash: models.HashAPIKey("m"), ProviderID: &p.ID}
	require.NoError(t, repos.Member.Create(m))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	box, err := secretstore.New("test-secret")
	require.NoError(t, err)

	server := newTokenServer(t)
	states := NewStateStore(newMemoryStorage())
	svc := NewTokenService(repos.APIToken, repos.Provider, cache.NewTokenCache(rdb), box, states)
	svc.Register(NewHandler(testConfig(server.URL), server.Client()), nil)

	return &fixture{mr: mr, repos: repos, provider: p, member: m, tokens: svc, states: states, box: box, server: server}
}

func (f *fixture) storeToken(t *testing.T, ownerKind string, ownerID uint, access, refresh string, expiresAt time.Time) {
	t.Helper()
	accessEnc, err := f.box.Seal(access)
	require.NoError(t, err)
	rec := &models.APIToken{OwnerKind: ownerKind, OwnerID: ownerID, ProviderID: f.provider.ID, AccessTokenEnc: accessEnc, ExpiresAt: &expiresAt}
	if refresh != "" {
		enc, err := f.box.Seal(refresh)
		require.NoError(t, err)
		rec.RefreshTokenEnc = &enc
	}
	require.NoError(t, f.repos.APIToken.Upsert(rec))
}
