package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Walrus/app/models"
)

// MemberRepository defines the interface for member-related database operations
type MemberRepository interface {
	Create(member *models.Member) error
	GetByID(id uint) (*models.Member, error)
	GetByAPIKeyHash(hash string) (*models.Member, error)
	Update(member *models.Member) error
	// ListCollectable returns active members with a linked provider and the member role.
	ListCollectable() ([]models.Member, error)
	FirstStaff() (*models.Member, error)
}

// ProviderRepository defines the interface for provider-related database operations
type ProviderRepository interface {
	GetByID(id uint) (*models.Provider, error)
	GetByCode(code string) (*models.Provider, error)
	// Ensure creates the provider when no row with its code exists and loads the stored row.
	Ensure(provider *models.Provider) error
	ListActive() ([]models.Provider, error)
}

// APITokenRepository stores one encrypted token row per (owner kind, owner id, provider).
type APITokenRepository interface {
	Get(ownerKind string, ownerID, providerID uint) (*models.APIToken, error)
	Upsert(token *models.APIToken) error
	Delete(ownerKind string, ownerID, providerID uint) error
}

// ProxyAccountRepository defines the interface for proxy-account operations.
// Locking reads only take effect inside a transaction.
type ProxyAccountRepository interface {
	Create(account *models.ProxyAccount) error
	GetByCode(code string) (*models.ProxyAccount, error)
	GetByCodeForUpdate(code string) (*models.ProxyAccount, error)
	// FindAssigned returns the account memberID holds on platform, across all provider apps of it.
	FindAssigned(memberID uint, platform string, forUpdate bool) (*models.ProxyAccount, error)
	// PickFree locks and returns one active unassigned account of platform, skipping rows locked by others.
	PickFree(platform string) (*models.ProxyAccount, error)
	SetCurrentMember(accountID uint, memberID *uint, at *time.Time) error
	ListByPlatform(platform string) ([]models.ProxyAccount, error)
	AddAPICallCounts(counts map[uint]int64) error
	Transaction(fn func(repo ProxyAccountRepository) error) error
}

// ContextKey identifies a play log context.
type ContextKey struct {
	Type       string
	ExternalID string
}

// CatalogRepository manages artists, tracks and genres.
type CatalogRepository interface {
	CreateArtistsIgnoringConflicts(artists []models.Artist) error
	FindArtistsByExternalIDs(providerID uint, externalIDs []string) (map[string]models.Artist, error)
	GetArtistsByIDs(ids []uint) ([]models.Artist, error)
	UpdateArtistDetails(artist *models.Artist) error
	ListArtistIDsMissingDetails(providerID uint, limit int) ([]uint, error)

	CreateTracksIgnoringConflicts(tracks []models.Track) error
	FindTracksByExternalIDs(providerID uint, externalIDs []string) (map[string]models.Track, error)
	LinkTrackArtists(links map[uint][]uint) error

	EnsureGenres(providerID uint, names []string) (map[string]models.Genre, error)
	ReplaceArtistGenres(artistID uint, genres []models.Genre) error
}

// PlayLogRepository defines play log and context persistence.
type PlayLogRepository interface {
	// GetOrCreateContexts returns every requested context and the IDs of rows created by this call.
	GetOrCreateContexts(keys []ContextKey) (map[ContextKey]models.PlayLogContext, []uint, error)
	GetContextsByIDs(ids []uint) ([]models.PlayLogContext, error)
	UpdateContextDetails(id uint, details map[string]any) error
	ListContextIDsMissingDetails(contextType string, limit int) ([]uint, error)

	ExistingPlayKeys(memberID, providerID uint, from, to time.Time) (map[PlayKey]struct{}, error)
	CreateIgnoringConflicts(logs []models.PlayLog) (int64, error)
	CountByMember(memberID uint) (int64, error)
}

// PlayKey is the natural key of a play log within one member and provider.
type PlayKey struct {
	TrackID  uint
	PlayedAt int64 // unix millis
}

// PlaylistRepository defines playlist persistence.
type PlaylistRepository interface {
	GetOrCreate(memberID uint, playlistType string) (*models.Playlist, bool, error)
	FindByMemberAndType(memberID uint, playlistType string) (*models.Playlist, error)
	Update(playlist *models.Playlist) error
	// TrackExternalIDsExcludingTypes returns the track external ids in the member's playlists whose type is not in types.
	TrackExternalIDsExcludingTypes(memberID uint, types []string) ([]string, error)
	// ReplaceTracks re-inserts trackIDs in order and renumbers the whole playlist in one transaction.
	ReplaceTracks(playlistID uint, trackIDs []uint) (int, error)
	ListTracks(playlistID uint) ([]models.PlaylistTrack, error)
	// Transaction runs fn against a repository bound to one database transaction.
	Transaction(fn func(repo PlaylistRepository) error) error
}

// Repositories holds all repository instances
type Repositories struct {
	Member       MemberRepository
	Provider     ProviderRepository
	APIToken     APITokenRepository
	ProxyAccount ProxyAccountRepository
	Catalog      CatalogRepository
	PlayLog      PlayLogRepository
	Playlist     PlaylistRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Member:       NewMemberRepository(db),
		Provider:     NewProviderRepository(db),
		APIToken:     NewAPITokenRepository(db),
		ProxyAccount: NewProxyAccountRepository(db),
		Catalog:      NewCatalogRepository(db),
		PlayLog:      NewPlayLogRepository(db),
		Playlist:     NewPlaylistRepository(db),
	}
}
