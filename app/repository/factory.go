package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// DB returns the handle the repositories were built on.
func (f *Factory) DB() *gorm.DB {
	return f.db
}

func (f *Factory) GetMemberRepository() MemberRepository {
	return f.GetRepositories().Member
}

func (f *Factory) GetProviderRepository() ProviderRepository {
	return f.GetRepositories().Provider
}

func (f *Factory) GetAPITokenRepository() APITokenRepository {
	return f.GetRepositories().APIToken
}

func (f *Factory) GetProxyAccountRepository() ProxyAccountRepository {
	return f.GetRepositories().ProxyAccount
}

func (f *Factory) GetCatalogRepository() CatalogRepository {
	return f.GetRepositories().Catalog
}

func (f *Factory) GetPlayLogRepository() PlayLogRepository {
	return f.GetRepositories().PlayLog
}

func (f *Factory) GetPlaylistRepository() PlaylistRepository {
	return f.GetRepositories().Playlist
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
