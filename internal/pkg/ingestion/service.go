package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/app/repository"
	"github.com/ManuelReschke/Walrus/internal/pkg/cache"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
	"github.com/ManuelReschke/Walrus/internal/pkg/spotify"
)

const (
	DefaultLookbackDays = 3
	MaxLookbackDays     = 30
	// EnrichmentBatchSize matches the several-artists endpoint limit.
	EnrichmentBatchSize = 50
)

// TokenSource hands out member access tokens.
type TokenSource interface {
	GetAccessToken(ctx context.Context, owner provider.Owner, providerCode string) (string, error)
}

// Scheduler queues follow-up work. Implemented by the job queue.
type Scheduler interface {
	EnqueueCollect(ctx context.Context, memberID uint, days int) error
	EnqueueArtistDetails(ctx context.Context, artistIDs []uint, memberID uint) error
	EnqueuePlaylistContextDetails(ctx context.Context, contextIDs []uint, memberID uint) error
}

// Service pulls listening data from the provider into the catalog, play log
// and playlist tables.
type Service struct {
	members   repository.MemberRepository
	providers repository.ProviderRepository
	catalog   repository.CatalogRepository
	playLogs  repository.PlayLogRepository
	playlists repository.PlaylistRepository
	tokens    TokenSource
	client    *spotify.Client
	orders    *cache.PlaylistOrderCache
	scheduler Scheduler
	market    string
	now       func() time.Time
}

func NewService(
	repos *repository.Repositories,
	tokens TokenSource,
	client *spotify.Client,
	orders *cache.PlaylistOrderCache,
	scheduler Scheduler,
) *Service {
	return &Service{
		members:   repos.Member,
		providers: repos.Provider,
		catalog:   repos.Catalog,
		playLogs:  repos.PlayLog,
		playlists: repos.Playlist,
		tokens:    tokens,
		client:    client,
		orders:    orders,
		scheduler: scheduler,
		market:    spotify.DefaultMarket,
		now:       time.Now,
	}
}

// SetScheduler wires the queue after construction; the queue's processors
// need the service first.
func (s *Service) SetScheduler(scheduler Scheduler) {
	s.scheduler = scheduler
}

// SetMarket overrides the market used for playlist track lookups.
func (s *Service) SetMarket(market string) {
	s.market = market
}

func (s *Service) memberProvider(member *models.Member) (*models.Provider, error) {
	if member.Provider != nil {
		return member.Provider, nil
	}
	if member.ProviderID == nil {
		return nil, provider.NewError(provider.CodeValidation, "member has no provider linked", map[string]any{
			"member_id": member.ID,
		})
	}
	p, err := s.providers.GetByID(*member.ProviderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, provider.NewError(provider.CodeNotFound, "provider not found", map[string]any{
			"provider_id": *member.ProviderID,
		})
	}
	return p, err
}

func (s *Service) member(id uint) (*models.Member, error) {
	m, err := s.members.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, provider.NewError(provider.CodeNotFound, fmt.Sprintf("member %d not found", id), nil)
	}
	return m, err
}

// session resolves the provider and a usable token for member.
func (s *Service) session(ctx context.Context, member *models.Member) (*models.Provider, string, error) {
	p, err := s.memberProvider(member)
	if err != nil {
		return nil, "", err
	}
	token, err := s.tokens.GetAccessToken(ctx, provider.MemberOwner{Member: member}, p.Code)
	if err != nil {
		return nil, "", err
	}
	return p, token, nil
}

func chunkIDs(ids []uint, size int) [][]uint {
	var out [][]uint
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
