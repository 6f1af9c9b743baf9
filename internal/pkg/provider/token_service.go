package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/app/repository"
	"github.com/ManuelReschke/Walrus/internal/pkg/cache"
	"github.com/ManuelReschke/Walrus/internal/pkg/metrics"
	"github.com/ManuelReschke/Walrus/internal/pkg/secretstore"
)

// TokenCacheBuffer is subtracted from a fresh token's lifetime when caching it.
const TokenCacheBuffer = 60 * time.Second

// TokenService implements cache-first, store-second, refresh-last access token retrieval.
type TokenService struct {
	tokens    repository.APITokenRepository
	providers repository.ProviderRepository
	cache     *cache.TokenCache
	box       *secretstore.Box
	states    *StateStore

	handlers map[string]*Handler
	profiles map[string]ProfileFetcher

	group singleflight.Group
	now   func() time.Time
}

func NewTokenService(
	tokens repository.APITokenRepository,
	providers repository.ProviderRepository,
	tokenCache *cache.TokenCache,
	box *secretstore.Box,
	states *StateStore,
) *TokenService {
	return &TokenService{
		tokens:    tokens,
		providers: providers,
		cache:     tokenCache,
		box:       box,
		states:    states,
		handlers:  make(map[string]*Handler),
		profiles:  make(map[string]ProfileFetcher),
		now:       time.Now,
	}
}

// Register makes a provider handler available. profile may be nil.
func (s *TokenService) Register(h *Handler, profile ProfileFetcher) {
	s.handlers[h.Code()] = h
	if profile == nil {
		profile = noProfile{}
	}
	s.profiles[h.Code()] = profile
}

func (s *TokenService) Handler(providerCode string) (*Handler, error) {
	h, ok := s.handlers[providerCode]
	if !ok {
		return nil, NewError(CodeNotFound, fmt.Sprintf("provider %q is not configured", providerCode), nil)
	}
	return h, nil
}

func (s *TokenService) provider(providerCode string) (*models.Provider, error) {
	p, err := s.providers.GetByCode(providerCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewError(CodeNotFound, fmt.Sprintf("provider %q not found", providerCode), nil)
	}
	return p, err
}

// AuthorizeURL starts the authorization-code flow for owner.
func (s *TokenService) AuthorizeURL(owner Owner, providerCode string, showDialog bool) (string, error) {
	h, err := s.Handler(providerCode)
	if err != nil {
		return "", err
	}
	p, err := s.provider(providerCode)
	if err != nil {
		return "", err
	}
	state, err := s.states.Issue(RefOf(owner), providerCode)
	if err != nil {
		return "", fmt.Errorf("issue oauth state: %w", err)
	}
	return h.AuthorizeURL(h.RedirectURI(owner.Kind()), state, p.AuthScopes, showDialog), nil
}

// CallbackParams are the query values the provider redirects back with.
type CallbackParams struct {
	Code  string
	State string
	Error string
}

// HandleCallback finishes the flow: it resolves the owner and the provider
// app from state, exchanges the code and stores the token. The callback of one
// provider code accepts flows of every provider app on the same platform.
func (s *TokenService) HandleCallback(ctx context.Context, providerCode string, params CallbackParams) (OwnerRef, *models.APIToken, error) {
	if params.Error != "" || params.Code == "" {
		return OwnerRef{}, nil, NewError(CodeExternalAuthorization, "", map[string]any{
			"error": params.Error,
			"code":  params.Code,
		})
	}
	route, err := s.provider(providerCode)
	if err != nil {
		return OwnerRef{}, nil, err
	}
	owner, issuedFor, err := s.states.Consume(params.State)
	if err != nil {
		return OwnerRef{}, nil, err
	}

	p := route
	if issuedFor != route.Code {
		if p, err = s.provider(issuedFor); err != nil {
			return owner, nil, err
		}
		if p.Platform != route.Platform {
			return owner, nil, NewError(CodeExternalAuthorization, "state was issued for another provider", map[string]any{
				"provider_code": issuedFor,
			})
		}
	}
	h, err := s.Handler(p.Code)
	if err != nil {
		return owner, nil, err
	}

	res, err := h.Exchange(ctx, params.Code, h.RedirectURI(owner.Kind))
	if err != nil {
		return owner, nil, err
	}

	externalID, perr := s.profiles[p.Code].FetchUserID(ctx, res)
	if perr != nil {
		log.Warnf("[TokenService] Could not fetch %s profile for %s: %v", p.Code, owner, perr)
	}

	rec, err := s.store(owner, p, res, externalID, nil)
	if err != nil {
		return owner, nil, err
	}
	s.writeCache(ctx, owner, p.Code, res.AccessToken, s.ttlFor(res.ExpiresIn))
	log.Infof("[TokenService] Stored %s token for %s", p.Code, owner)
	return owner, rec, nil
}

// GetAccessToken returns a usable token for owner, consulting the cache,
// then the store, then the refresh grant.
func (s *TokenService) GetAccessToken(ctx context.Context, owner Owner, providerCode string) (string, error) {
	ref := RefOf(owner)

	if tok, ok, err := s.cache.Get(ctx, ref.Kind, ref.ID, providerCode); err != nil {
		log.Warnf("[TokenService] Cache read failed for %s: %v", ref, err)
	} else if ok && tok != "" {
		metrics.TokenLookups.WithLabelValues(ref.Kind, "cache").Inc()
		return tok, nil
	}

	p, err := s.provider(providerCode)
	if err != nil {
		return "", err
	}

	rec, err := s.tokens.Get(ref.Kind, ref.ID, p.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	if rec != nil && !rec.IsExpired(s.now()) {
		plain, err := s.box.Open(rec.AccessTokenEnc)
		if err != nil {
			return "", err
		}
		if plain != "" {
			ttl := rec.RemainingLifetime(s.now())
			if ttl < 0 {
				ttl = time.Duration(p.TokenExpirationSeconds(3600)) * time.Second
			}
			s.writeCache(ctx, ref, providerCode, plain, ttl)
			metrics.TokenLookups.WithLabelValues(ref.Kind, "store").Inc()
			return plain, nil
		}
	}

	metrics.TokenLookups.WithLabelValues(ref.Kind, "refresh").Inc()
	return s.RefreshAccessToken(ctx, owner, providerCode)
}

// RefreshAccessToken always runs the refresh grant, bypassing cache and store.
// Concurrent refreshes for the same owner share one exchange.
func (s *TokenService) RefreshAccessToken(ctx context.Context, owner Owner, providerCode string) (string, error) {
	ref := RefOf(owner)
	key := ref.String() + ":" + providerCode

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.refresh(ctx, owner, providerCode)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *TokenService) refresh(ctx context.Context, owner Owner, providerCode string) (string, error) {
	ref := RefOf(owner)
	h, err := s.Handler(providerCode)
	if err != nil {
		return "", err
	}
	p, err := s.provider(providerCode)
	if err != nil {
		return "", err
	}

	rec, err := s.tokens.Get(ref.Kind, ref.ID, p.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", AccessTokenUnavailable(owner, errors.New("no token on file"))
	}
	if err != nil {
		return "", err
	}
	if rec.RefreshTokenEnc == nil || *rec.RefreshTokenEnc == "" {
		return "", AccessTokenUnavailable(owner, errors.New("no refresh token on file"))
	}
	refreshToken, err := s.box.Open(*rec.RefreshTokenEnc)
	if err != nil {
		return "", err
	}

	res, err := h.Refresh(ctx, refreshToken)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(ref.Kind, "failed").Inc()
		log.Warnf("[TokenService] Refresh failed for %s: %v", ref, err)
		return "", AccessTokenUnavailable(owner, err)
	}
	if res.RefreshToken == "" {
		res.RefreshToken = refreshToken
	}

	if _, err := s.store(ref, p, res, rec.ExternalUserID, rec); err != nil {
		return "", err
	}
	s.writeCache(ctx, ref, providerCode, res.AccessToken, s.ttlFor(res.ExpiresIn))
	metrics.TokenRefreshes.WithLabelValues(ref.Kind, "ok").Inc()
	log.Debugf("[TokenService] Refreshed %s token for %s, expires in %ds", providerCode, ref, res.ExpiresIn)
	return res.AccessToken, nil
}

func (s *TokenService) store(owner OwnerRef, p *models.Provider, res *TokenResult, externalUserID string, prev *models.APIToken) (*models.APIToken, error) {
	accessEnc, err := s.box.Seal(res.AccessToken)
	if err != nil {
		return nil, err
	}
	var refreshEnc *string
	if res.RefreshToken != "" {
		enc, err := s.box.Seal(res.RefreshToken)
		if err != nil {
			return nil, err
		}
		refreshEnc = &enc
	} else if prev != nil {
		refreshEnc = prev.RefreshTokenEnc
	}

	scope := res.Scope
	if scope == "" && prev != nil {
		scope = prev.Scope
	}
	expiresAt := res.ExpiresAt.UTC()

	rec := &models.APIToken{
		OwnerKind:       owner.Kind,
		OwnerID:         owner.ID,
		ProviderID:      p.ID,
		AccessTokenEnc:  accessEnc,
		RefreshTokenEnc: refreshEnc,
		ExpiresAt:       &expiresAt,
		Scope:           scope,
		ExternalUserID:  externalUserID,
	}
	if err := s.tokens.Upsert(rec); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	return rec, nil
}

func (s *TokenService) ttlFor(expiresIn int) time.Duration {
	ttl := time.Duration(expiresIn)*time.Second - TokenCacheBuffer
	if ttl < 0 {
		return 0
	}
	return ttl
}

func (s *TokenService) writeCache(ctx context.Context, owner OwnerRef, providerCode, token string, ttl time.Duration) {
	if err := s.cache.Set(ctx, owner.Kind, owner.ID, providerCode, token, ttl); err != nil {
		log.Warnf("[TokenService] Cache write failed for %s: %v", owner, err)
	}
}

// Forget drops the cached token of owner so the next lookup reads the store.
func (s *TokenService) Forget(ctx context.Context, owner Owner, providerCode string) error {
	ref := RefOf(owner)
	return s.cache.Delete(ctx, ref.Kind, ref.ID, providerCode)
}
