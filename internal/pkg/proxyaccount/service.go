package proxyaccount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/app/repository"
	"github.com/ManuelReschke/Walrus/internal/pkg/cache"
	"github.com/ManuelReschke/Walrus/internal/pkg/metrics"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
)

// LockTTL bounds how long one member's allocation may hold the lock.
const LockTTL = 10 * time.Second

// TokenSource hands out access tokens for proxy accounts.
type TokenSource interface {
	GetAccessToken(ctx context.Context, owner provider.Owner, providerCode string) (string, error)
	RefreshAccessToken(ctx context.Context, owner provider.Owner, providerCode string) (string, error)
}

// UsageRecorder counts token handouts per proxy account.
type UsageRecorder interface {
	AddProxyAccountCall(ctx context.Context, accountID uint) error
}

// Assignment is what a member receives for an allocated proxy account.
type Assignment struct {
	Code         string `json:"proxy_account_code"`
	ProviderCode string `json:"provider_code"`
	AccessToken  string `json:"access_token"`
}

// Service lends proxy accounts to members, one account per member and
// platform. Accounts of every provider app on the platform form one pool.
// Every change of an account's current member goes through it so the
// assignment cache stays in step with the database.
type Service struct {
	accounts  repository.ProxyAccountRepository
	providers repository.ProviderRepository
	cache     *cache.ProxyAssignmentCache
	locker    *cache.Locker
	tokens    TokenSource
	usage     UsageRecorder
	now       func() time.Time
}

func NewService(
	accounts repository.ProxyAccountRepository,
	providers repository.ProviderRepository,
	assignments *cache.ProxyAssignmentCache,
	locker *cache.Locker,
	tokens TokenSource,
	usage UsageRecorder,
) *Service {
	return &Service{
		accounts:  accounts,
		providers: providers,
		cache:     assignments,
		locker:    locker,
		tokens:    tokens,
		usage:     usage,
		now:       time.Now,
	}
}

// LockKey names the allocation lock of a member on a platform.
func LockKey(platform string, memberID uint) string {
	return fmt.Sprintf("proxy_lock:%s:%d", platform, memberID)
}

func (s *Service) provider(code string) (*models.Provider, error) {
	p, err := s.providers.GetByCode(code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, provider.NewError(provider.CodeNotFound, fmt.Sprintf("provider %q not found", code), nil)
	}
	return p, err
}

// accountProvider returns the provider app an account belongs to.
func (s *Service) accountProvider(account *models.ProxyAccount) (*models.Provider, error) {
	if account.Provider != nil && account.Provider.ID == account.ProviderID {
		return account.Provider, nil
	}
	p, err := s.providers.GetByID(account.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("provider of proxy account %s: %w", account.Code, err)
	}
	account.Provider = p
	return p, nil
}

func (s *Service) lock(ctx context.Context, platform string, memberID uint, op string) (*cache.Lock, error) {
	lock, ok, err := s.locker.TryAcquire(ctx, LockKey(platform, memberID), LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire allocation lock: %w", err)
	}
	if !ok {
		metrics.ProxyAllocations.WithLabelValues(op, "busy").Inc()
		return nil, provider.NewError(provider.CodeResourceBusy, "", map[string]any{"member_id": memberID})
	}
	return lock, nil
}

// Acquire returns the member's proxy account on the platform of providerCode,
// allocating a free one from any provider app of that platform when the member
// holds none. A newly allocated account always comes with a token fresh from
// its provider.
func (s *Service) Acquire(ctx context.Context, member *models.Member, providerCode string) (*Assignment, error) {
	p, err := s.provider(providerCode)
	if err != nil {
		return nil, err
	}

	if a, err := s.fromCache(ctx, member, p.Platform); err != nil || a != nil {
		if err == nil {
			metrics.ProxyAllocations.WithLabelValues("acquire", "cached").Inc()
		}
		return a, err
	}

	lock, err := s.lock(ctx, p.Platform, member.ID, "acquire")
	if err != nil {
		return nil, err
	}
	defer s.release(lock)

	var (
		account *models.ProxyAccount
		fresh   bool
	)
	err = s.accounts.Transaction(func(repo repository.ProxyAccountRepository) error {
		existing, err := repo.FindAssigned(member.ID, p.Platform, true)
		if err == nil {
			account = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		free, err := repo.PickFree(p.Platform)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return provider.NewError(provider.CodeResourceNotAvailable, "no free proxy account", map[string]any{
				"platform": p.Platform,
			})
		}
		if err != nil {
			return err
		}

		now := s.now().UTC()
		memberID := member.ID
		if err := repo.SetCurrentMember(free.ID, &memberID, &now); err != nil {
			return err
		}
		free.CurrentMemberID = &memberID
		free.AssignedAt = &now
		account = free
		fresh = true
		return nil
	})
	if err != nil {
		result := "error"
		if errors.Is(err, provider.ErrResourceNotAvailable) {
			result = "exhausted"
		}
		metrics.ProxyAllocations.WithLabelValues("acquire", result).Inc()
		return nil, err
	}

	ap, err := s.accountProvider(account)
	if err != nil {
		return nil, err
	}
	cached := cache.CachedAssignment{AccountCode: account.Code, ProviderCode: ap.Code}
	if err := s.cache.Set(ctx, p.Platform, member.ID, cached); err != nil {
		log.Warnf("[ProxyAccount] Cache write failed for member %d: %v", member.ID, err)
	}

	if fresh {
		log.Infof("[ProxyAccount] Assigned %s (%s) to member %d", account.Code, ap.Code, member.ID)
		metrics.ProxyAllocations.WithLabelValues("acquire", "assigned").Inc()
	} else {
		metrics.ProxyAllocations.WithLabelValues("acquire", "existing").Inc()
	}
	return s.withToken(ctx, account, ap.Code, fresh)
}

func (s *Service) fromCache(ctx context.Context, member *models.Member, platform string) (*Assignment, error) {
	cached, ok, err := s.cache.Get(ctx, platform, member.ID)
	if err != nil {
		log.Warnf("[ProxyAccount] Cache read failed for member %d: %v", member.ID, err)
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	account, err := s.accounts.GetByCode(cached.AccountCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = s.cache.Delete(ctx, platform, member.ID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	providerCode := cached.ProviderCode
	if account.Provider != nil {
		providerCode = account.Provider.Code
	}
	return s.withToken(ctx, account, providerCode, false)
}

func (s *Service) withToken(ctx context.Context, account *models.ProxyAccount, providerCode string, force bool) (*Assignment, error) {
	owner := provider.ProxyAccountOwner{Account: account}
	var (
		token string
		err   error
	)
	if force {
		token, err = s.tokens.RefreshAccessToken(ctx, owner, providerCode)
	} else {
		token, err = s.tokens.GetAccessToken(ctx, owner, providerCode)
	}
	if err != nil {
		return nil, err
	}
	s.RecordUsage(ctx, account.ID)
	return &Assignment{Code: account.Code, ProviderCode: providerCode, AccessToken: token}, nil
}

// RecordUsage counts one token handout of accountID. Failures are only logged.
func (s *Service) RecordUsage(ctx context.Context, accountID uint) {
	if s.usage == nil {
		return
	}
	if err := s.usage.AddProxyAccountCall(ctx, accountID); err != nil {
		log.Warnf("[ProxyAccount] Usage counter failed for account %d: %v", accountID, err)
	}
}

// Release frees the member's proxy account on the platform of providerCode
// and returns its code.
func (s *Service) Release(ctx context.Context, member *models.Member, providerCode string) (string, error) {
	p, err := s.provider(providerCode)
	if err != nil {
		return "", err
	}

	lock, err := s.lock(ctx, p.Platform, member.ID, "release")
	if err != nil {
		return "", err
	}
	defer s.release(lock)

	var code string
	err = s.accounts.Transaction(func(repo repository.ProxyAccountRepository) error {
		account, err := repo.FindAssigned(member.ID, p.Platform, true)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return provider.NewError(provider.CodeResourceNotFound, "member holds no proxy account", map[string]any{
				"member_id": member.ID,
			})
		}
		if err != nil {
			return err
		}
		code = account.Code
		return repo.SetCurrentMember(account.ID, nil, nil)
	})
	if err != nil {
		result := "error"
		if errors.Is(err, provider.ErrResourceNotFound) {
			result = "not_assigned"
		}
		metrics.ProxyAllocations.WithLabelValues("release", result).Inc()
		return "", err
	}

	s.invalidate(ctx, p.Platform, member.ID)
	metrics.ProxyAllocations.WithLabelValues("release", "released").Inc()
	log.Infof("[ProxyAccount] Released %s from member %d", code, member.ID)
	return code, nil
}

// Reassign sets the current member of an account directly, nil frees it.
// The new owner's allocation lock is held while the row changes, and both
// the previous and the new owner lose their cached assignment.
func (s *Service) Reassign(ctx context.Context, accountCode string, memberID *uint) (*models.ProxyAccount, error) {
	current, err := s.accounts.GetByCode(accountCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, provider.NewError(provider.CodeNotFound, fmt.Sprintf("proxy account %q not found", accountCode), nil)
	}
	if err != nil {
		return nil, err
	}
	p, err := s.accountProvider(current)
	if err != nil {
		return nil, err
	}

	if memberID != nil {
		lock, err := s.lock(ctx, p.Platform, *memberID, "reassign")
		if err != nil {
			return nil, err
		}
		defer s.release(lock)
	}

	var (
		account  *models.ProxyAccount
		previous *uint
	)
	err = s.accounts.Transaction(func(repo repository.ProxyAccountRepository) error {
		a, err := repo.GetByCodeForUpdate(accountCode)
		if err != nil {
			return err
		}
		previous = a.CurrentMemberID

		var at *time.Time
		if memberID != nil {
			held, err := repo.FindAssigned(*memberID, p.Platform, true)
			if err == nil && held.ID != a.ID {
				return provider.NewError(provider.CodeConflict, "member already holds a proxy account", map[string]any{
					"member_id":          *memberID,
					"proxy_account_code": held.Code,
				})
			}
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			now := s.now().UTC()
			at = &now
		}
		if err := repo.SetCurrentMember(a.ID, memberID, at); err != nil {
			return err
		}
		a.CurrentMemberID = memberID
		a.AssignedAt = at
		a.Provider = p
		account = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	if previous != nil && (memberID == nil || *previous != *memberID) {
		s.invalidate(ctx, p.Platform, *previous)
	}
	if memberID != nil {
		s.invalidate(ctx, p.Platform, *memberID)
	}
	metrics.ProxyAllocations.WithLabelValues("reassign", "ok").Inc()
	log.Infof("[ProxyAccount] Reassigned %s from %v to %v", account.Code, fmtMember(previous), fmtMember(memberID))
	return account, nil
}

// List returns every proxy account on the platform of providerCode.
func (s *Service) List(providerCode string) ([]models.ProxyAccount, error) {
	p, err := s.provider(providerCode)
	if err != nil {
		return nil, err
	}
	return s.accounts.ListByPlatform(p.Platform)
}

func (s *Service) invalidate(ctx context.Context, platform string, memberID uint) {
	if err := s.cache.Delete(ctx, platform, memberID); err != nil {
		log.Warnf("[ProxyAccount] Cache invalidation failed for member %d: %v", memberID, err)
	}
}

func (s *Service) release(lock *cache.Lock) {
	// the request context may already be cancelled
	if err := lock.Release(context.Background()); err != nil {
		log.Warnf("[ProxyAccount] Releasing %s: %v", lock.Key(), err)
	}
}

func fmtMember(id *uint) string {
	if id == nil {
		return "nobody"
	}
	return fmt.Sprintf("member %d", *id)
}
