package repository

import (
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/Walrus/app/models"
)

type proxyAccountRepository struct {
	db *gorm.DB
}

func NewProxyAccountRepository(db *gorm.DB) ProxyAccountRepository {
	return &proxyAccountRepository{db: db}
}

func (r *proxyAccountRepository) Create(account *models.ProxyAccount) error {
	active := account.IsActive
	if err := r.db.Create(account).Error; err != nil {
		return err
	}
	// gorm skips zero values for columns with a default, so persist inactive explicitly
	if !active {
		account.IsActive = false
		return r.db.Model(account).Update("is_active", false).Error
	}
	return nil
}

func (r *proxyAccountRepository) GetByCode(code string) (*models.ProxyAccount, error) {
	var a models.ProxyAccount
	if err := r.db.Preload("Provider").Where("code = ?", code).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *proxyAccountRepository) GetByCodeForUpdate(code string) (*models.ProxyAccount, error) {
	var a models.ProxyAccount
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// onPlatform restricts a query to accounts whose provider runs on platform.
// A subquery keeps row locks on proxy_accounts only.
func (r *proxyAccountRepository) onPlatform(q *gorm.DB, platform string) *gorm.DB {
	providers := r.db.Model(&models.Provider{}).Select("id").Where("platform = ?", platform)
	return q.Where("provider_id IN (?)", providers)
}

func (r *proxyAccountRepository) FindAssigned(memberID uint, platform string, forUpdate bool) (*models.ProxyAccount, error) {
	q := r.db
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var a models.ProxyAccount
	err := r.onPlatform(q, platform).
		Where("current_member_id = ?", memberID).
		Order("id ASC").First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *proxyAccountRepository) PickFree(platform string) (*models.ProxyAccount, error) {
	var a models.ProxyAccount
	q := r.db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	err := r.onPlatform(q, platform).
		Where("is_active = ? AND current_member_id IS NULL", true).
		Order("id ASC").
		Limit(1).
		Find(&a).Error
	if err != nil {
		return nil, err
	}
	if a.ID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (r *proxyAccountRepository) SetCurrentMember(accountID uint, memberID *uint, at *time.Time) error {
	return r.db.Model(&models.ProxyAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"current_member_id": memberID,
			"assigned_at":       at,
		}).Error
}

func (r *proxyAccountRepository) ListByPlatform(platform string) ([]models.ProxyAccount, error) {
	var accounts []models.ProxyAccount
	err := r.onPlatform(r.db.Preload("Provider"), platform).Order("id ASC").Find(&accounts).Error
	return accounts, err
}

// AddAPICallCounts applies all increments in one UPDATE ... CASE id WHEN statement.
func (r *proxyAccountRepository) AddAPICallCounts(counts map[uint]int64) error {
	ids := make([]uint, 0, len(counts))
	for id, n := range counts {
		if n != 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	args := make([]interface{}, 0, len(ids)*3)
	b.WriteString("UPDATE proxy_accounts SET api_call_count = api_call_count + CASE id")
	for _, id := range ids {
		b.WriteString(" WHEN ? THEN ?")
		args = append(args, id, counts[id])
	}
	b.WriteString(" ELSE 0 END WHERE id IN (")
	for i, id := range ids {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
		args = append(args, id)
	}
	b.WriteString(")")
	return r.db.Exec(b.String(), args...).Error
}

// Transaction runs fn against a repository bound to one database transaction.
func (r *proxyAccountRepository) Transaction(fn func(repo ProxyAccountRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&proxyAccountRepository{db: tx})
	})
}
