package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/Walrus/app/models"
)

// memberRepository implements the MemberRepository interface
type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a new member repository instance
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) Create(member *models.Member) error {
	return r.db.Create(member).Error
}

func (r *memberRepository) GetByID(id uint) (*models.Member, error) {
	var member models.Member
	if err := r.db.Preload("Provider").First(&member, id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// GetByAPIKeyHash resolves the member owning an API key hash
func (r *memberRepository) GetByAPIKeyHash(hash string) (*models.Member, error) {
	var member models.Member
	err := r.db.Preload("Provider").Where("api_key_hash = ?", hash).First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *memberRepository) Update(member *models.Member) error {
	return r.db.Save(member).Error
}

func (r *memberRepository) ListCollectable() ([]models.Member, error) {
	var members []models.Member
	err := r.db.Preload("Provider").
		Where("role = ? AND status = ? AND provider_id IS NOT NULL", models.ROLE_MEMBER, models.STATUS_ACTIVE).
		Order("id ASC").
		Find(&members).Error
	return members, err
}

func (r *memberRepository) FirstStaff() (*models.Member, error) {
	var member models.Member
	err := r.db.Preload("Provider").
		Where("role = ? AND status = ?", models.ROLE_STAFF, models.STATUS_ACTIVE).
		Order("id ASC").
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}
