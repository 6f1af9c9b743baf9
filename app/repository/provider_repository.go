package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/Walrus/app/models"
)

type providerRepository struct {
	db *gorm.DB
}

func NewProviderRepository(db *gorm.DB) ProviderRepository {
	return &providerRepository{db: db}
}

func (r *providerRepository) GetByID(id uint) (*models.Provider, error) {
	var p models.Provider
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *providerRepository) GetByCode(code string) (*models.Provider, error) {
	var p models.Provider
	if err := r.db.Where("code = ?", code).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *providerRepository) Ensure(provider *models.Provider) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(provider).Error; err != nil {
		return err
	}
	return r.db.Where("code = ?", provider.Code).First(provider).Error
}

func (r *providerRepository) ListActive() ([]models.Provider, error) {
	var providers []models.Provider
	err := r.db.Where("is_active = ?", true).Order("id ASC").Find(&providers).Error
	return providers, err
}
