package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/Walrus/app/models"
)

type apiTokenRepository struct {
	db *gorm.DB
}

func NewAPITokenRepository(db *gorm.DB) APITokenRepository {
	return &apiTokenRepository{db: db}
}

func (r *apiTokenRepository) Get(ownerKind string, ownerID, providerID uint) (*models.APIToken, error) {
	var t models.APIToken
	err := r.db.Where("owner_kind = ? AND owner_id = ? AND provider_id = ?", ownerKind, ownerID, providerID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Upsert writes the token by its owner key and reloads the stored row.
func (r *apiTokenRepository) Upsert(token *models.APIToken) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "owner_kind"},
			{Name: "owner_id"},
			{Name: "provider_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token_enc",
			"refresh_token_enc",
			"expires_at",
			"scope",
			"external_user_id",
			"updated_at",
		}),
	}).Create(token).Error; err != nil {
		return err
	}

	return r.db.Where("owner_kind = ? AND owner_id = ? AND provider_id = ?", token.OwnerKind, token.OwnerID, token.ProviderID).
		First(token).Error
}

func (r *apiTokenRepository) Delete(ownerKind string, ownerID, providerID uint) error {
	return r.db.Where("owner_kind = ? AND owner_id = ? AND provider_id = ?", ownerKind, ownerID, providerID).
		Delete(&models.APIToken{}).Error
}
