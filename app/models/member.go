package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ROLE_MEMBER     = "member"
	ROLE_STAFF      = "staff"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
)

const apiKeyPrefix = "wlr_"

// Member is an experiment participant or a staff operator.
type Member struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(150)" json:"name" validate:"required,min=1,max=150"`
	Email      string    `gorm:"type:varchar(200);uniqueIndex" json:"email" validate:"required,email,max=200"`
	Role       string    `gorm:"type:varchar(20);default:'member';index" json:"role" validate:"oneof=member staff"`
	Status     string    `gorm:"type:varchar(20);default:'active'" json:"status" validate:"oneof=active inactive"`
	APIKeyHash string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	ProviderID *uint     `gorm:"index" json:"provider_id"`
	Provider   *Provider `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m *Member) Validate() error {
	return validator.New().Struct(m)
}

func (m *Member) IsStaff() bool {
	return m.Role == ROLE_STAFF
}

func (m *Member) IsActive() bool {
	return m.Status == STATUS_ACTIVE
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey returns a new raw key and its hash. Only the hash is stored.
func GenerateAPIKey() (string, string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw := apiKeyPrefix + hex.EncodeToString(b)
	return raw, HashAPIKey(raw), nil
}
