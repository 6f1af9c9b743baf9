package models

import "time"

// Credential owner kinds.
const (
	OWNER_KIND_MEMBER        = "member"
	OWNER_KIND_PROXY_ACCOUNT = "proxy_account"
)

// APIToken is the durable, encrypted token record of one credential owner for one provider.
type APIToken struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	OwnerKind       string     `gorm:"type:varchar(20);not null;index:ux_api_tokens_owner_provider,unique,priority:1" json:"owner_kind"`
	OwnerID         uint       `gorm:"not null;index:ux_api_tokens_owner_provider,unique,priority:2" json:"owner_id"`
	ProviderID      uint       `gorm:"not null;index:ux_api_tokens_owner_provider,unique,priority:3" json:"provider_id"`
	AccessTokenEnc  string     `gorm:"type:text;not null" json:"-"`
	RefreshTokenEnc *string    `gorm:"type:text" json:"-"`
	ExpiresAt       *time.Time `gorm:"type:timestamp;default:null" json:"expires_at"`
	Scope           string     `gorm:"type:varchar(500);default:''" json:"scope"`
	ExternalUserID  string     `gorm:"type:varchar(191);default:''" json:"external_user_id"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsExpired reports whether the token is past its expiry. A nil expiry never expires.
func (t *APIToken) IsExpired(now time.Time) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return !t.ExpiresAt.After(now)
}

// RemainingLifetime returns the time left until expiry, or -1 when the token never expires.
func (t *APIToken) RemainingLifetime(now time.Time) time.Duration {
	if t.ExpiresAt == nil {
		return -1
	}
	return t.ExpiresAt.Sub(now)
}
