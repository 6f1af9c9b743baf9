package models

import "time"

const (
	PLATFORM_SPOTIFY = "spotify"

	AUTH_TYPE_OAUTH2 = "oauth2"
)

// Provider is one configured external provider. Code selects the handler
// implementation from the static registry.
type Provider struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	Code                   string    `gorm:"type:varchar(50);uniqueIndex" json:"code"`
	Platform               string    `gorm:"type:varchar(50);index" json:"platform"`
	Category               string    `gorm:"type:varchar(100)" json:"category"`
	AuthType               string    `gorm:"type:varchar(20);default:'oauth2'" json:"auth_type"`
	DisplayName            string    `gorm:"type:varchar(100)" json:"display_name"`
	Description            string    `gorm:"type:text" json:"description"`
	BaseURL                string    `gorm:"type:varchar(255)" json:"base_url"`
	AuthScopes             []string  `gorm:"serializer:json;type:text" json:"auth_scopes"`
	UseBasicAuth           bool      `gorm:"default:false" json:"use_basic_auth"`
	DefaultTokenExpiration *int      `json:"default_token_expiration"`
	IsActive               bool      `gorm:"default:true" json:"is_active"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TokenExpirationSeconds returns the provider-level fallback lifetime.
func (p *Provider) TokenExpirationSeconds(def int) int {
	if p == nil || p.DefaultTokenExpiration == nil || *p.DefaultTokenExpiration <= 0 {
		return def
	}
	return *p.DefaultTokenExpiration
}
