package models

import "time"

// ProxyAccount is a shared provider credential lent to one member at a time.
// CurrentMemberID == nil means the account is free.
type ProxyAccount struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Code            string     `gorm:"type:varchar(50);uniqueIndex" json:"code"`
	ProviderID      uint       `gorm:"not null;index" json:"provider_id"`
	Provider        *Provider  `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	CurrentMemberID *uint      `gorm:"index" json:"current_member_id"`
	CurrentMember   *Member    `gorm:"foreignKey:CurrentMemberID" json:"-"`
	AssignedAt      *time.Time `gorm:"type:timestamp;default:null" json:"assigned_at"`
	IsActive        bool       `gorm:"default:true;index" json:"is_active"`
	Description     string     `gorm:"type:varchar(255);default:''" json:"description"`
	APICallCount    int64      `gorm:"default:0" json:"api_call_count"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *ProxyAccount) IsAvailable() bool {
	return p.IsActive && p.CurrentMemberID == nil
}
