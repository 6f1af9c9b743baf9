package provider

import (
	"fmt"

	"github.com/ManuelReschke/Walrus/app/models"
)

// Owner is the holder of a provider credential: a member or a proxy account.
// The set of variants is closed.
type Owner interface {
	Kind() string
	ID() uint
	owner()
}

// MemberOwner is a member authorizing with their own provider account.
type MemberOwner struct {
	Member *models.Member
}

func (o MemberOwner) Kind() string {
	return models.OWNER_KIND_MEMBER
}

func (o MemberOwner) ID() uint {
	return o.Member.ID
}

func (MemberOwner) owner() {}

// ProxyAccountOwner is a shared proxy account.
type ProxyAccountOwner struct {
	Account *models.ProxyAccount
}

func (o ProxyAccountOwner) Kind() string {
	return models.OWNER_KIND_PROXY_ACCOUNT
}

func (o ProxyAccountOwner) ID() uint {
	return o.Account.ID
}

func (ProxyAccountOwner) owner() {}

// OwnerRef identifies an owner without holding the loaded row.
type OwnerRef struct {
	Kind string `json:"kind"`
	ID   uint   `json:"id"`
}

func RefOf(o Owner) OwnerRef {
	return OwnerRef{Kind: o.Kind(), ID: o.ID()}
}

func (r OwnerRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}
