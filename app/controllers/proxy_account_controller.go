package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/internal/pkg/proxyaccount"
)

// ProxyAllocator lends proxy accounts to members.
type ProxyAllocator interface {
	Acquire(ctx context.Context, member *models.Member, providerCode string) (*proxyaccount.Assignment, error)
	Release(ctx context.Context, member *models.Member, providerCode string) (string, error)
	Reassign(ctx context.Context, accountCode string, memberID *uint) (*models.ProxyAccount, error)
	List(providerCode string) ([]models.ProxyAccount, error)
}

type ProxyAccountController struct {
	proxies      ProxyAllocator
	providerCode string
}

func NewProxyAccountController(proxies ProxyAllocator, providerCode string) *ProxyAccountController {
	return &ProxyAccountController{proxies: proxies, providerCode: providerCode}
}

// reassignRequest frees the account when MemberID is null.
type reassignRequest struct {
	MemberID *uint `json:"member_id" validate:"omitempty,gt=0"`
}

// HandleAcquire returns the caller's proxy account with a usable token.
func (pc *ProxyAccountController) HandleAcquire(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return Fail(c, err)
	}
	assignment, err := pc.proxies.Acquire(c.UserContext(), member, pc.providerCode)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, assignment)
}

func (pc *ProxyAccountController) HandleRelease(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return Fail(c, err)
	}
	code, err := pc.proxies.Release(c.UserContext(), member, pc.providerCode)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, fiber.Map{"proxy_account_code": code})
}

// HandleReassign sets the current member of an account. Staff only.
func (pc *ProxyAccountController) HandleReassign(c *fiber.Ctx) error {
	var req reassignRequest
	if err := parseBody(c, &req); err != nil {
		return BadRequest(c, err)
	}
	account, err := pc.proxies.Reassign(c.UserContext(), c.Params("code"), req.MemberID)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, account)
}

// HandleList returns every proxy account of the provider. Staff only.
func (pc *ProxyAccountController) HandleList(c *fiber.Ctx) error {
	accounts, err := pc.proxies.List(pc.providerCode)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, accounts)
}
