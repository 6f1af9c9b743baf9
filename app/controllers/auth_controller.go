package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/app/repository"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
	"github.com/ManuelReschke/Walrus/internal/pkg/usercontext"
)

// TokenIssuer runs the OAuth flows and hands out access tokens.
type TokenIssuer interface {
	AuthorizeURL(owner provider.Owner, providerCode string, showDialog bool) (string, error)
	HandleCallback(ctx context.Context, providerCode string, params provider.CallbackParams) (provider.OwnerRef, *models.APIToken, error)
	GetAccessToken(ctx context.Context, owner provider.Owner, providerCode string) (string, error)
}

// UsageRecorder counts proxy account token handouts.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, accountID uint)
}

// AuthController serves the authorization flows of one provider.
type AuthController struct {
	tokens           TokenIssuer
	accounts         repository.ProxyAccountRepository
	usage            UsageRecorder
	providerCode     string
	callbackRedirect string
}

func NewAuthController(tokens TokenIssuer, accounts repository.ProxyAccountRepository, usage UsageRecorder, providerCode, callbackRedirect string) *AuthController {
	return &AuthController{
		tokens:           tokens,
		accounts:         accounts,
		usage:            usage,
		providerCode:     providerCode,
		callbackRedirect: callbackRedirect,
	}
}

// HandleMemberAuthorize returns the URL the member opens to link their account.
func (ac *AuthController) HandleMemberAuthorize(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return Fail(c, err)
	}
	authURL, err := ac.tokens.AuthorizeURL(provider.MemberOwner{Member: member}, ac.providerCode, c.QueryBool("show_dialog", false))
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, fiber.Map{"authorize_url": authURL})
}

// HandleMemberCallback completes the member flow and sends the browser back
// to the frontend with the outcome in the status query parameter.
func (ac *AuthController) HandleMemberCallback(c *fiber.Ctx) error {
	owner, _, err := ac.tokens.HandleCallback(c.UserContext(), ac.providerCode, callbackParams(c))
	status := "success"
	if err != nil {
		log.Warnf("[API] %s member callback failed: %v", ac.providerCode, err)
		status = "failed"
	} else if owner.Kind != models.OWNER_KIND_MEMBER {
		log.Warnf("[API] %s member callback resolved to %s", ac.providerCode, owner)
		status = "failed"
	}
	return c.Redirect(withStatus(ac.callbackRedirect, status), fiber.StatusFound)
}

// HandleProxyAuthorize returns the authorize URL for a proxy account. Staff only.
func (ac *AuthController) HandleProxyAuthorize(c *fiber.Ctx) error {
	account, err := ac.proxyAccount(c.Params("code"))
	if err != nil {
		return Fail(c, err)
	}
	authURL, err := ac.tokens.AuthorizeURL(provider.ProxyAccountOwner{Account: account}, ac.accountProviderCode(account), true)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, fiber.Map{"authorize_url": authURL, "proxy_account_code": account.Code})
}

// HandleProxyCallback completes the proxy account flow.
func (ac *AuthController) HandleProxyCallback(c *fiber.Ctx) error {
	owner, token, err := ac.tokens.HandleCallback(c.UserContext(), ac.providerCode, callbackParams(c))
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, fiber.Map{
		"owner":            owner,
		"expires_at":       token.ExpiresAt,
		"external_user_id": token.ExternalUserID,
	})
}

// HandleGetToken returns a usable access token for the caller, or for the
// proxy account named by proxy_account_code when the caller is staff.
func (ac *AuthController) HandleGetToken(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return Fail(c, err)
	}

	code := c.Query("proxy_account_code")
	if code == "" {
		token, err := ac.tokens.GetAccessToken(c.UserContext(), provider.MemberOwner{Member: member}, ac.providerCode)
		if err != nil {
			return Fail(c, err)
		}
		return OK(c, fiber.Map{"access_token": token, "provider_code": ac.providerCode})
	}

	if !usercontext.IsStaff(c) {
		return Forbidden(c, "staff only")
	}
	account, err := ac.proxyAccount(code)
	if err != nil {
		return Fail(c, err)
	}
	providerCode := ac.accountProviderCode(account)
	token, err := ac.tokens.GetAccessToken(c.UserContext(), provider.ProxyAccountOwner{Account: account}, providerCode)
	if err != nil {
		return Fail(c, err)
	}
	if ac.usage != nil {
		ac.usage.RecordUsage(c.UserContext(), account.ID)
	}
	return OK(c, fiber.Map{
		"access_token":       token,
		"provider_code":      providerCode,
		"proxy_account_code": account.Code,
	})
}

func (ac *AuthController) proxyAccount(code string) (*models.ProxyAccount, error) {
	account, err := ac.accounts.GetByCode(code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, provider.NewError(provider.CodeNotFound, fmt.Sprintf("proxy account %q not found", code), nil)
	}
	return account, err
}

// accountProviderCode is the provider app a proxy account belongs to.
func (ac *AuthController) accountProviderCode(account *models.ProxyAccount) string {
	if account.Provider != nil && account.Provider.Code != "" {
		return account.Provider.Code
	}
	return ac.providerCode
}

func callbackParams(c *fiber.Ctx) provider.CallbackParams {
	return provider.CallbackParams{
		Code:  c.Query("code"),
		State: c.Query("state"),
		Error: c.Query("error"),
	}
}

func withStatus(target, status string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("status", status)
	u.RawQuery = q.Encode()
	return u.String()
}
