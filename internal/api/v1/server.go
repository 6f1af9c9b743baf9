package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Walrus/app/controllers"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
)

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}

// ServerInterface lists every v1 operation of public/docs/v1/openapi.yml.
type ServerInterface interface {
	GetPing(c *fiber.Ctx) error
	GetMemberAuthorize(c *fiber.Ctx) error
	GetMemberAuthorizeCallback(c *fiber.Ctx) error
	GetProxyAccountAuthorize(c *fiber.Ctx, code string) error
	GetProxyAccountAuthorizeCallback(c *fiber.Ctx) error
	GetToken(c *fiber.Ctx) error
	ListProxyAccounts(c *fiber.Ctx) error
	PostAcquireProxyAccount(c *fiber.Ctx) error
	PostReleaseProxyAccount(c *fiber.Ctx) error
	PutProxyAccountAssignment(c *fiber.Ctx, code string) error
	PostCollectPlayLogs(c *fiber.Ctx) error
	PostValidatePlaylist(c *fiber.Ctx) error
	PostImportPlaylist(c *fiber.Ctx) error
	PutPlaylistOrderCache(c *fiber.Ctx) error
	GetPlaylist(c *fiber.Ctx, playlistType string) error
}

// Security attaches authentication to the protected routes. Auth runs on
// every member route, Staff additionally on staff routes.
type Security struct {
	Auth  fiber.Handler
	Staff fiber.Handler
}

type access int

const (
	public access = iota
	member
	staff
)

type route struct {
	method  string
	path    string
	access  access
	handler fiber.Handler
}

func routes(si ServerInterface) []route {
	return []route{
		{fiber.MethodGet, "/ping", public, si.GetPing},

		{fiber.MethodGet, "/spotify/auth/member/authorize", member, si.GetMemberAuthorize},
		{fiber.MethodGet, "/spotify/auth/member/authorize-callback", public, si.GetMemberAuthorizeCallback},
		{fiber.MethodGet, "/spotify/auth/proxy-account/authorize-callback", public, si.GetProxyAccountAuthorizeCallback},
		{fiber.MethodGet, "/spotify/auth/proxy-account/:code/authorize", staff, withParam("code", si.GetProxyAccountAuthorize)},
		{fiber.MethodGet, "/spotify/token", member, si.GetToken},

		{fiber.MethodGet, "/spotify/proxy-accounts", staff, si.ListProxyAccounts},
		{fiber.MethodPost, "/spotify/proxy-accounts/acquire", member, si.PostAcquireProxyAccount},
		{fiber.MethodPost, "/spotify/proxy-accounts/release", member, si.PostReleaseProxyAccount},
		{fiber.MethodPut, "/spotify/proxy-accounts/:code/assignment", staff, withParam("code", si.PutProxyAccountAssignment)},

		{fiber.MethodPost, "/spotify/play-logs/collect", member, si.PostCollectPlayLogs},

		{fiber.MethodPost, "/spotify/playlists/validate", member, si.PostValidatePlaylist},
		{fiber.MethodPost, "/spotify/playlists/import", member, si.PostImportPlaylist},
		{fiber.MethodPut, "/spotify/playlists/order-cache", member, si.PutPlaylistOrderCache},
		{fiber.MethodGet, "/spotify/playlists/:type", member, withParam("type", si.GetPlaylist)},
	}
}

func withParam(name string, fn func(c *fiber.Ctx, value string) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		value := c.Params(name)
		if value == "" {
			return controllers.Fail(c, provider.NewError(provider.CodeValidation, name+" missing", nil))
		}
		return fn(c, value)
	}
}

// RegisterHandlers installs every operation of si on router.
func RegisterHandlers(router fiber.Router, si ServerInterface, sec Security) {
	for _, r := range routes(si) {
		chain := make([]fiber.Handler, 0, 3)
		if r.access >= member && sec.Auth != nil {
			chain = append(chain, sec.Auth)
		}
		if r.access == staff && sec.Staff != nil {
			chain = append(chain, sec.Staff)
		}
		chain = append(chain, r.handler)
		router.Add(r.method, r.path, chain...)
	}
}
