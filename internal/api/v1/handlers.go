package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to the controllers to keep the response envelope in one place
	"github.com/ManuelReschke/Walrus/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct {
	auth      *controllers.AuthController
	proxies   *controllers.ProxyAccountController
	ingestion *controllers.IngestionController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(auth *controllers.AuthController, proxies *controllers.ProxyAccountController, ingestion *controllers.IngestionController) *APIServer {
	return &APIServer{auth: auth, proxies: proxies, ingestion: ingestion}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

func (s *APIServer) GetMemberAuthorize(c *fiber.Ctx) error {
	return s.auth.HandleMemberAuthorize(c)
}

// GetMemberAuthorizeCallback is reached by the browser redirect, without an API key.
func (s *APIServer) GetMemberAuthorizeCallback(c *fiber.Ctx) error {
	return s.auth.HandleMemberCallback(c)
}

func (s *APIServer) GetProxyAccountAuthorize(c *fiber.Ctx, code string) error {
	// Controller reads code from route params; wrapper already checked it.
	return s.auth.HandleProxyAuthorize(c)
}

func (s *APIServer) GetProxyAccountAuthorizeCallback(c *fiber.Ctx) error {
	return s.auth.HandleProxyCallback(c)
}

// GetToken returns an access token for the caller or, for staff, a proxy account.
func (s *APIServer) GetToken(c *fiber.Ctx) error {
	return s.auth.HandleGetToken(c)
}

func (s *APIServer) ListProxyAccounts(c *fiber.Ctx) error {
	return s.proxies.HandleList(c)
}

func (s *APIServer) PostAcquireProxyAccount(c *fiber.Ctx) error {
	return s.proxies.HandleAcquire(c)
}

func (s *APIServer) PostReleaseProxyAccount(c *fiber.Ctx) error {
	return s.proxies.HandleRelease(c)
}

func (s *APIServer) PutProxyAccountAssignment(c *fiber.Ctx, code string) error {
	return s.proxies.HandleReassign(c)
}

func (s *APIServer) PostCollectPlayLogs(c *fiber.Ctx) error {
	return s.ingestion.HandleCollectPlayLogs(c)
}

func (s *APIServer) PostValidatePlaylist(c *fiber.Ctx) error {
	return s.ingestion.HandleValidatePlaylist(c)
}

func (s *APIServer) PostImportPlaylist(c *fiber.Ctx) error {
	return s.ingestion.HandleImportPlaylist(c)
}

func (s *APIServer) PutPlaylistOrderCache(c *fiber.Ctx) error {
	return s.ingestion.HandleCacheOrder(c)
}

func (s *APIServer) GetPlaylist(c *fiber.Ctx, playlistType string) error {
	return s.ingestion.HandleGetPlaylist(c)
}
