package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Walrus/app/models"
	"github.com/ManuelReschke/Walrus/internal/pkg/ingestion"
	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
)

// Ingestor stores what the provider knows about a member.
type Ingestor interface {
	CollectRecentlyPlayed(ctx context.Context, member *models.Member, days int) (*ingestion.CollectResult, error)
	ValidatePlaylist(ctx context.Context, member *models.Member, playlistID, playlistType string) (*ingestion.ValidationResult, error)
	CachePlaylistOrder(ctx context.Context, member *models.Member, playlistType string, trackIDs []string) error
	ImportPlaylist(ctx context.Context, member *models.Member, playlistID, playlistType string) (*models.Playlist, error)
	MemberPlaylist(member *models.Member, playlistType string) (*models.Playlist, error)
}

type IngestionController struct {
	ingest Ingestor
}

func NewIngestionController(ingest Ingestor) *IngestionController {
	return &IngestionController{ingest: ingest}
}

type collectRequest struct {
	Days int `json:"days" validate:"min=1,max=30"`
}

type playlistRequest struct {
	PlaylistID   string `json:"playlist_id" validate:"required,max=100"`
	PlaylistType string `json:"playlist_type" validate:"required,oneof=member_favorite discover_weekly"`
}

type orderCacheRequest struct {
	PlaylistType string   `json:"playlist_type" validate:"required,oneof=member_favorite discover_weekly"`
	TrackIDs     []string `json:"track_ids" validate:"required,min=1,dive,required"`
}

// HandleCollectPlayLogs collects the caller's recently played tracks synchronously.
func (ic *IngestionController) HandleCollectPlayLogs(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return Fail(c, err)
	}
	req := collectRequest{Days: ingestion.DefaultLookbackDays}
	if err := parseBody(c, &req); err != nil {
		return BadRequest(c, err)
	}
	res, err := ic.ingest.CollectRecentlyPlayed(c.UserContext(), member, req.Days)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, res)
}

func (ic *IngestionController) HandleValidatePlaylist(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return Fail(c, err)
	}
	var req playlistRequest
	if err := parseBody(c, &req); err != nil {
		return BadRequest(c, err)
	}
	res, err := ic.ingest.ValidatePlaylist(c.UserContext(), member, req.PlaylistID, req.PlaylistType)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, res)
}

// HandleImportPlaylist imports a validated playlist in its cached order.
func (ic *IngestionController) HandleImportPlaylist(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return Fail(c, err)
	}
	var req playlistRequest
	if err := parseBody(c, &req); err != nil {
		return BadRequest(c, err)
	}
	playlist, err := ic.ingest.ImportPlaylist(c.UserContext(), member, req.PlaylistID, req.PlaylistType)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, playlist)
}

// HandleCacheOrder replaces the cached import order with the client's.
func (ic *IngestionController) HandleCacheOrder(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return Fail(c, err)
	}
	var req orderCacheRequest
	if err := parseBody(c, &req); err != nil {
		return BadRequest(c, err)
	}
	if err := ic.ingest.CachePlaylistOrder(c.UserContext(), member, req.PlaylistType, req.TrackIDs); err != nil {
		return Fail(c, err)
	}
	return OK(c, fiber.Map{"playlist_type": req.PlaylistType, "track_count": len(req.TrackIDs)})
}

func (ic *IngestionController) HandleGetPlaylist(c *fiber.Ctx) error {
	member, err := currentMember(c)
	if err != nil {
		return Fail(c, err)
	}
	playlistType := c.Params("type")
	if !models.IsImportableType(playlistType) && playlistType != models.PLAYLIST_TYPE_EXPERIMENT {
		return Fail(c, provider.NewError(provider.CodeValidation, "unknown playlist type", map[string]any{
			"playlist_type": playlistType,
		}))
	}
	playlist, err := ic.ingest.MemberPlaylist(member, playlistType)
	if err != nil {
		return Fail(c, err)
	}
	return OK(c, playlist)
}
