package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sketchroom/backend/internal/middleware"
	"github.com/sketchroom/backend/internal/models"
	"github.com/sketchroom/backend/internal/services"
	"github.com/sketchroom/backend/pkg/logger"
	"github.com/sketchroom/backend/pkg/utils"
	"gorm.io/gorm"
)

type InvitationHandler struct {
	DB    *gorm.DB
	Rooms *services.RoomService
}

func NewInvitationHandler(db *gorm.DB, rooms *services.RoomService) *InvitationHandler {
	return &InvitationHandler{DB: db, Rooms: rooms}
}

// List returns the caller's pending, unexpired invitations with the
// room and inviter preloaded for display.
func (h *InvitationHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	params := utils.ParsePagination(c)

	query := h.DB.Model(&models.Invitation{}).
		Where("invited_user_id = ?", currentUser.ID).
		Where("status = ?", models.InvitationStatusPending).
		Where("expires_at > ?", time.Now().UTC())

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting invitations")
	}

	var invitations []models.Invitation
	if err := utils.ApplyPagination(query.Order("created_at DESC"), params).
		Preload("Room").
		Preload("InvitedBy").
		Find(&invitations).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing invitations")
	}

	return utils.Paginated(c, invitations, params.Page, params.Limit, total)
}

func (h *InvitationHandler) Accept(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	invitationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid invitation id")
	}

	room, err := h.Rooms.AcceptInvitation(currentUser, invitationID)
	if err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "invitation_accepted", map[string]interface{}{
		"invitation_id": invitationID.String(),
		"room_id":       room.ID.String(),
	})
	return utils.Success(c, fiber.StatusOK, room)
}

func (h *InvitationHandler) Reject(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	invitationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid invitation id")
	}

	if err := h.Rooms.RejectInvitation(currentUser.ID, invitationID); err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "invitation_rejected", map[string]interface{}{
		"invitation_id": invitationID.String(),
	})
	return utils.Message(c, fiber.StatusOK, "invitation rejected")
}
