package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sketchroom/backend/internal/middleware"
	"github.com/sketchroom/backend/internal/models"
	"github.com/sketchroom/backend/internal/services"
	"github.com/sketchroom/backend/pkg/logger"
	"github.com/sketchroom/backend/pkg/utils"
	"gorm.io/gorm"
)

type RoomHandler struct {
	DB    *gorm.DB
	Rooms *services.RoomService
}

func NewRoomHandler(db *gorm.DB, rooms *services.RoomService) *RoomHandler {
	return &RoomHandler{DB: db, Rooms: rooms}
}

type createRoomRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Visibility      string `json:"visibility"`
	Password        string `json:"password"`
	MaxParticipants int    `json:"maxParticipants"`
}

func (h *RoomHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	room, err := h.Rooms.CreateRoom(currentUser, services.CreateRoomInput{
		Name:            req.Name,
		Description:     req.Description,
		Visibility:      models.RoomVisibility(req.Visibility),
		Password:        req.Password,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "room_created", map[string]interface{}{
		"room_id":   room.ID.String(),
		"room_code": room.RoomCode,
	})
	return utils.Success(c, fiber.StatusCreated, room)
}

type joinRoomRequest struct {
	RoomCode string `json:"roomCode"`
	Password string `json:"password"`
}

func (h *RoomHandler) Join(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req joinRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.RoomCode) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "roomCode is required")
	}

	room, participant, err := h.Rooms.JoinRoom(currentUser, req.RoomCode, req.Password)
	if err != nil {
		return serviceError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"room":        room,
		"participant": participant,
	})
}

// Public lists active public rooms, newest first by default. Supports
// ?search= on name, ?sort=participants|newest and the shared
// page/limit pagination params.
func (h *RoomHandler) Public(c *fiber.Ctx) error {
	params := utils.ParsePagination(c)
	search := strings.TrimSpace(c.Query("search"))
	sort := c.Query("sort", "newest")

	query := h.DB.Model(&models.Room{}).
		Where("visibility = ? AND is_active = ?", models.RoomVisibilityPublic, true)
	if search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting rooms")
	}

	switch sort {
	case "participants":
		query = query.Order("(SELECT COUNT(*) FROM participants WHERE participants.room_id = rooms.id AND participants.is_active AND participants.deleted_at IS NULL) DESC")
	default:
		query = query.Order("created_at DESC")
	}

	var rooms []models.Room
	if err := utils.ApplyPagination(query, params).
		Preload("Owner").
		Find(&rooms).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing rooms")
	}

	return utils.Paginated(c, rooms, params.Page, params.Limit, total)
}

// MyRooms lists rooms where the caller is an active participant,
// including rooms they own.
func (h *RoomHandler) MyRooms(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	params := utils.ParsePagination(c)

	base := h.DB.Model(&models.Room{}).
		Joins("JOIN participants ON participants.room_id = rooms.id").
		Where("participants.user_id = ? AND participants.is_active = ? AND participants.deleted_at IS NULL", currentUser.ID, true).
		Where("rooms.is_active = ?", true)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting rooms")
	}

	var rooms []models.Room
	if err := utils.ApplyPagination(base.Order("rooms.created_at DESC"), params).
		Preload("Owner").
		Find(&rooms).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing rooms")
	}

	return utils.Paginated(c, rooms, params.Page, params.Limit, total)
}

// Validate is unauthenticated: clients probe a code before showing the
// join form, learning only whether the room exists and needs a password.
func (h *RoomHandler) Validate(c *fiber.Ctx) error {
	status, err := h.Rooms.ValidateRoom(c.Params("code"))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, status)
}

func (h *RoomHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	roomID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid room id")
	}

	room, err := h.Rooms.FindRoomByID(roomID)
	if err != nil {
		return serviceError(c, err)
	}

	membership, err := h.Rooms.Membership(roomID, currentUser.ID)
	if err != nil || membership == nil || !membership.IsActive {
		return utils.Error(c, fiber.StatusForbidden, "You are not a participant of this room")
	}

	return utils.Success(c, fiber.StatusOK, room)
}

type updateRoomRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	Visibility      *string `json:"visibility"`
	Password        *string `json:"password"`
	MaxParticipants *int    `json:"maxParticipants"`
}

func (h *RoomHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	roomID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid room id")
	}

	var req updateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	input := services.UpdateRoomInput{
		Name:            req.Name,
		Description:     req.Description,
		Password:        req.Password,
		MaxParticipants: req.MaxParticipants,
	}
	if req.Visibility != nil {
		visibility := models.RoomVisibility(*req.Visibility)
		input.Visibility = &visibility
	}

	room, err := h.Rooms.UpdateRoom(currentUser, roomID, input)
	if err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "room_updated", map[string]interface{}{
		"room_id": room.ID.String(),
	})
	return utils.Success(c, fiber.StatusOK, room)
}

func (h *RoomHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	roomID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid room id")
	}

	if err := h.Rooms.DeleteRoom(currentUser.ID, roomID); err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "room_deleted", map[string]interface{}{
		"room_id": roomID.String(),
	})
	return utils.Message(c, fiber.StatusOK, "room deleted")
}

func (h *RoomHandler) Leave(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	roomID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid room id")
	}

	if err := h.Rooms.LeaveRoom(currentUser.ID, roomID); err != nil {
		return serviceError(c, err)
	}
	return utils.Message(c, fiber.StatusOK, "left room")
}

// Participants lists the active members of a room; the caller must be
// one of them. Banned and kicked rows are never exposed here.
func (h *RoomHandler) Participants(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	roomID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid room id")
	}

	membership, err := h.Rooms.Membership(roomID, currentUser.ID)
	if err != nil || membership == nil || !membership.IsActive {
		return utils.Error(c, fiber.StatusForbidden, "You are not a participant of this room")
	}

	var participants []models.Participant
	if err := h.DB.Preload("User").
		Where("room_id = ? AND is_active = ?", roomID, true).
		Order("joined_at ASC").
		Find(&participants).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing participants")
	}

	return utils.Success(c, fiber.StatusOK, participants)
}

type manageParticipantRequest struct {
	Action string `json:"action"`
}

func (h *RoomHandler) ManageParticipant(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	roomID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid room id")
	}
	targetUserID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req manageParticipantRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	action := services.ManageAction(req.Action)
	switch action {
	case services.ManagePromote, services.ManageDemote, services.ManageKick, services.ManageBan:
	default:
		return utils.Error(c, fiber.StatusBadRequest, "invalid action")
	}

	if err := h.Rooms.ManageParticipant(currentUser, roomID, targetUserID, action); err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "participant_managed", map[string]interface{}{
		"room_id":        roomID.String(),
		"target_user_id": targetUserID.String(),
		"action":         string(action),
	})
	return utils.Message(c, fiber.StatusOK, "action applied")
}

type inviteUsersRequest struct {
	UserIDs []string `json:"userIds"`
}

func (h *RoomHandler) Invite(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	roomID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid room id")
	}

	var req inviteUsersRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.UserIDs) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "userIds is required")
	}

	userIDs := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		parsed, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid user id: "+raw)
		}
		userIDs = append(userIDs, parsed)
	}

	invitations, err := h.Rooms.InviteUsers(currentUser, roomID, userIDs)
	if err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "room_invitations_sent", map[string]interface{}{
		"room_id": roomID.String(),
		"count":   len(invitations),
	})
	return utils.Success(c, fiber.StatusCreated, fiber.Map{
		"invited": len(invitations),
	})
}
