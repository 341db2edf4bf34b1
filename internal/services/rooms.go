package services

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sketchroom/backend/internal/config"
	"github.com/sketchroom/backend/internal/models"
	"github.com/sketchroom/backend/pkg/logger"
	"github.com/sketchroom/backend/pkg/utils"
	"gorm.io/gorm"
)

type ManageAction string

const (
	ManagePromote ManageAction = "promote"
	ManageDemote  ManageAction = "demote"
	ManageKick    ManageAction = "kick"
	ManageBan     ManageAction = "ban"
)

const (
	roomNameMinLength = 3
	// The schema keeps varchar(100); the API enforces the stricter bound.
	roomNameMaxLength        = 50
	roomDescriptionMaxLength = 500
	roomCodeAlphabet         = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	roomCodeMaxAttempts      = 10
)

// RoomService owns room lifecycle, join gating and the participant role
// state machine. Store handles are injected so tests can run it against
// an in-memory database.
type RoomService struct {
	DB       *gorm.DB
	Notifier *Notifier
	Mailer   *Mailer
	Config   config.RoomConfig
}

func NewRoomService(db *gorm.DB, notifier *Notifier, mailer *Mailer, cfg config.RoomConfig) *RoomService {
	if db == nil {
		panic("RoomService requires a database handle")
	}
	if notifier == nil {
		panic("RoomService requires a Notifier")
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	if cfg.DefaultMaxParticipants <= 0 {
		cfg.DefaultMaxParticipants = 10
	}
	return &RoomService{DB: db, Notifier: notifier, Mailer: mailer, Config: cfg}
}

type CreateRoomInput struct {
	Name            string
	Description     string
	Visibility      models.RoomVisibility
	Password        string
	MaxParticipants int
}

func (s *RoomService) CreateRoom(owner *models.User, input CreateRoomInput) (*models.Room, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, Validation("Room name is required")
	}
	if len(name) < roomNameMinLength || len(name) > roomNameMaxLength {
		return nil, Validation("Room name must be between 3 and 50 characters")
	}
	description := strings.TrimSpace(input.Description)
	if len(description) > roomDescriptionMaxLength {
		return nil, Validation("Description must be at most 500 characters")
	}

	visibility := input.Visibility
	if visibility == "" {
		visibility = models.RoomVisibilityPublic
	}
	if visibility != models.RoomVisibilityPublic && visibility != models.RoomVisibilityPrivate {
		return nil, Validation("Visibility must be public or private")
	}

	var passwordHash *string
	if visibility == models.RoomVisibilityPrivate {
		if strings.TrimSpace(input.Password) == "" {
			return nil, Validation("Password is required for private rooms")
		}
		hash, err := utils.HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		passwordHash = &hash
	}

	maxParticipants := input.MaxParticipants
	if maxParticipants <= 0 {
		maxParticipants = s.Config.DefaultMaxParticipants
	}

	code, err := s.generateUniqueRoomCode()
	if err != nil {
		return nil, err
	}

	room := models.Room{
		Name:            name,
		Description:     description,
		RoomCode:        code,
		Visibility:      visibility,
		PasswordHash:    passwordHash,
		OwnerID:         owner.ID,
		IsActive:        true,
		MaxParticipants: maxParticipants,
		DrawingData:     []models.DrawingOp{},
	}

	now := time.Now().UTC()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		participant := models.Participant{
			UserID:   owner.ID,
			RoomID:   room.ID,
			Role:     models.ParticipantRoleOwner,
			IsActive: true,
			JoinedAt: now,
			LastSeen: now,
		}
		return tx.Create(&participant).Error
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(owner.ID.String(), "room_created", map[string]interface{}{
		"room_id":    room.ID.String(),
		"room_code":  room.RoomCode,
		"visibility": string(room.Visibility),
	})
	return &room, nil
}

// generateUniqueRoomCode retries on collision; a collision never reaches
// the caller.
func (s *RoomService) generateUniqueRoomCode() (string, error) {
	buf := make([]byte, s.Config.CodeLength)
	for attempt := 0; attempt < roomCodeMaxAttempts; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		code := make([]byte, len(buf))
		for i, b := range buf {
			code[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
		}

		var count int64
		if err := s.DB.Model(&models.Room{}).Where("room_code = ?", string(code)).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return string(code), nil
		}
		logger.Warn("room_code_collision", map[string]interface{}{
			"attempt": attempt + 1,
		})
	}
	return "", Conflict("Could not allocate a unique room code")
}

type RoomStatus struct {
	Exists           bool   `json:"exists"`
	RequiresPassword bool   `json:"requiresPassword"`
	RoomCode         string `json:"roomCode,omitempty"`
	Name             string `json:"name,omitempty"`
}

// ValidateRoom resolves a join code without leaking the password hash.
func (s *RoomService) ValidateRoom(code string) (*RoomStatus, error) {
	room, err := s.FindRoomByCode(code)
	if err != nil {
		return nil, err
	}
	return &RoomStatus{
		Exists:           true,
		RequiresPassword: room.RequiresPassword(),
		RoomCode:         room.RoomCode,
		Name:             room.Name,
	}, nil
}

func (s *RoomService) FindRoomByCode(code string) (*models.Room, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, Validation("Room code is required")
	}

	var room models.Room
	if err := s.DB.First(&room, "room_code = ? AND is_active = ?", normalized, true).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFound("Room not found")
		}
		return nil, err
	}
	return &room, nil
}

func (s *RoomService) FindRoomByID(roomID uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := s.DB.First(&room, "id = ? AND is_active = ?", roomID, true).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFound("Room not found")
		}
		return nil, err
	}
	return &room, nil
}

// JoinRoom admits a user through the gate sequence: room lookup, ban
// check, password check, capacity check. The ban check comes before the
// password check so a banned user learns nothing about the password.
func (s *RoomService) JoinRoom(user *models.User, code, password string) (*models.Room, *models.Participant, error) {
	room, err := s.FindRoomByCode(code)
	if err != nil {
		return nil, nil, err
	}

	var existing *models.Participant
	var row models.Participant
	err = s.DB.First(&row, "room_id = ? AND user_id = ?", room.ID, user.ID).Error
	switch {
	case err == nil:
		existing = &row
	case err != gorm.ErrRecordNotFound:
		return nil, nil, err
	}

	if existing != nil && existing.IsBanned {
		return nil, nil, Authorization("You are banned from this room")
	}

	if room.RequiresPassword() {
		if password == "" || !utils.CheckPassword(password, *room.PasswordHash) {
			return nil, nil, Authorization("Wrong password")
		}
	}

	if existing != nil && existing.IsActive {
		// Already in the room; joining again is navigation only.
		return room, existing, nil
	}

	count, err := s.ActiveParticipantCount(room.ID)
	if err != nil {
		return nil, nil, err
	}
	if count >= int64(room.MaxParticipants) {
		return nil, nil, Capacity("Room is full")
	}

	now := time.Now().UTC()
	var participant *models.Participant
	if existing != nil {
		existing.IsActive = true
		existing.LastSeen = now
		if err := s.DB.Model(existing).Updates(map[string]interface{}{
			"is_active": true,
			"last_seen": now,
		}).Error; err != nil {
			return nil, nil, err
		}
		participant = existing
	} else {
		role := models.ParticipantRoleParticipant
		if user.ID == room.OwnerID {
			role = models.ParticipantRoleOwner
		}
		participant = &models.Participant{
			UserID:   user.ID,
			RoomID:   room.ID,
			Role:     role,
			IsActive: true,
			JoinedAt: now,
			LastSeen: now,
		}
		if err := s.DB.Create(participant).Error; err != nil {
			return nil, nil, err
		}
	}

	s.Notifier.RoomJoined(room, user)

	logger.InfoWithUser(user.ID.String(), "room_joined", map[string]interface{}{
		"room_id":   room.ID.String(),
		"room_code": room.RoomCode,
	})
	return room, participant, nil
}

func (s *RoomService) LeaveRoom(userID, roomID uuid.UUID) error {
	room, err := s.FindRoomByID(roomID)
	if err != nil {
		return err
	}
	if room.OwnerID == userID {
		return InvalidTarget("The owner cannot leave their own room")
	}

	result := s.DB.Model(&models.Participant{}).
		Where("room_id = ? AND user_id = ? AND is_active = ?", roomID, userID, true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return NotFound("You are not a participant of this room")
	}
	return nil
}

func (s *RoomService) ActiveParticipantCount(roomID uuid.UUID) (int64, error) {
	var count int64
	err := s.DB.Model(&models.Participant{}).
		Where("room_id = ? AND is_active = ?", roomID, true).
		Count(&count).Error
	return count, err
}

// Membership returns the active participant row binding a user to a room.
func (s *RoomService) Membership(roomID, userID uuid.UUID) (*models.Participant, error) {
	var participant models.Participant
	err := s.DB.First(&participant, "room_id = ? AND user_id = ? AND is_active = ?", roomID, userID, true).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFound("You are not a participant of this room")
		}
		return nil, err
	}
	return &participant, nil
}

// ManageParticipant applies a role action. Authorization is evaluated in
// full before any row is touched.
func (s *RoomService) ManageParticipant(actor *models.User, roomID, targetUserID uuid.UUID, action ManageAction) error {
	room, err := s.FindRoomByID(roomID)
	if err != nil {
		return err
	}

	if actor.ID == targetUserID {
		return InvalidTarget("You cannot perform this action on yourself")
	}

	var actorRow models.Participant
	if err := s.DB.First(&actorRow, "room_id = ? AND user_id = ? AND is_active = ?", roomID, actor.ID, true).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return Authorization("Insufficient permissions")
		}
		return err
	}
	if !actorRow.CanManage() {
		return Authorization("Insufficient permissions")
	}

	var target models.Participant
	if err := s.DB.First(&target, "room_id = ? AND user_id = ?", roomID, targetUserID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return NotFound("Participant not found")
		}
		return err
	}

	if target.Role == models.ParticipantRoleOwner {
		return Authorization("The room owner cannot be targeted")
	}
	if actorRow.Role == models.ParticipantRoleModerator && target.Role == models.ParticipantRoleModerator {
		return Authorization("Moderators can only manage participants")
	}

	switch action {
	case ManagePromote:
		if !target.IsActive {
			return NotFound("Participant not found")
		}
		if target.Role != models.ParticipantRoleParticipant {
			return Validation("User is already a moderator")
		}
		if err := s.DB.Model(&target).Update("role", models.ParticipantRoleModerator).Error; err != nil {
			return err
		}
	case ManageDemote:
		if !target.IsActive {
			return NotFound("Participant not found")
		}
		if target.Role != models.ParticipantRoleModerator {
			return Validation("User is not a moderator")
		}
		if err := s.DB.Model(&target).Update("role", models.ParticipantRoleParticipant).Error; err != nil {
			return err
		}
	case ManageKick:
		if !target.IsActive {
			return NotFound("Participant not found")
		}
		if err := s.DB.Model(&target).Update("is_active", false).Error; err != nil {
			return err
		}
	case ManageBan:
		// Banning works even after the target left; the flag outlives
		// active participation.
		if err := s.DB.Model(&target).Updates(map[string]interface{}{
			"is_banned": true,
			"is_active": false,
		}).Error; err != nil {
			return err
		}
	default:
		return Validation("Unknown action")
	}

	if err := s.Notifier.ParticipantManaged(room, actor, targetUserID, action); err != nil {
		logger.Error("manage_notification_failed", err, map[string]interface{}{
			"room_id":        roomID.String(),
			"target_user_id": targetUserID.String(),
			"action":         string(action),
		})
	}

	logger.InfoWithUser(actor.ID.String(), "participant_managed", map[string]interface{}{
		"room_id":        roomID.String(),
		"target_user_id": targetUserID.String(),
		"action":         string(action),
	})
	return nil
}

type UpdateRoomInput struct {
	Name            *string
	Description     *string
	Visibility      *models.RoomVisibility
	Password        *string
	MaxParticipants *int
}

func (s *RoomService) UpdateRoom(actor *models.User, roomID uuid.UUID, input UpdateRoomInput) (*models.Room, error) {
	room, err := s.FindRoomByID(roomID)
	if err != nil {
		return nil, err
	}

	membership, err := s.Membership(roomID, actor.ID)
	if err != nil {
		return nil, Authorization("Insufficient permissions")
	}
	if !membership.CanManage() {
		return nil, Authorization("Insufficient permissions")
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, Validation("Room name is required")
		}
		if len(name) < roomNameMinLength || len(name) > roomNameMaxLength {
			return nil, Validation("Room name must be between 3 and 50 characters")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if len(description) > roomDescriptionMaxLength {
			return nil, Validation("Description must be at most 500 characters")
		}
		updates["description"] = description
	}
	if input.MaxParticipants != nil {
		if *input.MaxParticipants < 1 {
			return nil, Validation("maxParticipants must be at least 1")
		}
		updates["max_participants"] = *input.MaxParticipants
	}

	visibility := room.Visibility
	if input.Visibility != nil {
		visibility = *input.Visibility
		if visibility != models.RoomVisibilityPublic && visibility != models.RoomVisibilityPrivate {
			return nil, Validation("Visibility must be public or private")
		}
		updates["visibility"] = visibility
	}
	if visibility == models.RoomVisibilityPrivate {
		hasPassword := room.PasswordHash != nil && *room.PasswordHash != ""
		if input.Password != nil && strings.TrimSpace(*input.Password) != "" {
			hash, err := utils.HashPassword(*input.Password)
			if err != nil {
				return nil, err
			}
			updates["password_hash"] = hash
		} else if !hasPassword {
			return nil, Validation("Password is required for private rooms")
		}
	} else if input.Visibility != nil {
		// Turning a room public clears the gate.
		updates["password_hash"] = nil
	}

	if len(updates) == 0 {
		return nil, Validation("No valid fields to update")
	}

	if err := s.DB.Model(&models.Room{}).Where("id = ?", roomID).Updates(updates).Error; err != nil {
		return nil, err
	}

	updated, err := s.FindRoomByID(roomID)
	if err != nil {
		return nil, err
	}

	s.Notifier.RoomUpdated(updated, actor)
	return updated, nil
}

func (s *RoomService) DeleteRoom(actorID, roomID uuid.UUID) error {
	room, err := s.FindRoomByID(roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != actorID {
		return Authorization("Only the room owner can delete the room")
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&models.Participant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.Invitation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Room{}, "id = ?", roomID).Error
	})
}

// InviteUsers creates pending invitations, skipping users who are already
// active in the room, banned from it, or already invited.
func (s *RoomService) InviteUsers(actor *models.User, roomID uuid.UUID, userIDs []uuid.UUID) ([]models.Invitation, error) {
	room, err := s.FindRoomByID(roomID)
	if err != nil {
		return nil, err
	}

	membership, err := s.Membership(roomID, actor.ID)
	if err != nil {
		return nil, Authorization("Insufficient permissions")
	}
	if !membership.CanManage() {
		return nil, Authorization("Insufficient permissions")
	}

	var created []models.Invitation
	for _, userID := range userIDs {
		if userID == actor.ID {
			continue
		}

		var invitee models.User
		if err := s.DB.First(&invitee, "id = ?", userID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return nil, err
		}

		var participant models.Participant
		err := s.DB.First(&participant, "room_id = ? AND user_id = ?", roomID, userID).Error
		if err == nil {
			if participant.IsBanned || participant.IsActive {
				continue
			}
		} else if err != gorm.ErrRecordNotFound {
			return nil, err
		}

		var pending int64
		if err := s.DB.Model(&models.Invitation{}).
			Where("room_id = ? AND invited_user_id = ? AND status = ?", roomID, userID, models.InvitationStatusPending).
			Count(&pending).Error; err != nil {
			return nil, err
		}
		if pending > 0 {
			continue
		}

		invitation := models.Invitation{
			RoomID:        roomID,
			InvitedUserID: userID,
			InvitedByID:   actor.ID,
			Status:        models.InvitationStatusPending,
		}
		if err := s.DB.Create(&invitation).Error; err != nil {
			return nil, err
		}

		s.Notifier.UserInvited(room, actor, userID)
		if s.Mailer != nil {
			s.Mailer.SendInvitationEmail(&invitation, room, actor, &invitee)
		}
		created = append(created, invitation)
	}

	logger.InfoWithUser(actor.ID.String(), "room_invitations_sent", map[string]interface{}{
		"room_id": roomID.String(),
		"count":   len(created),
	})
	return created, nil
}

// AcceptInvitation joins the invited room. A ban strictly overrides the
// invitation: the join gate is refused and the invitation left pending.
func (s *RoomService) AcceptInvitation(user *models.User, invitationID uuid.UUID) (*models.Room, error) {
	invitation, err := s.findInvitation(user.ID, invitationID)
	if err != nil {
		return nil, err
	}

	room, err := s.FindRoomByID(invitation.RoomID)
	if err != nil {
		return nil, err
	}

	var existing models.Participant
	err = s.DB.First(&existing, "room_id = ? AND user_id = ?", room.ID, user.ID).Error
	if err == nil && existing.IsBanned {
		return nil, Authorization("You are banned from this room")
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}

	count, err := s.ActiveParticipantCount(room.ID)
	if err != nil {
		return nil, err
	}
	alreadyActive := existing.ID != uuid.Nil && existing.IsActive
	if !alreadyActive && count >= int64(room.MaxParticipants) {
		return nil, Capacity("Room is full")
	}

	now := time.Now().UTC()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if existing.ID != uuid.Nil {
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"is_active": true,
				"last_seen": now,
			}).Error; err != nil {
				return err
			}
		} else {
			participant := models.Participant{
				UserID:   user.ID,
				RoomID:   room.ID,
				Role:     models.ParticipantRoleParticipant,
				IsActive: true,
				JoinedAt: now,
				LastSeen: now,
			}
			if err := tx.Create(&participant).Error; err != nil {
				return err
			}
		}
		return tx.Model(invitation).Updates(map[string]interface{}{
			"status":      models.InvitationStatusAccepted,
			"accepted_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.RoomJoined(room, user)
	return room, nil
}

func (s *RoomService) RejectInvitation(userID, invitationID uuid.UUID) error {
	invitation, err := s.findInvitation(userID, invitationID)
	if err != nil {
		return err
	}
	return s.DB.Model(invitation).Update("status", models.InvitationStatusRejected).Error
}

func (s *RoomService) findInvitation(userID, invitationID uuid.UUID) (*models.Invitation, error) {
	var invitation models.Invitation
	err := s.DB.First(&invitation, "id = ? AND invited_user_id = ?", invitationID, userID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFound("Invitation not found")
		}
		return nil, err
	}

	if invitation.IsResolved() {
		return nil, Validation("Invitation has already been resolved")
	}
	if time.Now().UTC().After(invitation.ExpiresAt) {
		_ = s.DB.Model(&invitation).Update("status", models.InvitationStatusExpired).Error
		return nil, Validation("Invitation has expired")
	}
	return &invitation, nil
}

// TouchLastSeen is called from the websocket gateway on activity.
func (s *RoomService) TouchLastSeen(roomID, userID uuid.UUID) {
	if err := s.DB.Model(&models.Participant{}).
		Where("room_id = ? AND user_id = ? AND is_active = ?", roomID, userID, true).
		Update("last_seen", time.Now().UTC()).Error; err != nil {
		logger.Error("last_seen_update_failed", err, map[string]interface{}{
			"room_id": roomID.String(),
			"user_id": userID.String(),
		})
	}
}
