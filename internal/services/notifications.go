package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sketchroom/backend/internal/models"
	"github.com/sketchroom/backend/pkg/logger"
	"gorm.io/gorm"
)

// Notifier creates notification rows as state-changing room actions
// happen. Creation is synchronous with the triggering action so every
// successful action leaves exactly one row per recipient.
type Notifier struct {
	DB *gorm.DB
}

func NewNotifier(db *gorm.DB) *Notifier {
	if db == nil {
		panic("Notifier requires a database handle")
	}
	return &Notifier{DB: db}
}

func (n *Notifier) notify(notification models.Notification) error {
	if err := n.DB.Create(&notification).Error; err != nil {
		logger.Error("notification_insert_failed", err, map[string]interface{}{
			"recipient_id": notification.RecipientID.String(),
			"type":         string(notification.Type),
		})
		return err
	}
	return nil
}

// RoomJoined notifies the owner and every active moderator that someone
// entered the room. The joiner is never notified about themselves.
func (n *Notifier) RoomJoined(room *models.Room, joiner *models.User) {
	var managers []models.Participant
	if err := n.DB.Where(
		"room_id = ? AND is_active = ? AND role IN ?",
		room.ID, true,
		[]models.ParticipantRole{models.ParticipantRoleOwner, models.ParticipantRoleModerator},
	).Find(&managers).Error; err != nil {
		logger.Error("room_joined_fanout_failed", err, map[string]interface{}{
			"room_id": room.ID.String(),
		})
		return
	}

	for _, manager := range managers {
		if manager.UserID == joiner.ID {
			continue
		}
		_ = n.notify(models.Notification{
			RecipientID:   manager.UserID,
			Type:          models.NotificationRoomJoined,
			Title:         "New participant",
			Message:       fmt.Sprintf("%s joined %s", joiner.DisplayName, room.Name),
			RelatedUserID: &joiner.ID,
			RelatedRoomID: &room.ID,
			ActionURL:     "/room/" + room.RoomCode,
		})
	}
}

// ParticipantManaged notifies the target of a promote/demote/kick/ban.
func (n *Notifier) ParticipantManaged(room *models.Room, actor *models.User, targetID uuid.UUID, action ManageAction) error {
	var notificationType models.NotificationType
	var title, message string

	switch action {
	case ManagePromote:
		notificationType = models.NotificationParticipantPromoted
		title = "You were promoted"
		message = fmt.Sprintf("%s made you a moderator of %s", actor.DisplayName, room.Name)
	case ManageDemote:
		notificationType = models.NotificationParticipantDemoted
		title = "You were demoted"
		message = fmt.Sprintf("%s removed your moderator role in %s", actor.DisplayName, room.Name)
	case ManageKick:
		notificationType = models.NotificationParticipantKicked
		title = "Removed from room"
		message = fmt.Sprintf("%s removed you from %s", actor.DisplayName, room.Name)
	case ManageBan:
		notificationType = models.NotificationParticipantBanned
		title = "Banned from room"
		message = fmt.Sprintf("%s banned you from %s", actor.DisplayName, room.Name)
	default:
		return fmt.Errorf("unknown manage action %q", action)
	}

	return n.notify(models.Notification{
		RecipientID:   targetID,
		Type:          notificationType,
		Title:         title,
		Message:       message,
		RelatedUserID: &actor.ID,
		RelatedRoomID: &room.ID,
	})
}

func (n *Notifier) UserInvited(room *models.Room, inviter *models.User, invitedUserID uuid.UUID) {
	_ = n.notify(models.Notification{
		RecipientID:   invitedUserID,
		Type:          models.NotificationUserInvitedToRoom,
		Title:         "Room invitation",
		Message:       fmt.Sprintf("%s invited you to %s", inviter.DisplayName, room.Name),
		RelatedUserID: &inviter.ID,
		RelatedRoomID: &room.ID,
		ActionURL:     "/invitations",
	})
}

// RoomUpdated fans out to every active participant except the editor.
func (n *Notifier) RoomUpdated(room *models.Room, editor *models.User) {
	var participants []models.Participant
	if err := n.DB.Where("room_id = ? AND is_active = ?", room.ID, true).Find(&participants).Error; err != nil {
		logger.Error("room_updated_fanout_failed", err, map[string]interface{}{
			"room_id": room.ID.String(),
		})
		return
	}

	for _, participant := range participants {
		if participant.UserID == editor.ID {
			continue
		}
		_ = n.notify(models.Notification{
			RecipientID:   participant.UserID,
			Type:          models.NotificationRoomUpdated,
			Title:         "Room updated",
			Message:       fmt.Sprintf("%s updated %s", editor.DisplayName, room.Name),
			RelatedUserID: &editor.ID,
			RelatedRoomID: &room.ID,
			ActionURL:     "/room/" + room.RoomCode,
		})
	}
}
