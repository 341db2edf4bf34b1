package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationUserInvitedToRoom    NotificationType = "user_invited_to_room"
	NotificationRoomJoined           NotificationType = "room_joined"
	NotificationParticipantPromoted  NotificationType = "participant_promoted"
	NotificationParticipantDemoted   NotificationType = "participant_demoted"
	NotificationParticipantKicked    NotificationType = "participant_kicked"
	NotificationParticipantBanned    NotificationType = "participant_banned"
	NotificationRoomUpdated          NotificationType = "room_updated"
	NotificationCommentMentioned     NotificationType = "comment_mentioned"
	NotificationDrawingShared        NotificationType = "drawing_shared"
)

// NotificationTTL is how long a notification row lives before the cleanup
// task deletes it.
const NotificationTTL = 30 * 24 * time.Hour

type Notification struct {
	BaseModel
	RecipientID   uuid.UUID        `json:"recipientID" gorm:"type:uuid;not null;index"`
	Type          NotificationType `json:"type" gorm:"type:varchar(40);not null"`
	Title         string           `json:"title" gorm:"type:varchar(255);not null"`
	Message       string           `json:"message" gorm:"type:text;not null"`
	IsRead        bool             `json:"isRead" gorm:"not null;default:false;index"`
	ReadAt        *time.Time       `json:"readAt,omitempty"`
	RelatedUserID *uuid.UUID       `json:"relatedUserID,omitempty" gorm:"type:uuid"`
	RelatedRoomID *uuid.UUID       `json:"relatedRoomID,omitempty" gorm:"type:uuid"`
	ActionURL     string           `json:"actionURL" gorm:"type:text"`
	ExpiresAt     time.Time        `json:"expiresAt" gorm:"not null;index"`

	RelatedUser *User `json:"relatedUser,omitempty" gorm:"foreignKey:RelatedUserID;references:ID"`
	RelatedRoom *Room `json:"relatedRoom,omitempty" gorm:"foreignKey:RelatedRoomID;references:ID"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if err := n.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if n.ExpiresAt.IsZero() {
		n.ExpiresAt = time.Now().UTC().Add(NotificationTTL)
	}
	return nil
}
