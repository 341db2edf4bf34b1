package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusRejected InvitationStatus = "rejected"
	InvitationStatusExpired  InvitationStatus = "expired"
)

const InvitationTTL = 30 * 24 * time.Hour

type Invitation struct {
	BaseModel
	RoomID        uuid.UUID        `json:"roomID" gorm:"type:uuid;not null;index"`
	InvitedUserID uuid.UUID        `json:"invitedUserID" gorm:"type:uuid;not null;index"`
	InvitedByID   uuid.UUID        `json:"invitedByID" gorm:"type:uuid;not null"`
	Status        InvitationStatus `json:"status" gorm:"type:varchar(10);not null;default:'pending';index"`
	EmailSent     bool             `json:"emailSent" gorm:"not null;default:false"`
	AcceptedAt    *time.Time       `json:"acceptedAt,omitempty"`
	ExpiresAt     time.Time        `json:"expiresAt" gorm:"not null;index"`

	Room        Room `json:"room,omitempty" gorm:"foreignKey:RoomID"`
	InvitedUser User `json:"invitedUser,omitempty" gorm:"foreignKey:InvitedUserID"`
	InvitedBy   User `json:"invitedBy,omitempty" gorm:"foreignKey:InvitedByID"`
}

func (Invitation) TableName() string {
	return "invitations"
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if err := i.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if i.ExpiresAt.IsZero() {
		i.ExpiresAt = time.Now().UTC().Add(InvitationTTL)
	}
	return nil
}

// IsResolved reports whether the invitation reached a terminal status.
// Resolved invitations are immutable.
func (i *Invitation) IsResolved() bool {
	return i.Status != InvitationStatusPending
}
