package models

import (
	"time"

	"github.com/google/uuid"
)

type ParticipantRole string

const (
	ParticipantRoleOwner       ParticipantRole = "owner"
	ParticipantRoleModerator   ParticipantRole = "moderator"
	ParticipantRoleParticipant ParticipantRole = "participant"
)

// Participant binds a user to a room. There is exactly one row per
// (user, room) pair; kick and leave deactivate it instead of deleting so
// the ban flag survives rejoin attempts.
type Participant struct {
	BaseModel
	UserID   uuid.UUID       `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_room"`
	RoomID   uuid.UUID       `json:"roomID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_room"`
	Role     ParticipantRole `json:"role" gorm:"type:varchar(20);not null;default:'participant'"`
	IsBanned bool            `json:"isBanned" gorm:"not null;default:false"`
	IsActive bool            `json:"isActive" gorm:"not null;default:true;index"`
	JoinedAt time.Time       `json:"joinedAt" gorm:"not null"`
	LastSeen time.Time       `json:"lastSeen" gorm:"not null"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Room Room `json:"room,omitempty" gorm:"foreignKey:RoomID"`
}

func (Participant) TableName() string {
	return "participants"
}

// CanManage reports whether this participant's role grants management
// actions over other participants.
func (p *Participant) CanManage() bool {
	return p.Role == ParticipantRoleOwner || p.Role == ParticipantRoleModerator
}
