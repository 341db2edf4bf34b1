package models

import "github.com/google/uuid"

type RoomVisibility string

const (
	RoomVisibilityPublic  RoomVisibility = "public"
	RoomVisibilityPrivate RoomVisibility = "private"
)

// DrawingOp is a single canvas operation. Ops are appended in order and
// replayed on join to reconstruct the board.
type DrawingOp struct {
	Type   string    `json:"type"`
	UserID uuid.UUID `json:"userID"`
	Points []Point   `json:"points,omitempty"`
	Color  string    `json:"color,omitempty"`
	Width  float64   `json:"width,omitempty"`
	Ts     int64     `json:"ts"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Room struct {
	BaseModel
	Name            string         `json:"name" gorm:"type:varchar(100);not null"`
	Description     string         `json:"description" gorm:"type:varchar(500)"`
	RoomCode        string         `json:"roomCode" gorm:"type:varchar(10);uniqueIndex;not null"`
	Visibility      RoomVisibility `json:"visibility" gorm:"type:varchar(10);not null;default:'public';index"`
	PasswordHash    *string        `json:"-" gorm:"type:text"`
	OwnerID         uuid.UUID      `json:"ownerID" gorm:"type:uuid;not null;index"`
	IsActive        bool           `json:"isActive" gorm:"not null;default:true;index"`
	MaxParticipants int            `json:"maxParticipants" gorm:"not null;default:10"`
	DrawingData     []DrawingOp    `json:"drawingData,omitempty" gorm:"type:jsonb;serializer:json"`

	Owner        User          `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:RoomID"`
	Invitations  []Invitation  `json:"-" gorm:"foreignKey:RoomID"`
}

func (Room) TableName() string {
	return "rooms"
}

// RequiresPassword reports whether joining this room is password-gated.
// A public room's password hash, if any, is ignored.
func (r *Room) RequiresPassword() bool {
	return r.Visibility == RoomVisibilityPrivate && r.PasswordHash != nil && *r.PasswordHash != ""
}
