package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	BaseModel
	DisplayName           string     `json:"displayName" gorm:"type:varchar(100);not null"`
	Username              string     `json:"username" gorm:"type:varchar(50);uniqueIndex;not null"`
	Email                 string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash          string     `json:"-" gorm:"type:text;not null"`
	AvatarURL             *string    `json:"avatarURL,omitempty" gorm:"type:text"`
	Bio                   string     `json:"bio" gorm:"type:varchar(500)"`
	IsVerified            bool       `json:"isVerified" gorm:"not null;default:false"`
	VerificationToken     *string    `json:"-" gorm:"type:varchar(64);index"`
	VerificationExpiresAt *time.Time `json:"-"`
	ResetToken            *string    `json:"-" gorm:"type:varchar(64);index"`
	ResetExpiresAt        *time.Time `json:"-"`

	LoginActivities []LoginActivity `json:"-" gorm:"foreignKey:UserID"`
	Participations  []Participant   `json:"-" gorm:"foreignKey:UserID"`
	Notifications   []Notification  `json:"-" gorm:"foreignKey:RecipientID"`
}

type LoginStatus string

const (
	LoginStatusSuccess LoginStatus = "success"
	LoginStatusFailed  LoginStatus = "failed"
)

// LoginActivity is append-only; rows are never updated after creation.
type LoginActivity struct {
	BaseModel
	UserID     uuid.UUID   `json:"userID" gorm:"type:uuid;not null;index"`
	Status     LoginStatus `json:"status" gorm:"type:varchar(10);not null"`
	DeviceType string      `json:"deviceType" gorm:"type:varchar(50)"`
	IPAddress  string      `json:"ipAddress" gorm:"type:varchar(45)"`
	Timestamp  time.Time   `json:"timestamp" gorm:"not null;index"`
}

func (LoginActivity) TableName() string {
	return "login_activities"
}
