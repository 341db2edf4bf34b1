package services

import (
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sketchroom/backend/internal/config"
	"github.com/sketchroom/backend/internal/models"
	"github.com/sketchroom/backend/pkg/logger"
	"github.com/sketchroom/backend/pkg/utils"
	"gorm.io/gorm"
)

var testSetupOnce sync.Once

func setupRoomService(t *testing.T) (*RoomService, *gorm.DB) {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.LoginActivity{},
		&models.Room{},
		&models.Participant{},
		&models.Notification{},
		&models.Invitation{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	service := NewRoomService(db, NewNotifier(db), NewMailer(nil, "http://localhost:5173"), config.RoomConfig{
		DefaultMaxParticipants: 10,
		CodeLength:             6,
	})
	return service, db
}

func makeUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := utils.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}
	user := &models.User{
		DisplayName:  username,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user %s: %v", username, err)
	}
	return user
}

func makePublicRoom(t *testing.T, service *RoomService, owner *models.User, name string) *models.Room {
	t.Helper()

	room, err := service.CreateRoom(owner, CreateRoomInput{
		Name:       name,
		Visibility: models.RoomVisibilityPublic,
	})
	if err != nil {
		t.Fatalf("failed creating room %s: %v", name, err)
	}
	return room
}

func makePrivateRoom(t *testing.T, service *RoomService, owner *models.User, name, password string) *models.Room {
	t.Helper()

	room, err := service.CreateRoom(owner, CreateRoomInput{
		Name:       name,
		Visibility: models.RoomVisibilityPrivate,
		Password:   password,
	})
	if err != nil {
		t.Fatalf("failed creating room %s: %v", name, err)
	}
	return room
}

func countNotifications(t *testing.T, db *gorm.DB, recipientID interface{}, notificationType models.NotificationType) int64 {
	t.Helper()

	var count int64
	err := db.Model(&models.Notification{}).
		Where("recipient_id = ? AND type = ?", recipientID, notificationType).
		Count(&count).Error
	if err != nil {
		t.Fatalf("failed counting notifications: %v", err)
	}
	return count
}
