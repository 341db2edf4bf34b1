package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sketchroom/backend/internal/models"
	"gorm.io/gorm"
)

func testWorker(t *testing.T) (*Worker, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(&models.User{}, &models.Room{}, &models.Notification{}, &models.Invitation{})
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	return &Worker{db: db}, db
}

func seedRoom(t *testing.T, db *gorm.DB) *models.Room {
	t.Helper()

	owner := models.User{DisplayName: "Ada", Username: "ada", Email: "ada@example.com", PasswordHash: "x"}
	if err := db.Create(&owner).Error; err != nil {
		t.Fatalf("failed creating owner: %v", err)
	}
	room := models.Room{
		Name:            "Sketch Night",
		RoomCode:        "ABC123",
		Visibility:      models.RoomVisibilityPublic,
		OwnerID:         owner.ID,
		IsActive:        true,
		MaxParticipants: 10,
		DrawingData:     []models.DrawingOp{},
	}
	if err := db.Create(&room).Error; err != nil {
		t.Fatalf("failed creating room: %v", err)
	}
	return &room
}

func TestHandleDrawingPersistAppendsOps(t *testing.T) {
	worker, db := testWorker(t)
	room := seedRoom(t, db)

	task, err := NewDrawingPersistTask(DrawingPersistPayload{
		RoomID: room.ID,
		Ops: []models.DrawingOp{
			{Type: "stroke", UserID: room.OwnerID, Points: []models.Point{{X: 1, Y: 2}}, Color: "#000000", Width: 2},
			{Type: "stroke", UserID: room.OwnerID, Points: []models.Point{{X: 3, Y: 4}}, Color: "#ff0000", Width: 4},
		},
	})
	if err != nil {
		t.Fatalf("failed building task: %v", err)
	}

	if err := worker.handleDrawingPersist(context.Background(), task); err != nil {
		t.Fatalf("drawing persist failed: %v", err)
	}

	var reloaded models.Room
	if err := db.First(&reloaded, "id = ?", room.ID).Error; err != nil {
		t.Fatalf("failed reloading room: %v", err)
	}
	if len(reloaded.DrawingData) != 2 {
		t.Fatalf("expected 2 persisted ops, got %d", len(reloaded.DrawingData))
	}
	if reloaded.DrawingData[1].Color != "#ff0000" {
		t.Fatalf("expected ops in order, got %+v", reloaded.DrawingData)
	}
}

func TestHandleDrawingPersistToleratesDeletedRoom(t *testing.T) {
	worker, _ := testWorker(t)

	task, err := NewDrawingPersistTask(DrawingPersistPayload{
		RoomID: uuid.New(),
		Ops:    []models.DrawingOp{{Type: "stroke"}},
	})
	if err != nil {
		t.Fatalf("failed building task: %v", err)
	}

	if err := worker.handleDrawingPersist(context.Background(), task); err != nil {
		t.Fatalf("strokes for a deleted room must be dropped silently, got %v", err)
	}
}

func TestHandleEmailSendMarksInvitation(t *testing.T) {
	worker, db := testWorker(t)
	room := seedRoom(t, db)

	invitee := models.User{DisplayName: "Grace", Username: "grace", Email: "grace@example.com", PasswordHash: "x"}
	if err := db.Create(&invitee).Error; err != nil {
		t.Fatalf("failed creating invitee: %v", err)
	}
	invitation := models.Invitation{
		RoomID:        room.ID,
		InvitedUserID: invitee.ID,
		InvitedByID:   room.OwnerID,
		Status:        models.InvitationStatusPending,
	}
	if err := db.Create(&invitation).Error; err != nil {
		t.Fatalf("failed creating invitation: %v", err)
	}

	task, err := NewEmailTask(EmailPayload{
		To:           invitee.Email,
		Subject:      "You were invited",
		Body:         "join us",
		InvitationID: &invitation.ID,
	})
	if err != nil {
		t.Fatalf("failed building task: %v", err)
	}

	if err := worker.handleEmailSend(context.Background(), task); err != nil {
		t.Fatalf("email handler failed: %v", err)
	}

	var reloaded models.Invitation
	if err := db.First(&reloaded, "id = ?", invitation.ID).Error; err != nil {
		t.Fatalf("failed reloading invitation: %v", err)
	}
	if !reloaded.EmailSent {
		t.Fatal("expected emailSent to be flipped")
	}
}

func TestHandleCleanupExpired(t *testing.T) {
	worker, db := testWorker(t)
	room := seedRoom(t, db)

	recipient := models.User{DisplayName: "Grace", Username: "grace", Email: "grace@example.com", PasswordHash: "x"}
	if err := db.Create(&recipient).Error; err != nil {
		t.Fatalf("failed creating recipient: %v", err)
	}

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	liveNotification := models.Notification{RecipientID: recipient.ID, Type: models.NotificationRoomJoined, Title: "t", Message: "m", ExpiresAt: future}
	deadNotification := models.Notification{RecipientID: recipient.ID, Type: models.NotificationRoomJoined, Title: "t", Message: "m", ExpiresAt: past}
	if err := db.Create(&liveNotification).Error; err != nil {
		t.Fatalf("failed creating notification: %v", err)
	}
	if err := db.Create(&deadNotification).Error; err != nil {
		t.Fatalf("failed creating notification: %v", err)
	}

	lapsedInvitation := models.Invitation{RoomID: room.ID, InvitedUserID: recipient.ID, InvitedByID: room.OwnerID, Status: models.InvitationStatusPending, ExpiresAt: past}
	if err := db.Create(&lapsedInvitation).Error; err != nil {
		t.Fatalf("failed creating invitation: %v", err)
	}

	if err := worker.handleCleanupExpired(context.Background(), nil); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	var notifications int64
	db.Model(&models.Notification{}).Where("recipient_id = ?", recipient.ID).Count(&notifications)
	if notifications != 1 {
		t.Fatalf("expected only the live notification to survive, got %d", notifications)
	}

	var reloaded models.Invitation
	if err := db.First(&reloaded, "id = ?", lapsedInvitation.ID).Error; err != nil {
		t.Fatalf("failed reloading invitation: %v", err)
	}
	if reloaded.Status != models.InvitationStatusExpired {
		t.Fatalf("expected pending invitation to lapse to expired, got %s", reloaded.Status)
	}

	// The next pass purges the lapsed row entirely.
	if err := worker.handleCleanupExpired(context.Background(), nil); err != nil {
		t.Fatalf("second cleanup failed: %v", err)
	}
	var remaining int64
	db.Model(&models.Invitation{}).Where("id = ?", lapsedInvitation.ID).Count(&remaining)
	if remaining != 0 {
		t.Fatal("expected lapsed invitation to be purged on the second pass")
	}
}
