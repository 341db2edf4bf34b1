package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sketchroom/backend/internal/models"
	"github.com/sketchroom/backend/internal/services"
)

func TestInvitationListShowsPendingOnly(t *testing.T) {
	env := setupTestEnv(t)
	owner, _ := createTestUser(t, env.db, "ada", "ada@example.com", "correct-horse")
	invitee, token := createTestUser(t, env.db, "grace", "grace@example.com", "correct-horse")
	room := createTestRoomPublic(t, env, owner, "Sketch Night")

	invitations, err := env.rooms.InviteUsers(owner, room.ID, []uuid.UUID{invitee.ID})
	if err != nil || len(invitations) != 1 {
		t.Fatalf("failed seeding invitation: %v", err)
	}

	resp := performRequest(t, env.app, http.MethodGet, "/api/invitations/", nil, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	body := decodeJSONMap(t, resp)
	items, _ := body["data"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 pending invitation, got %d", len(items))
	}

	if err := env.rooms.RejectInvitation(invitee.ID, invitations[0].ID); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/invitations/", nil, authHeaders(token))
	body = decodeJSONMap(t, resp)
	items, _ = body["data"].([]any)
	if len(items) != 0 {
		t.Fatalf("expected no pending invitations after reject, got %d", len(items))
	}
}

func TestAcceptInvitationJoinsRoom(t *testing.T) {
	env := setupTestEnv(t)
	owner, _ := createTestUser(t, env.db, "ada", "ada@example.com", "correct-horse")
	invitee, token := createTestUser(t, env.db, "grace", "grace@example.com", "correct-horse")
	room := createTestRoom(t, env, owner, services.CreateRoomInput{
		Name:       "Secret Den",
		Visibility: models.RoomVisibilityPrivate,
		Password:   "hunter2!",
	})

	invitations, err := env.rooms.InviteUsers(owner, room.ID, []uuid.UUID{invitee.ID})
	if err != nil || len(invitations) != 1 {
		t.Fatalf("failed seeding invitation: %v", err)
	}

	// An invitation admits the user without the room password.
	resp := performRequest(t, env.app, http.MethodPost, "/api/invitations/"+invitations[0].ID.String()+"/accept", nil, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)

	var participant models.Participant
	if err := env.db.First(&participant, "room_id = ? AND user_id = ?", room.ID, invitee.ID).Error; err != nil {
		t.Fatalf("participant row not created: %v", err)
	}
	if !participant.IsActive {
		t.Fatal("expected active participant after accept")
	}

	var invitation models.Invitation
	if err := env.db.First(&invitation, "id = ?", invitations[0].ID).Error; err != nil {
		t.Fatalf("failed reloading invitation: %v", err)
	}
	if invitation.Status != models.InvitationStatusAccepted {
		t.Fatalf("expected accepted invitation, got %s", invitation.Status)
	}
	if invitation.AcceptedAt == nil {
		t.Fatal("expected acceptedAt to be set")
	}
}

func TestAcceptInvitationWhileBanned(t *testing.T) {
	env := setupTestEnv(t)
	owner, _ := createTestUser(t, env.db, "ada", "ada@example.com", "correct-horse")
	invitee, token := createTestUser(t, env.db, "grace", "grace@example.com", "correct-horse")
	room := createTestRoomPublic(t, env, owner, "Sketch Night")

	invitations, err := env.rooms.InviteUsers(owner, room.ID, []uuid.UUID{invitee.ID})
	if err != nil || len(invitations) != 1 {
		t.Fatalf("failed seeding invitation: %v", err)
	}

	if _, _, err := env.rooms.JoinRoom(invitee, room.RoomCode, ""); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if err := env.rooms.ManageParticipant(owner, room.ID, invitee.ID, services.ManageBan); err != nil {
		t.Fatalf("ban failed: %v", err)
	}

	resp := performRequest(t, env.app, http.MethodPost, "/api/invitations/"+invitations[0].ID.String()+"/accept", nil, authHeaders(token))
	assertStatus(t, resp, http.StatusForbidden)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "You are banned from this room")

	// The ban does not consume the invitation.
	var invitation models.Invitation
	if err := env.db.First(&invitation, "id = ?", invitations[0].ID).Error; err != nil {
		t.Fatalf("failed reloading invitation: %v", err)
	}
	if invitation.Status != models.InvitationStatusPending {
		t.Fatalf("expected invitation to stay pending, got %s", invitation.Status)
	}
}

func TestAcceptExpiredInvitation(t *testing.T) {
	env := setupTestEnv(t)
	owner, _ := createTestUser(t, env.db, "ada", "ada@example.com", "correct-horse")
	invitee, token := createTestUser(t, env.db, "grace", "grace@example.com", "correct-horse")
	room := createTestRoomPublic(t, env, owner, "Sketch Night")

	invitations, err := env.rooms.InviteUsers(owner, room.ID, []uuid.UUID{invitee.ID})
	if err != nil || len(invitations) != 1 {
		t.Fatalf("failed seeding invitation: %v", err)
	}
	if err := env.db.Model(&invitations[0]).Update("expires_at", time.Now().UTC().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("failed expiring invitation: %v", err)
	}

	resp := performRequest(t, env.app, http.MethodPost, "/api/invitations/"+invitations[0].ID.String()+"/accept", nil, authHeaders(token))
	assertStatus(t, resp, http.StatusBadRequest)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "Invitation has expired")

	var invitation models.Invitation
	if err := env.db.First(&invitation, "id = ?", invitations[0].ID).Error; err != nil {
		t.Fatalf("failed reloading invitation: %v", err)
	}
	if invitation.Status != models.InvitationStatusExpired {
		t.Fatalf("expected invitation marked expired, got %s", invitation.Status)
	}
}

func TestRejectForeignInvitation(t *testing.T) {
	env := setupTestEnv(t)
	owner, _ := createTestUser(t, env.db, "ada", "ada@example.com", "correct-horse")
	invitee, _ := createTestUser(t, env.db, "grace", "grace@example.com", "correct-horse")
	_, intruderToken := createTestUser(t, env.db, "linus", "linus@example.com", "correct-horse")
	room := createTestRoomPublic(t, env, owner, "Sketch Night")

	invitations, err := env.rooms.InviteUsers(owner, room.ID, []uuid.UUID{invitee.ID})
	if err != nil || len(invitations) != 1 {
		t.Fatalf("failed seeding invitation: %v", err)
	}

	resp := performRequest(t, env.app, http.MethodPost, "/api/invitations/"+invitations[0].ID.String()+"/reject", nil, authHeaders(intruderToken))
	assertStatus(t, resp, http.StatusNotFound)
}
