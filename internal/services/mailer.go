package services

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sketchroom/backend/internal/models"
	"github.com/sketchroom/backend/internal/tasks"
	"github.com/sketchroom/backend/pkg/logger"
)

// Mailer formats outbound mail and enqueues it for the worker. A nil
// queue client (tests, local runs without redis) degrades to logging the
// dispatch and dropping the mail.
type Mailer struct {
	client      *asynq.Client
	frontendURL string
}

func NewMailer(client *asynq.Client, frontendURL string) *Mailer {
	return &Mailer{client: client, frontendURL: frontendURL}
}

func (m *Mailer) enqueue(payload tasks.EmailPayload) {
	if m.client == nil {
		logger.Info("email_queue_disabled", map[string]interface{}{
			"to":      payload.To,
			"subject": payload.Subject,
		})
		return
	}

	task, err := tasks.NewEmailTask(payload)
	if err != nil {
		logger.Error("email_task_build_failed", err, map[string]interface{}{"to": payload.To})
		return
	}
	if _, err := m.client.Enqueue(task); err != nil {
		logger.Error("email_enqueue_failed", err, map[string]interface{}{"to": payload.To})
	}
}

func (m *Mailer) SendVerificationEmail(user *models.User, token string) {
	m.enqueue(tasks.EmailPayload{
		To:      user.Email,
		Subject: "Verify your email",
		Body: fmt.Sprintf(
			"Hi %s,\n\nConfirm your email address:\n%s/verify-email?token=%s\n\nThe link expires in 24 hours.",
			user.DisplayName, m.frontendURL, token,
		),
	})
}

func (m *Mailer) SendPasswordResetEmail(user *models.User, token string) {
	m.enqueue(tasks.EmailPayload{
		To:      user.Email,
		Subject: "Reset your password",
		Body: fmt.Sprintf(
			"Hi %s,\n\nReset your password:\n%s/reset-password?token=%s\n\nIf you did not request this, ignore this mail.",
			user.DisplayName, m.frontendURL, token,
		),
	})
}

func (m *Mailer) SendInvitationEmail(invitation *models.Invitation, room *models.Room, invitedBy *models.User, recipient *models.User) {
	invitationID := invitation.ID
	m.enqueue(tasks.EmailPayload{
		To:      recipient.Email,
		Subject: fmt.Sprintf("%s invited you to %s", invitedBy.DisplayName, room.Name),
		Body: fmt.Sprintf(
			"Hi %s,\n\n%s invited you to the room %q.\nOpen your invitations:\n%s/invitations\n\nThe invitation expires in 30 days.",
			recipient.DisplayName, invitedBy.DisplayName, room.Name, m.frontendURL,
		),
		InvitationID: &invitationID,
	})
}
