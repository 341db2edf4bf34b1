package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sketchroom/backend/internal/models"
)

const (
	TypeEmailSend      = "email:send"
	TypeDrawingPersist = "drawing:persist"
	TypeCleanupExpired = "cleanup:expired"
)

// EmailPayload carries an outbound mail. InvitationID, when set, links the
// mail back to the invitation whose emailSent flag the worker flips after
// a successful send.
type EmailPayload struct {
	To           string     `json:"to"`
	Subject      string     `json:"subject"`
	Body         string     `json:"body"`
	InvitationID *uuid.UUID `json:"invitationID,omitempty"`
}

func NewEmailTask(payload EmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailSend, data, asynq.Queue("default")), nil
}

// DrawingPersistPayload is a batch of strokes received over the websocket
// gateway, appended to the room's drawing data off the hot path.
type DrawingPersistPayload struct {
	RoomID uuid.UUID          `json:"roomID"`
	Ops    []models.DrawingOp `json:"ops"`
}

func NewDrawingPersistTask(payload DrawingPersistPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDrawingPersist, data, asynq.Queue("critical")), nil
}

func NewCleanupTask() *asynq.Task {
	return asynq.NewTask(TypeCleanupExpired, nil, asynq.Queue("low"))
}
