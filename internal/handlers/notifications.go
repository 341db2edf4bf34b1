package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sketchroom/backend/internal/middleware"
	"github.com/sketchroom/backend/internal/models"
	"github.com/sketchroom/backend/pkg/utils"
	"gorm.io/gorm"
)

type NotificationHandler struct {
	DB *gorm.DB
}

func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{DB: db}
}

// scoped returns the caller's live notifications. Rows past their
// expiry are filtered out even if the cleanup job has not run yet.
func (h *NotificationHandler) scoped(c *fiber.Ctx) (*gorm.DB, *models.User) {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return nil, nil
	}
	query := h.DB.Model(&models.Notification{}).
		Where("recipient_id = ?", currentUser.ID).
		Where("expires_at > ?", time.Now().UTC())
	return query, currentUser
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	query, currentUser := h.scoped(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	params := utils.ParsePagination(c)

	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting notifications")
	}

	var notifications []models.Notification
	if err := utils.ApplyPagination(query.Order("created_at DESC"), params).
		Find(&notifications).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing notifications")
	}

	return utils.Paginated(c, notifications, params.Page, params.Limit, total)
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	query, currentUser := h.scoped(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var count int64
	if err := query.Where("is_read = ?", false).Count(&count).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting notifications")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"count": count})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	notificationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid notification id")
	}

	var notification models.Notification
	if err := h.DB.First(&notification, "id = ? AND recipient_id = ?", notificationID, currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "Notification not found")
	}

	if !notification.IsRead {
		now := time.Now().UTC()
		if err := h.DB.Model(&notification).Updates(map[string]interface{}{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed updating notification")
		}
		notification.IsRead = true
		notification.ReadAt = &now
	}

	return utils.Success(c, fiber.StatusOK, notification)
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	now := time.Now().UTC()
	result := h.DB.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", currentUser.ID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating notifications")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"updated": result.RowsAffected})
}

func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	notificationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid notification id")
	}

	result := h.DB.Where("id = ? AND recipient_id = ?", notificationID, currentUser.ID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting notification")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "Notification not found")
	}
	return utils.Message(c, fiber.StatusOK, "notification deleted")
}

func (h *NotificationHandler) DeleteAll(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	result := h.DB.Where("recipient_id = ?", currentUser.ID).Delete(&models.Notification{})
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting notifications")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": result.RowsAffected})
}
