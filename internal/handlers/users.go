package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sketchroom/backend/internal/middleware"
	"github.com/sketchroom/backend/internal/models"
	"github.com/sketchroom/backend/pkg/utils"
	"gorm.io/gorm"
)

type UserHandler struct {
	DB *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{DB: db}
}

// userSummary is the public projection of a user; it never carries
// email or any credential material.
type userSummary struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Username    string  `json:"username"`
	AvatarURL   *string `json:"avatarURL,omitempty"`
}

// Search finds users by username or display name prefix for the
// invitation picker. The caller is excluded from the results.
func (h *UserHandler) Search(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	term := strings.ToLower(strings.TrimSpace(c.Query("q")))
	if len(term) < 2 {
		return utils.Error(c, fiber.StatusBadRequest, "query must be at least 2 characters")
	}
	params := utils.ParsePagination(c)

	var users []models.User
	if err := utils.ApplyPagination(
		h.DB.Model(&models.User{}).
			Where("id <> ?", currentUser.ID).
			Where("LOWER(username) LIKE ? OR LOWER(display_name) LIKE ?", term+"%", term+"%").
			Order("username ASC"),
		params,
	).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed searching users")
	}

	results := make([]userSummary, 0, len(users))
	for _, user := range users {
		results = append(results, userSummary{
			ID:          user.ID.String(),
			DisplayName: user.DisplayName,
			Username:    user.Username,
			AvatarURL:   user.AvatarURL,
		})
	}
	return utils.Success(c, fiber.StatusOK, results)
}

// Get returns a user's public profile.
func (h *UserHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		return utils.Error(c, fiber.StatusNotFound, "User not found")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"id":          user.ID.String(),
		"displayName": user.DisplayName,
		"username":    user.Username,
		"avatarURL":   user.AvatarURL,
		"bio":         user.Bio,
	})
}
