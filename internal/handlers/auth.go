package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/mail"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sketchroom/backend/internal/middleware"
	"github.com/sketchroom/backend/internal/models"
	"github.com/sketchroom/backend/internal/services"
	"github.com/sketchroom/backend/internal/storage"
	"github.com/sketchroom/backend/pkg/logger"
	"github.com/sketchroom/backend/pkg/utils"
	"gorm.io/gorm"
)

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = 1 * time.Hour
	avatarURLTTL         = 7 * 24 * time.Hour
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

type AuthHandler struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient
	Mailer  *services.Mailer
}

func NewAuthHandler(db *gorm.DB, storageClient *storage.MinIOClient, mailer *services.Mailer) *AuthHandler {
	return &AuthHandler{DB: db, Storage: storageClient, Mailer: mailer}
}

func generateSecureToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func deviceTypeFromUserAgent(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return "mobile"
	case strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		return "tablet"
	case ua == "":
		return "unknown"
	default:
		return "desktop"
	}
}

func (h *AuthHandler) recordLoginActivity(userID string, status models.LoginStatus, c *fiber.Ctx) {
	parsed, err := parseUUID(userID)
	if err != nil {
		return
	}
	activity := models.LoginActivity{
		UserID:     parsed,
		Status:     status,
		DeviceType: deviceTypeFromUserAgent(c.Get("User-Agent")),
		IPAddress:  c.IP(),
		Timestamp:  time.Now().UTC(),
	}
	if err := h.DB.Create(&activity).Error; err != nil {
		logger.Error("login_activity_insert_failed", err, map[string]interface{}{
			"user_id": userID,
		})
	}
}

type registerRequest struct {
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.DisplayName == "" {
		return utils.Error(c, fiber.StatusBadRequest, "displayName is required")
	}
	if !usernamePattern.MatchString(req.Username) {
		return utils.Error(c, fiber.StatusBadRequest, "username must be 3-30 characters of lowercase letters, digits or underscores")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email")
	}
	if len(req.Password) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 8 characters")
	}

	var existing models.User
	if err := h.DB.First(&existing, "username = ?", req.Username).Error; err == nil {
		return utils.Error(c, fiber.StatusConflict, "username already exists")
	} else if err != gorm.ErrRecordNotFound {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking existing user")
	}
	if err := h.DB.First(&existing, "email = ?", req.Email).Error; err == nil {
		return utils.Error(c, fiber.StatusConflict, "email already exists")
	} else if err != gorm.ErrRecordNotFound {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking existing user")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to hash password")
	}

	verificationToken, err := generateSecureToken()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating verification token")
	}
	verificationExpiry := time.Now().UTC().Add(verificationTokenTTL)

	user := models.User{
		DisplayName:           req.DisplayName,
		Username:              req.Username,
		Email:                 req.Email,
		PasswordHash:          passwordHash,
		VerificationToken:     &verificationToken,
		VerificationExpiresAt: &verificationExpiry,
	}

	if err := h.DB.Create(&user).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	logger.Info("user_registered", map[string]interface{}{
		"user_id":  user.ID.String(),
		"username": user.Username,
	})

	if h.Mailer != nil {
		h.Mailer.SendVerificationEmail(&user, verificationToken)
	}

	token, err := utils.GenerateToken(user.ID, user.Username)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"token": token, "user": user})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	identifier := strings.ToLower(strings.TrimSpace(req.Username))

	if identifier == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "username and password are required")
	}

	column := "username"
	if strings.Contains(identifier, "@") {
		column = "email"
	}

	var user models.User
	if err := h.DB.First(&user, column+" = ?", identifier).Error; err != nil {
		logger.Warn("login_failed_user_not_found", map[string]interface{}{
			"identifier": identifier,
			"ip":         c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		h.recordLoginActivity(user.ID.String(), models.LoginStatusFailed, c)
		logger.Warn("login_failed_invalid_password", map[string]interface{}{
			"user_id": user.ID.String(),
			"ip":      c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	h.recordLoginActivity(user.ID.String(), models.LoginStatusSuccess, c)
	logger.Info("user_login", map[string]interface{}{
		"user_id": user.ID.String(),
		"ip":      c.IP(),
	})

	token, err := utils.GenerateToken(user.ID, user.Username)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"token": token, "user": user})
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req verifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Token == "" {
		return utils.Error(c, fiber.StatusBadRequest, "token is required")
	}

	var user models.User
	if err := h.DB.First(&user, "verification_token = ?", req.Token).Error; err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid or expired verification token")
	}
	if user.VerificationExpiresAt == nil || time.Now().UTC().After(*user.VerificationExpiresAt) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid or expired verification token")
	}

	if err := h.DB.Model(&user).Updates(map[string]interface{}{
		"is_verified":             true,
		"verification_token":      nil,
		"verification_expires_at": nil,
	}).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed verifying email")
	}

	logger.InfoWithUser(user.ID.String(), "email_verified", nil)
	return utils.Message(c, fiber.StatusOK, "email verified")
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email")
	}

	// The response never reveals whether the address is registered.
	var user models.User
	if err := h.DB.First(&user, "email = ?", email).Error; err == nil {
		resetToken, err := generateSecureToken()
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed generating reset token")
		}
		resetExpiry := time.Now().UTC().Add(resetTokenTTL)

		if err := h.DB.Model(&user).Updates(map[string]interface{}{
			"reset_token":      resetToken,
			"reset_expires_at": resetExpiry,
		}).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed storing reset token")
		}

		if h.Mailer != nil {
			h.Mailer.SendPasswordResetEmail(&user, resetToken)
		}
	}

	return utils.Message(c, fiber.StatusOK, "if the address is registered, a reset link has been sent")
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Token == "" {
		return utils.Error(c, fiber.StatusBadRequest, "token is required")
	}
	if len(req.Password) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 8 characters")
	}

	var user models.User
	if err := h.DB.First(&user, "reset_token = ?", req.Token).Error; err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid or expired reset token")
	}
	if user.ResetExpiresAt == nil || time.Now().UTC().After(*user.ResetExpiresAt) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid or expired reset token")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to hash password")
	}

	if err := h.DB.Model(&user).Updates(map[string]interface{}{
		"password_hash":    passwordHash,
		"reset_token":      nil,
		"reset_expires_at": nil,
	}).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed resetting password")
	}

	logger.InfoWithUser(user.ID.String(), "password_reset", nil)
	return utils.Message(c, fiber.StatusOK, "password has been reset")
}

func (h *AuthHandler) CheckUsername(c *fiber.Ctx) error {
	username := strings.ToLower(strings.TrimSpace(c.Params("name")))
	if !usernamePattern.MatchString(username) {
		return utils.Success(c, fiber.StatusOK, fiber.Map{"available": false, "reason": "invalid format"})
	}

	var count int64
	if err := h.DB.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking username")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"available": count == 0})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, currentUser)
}

type updateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
}

func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		value := strings.TrimSpace(*req.DisplayName)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "displayName cannot be empty")
		}
		updates["display_name"] = value
	}
	if req.Bio != nil {
		value := strings.TrimSpace(*req.Bio)
		if len(value) > 500 {
			return utils.Error(c, fiber.StatusBadRequest, "bio must be at most 500 characters")
		}
		updates["bio"] = value
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(currentUser).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating profile")
	}

	var updated models.User
	if err := h.DB.First(&updated, "id = ?", currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated profile")
	}
	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *AuthHandler) UploadAvatar(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if h.Storage == nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "avatar storage is not configured")
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "avatar file is required")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return utils.Error(c, fiber.StatusBadRequest, "avatar must be an image")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed reading avatar upload")
	}
	defer file.Close()

	objectName := "users/" + currentUser.ID.String() + filepath.Ext(fileHeader.Filename)
	if err := h.Storage.UploadAvatar(c.UserContext(), objectName, file, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed storing avatar")
	}

	// A re-upload with a different file extension lands under a new
	// object name, so clear the previous one.
	oldAvatarURL := ""
	if currentUser.AvatarURL != nil {
		oldAvatarURL = *currentUser.AvatarURL
	}
	if old := h.Storage.ObjectNameFromURL(oldAvatarURL); old != "" && old != objectName {
		_ = h.Storage.DeleteAvatar(c.UserContext(), old)
	}

	avatarURL, err := h.Storage.AvatarURL(c.UserContext(), objectName, avatarURLTTL)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating avatar url")
	}

	if err := h.DB.Model(currentUser).Update("avatar_url", avatarURL).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed saving avatar url")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"avatarURL": avatarURL})
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

// DeleteAccount removes the user and everything hanging off the account:
// owned rooms with their participants and invitations, memberships,
// notifications and login history.
func (h *AuthHandler) DeleteAccount(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req deleteAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if !utils.CheckPassword(req.Password, currentUser.PasswordHash) {
		return utils.Error(c, fiber.StatusForbidden, "incorrect password")
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var ownedRoomIDs []string
		if err := tx.Model(&models.Room{}).Where("owner_id = ?", currentUser.ID).Pluck("id", &ownedRoomIDs).Error; err != nil {
			return err
		}
		if len(ownedRoomIDs) > 0 {
			if err := tx.Where("room_id IN ?", ownedRoomIDs).Delete(&models.Participant{}).Error; err != nil {
				return err
			}
			if err := tx.Where("room_id IN ?", ownedRoomIDs).Delete(&models.Invitation{}).Error; err != nil {
				return err
			}
			if err := tx.Where("owner_id = ?", currentUser.ID).Delete(&models.Room{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", currentUser.ID).Delete(&models.Participant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invited_user_id = ?", currentUser.ID).Delete(&models.Invitation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipient_id = ?", currentUser.ID).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", currentUser.ID).Delete(&models.LoginActivity{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", currentUser.ID).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting account")
	}

	if h.Storage != nil {
		avatarURL := ""
		if currentUser.AvatarURL != nil {
			avatarURL = *currentUser.AvatarURL
		}
		if objectName := h.Storage.ObjectNameFromURL(avatarURL); objectName != "" {
			_ = h.Storage.DeleteAvatar(c.UserContext(), objectName)
		}
	}

	logger.InfoWithUser(currentUser.ID.String(), "account_deleted", nil)
	return utils.Message(c, fiber.StatusOK, "account deleted")
}
