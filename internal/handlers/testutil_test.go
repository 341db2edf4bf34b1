package handlers

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sketchroom/backend/internal/config"
	"github.com/sketchroom/backend/internal/middleware"
	"github.com/sketchroom/backend/internal/models"
	"github.com/sketchroom/backend/internal/services"
	"github.com/sketchroom/backend/pkg/logger"
	"github.com/sketchroom/backend/pkg/utils"
	"gorm.io/gorm"
)

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	rooms *services.RoomService
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
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

	notifier := services.NewNotifier(db)
	mailer := services.NewMailer(nil, "http://localhost:5173")
	roomService := services.NewRoomService(db, notifier, mailer, config.RoomConfig{
		DefaultMaxParticipants: 10,
		CodeLength:             6,
	})

	authHandler := NewAuthHandler(db, nil, mailer)
	userHandler := NewUserHandler(db)
	roomHandler := NewRoomHandler(db, roomService)
	invitationHandler := NewInvitationHandler(db, roomService)
	notificationHandler := NewNotificationHandler(db)
	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(""))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/verify-email", authHandler.VerifyEmail)
	authRoutes.Post("/forgot-password", authHandler.ForgotPassword)
	authRoutes.Post("/reset-password", authHandler.ResetPassword)
	authRoutes.Get("/check-username/:name", authHandler.CheckUsername)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateProfile)
	authRoutes.Post("/avatar", authMiddleware.RequireAuth, authHandler.UploadAvatar)
	authRoutes.Delete("/account", authMiddleware.RequireAuth, authHandler.DeleteAccount)

	api.Get("/users/search", authMiddleware.RequireAuth, userHandler.Search)
	api.Get("/users/:id", authMiddleware.RequireAuth, userHandler.Get)

	roomRoutes := api.Group("/rooms")
	roomRoutes.Post("/create", authMiddleware.RequireAuth, roomHandler.Create)
	roomRoutes.Post("/join", authMiddleware.RequireAuth, roomHandler.Join)
	roomRoutes.Get("/public", authMiddleware.OptionalAuth, roomHandler.Public)
	roomRoutes.Get("/my-rooms", authMiddleware.RequireAuth, roomHandler.MyRooms)
	roomRoutes.Get("/:code/validate", authMiddleware.OptionalAuth, roomHandler.Validate)
	roomRoutes.Get("/:id", authMiddleware.RequireAuth, roomHandler.Get)
	roomRoutes.Put("/:id", authMiddleware.RequireAuth, roomHandler.Update)
	roomRoutes.Delete("/:id", authMiddleware.RequireAuth, roomHandler.Delete)
	roomRoutes.Post("/:id/leave", authMiddleware.RequireAuth, roomHandler.Leave)
	roomRoutes.Get("/:id/participants", authMiddleware.RequireAuth, roomHandler.Participants)
	roomRoutes.Post("/:id/participants/:userId", authMiddleware.RequireAuth, roomHandler.ManageParticipant)
	roomRoutes.Post("/:id/invite", authMiddleware.RequireAuth, roomHandler.Invite)

	invitationRoutes := api.Group("/invitations", authMiddleware.RequireAuth)
	invitationRoutes.Get("/", invitationHandler.List)
	invitationRoutes.Post("/:id/accept", invitationHandler.Accept)
	invitationRoutes.Post("/:id/reject", invitationHandler.Reject)

	notificationRoutes := api.Group("/notifications", authMiddleware.RequireAuth)
	notificationRoutes.Get("/", notificationHandler.List)
	notificationRoutes.Get("/unread-count", notificationHandler.UnreadCount)
	notificationRoutes.Put("/read-all", notificationHandler.MarkAllRead)
	notificationRoutes.Put("/:id/read", notificationHandler.MarkRead)
	notificationRoutes.Delete("/all", notificationHandler.DeleteAll)
	notificationRoutes.Delete("/:id", notificationHandler.Delete)

	return &testEnv{app: app, db: db, rooms: roomService}
}

func createTestUser(t *testing.T, db *gorm.DB, username, email, password string) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		DisplayName:  "Test User",
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user.ID, user.Username)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func createTestRoom(t *testing.T, env *testEnv, owner *models.User, input services.CreateRoomInput) *models.Room {
	t.Helper()

	room, err := env.rooms.CreateRoom(owner, input)
	if err != nil {
		t.Fatalf("failed creating test room: %v", err)
	}
	return room
}

func createTestRoomPublic(t *testing.T, env *testEnv, owner *models.User, name string) *models.Room {
	t.Helper()
	return createTestRoom(t, env, owner, services.CreateRoomInput{
		Name:       name,
		Visibility: models.RoomVisibilityPublic,
	})
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object in response, got %+v", body)
	}
	return data
}
