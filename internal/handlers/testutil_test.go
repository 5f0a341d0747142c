package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/groupcal/backend/internal/apperr"
	"github.com/groupcal/backend/internal/calendar"
	"github.com/groupcal/backend/internal/database"
	"github.com/groupcal/backend/internal/mailer"
	"github.com/groupcal/backend/internal/metrics"
	"github.com/groupcal/backend/internal/middleware"
	"github.com/groupcal/backend/internal/models"
	"github.com/groupcal/backend/internal/services"
	"github.com/groupcal/backend/pkg/logger"
	"github.com/groupcal/backend/pkg/utils"
	"gorm.io/gorm"
)

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	audit    *services.AuditService
	notifier *services.NotificationService
	mail     *mailer.Recorder
	provider *fakeProvider
}

var testSetupOnce sync.Once

// fakeProvider stands in for the remote calendar. Tokens other than
// "valid-token" are rejected the way Google rejects them.
type fakeProvider struct {
	mu      sync.Mutex
	next    int
	events  map[string]calendar.Event
	deleted []string
}

func (p *fakeProvider) check(cred calendar.Credential) error {
	if cred.AccessToken != "valid-token" {
		return &apperr.RemoteError{Service: "google_calendar", Status: http.StatusUnauthorized, Message: "invalid credentials"}
	}
	return nil
}

func (p *fakeProvider) Create(_ context.Context, cred calendar.Credential, ev calendar.Event) (calendar.Mirror, error) {
	if err := p.check(cred); err != nil {
		return calendar.Mirror{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	id := fmt.Sprintf("remote-%d", p.next)
	p.events[id] = ev
	return calendar.Mirror{ExternalID: id, Status: http.StatusCreated}, nil
}

func (p *fakeProvider) Update(_ context.Context, cred calendar.Credential, externalID string, ev calendar.Event) (calendar.Mirror, error) {
	if err := p.check(cred); err != nil {
		return calendar.Mirror{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.events[externalID]; !ok {
		return calendar.Mirror{}, &apperr.RemoteError{Service: "google_calendar", Status: http.StatusNotFound, Message: "Not Found"}
	}
	p.events[externalID] = ev
	return calendar.Mirror{ExternalID: externalID, Status: http.StatusOK}, nil
}

func (p *fakeProvider) Delete(_ context.Context, cred calendar.Credential, externalID string) error {
	if err := p.check(cred); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.events[externalID]; !ok {
		return &apperr.RemoteError{Service: "google_calendar", Status: http.StatusGone, Message: "Resource has been deleted"}
	}
	delete(p.events, externalID)
	p.deleted = append(p.deleted, externalID)
	return nil
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.InitWithOutput(io.Discard)
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
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

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	recorder := &mailer.Recorder{}
	provider := &fakeProvider{events: map[string]calendar.Event{}}

	registry := services.NewMembershipRegistry(db)
	participation := services.NewParticipationService(db)
	notifier := services.NewNotificationService(db, recorder, "noreply@test.local", 16, time.Second)
	auditService := services.NewAuditService(db, 100)
	t.Cleanup(func() {
		notifier.Close()
		auditService.Close()
	})

	eventService := services.NewEventService(db, registry, participation, notifier)
	groupService := services.NewGroupService(db, registry)
	syncService := services.NewCalendarSyncService(db, registry, provider, calendar.LoadLocation("Europe/Budapest"))
	authService := services.NewAuthService(db, nil)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New()
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS("http://localhost:5173"))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())
	app.Use(metrics.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", metrics.Handler())

	Register(app, Handlers{
		Auth:     NewAuthHandler(authService, auditService),
		Events:   NewEventsHandler(eventService, syncService, auditService),
		Groups:   NewGroupsHandler(groupService, auditService),
		Calendar: NewCalendarHandler(syncService, auditService),
		Audit:    NewAuditHandler(auditService),
		Version: NewVersionHandler(ServerInfo{
			Timezone:         "Europe/Budapest",
			CalendarProvider: "google",
		}),
	}, authMiddleware)

	return &testEnv{
		app:      app,
		db:       db,
		audit:    auditService,
		notifier: notifier,
		mail:     recorder,
		provider: provider,
	}
}

func createTestUser(t *testing.T, db *gorm.DB, username string) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword("password123")
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        username + "@test.local",
		Username:     username,
		PasswordHash: hash,
		FirstName:    username,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

// createTestGroup creates a group through the API and returns its id.
func createTestGroup(t *testing.T, env *testEnv, token, name string) string {
	t.Helper()

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/", map[string]any{"name": name}, authHeaders(token))
	body := decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusCreated)
	return body["data"].(map[string]any)["id"].(string)
}

func addMember(t *testing.T, db *gorm.DB, groupID string, user *models.User, role models.GroupRole) {
	t.Helper()

	membership := models.GroupMembership{
		UserID:   user.ID,
		GroupID:  uuid.MustParse(groupID),
		Role:     role,
		JoinedAt: time.Now().UTC(),
	}
	if err := db.Create(&membership).Error; err != nil {
		t.Fatalf("failed adding member: %v", err)
	}
}

func groupEventPayload(groupID, description string) map[string]any {
	return map[string]any{
		"type":        "group",
		"description": description,
		"date":        "2026-05-20",
		"startTime":   "10:00",
		"endTime":     "11:30",
		"location":    "Room 1",
		"groupID":     groupID,
	}
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
