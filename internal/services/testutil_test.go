package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/groupcal/backend/internal/database"
	"github.com/groupcal/backend/internal/mailer"
	"github.com/groupcal/backend/internal/models"
	"github.com/groupcal/backend/pkg/logger"
	"github.com/groupcal/backend/pkg/utils"
	"gorm.io/gorm"
)

var testSetupOnce sync.Once

type serviceEnv struct {
	db            *gorm.DB
	registry      *MembershipRegistry
	participation *ParticipationService
	notifier      *NotificationService
	mail          *mailer.Recorder
	events        *EventService
	groups        *GroupService
}

func setupTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func setupServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	db := setupTestDB(t)
	registry := NewMembershipRegistry(db)
	participation := NewParticipationService(db)
	recorder := &mailer.Recorder{}
	notifier := NewNotificationService(db, recorder, "noreply@test.local", 16, time.Second)
	t.Cleanup(notifier.Close)

	return &serviceEnv{
		db:            db,
		registry:      registry,
		participation: participation,
		notifier:      notifier,
		mail:          recorder,
		events:        NewEventService(db, registry, participation, notifier),
		groups:        NewGroupService(db, registry),
	}
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
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
		t.Fatalf("failed creating user %s: %v", username, err)
	}
	return user
}

// createTestGroup creates a group owned by owner and adds the given members
// with their roles.
func createTestGroup(t *testing.T, env *serviceEnv, owner *models.User, members map[*models.User]models.GroupRole) *models.Group {
	t.Helper()

	group, err := env.groups.Create(context.Background(), owner, "Group "+uuid.NewString()[:8], nil)
	if err != nil {
		t.Fatalf("failed creating group: %v", err)
	}
	for user, role := range members {
		membership := models.GroupMembership{
			UserID:   user.ID,
			GroupID:  group.ID,
			Role:     role,
			JoinedAt: time.Now().UTC(),
		}
		if err := env.db.Create(&membership).Error; err != nil {
			t.Fatalf("failed adding member %s: %v", user.Username, err)
		}
	}
	return group
}

func groupEventInput(groupID uuid.UUID, description string) EventInput {
	return EventInput{
		Type:        models.EventTypeGroup,
		Description: description,
		Date:        "2026-05-20",
		StartTime:   "10:00",
		EndTime:     "11:30",
		Location:    "Room 1",
		GroupID:     &groupID,
	}
}

func soloEventInput(userID uuid.UUID, description string) EventInput {
	return EventInput{
		Type:        models.EventTypeSolo,
		Description: description,
		Date:        "2026-05-21",
		StartTime:   "08:00",
		EndTime:     "09:00",
		UserID:      &userID,
	}
}

func countParticipations(t *testing.T, db *gorm.DB, eventID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.EventParticipation{}).Where("event_id = ?", eventID).Count(&count).Error; err != nil {
		t.Fatalf("failed counting participations: %v", err)
	}
	return count
}
