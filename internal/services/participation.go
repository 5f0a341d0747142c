package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/groupcal/backend/internal/metrics"
	"github.com/groupcal/backend/internal/models"
	"github.com/groupcal/backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FanoutResult struct {
	Created  int
	Existing int
	Failed   int
}

// ParticipationService owns event_participations rows.
type ParticipationService struct {
	DB *gorm.DB
}

func NewParticipationService(db *gorm.DB) *ParticipationService {
	return &ParticipationService{DB: db}
}

// FanOut gives every member of the event's group except the creator a
// "maybe" participation. Existing rows are left alone and per-row failures
// are logged and counted without stopping the loop.
func (s *ParticipationService) FanOut(ctx context.Context, event *models.UserEvent, creatorID uuid.UUID) FanoutResult {
	var result FanoutResult
	if !event.IsGroup() || event.GroupID == nil {
		return result
	}

	var memberIDs []uuid.UUID
	if err := s.DB.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id <> ?", *event.GroupID, creatorID).
		Pluck("user_id", &memberIDs).Error; err != nil {
		logger.ErrorWithUser(creatorID.String(), "participation_fanout_failed", err, map[string]interface{}{
			"event_id": event.ID.String(),
			"stage":    "load_members",
		})
		metrics.FanoutParticipations.WithLabelValues("error").Inc()
		result.Failed++
		return result
	}

	now := time.Now().UTC()
	for _, memberID := range memberIDs {
		participation := models.EventParticipation{}
		res := s.DB.WithContext(ctx).
			Where(models.EventParticipation{UserID: memberID, EventID: event.ID}).
			Attrs(models.EventParticipation{Response: models.ResponseMaybe, RespondedAt: now}).
			FirstOrCreate(&participation)
		switch {
		case res.Error != nil:
			result.Failed++
			metrics.FanoutParticipations.WithLabelValues("error").Inc()
			logger.ErrorWithUser(creatorID.String(), "participation_fanout_failed", res.Error, map[string]interface{}{
				"event_id":  event.ID.String(),
				"member_id": memberID.String(),
			})
		case res.RowsAffected == 0:
			result.Existing++
			metrics.FanoutParticipations.WithLabelValues("existing").Inc()
		default:
			result.Created++
			metrics.FanoutParticipations.WithLabelValues("created").Inc()
		}
	}

	logger.DebugWithUser(creatorID.String(), "participation_fanout_done", map[string]interface{}{
		"event_id": event.ID.String(),
		"created":  result.Created,
		"existing": result.Existing,
		"failed":   result.Failed,
	})
	return result
}

// Upsert records the user's response, keeping one row per user and event.
func (s *ParticipationService) Upsert(ctx context.Context, userID, eventID uuid.UUID, response models.ParticipationResponse) (*models.EventParticipation, error) {
	now := time.Now().UTC()
	row := models.EventParticipation{
		UserID:      userID,
		EventID:     eventID,
		Response:    response,
		RespondedAt: now,
	}

	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"response", "responded_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}

	var stored models.EventParticipation
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND event_id = ?", userID, eventID).
		Take(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *ParticipationService) ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventParticipation, error) {
	var rows []models.EventParticipation
	err := s.DB.WithContext(ctx).
		Preload("User").
		Where("event_id = ?", eventID).
		Order("responded_at ASC").
		Find(&rows).Error
	return rows, err
}
