package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/groupcal/backend/internal/apperr"
	"github.com/groupcal/backend/internal/metrics"
	"github.com/groupcal/backend/internal/models"
	"github.com/groupcal/backend/internal/policy"
	"github.com/groupcal/backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxBatchSize = 100

// EventInput is the client-supplied shape of a new event.
type EventInput struct {
	Type        models.EventType `json:"type"`
	Description string           `json:"description"`
	Date        string           `json:"date"`
	StartTime   string           `json:"startTime"`
	EndTime     string           `json:"endTime"`
	Location    string           `json:"location"`
	UserID      *uuid.UUID       `json:"userID"`
	GroupID     *uuid.UUID       `json:"groupID"`
}

// EventPatch holds the fields an update may change. Nil means unchanged.
type EventPatch struct {
	Type        *models.EventType `json:"type"`
	Description *string           `json:"description"`
	Date        *string           `json:"date"`
	StartTime   *string           `json:"startTime"`
	EndTime     *string           `json:"endTime"`
	Location    *string           `json:"location"`
	GroupID     *uuid.UUID        `json:"groupID"`
}

type EventService struct {
	DB            *gorm.DB
	Registry      *MembershipRegistry
	Participation *ParticipationService
	Notifier      *NotificationService
}

func NewEventService(db *gorm.DB, registry *MembershipRegistry, participation *ParticipationService, notifier *NotificationService) *EventService {
	return &EventService{
		DB:            db,
		Registry:      registry,
		Participation: participation,
		Notifier:      notifier,
	}
}

func (s *EventService) Create(ctx context.Context, actor *models.User, in EventInput) (*models.UserEvent, error) {
	draft, err := s.prepareDraft(ctx, actor, in)
	if err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Omit(clause.Associations).Create(draft).Error; err != nil {
		return nil, dbError("creating event", err)
	}

	s.afterCreate(ctx, actor, draft)
	return draft, nil
}

// CreateBatch validates and authorizes every draft before writing any of
// them, then persists all of them in one transaction.
func (s *EventService) CreateBatch(ctx context.Context, actor *models.User, inputs []EventInput) ([]models.UserEvent, error) {
	if len(inputs) == 0 {
		return nil, apperr.Invalid("at least one event is required")
	}
	if len(inputs) > maxBatchSize {
		return nil, apperr.Invalid("at most %d events can be created at once", maxBatchSize)
	}

	drafts := make([]models.UserEvent, 0, len(inputs))
	for i, in := range inputs {
		draft, err := s.prepareDraft(ctx, actor, in)
		if err != nil {
			return nil, withIndex(i, err)
		}
		drafts = append(drafts, *draft)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(&drafts).Error
	})
	if err != nil {
		return nil, dbError("creating events", err)
	}

	for i := range drafts {
		s.afterCreate(ctx, actor, &drafts[i])
	}
	return drafts, nil
}

func (s *EventService) prepareDraft(ctx context.Context, actor *models.User, in EventInput) (*models.UserEvent, error) {
	draft := &models.UserEvent{
		Type:        models.EventType(strings.ToLower(strings.TrimSpace(string(in.Type)))),
		Description: strings.TrimSpace(in.Description),
		Date:        strings.TrimSpace(in.Date),
		StartTime:   strings.TrimSpace(in.StartTime),
		EndTime:     strings.TrimSpace(in.EndTime),
		Location:    strings.TrimSpace(in.Location),
		UserID:      in.UserID,
		GroupID:     in.GroupID,
	}
	if err := validateShape(draft); err != nil {
		return nil, err
	}
	if err := policy.CanCreate(ctx, s.Registry, actor.ID, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (s *EventService) afterCreate(ctx context.Context, actor *models.User, event *models.UserEvent) {
	metrics.EventMutations.WithLabelValues("create", string(event.Type)).Inc()
	logger.InfoWithUser(actor.ID.String(), "event_created", eventLogDetails(event))

	if !event.IsGroup() {
		return
	}
	s.Participation.FanOut(ctx, event, actor.ID)
	s.Notifier.Notify(ctx, event, ActionCreated, actor)
}

// Update authorizes against the stored event before applying the patch.
// Moving an event out of its group additionally needs delete rights there,
// and moving it into a group needs create rights in the target group.
func (s *EventService) Update(ctx context.Context, actor *models.User, eventID uuid.UUID, patch EventPatch) (*models.UserEvent, error) {
	current, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanModify(ctx, s.Registry, actor.ID, current); err != nil {
		return nil, err
	}

	updated := *current
	applyPatch(&updated, patch, actor.ID)
	if patch.GroupID != nil && !updated.IsGroup() {
		return nil, apperr.Invalid("groupID requires type group")
	}
	if err := validateShape(&updated); err != nil {
		return nil, err
	}

	sameGroup := current.IsGroup() && updated.IsGroup() && sameID(current.GroupID, updated.GroupID)
	leavingGroup := current.IsGroup() && !sameGroup
	enteringGroup := updated.IsGroup() && !sameGroup

	if leavingGroup {
		if err := policy.CanDelete(ctx, s.Registry, actor.ID, current); err != nil {
			return nil, err
		}
	}
	if enteringGroup {
		if err := policy.CanCreate(ctx, s.Registry, actor.ID, &updated); err != nil {
			return nil, err
		}
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if leavingGroup {
			if err := tx.Where("event_id = ?", current.ID).Delete(&models.EventParticipation{}).Error; err != nil {
				return err
			}
		}
		return tx.Omit(clause.Associations).Save(&updated).Error
	})
	if err != nil {
		return nil, dbError("updating event", err)
	}

	metrics.EventMutations.WithLabelValues("update", string(updated.Type)).Inc()
	details := eventLogDetails(&updated)
	if current.Type != updated.Type {
		details["previous_type"] = string(current.Type)
	}
	logger.InfoWithUser(actor.ID.String(), "event_updated", details)

	if enteringGroup {
		s.Participation.FanOut(ctx, &updated, actor.ID)
	}
	if updated.IsGroup() {
		s.Notifier.Notify(ctx, &updated, ActionUpdated, actor)
	}
	return &updated, nil
}

func applyPatch(ev *models.UserEvent, patch EventPatch, actor uuid.UUID) {
	if patch.Description != nil {
		ev.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Date != nil {
		ev.Date = strings.TrimSpace(*patch.Date)
	}
	if patch.StartTime != nil {
		ev.StartTime = strings.TrimSpace(*patch.StartTime)
	}
	if patch.EndTime != nil {
		ev.EndTime = strings.TrimSpace(*patch.EndTime)
	}
	if patch.Location != nil {
		ev.Location = strings.TrimSpace(*patch.Location)
	}

	previous := ev.Type
	if patch.Type != nil {
		ev.Type = models.EventType(strings.ToLower(strings.TrimSpace(string(*patch.Type))))
	}

	switch ev.Type {
	case models.EventTypeSolo:
		ev.GroupID = nil
		if previous != models.EventTypeSolo {
			ev.UserID = &actor
		}
	case models.EventTypeGroup:
		ev.UserID = nil
		if patch.GroupID != nil {
			ev.GroupID = patch.GroupID
		}
	}
}

// Delete builds the notification while the group and its members are still
// resolvable and sends it only after the delete has committed.
func (s *EventService) Delete(ctx context.Context, actor *models.User, eventID uuid.UUID) error {
	current, err := s.load(ctx, eventID)
	if err != nil {
		return err
	}
	if err := policy.CanDelete(ctx, s.Registry, actor.ID, current); err != nil {
		return err
	}

	var batch NotificationBatch
	if current.IsGroup() && s.Notifier != nil {
		batch, err = s.Notifier.Build(ctx, current, ActionDeleted, actor)
		if err != nil {
			logger.ErrorWithUser(actor.ID.String(), "notification_build_failed", err, map[string]interface{}{
				"event_id": current.ID.String(),
				"action":   string(ActionDeleted),
			})
		}
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", current.ID).Delete(&models.EventParticipation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.UserEvent{}, "id = ?", current.ID).Error
	})
	if err != nil {
		return dbError("deleting event", err)
	}

	metrics.EventMutations.WithLabelValues("delete", string(current.Type)).Inc()
	logger.InfoWithUser(actor.ID.String(), "event_deleted", eventLogDetails(current))

	s.Notifier.Enqueue(batch)
	return nil
}

func (s *EventService) Get(ctx context.Context, actor *models.User, eventID uuid.UUID) (*models.UserEvent, error) {
	ev, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanView(ctx, s.Registry, actor.ID, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// ListVisible returns the actor's solo events and the events of every group
// the actor belongs to, optionally bounded by an inclusive date range.
func (s *EventService) ListVisible(ctx context.Context, actor *models.User, from, to string) ([]models.UserEvent, error) {
	from, to, err := parseDateRange(from, to)
	if err != nil {
		return nil, err
	}

	groupIDs, err := s.Registry.MemberGroupIDs(ctx, actor.ID)
	if err != nil {
		return nil, dbError("loading memberships", err)
	}

	visible := s.DB.Where("type = ? AND user_id = ?", models.EventTypeSolo, actor.ID)
	if len(groupIDs) > 0 {
		visible = visible.Or("type = ? AND group_id IN ?", models.EventTypeGroup, groupIDs)
	}

	query := s.DB.WithContext(ctx).Where(visible)
	query = applyDateRange(query, from, to)

	var events []models.UserEvent
	if err := query.Order("date ASC, start_time ASC").Find(&events).Error; err != nil {
		return nil, dbError("listing events", err)
	}
	return events, nil
}

func (s *EventService) ListGroupEvents(ctx context.Context, actor *models.User, groupID uuid.UUID, from, to string) ([]models.UserEvent, error) {
	from, to, err := parseDateRange(from, to)
	if err != nil {
		return nil, err
	}

	exists, err := s.Registry.GroupExists(ctx, groupID)
	if err != nil {
		return nil, dbError("loading group", err)
	}
	if !exists {
		return nil, apperr.NotFound("group not found")
	}
	if _, ok, err := s.Registry.RoleOf(ctx, actor.ID, groupID); err != nil {
		return nil, dbError("loading membership", err)
	} else if !ok {
		return nil, apperr.Forbidden("you are not a member of this group")
	}

	query := s.DB.WithContext(ctx).Where("type = ? AND group_id = ?", models.EventTypeGroup, groupID)
	query = applyDateRange(query, from, to)

	var events []models.UserEvent
	if err := query.Order("date ASC, start_time ASC").Find(&events).Error; err != nil {
		return nil, dbError("listing group events", err)
	}
	return events, nil
}

// Respond records the actor's answer to a group event invitation.
func (s *EventService) Respond(ctx context.Context, actor *models.User, eventID uuid.UUID, response models.ParticipationResponse) (*models.EventParticipation, error) {
	response = models.ParticipationResponse(strings.ToLower(strings.TrimSpace(string(response))))
	if !response.Valid() {
		return nil, apperr.Invalid("response must be one of yes, no, maybe")
	}

	ev, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.IsGroup() || ev.GroupID == nil {
		return nil, apperr.Invalid("you can only respond to group events")
	}

	_, ok, err := s.Registry.RoleOf(ctx, actor.ID, *ev.GroupID)
	if err != nil {
		return nil, dbError("loading membership", err)
	}
	if !ok {
		return nil, apperr.Forbidden("you are not a member of this group")
	}

	participation, err := s.Participation.Upsert(ctx, actor.ID, ev.ID, response)
	if err != nil {
		return nil, dbError("saving response", err)
	}

	logger.InfoWithUser(actor.ID.String(), "event_responded", map[string]interface{}{
		"event_id": ev.ID.String(),
		"response": string(response),
	})
	return participation, nil
}

func (s *EventService) Participations(ctx context.Context, actor *models.User, eventID uuid.UUID) ([]models.EventParticipation, error) {
	ev, err := s.Get(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	rows, err := s.Participation.ListForEvent(ctx, ev.ID)
	if err != nil {
		return nil, dbError("listing participations", err)
	}
	return rows, nil
}

func (s *EventService) load(ctx context.Context, eventID uuid.UUID) (*models.UserEvent, error) {
	var ev models.UserEvent
	err := s.DB.WithContext(ctx).First(&ev, "id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("event not found")
	}
	if err != nil {
		return nil, dbError("loading event", err)
	}
	return &ev, nil
}

// validateShape checks field formats and the solo/group ownership invariant,
// normalizing times to HH:MM.
func validateShape(ev *models.UserEvent) error {
	if ev.Type != models.EventTypeSolo && ev.Type != models.EventTypeGroup {
		return apperr.Invalid("type must be solo or group")
	}
	if ev.Description == "" {
		return apperr.Invalid("description is required")
	}
	if _, err := time.Parse(models.DateLayout, ev.Date); err != nil {
		return apperr.Invalid("date must be formatted as YYYY-MM-DD")
	}

	start, err := parseClock(ev.StartTime)
	if err != nil {
		return apperr.Invalid("startTime must be formatted as HH:MM")
	}
	end, err := parseClock(ev.EndTime)
	if err != nil {
		return apperr.Invalid("endTime must be formatted as HH:MM")
	}
	if !end.After(start) {
		return apperr.Invalid("endTime must be after startTime")
	}
	ev.StartTime = start.Format(models.TimeLayout)
	ev.EndTime = end.Format(models.TimeLayout)

	switch ev.Type {
	case models.EventTypeSolo:
		if ev.UserID == nil {
			return apperr.Invalid("solo events require a user")
		}
		if ev.GroupID != nil {
			return apperr.Invalid("solo events cannot belong to a group")
		}
	case models.EventTypeGroup:
		if ev.GroupID == nil {
			return apperr.Invalid("group events require a group")
		}
		if ev.UserID != nil {
			return apperr.Invalid("group events cannot be assigned to a user")
		}
	}
	return nil
}

func parseClock(value string) (time.Time, error) {
	if t, err := time.Parse(models.TimeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse("15:04:05", value)
}

func parseDateRange(from, to string) (string, string, error) {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from != "" {
		if _, err := time.Parse(models.DateLayout, from); err != nil {
			return "", "", apperr.Invalid("start_date must be formatted as YYYY-MM-DD")
		}
	}
	if to != "" {
		if _, err := time.Parse(models.DateLayout, to); err != nil {
			return "", "", apperr.Invalid("end_date must be formatted as YYYY-MM-DD")
		}
	}
	if from != "" && to != "" && from > to {
		return "", "", apperr.Invalid("start_date must not be after end_date")
	}
	return from, to, nil
}

func applyDateRange(query *gorm.DB, from, to string) *gorm.DB {
	if from != "" {
		query = query.Where("date >= ?", from)
	}
	if to != "" {
		query = query.Where("date <= ?", to)
	}
	return query
}

func withIndex(i int, err error) error {
	var remote *apperr.RemoteError
	if errors.As(err, &remote) {
		return err
	}
	for _, kind := range []error{apperr.ErrInvalidInput, apperr.ErrForbidden, apperr.ErrNotFound, apperr.ErrConflict} {
		if errors.Is(err, kind) {
			return fmt.Errorf("%w: event %d: %s", kind, i, apperr.Message(err))
		}
	}
	return err
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eventLogDetails(ev *models.UserEvent) map[string]interface{} {
	details := map[string]interface{}{
		"event_id": ev.ID.String(),
		"type":     string(ev.Type),
		"date":     ev.Date,
	}
	if ev.GroupID != nil {
		details["group_id"] = ev.GroupID.String()
	}
	return details
}
