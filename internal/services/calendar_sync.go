package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/groupcal/backend/internal/apperr"
	"github.com/groupcal/backend/internal/calendar"
	"github.com/groupcal/backend/internal/metrics"
	"github.com/groupcal/backend/internal/models"
	"github.com/groupcal/backend/internal/policy"
	"github.com/groupcal/backend/pkg/logger"
	"gorm.io/gorm"
)

// CalendarSyncService mirrors stored events to the configured external
// calendar on explicit request. Remote failures are returned unchanged and
// never retried.
type CalendarSyncService struct {
	DB       *gorm.DB
	Registry *MembershipRegistry
	Provider calendar.Provider
	Location *time.Location
}

func NewCalendarSyncService(db *gorm.DB, registry *MembershipRegistry, provider calendar.Provider, loc *time.Location) *CalendarSyncService {
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarSyncService{DB: db, Registry: registry, Provider: provider, Location: loc}
}

type SyncResult struct {
	Event  *models.UserEvent `json:"event"`
	Mirror calendar.Mirror   `json:"mirror"`
}

// Sync updates the remote copy when the event already has an external id and
// creates one otherwise, storing the id it gets back.
func (s *CalendarSyncService) Sync(ctx context.Context, actor *models.User, eventID uuid.UUID, cred calendar.Credential) (*SyncResult, error) {
	ev, err := s.loadVisible(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}

	remote, err := s.ToRemote(ctx, ev, actor.Email)
	if err != nil {
		return nil, err
	}

	var mirror calendar.Mirror
	if ev.ExternalCalendarID != nil && *ev.ExternalCalendarID != "" {
		mirror, err = s.Provider.Update(ctx, cred, *ev.ExternalCalendarID, remote)
		metrics.CalendarRequests.WithLabelValues("update", metrics.Outcome(err)).Inc()
	} else {
		mirror, err = s.Provider.Create(ctx, cred, remote)
		metrics.CalendarRequests.WithLabelValues("create", metrics.Outcome(err)).Inc()
	}
	if err != nil {
		logger.WarnWithUser(actor.ID.String(), "calendar_sync_failed", map[string]interface{}{
			"event_id": ev.ID.String(),
			"error":    err.Error(),
		})
		return nil, err
	}

	if mirror.ExternalID != "" && (ev.ExternalCalendarID == nil || *ev.ExternalCalendarID != mirror.ExternalID) {
		if err := s.DB.WithContext(ctx).
			Model(&models.UserEvent{}).
			Where("id = ?", ev.ID).
			Update("external_calendar_id", mirror.ExternalID).Error; err != nil {
			return nil, dbError("saving external calendar id", err)
		}
		id := mirror.ExternalID
		ev.ExternalCalendarID = &id
	}

	logger.InfoWithUser(actor.ID.String(), "calendar_synced", map[string]interface{}{
		"event_id":    ev.ID.String(),
		"external_id": mirror.ExternalID,
		"status":      mirror.Status,
	})
	return &SyncResult{Event: ev, Mirror: mirror}, nil
}

// RemoveRequest names the remote copy by local event id or by external id.
type RemoveRequest struct {
	EventID    *uuid.UUID `json:"eventID"`
	ExternalID string     `json:"externalID"`
}

// Remove deletes the remote copy and, once the remote confirms, clears the
// stored external id.
func (s *CalendarSyncService) Remove(ctx context.Context, actor *models.User, req RemoveRequest, cred calendar.Credential) error {
	var ev *models.UserEvent
	externalID := strings.TrimSpace(req.ExternalID)

	switch {
	case req.EventID != nil:
		loaded, err := s.loadVisible(ctx, actor, *req.EventID)
		if err != nil {
			return err
		}
		if loaded.ExternalCalendarID == nil || *loaded.ExternalCalendarID == "" {
			return apperr.Invalid("event is not synced to an external calendar")
		}
		ev = loaded
		externalID = *loaded.ExternalCalendarID
	case externalID != "":
		var linked models.UserEvent
		err := s.DB.WithContext(ctx).First(&linked, "external_calendar_id = ?", externalID).Error
		switch {
		case err == nil:
			if err := policy.CanView(ctx, s.Registry, actor.ID, &linked); err != nil {
				return err
			}
			ev = &linked
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return dbError("loading event", err)
		}
	default:
		return apperr.Invalid("eventID or externalID is required")
	}

	err := s.Provider.Delete(ctx, cred, externalID)
	metrics.CalendarRequests.WithLabelValues("delete", metrics.Outcome(err)).Inc()
	if err != nil {
		logger.WarnWithUser(actor.ID.String(), "calendar_remove_failed", map[string]interface{}{
			"external_id": externalID,
			"error":       err.Error(),
		})
		return err
	}

	if ev != nil {
		if err := s.DB.WithContext(ctx).
			Model(&models.UserEvent{}).
			Where("id = ?", ev.ID).
			Update("external_calendar_id", nil).Error; err != nil {
			return dbError("clearing external calendar id", err)
		}
	}

	logger.InfoWithUser(actor.ID.String(), "calendar_removed", map[string]interface{}{
		"external_id": externalID,
	})
	return nil
}

// ToRemote converts an event for the external calendar. Group events list
// every member with an email address as an attendee.
func (s *CalendarSyncService) ToRemote(ctx context.Context, ev *models.UserEvent, organizer string) (calendar.Event, error) {
	var attendees []string
	if ev.IsGroup() && ev.GroupID != nil {
		if err := s.DB.WithContext(ctx).
			Model(&models.User{}).
			Joins("JOIN group_memberships ON group_memberships.user_id = users.id").
			Where("group_memberships.group_id = ?", *ev.GroupID).
			Where("users.email <> ''").
			Order("users.email ASC").
			Pluck("users.email", &attendees).Error; err != nil {
			return calendar.Event{}, dbError("loading attendees", err)
		}
	}

	remote, err := calendar.FromUserEvent(ev, s.Location, organizer, attendees)
	if err != nil {
		return calendar.Event{}, err
	}
	return remote, nil
}

func (s *CalendarSyncService) loadVisible(ctx context.Context, actor *models.User, eventID uuid.UUID) (*models.UserEvent, error) {
	var ev models.UserEvent
	err := s.DB.WithContext(ctx).First(&ev, "id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("event not found")
	}
	if err != nil {
		return nil, dbError("loading event", err)
	}
	if err := policy.CanView(ctx, s.Registry, actor.ID, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
