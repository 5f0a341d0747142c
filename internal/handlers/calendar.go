package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/groupcal/backend/internal/calendar"
	"github.com/groupcal/backend/internal/middleware"
	"github.com/groupcal/backend/internal/services"
	"github.com/groupcal/backend/pkg/utils"
)

// calendarTokenHeader carries the caller's calendar access token when it is
// not sent in the body.
const calendarTokenHeader = "X-Calendar-Token"

type CalendarHandler struct {
	Sync  *services.CalendarSyncService
	Audit *services.AuditService
}

func NewCalendarHandler(sync *services.CalendarSyncService, audit *services.AuditService) *CalendarHandler {
	return &CalendarHandler{Sync: sync, Audit: audit}
}

type syncRequest struct {
	EventID     string `json:"eventID"`
	AccessToken string `json:"accessToken"`
}

func credentialFrom(c *fiber.Ctx, bodyToken string) calendar.Credential {
	token := strings.TrimSpace(bodyToken)
	if token == "" {
		token = strings.TrimSpace(c.Get(calendarTokenHeader))
	}
	return calendar.Credential{AccessToken: token}
}

func (h *CalendarHandler) SyncEvent(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req syncRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	eventID, err := parseUUID(req.EventID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "eventID must be a valid id")
	}

	result, err := h.Sync.Sync(c.UserContext(), currentUser, eventID, credentialFrom(c, req.AccessToken))
	if err != nil {
		return respondError(c, err, "failed syncing event")
	}

	audit(c, h.Audit, services.AuditCalendarSync, "event", &eventID, map[string]interface{}{
		"external_id": result.Mirror.ExternalID,
		"status":      result.Mirror.Status,
	})

	status := result.Mirror.Status
	if status == 0 {
		status = fiber.StatusOK
	}
	return utils.Success(c, status, result)
}

type removeRequest struct {
	EventID     string `json:"eventID"`
	ExternalID  string `json:"externalID"`
	AccessToken string `json:"accessToken"`
}

func (h *CalendarHandler) RemoveEvent(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req removeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	remove := services.RemoveRequest{ExternalID: req.ExternalID}
	if strings.TrimSpace(req.EventID) != "" {
		eventID, err := parseUUID(req.EventID)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "eventID must be a valid id")
		}
		remove.EventID = &eventID
	}

	if err := h.Sync.Remove(c.UserContext(), currentUser, remove, credentialFrom(c, req.AccessToken)); err != nil {
		return respondError(c, err, "failed removing calendar event")
	}

	var resourceID *uuid.UUID
	if remove.EventID != nil {
		resourceID = remove.EventID
	}
	audit(c, h.Audit, services.AuditCalendarRemove, "event", resourceID, map[string]interface{}{
		"external_id": req.ExternalID,
	})
	return utils.NoContent(c)
}
