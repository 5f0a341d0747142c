package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/groupcal/backend/internal/calendar"
	"github.com/groupcal/backend/internal/middleware"
	"github.com/groupcal/backend/internal/models"
	"github.com/groupcal/backend/internal/services"
	"github.com/groupcal/backend/pkg/utils"
)

type EventsHandler struct {
	Events   *services.EventService
	Calendar *services.CalendarSyncService
	Audit    *services.AuditService
}

func NewEventsHandler(events *services.EventService, cal *services.CalendarSyncService, audit *services.AuditService) *EventsHandler {
	return &EventsHandler{Events: events, Calendar: cal, Audit: audit}
}

func eventAuditDetails(ev *models.UserEvent) map[string]interface{} {
	details := map[string]interface{}{
		"type": string(ev.Type),
		"date": ev.Date,
	}
	if ev.GroupID != nil {
		details["group_id"] = ev.GroupID.String()
	}
	return details
}

func (h *EventsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req services.EventInput
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	event, err := h.Events.Create(c.UserContext(), currentUser, req)
	if err != nil {
		return respondError(c, err, "failed creating event")
	}

	audit(c, h.Audit, services.AuditEventCreate, "event", &event.ID, eventAuditDetails(event))
	return utils.Success(c, fiber.StatusCreated, event)
}

type batchCreateRequest struct {
	Events []services.EventInput `json:"events"`
}

func (h *EventsHandler) CreateBatch(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req batchCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	events, err := h.Events.CreateBatch(c.UserContext(), currentUser, req.Events)
	if err != nil {
		return respondError(c, err, "failed creating events")
	}

	for i := range events {
		details := eventAuditDetails(&events[i])
		details["batch"] = true
		audit(c, h.Audit, services.AuditEventCreate, "event", &events[i].ID, details)
	}
	return utils.Success(c, fiber.StatusCreated, events)
}

func (h *EventsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	events, err := h.Events.ListVisible(c.UserContext(), currentUser, c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		return respondError(c, err, "failed listing events")
	}
	return utils.Success(c, fiber.StatusOK, events)
}

// ExportICS renders the caller's visible events as an iCalendar feed.
func (h *EventsHandler) ExportICS(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	ctx := c.UserContext()
	events, err := h.Events.ListVisible(ctx, currentUser, c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		return respondError(c, err, "failed listing events")
	}

	remote := make([]calendar.Event, 0, len(events))
	for i := range events {
		ev, err := h.Calendar.ToRemote(ctx, &events[i], currentUser.Email)
		if err != nil {
			return respondError(c, err, "failed exporting events")
		}
		remote = append(remote, ev)
	}

	c.Set("Content-Type", "text/calendar; charset=utf-8")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "groupcal.ics"))
	if err := calendar.WriteICS(c.Response().BodyWriter(), remote); err != nil {
		return respondError(c, err, "failed exporting events")
	}
	return nil
}

func (h *EventsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	event, err := h.Events.Get(c.UserContext(), currentUser, eventID)
	if err != nil {
		return respondError(c, err, "failed loading event")
	}
	return utils.Success(c, fiber.StatusOK, event)
}

func (h *EventsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	var patch services.EventPatch
	if err := c.BodyParser(&patch); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	event, err := h.Events.Update(c.UserContext(), currentUser, eventID, patch)
	if err != nil {
		return respondError(c, err, "failed updating event")
	}

	audit(c, h.Audit, services.AuditEventUpdate, "event", &event.ID, eventAuditDetails(event))
	return utils.Success(c, fiber.StatusOK, event)
}

func (h *EventsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	if err := h.Events.Delete(c.UserContext(), currentUser, eventID); err != nil {
		return respondError(c, err, "failed deleting event")
	}

	audit(c, h.Audit, services.AuditEventDelete, "event", &eventID, nil)
	return utils.NoContent(c)
}

type respondRequest struct {
	Response models.ParticipationResponse `json:"response"`
}

func (h *EventsHandler) Respond(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	var req respondRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	participation, err := h.Events.Respond(c.UserContext(), currentUser, eventID, req.Response)
	if err != nil {
		return respondError(c, err, "failed recording response")
	}

	audit(c, h.Audit, services.AuditEventRespond, "event", &eventID, map[string]interface{}{
		"response": string(participation.Response),
	})
	return utils.Success(c, fiber.StatusOK, participation)
}

func (h *EventsHandler) Participations(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	participations, err := h.Events.Participations(c.UserContext(), currentUser, eventID)
	if err != nil {
		return respondError(c, err, "failed listing responses")
	}
	return utils.Success(c, fiber.StatusOK, participations)
}

func (h *EventsHandler) GroupEvents(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	events, err := h.Events.ListGroupEvents(c.UserContext(), currentUser, groupID, c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		return respondError(c, err, "failed listing group events")
	}
	return utils.Success(c, fiber.StatusOK, events)
}
