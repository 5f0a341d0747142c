package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/groupcal/backend/internal/apperr"
	"github.com/groupcal/backend/internal/middleware"
	"github.com/groupcal/backend/internal/services"
	"github.com/groupcal/backend/pkg/logger"
	"github.com/groupcal/backend/pkg/utils"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// respondError maps service errors onto HTTP statuses. Anything without a
// known kind is logged and reported as a generic 500.
func respondError(c *fiber.Ctx, err error, fallback string) error {
	var remote *apperr.RemoteError
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		return utils.Error(c, fiber.StatusBadRequest, apperr.Message(err))
	case errors.Is(err, apperr.ErrUnauthorized):
		return utils.Error(c, fiber.StatusUnauthorized, apperr.Message(err))
	case errors.Is(err, apperr.ErrForbidden):
		return utils.Error(c, fiber.StatusForbidden, apperr.Message(err))
	case errors.Is(err, apperr.ErrNotFound):
		return utils.Error(c, fiber.StatusNotFound, apperr.Message(err))
	case errors.Is(err, apperr.ErrConflict):
		return utils.Error(c, fiber.StatusConflict, apperr.Message(err))
	case errors.As(err, &remote):
		status := remote.Status
		if status < 400 {
			status = fiber.StatusBadGateway
		}
		return utils.Error(c, status, remote.Message)
	}

	details := map[string]interface{}{
		"method": c.Method(),
		"path":   c.Path(),
	}
	if userID := logger.GetUserIDFromContext(c); userID != nil {
		logger.ErrorWithUser(*userID, "request_failed", err, details)
	} else {
		logger.Error("request_failed", err, details)
	}
	return utils.Error(c, fiber.StatusInternalServerError, fallback)
}

// audit records a mutation made by the current user on the request.
func audit(c *fiber.Ctx, svc *services.AuditService, action, resourceType string, resourceID *uuid.UUID, details map[string]interface{}) {
	var userID *uuid.UUID
	if user := middleware.GetCurrentUser(c); user != nil {
		id := user.ID
		userID = &id
	}
	svc.LogAsync(services.AuditEntry{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    c.IP(),
		RequestID:    middleware.GetRequestID(c),
	})
}
