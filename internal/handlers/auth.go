package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/groupcal/backend/internal/middleware"
	"github.com/groupcal/backend/internal/services"
	"github.com/groupcal/backend/pkg/utils"
)

type AuthHandler struct {
	Auth  *services.AuthService
	Audit *services.AuditService
}

func NewAuthHandler(auth *services.AuthService, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{Auth: auth, Audit: audit}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	res, err := h.Auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err, "login failed")
	}
	h.logLogin(c, res, "password")
	return utils.Success(c, fiber.StatusOK, res)
}

type googleLoginRequest struct {
	IDToken string `json:"idToken"`
}

func (h *AuthHandler) GoogleLogin(c *fiber.Ctx) error {
	var req googleLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	res, err := h.Auth.GoogleLogin(c.UserContext(), req.IDToken)
	if err != nil {
		return respondError(c, err, "google login failed")
	}
	h.logLogin(c, res, "google")
	return utils.Success(c, fiber.StatusOK, res)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, currentUser)
}

func (h *AuthHandler) logLogin(c *fiber.Ctx, res *services.LoginResult, method string) {
	id := res.User.ID
	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &id,
		Action:       services.AuditUserLogin,
		ResourceType: "user",
		ResourceID:   &id,
		Details:      map[string]interface{}{"method": method},
		IPAddress:    c.IP(),
		RequestID:    middleware.GetRequestID(c),
	})
}
