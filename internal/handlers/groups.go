package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/groupcal/backend/internal/middleware"
	"github.com/groupcal/backend/internal/models"
	"github.com/groupcal/backend/internal/services"
	"github.com/groupcal/backend/pkg/utils"
)

type GroupsHandler struct {
	Groups *services.GroupService
	Audit  *services.AuditService
}

func NewGroupsHandler(groups *services.GroupService, audit *services.AuditService) *GroupsHandler {
	return &GroupsHandler{Groups: groups, Audit: audit}
}

type createGroupRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (h *GroupsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	group, err := h.Groups.Create(c.UserContext(), currentUser, req.Name, req.Description)
	if err != nil {
		return respondError(c, err, "failed creating group")
	}

	audit(c, h.Audit, services.AuditGroupCreate, "group", &group.ID, map[string]interface{}{
		"group_name": group.Name,
	})
	return utils.Success(c, fiber.StatusCreated, group)
}

func (h *GroupsHandler) Mine(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groups, err := h.Groups.Mine(c.UserContext(), currentUser)
	if err != nil {
		return respondError(c, err, "failed listing groups")
	}
	return utils.Success(c, fiber.StatusOK, groups)
}

func (h *GroupsHandler) Search(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	pagination := utils.ParsePagination(c)
	groups, total, err := h.Groups.Search(c.UserContext(), currentUser, c.Query("q"), pagination)
	if err != nil {
		return respondError(c, err, "failed searching groups")
	}
	return utils.Paginated(c, groups, pagination.Page, pagination.PageSize, total)
}

func (h *GroupsHandler) Members(c *fiber.Ctx) error {
	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	members, err := h.Groups.Members(c.UserContext(), groupID)
	if err != nil {
		return respondError(c, err, "failed listing members")
	}
	return utils.Success(c, fiber.StatusOK, members)
}

func (h *GroupsHandler) Role(c *fiber.Ctx) error {
	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	userID, err := parseUUID(c.Query("user_id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "user_id must be a valid id")
	}

	role, err := h.Groups.RoleOf(c.UserContext(), groupID, userID)
	if err != nil {
		return respondError(c, err, "failed loading role")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"groupID": groupID,
		"userID":  userID,
		"role":    role,
	})
}

func (h *GroupsHandler) Join(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	membership, err := h.Groups.Join(c.UserContext(), currentUser, groupID)
	if err != nil {
		return respondError(c, err, "failed joining group")
	}

	audit(c, h.Audit, services.AuditGroupJoin, "group", &groupID, nil)
	return utils.Success(c, fiber.StatusCreated, membership)
}

func (h *GroupsHandler) Leave(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	if err := h.Groups.Leave(c.UserContext(), currentUser, groupID); err != nil {
		return respondError(c, err, "failed leaving group")
	}

	audit(c, h.Audit, services.AuditGroupLeave, "group", &groupID, nil)
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "left group"})
}

func (h *GroupsHandler) RemoveMember(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	targetID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.Groups.RemoveMember(c.UserContext(), currentUser, groupID, targetID); err != nil {
		return respondError(c, err, "failed removing member")
	}

	audit(c, h.Audit, services.AuditGroupMemberRemove, "group", &groupID, map[string]interface{}{
		"member_id": targetID.String(),
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "member removed"})
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (h *GroupsHandler) ChangeRole(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	targetID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req changeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	role := models.GroupRole(strings.TrimSpace(req.Role))
	membership, err := h.Groups.ChangeRole(c.UserContext(), currentUser, groupID, targetID, role)
	if err != nil {
		return respondError(c, err, "failed changing role")
	}

	audit(c, h.Audit, services.AuditGroupRoleChange, "group", &groupID, map[string]interface{}{
		"member_id": targetID.String(),
		"role":      string(membership.Role),
	})
	return utils.Success(c, fiber.StatusOK, membership)
}

func (h *GroupsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	group, err := h.Groups.Delete(c.UserContext(), currentUser, groupID)
	if err != nil {
		return respondError(c, err, "failed deleting group")
	}

	audit(c, h.Audit, services.AuditGroupDelete, "group", &groupID, map[string]interface{}{
		"group_name": group.Name,
	})
	return utils.NoContent(c)
}
