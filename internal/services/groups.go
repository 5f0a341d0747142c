package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/groupcal/backend/internal/apperr"
	"github.com/groupcal/backend/internal/models"
	"github.com/groupcal/backend/internal/policy"
	"github.com/groupcal/backend/pkg/logger"
	"github.com/groupcal/backend/pkg/utils"
	"gorm.io/gorm"
)

const maxGroupNameLength = 150

type GroupService struct {
	DB       *gorm.DB
	Registry *MembershipRegistry
}

func NewGroupService(db *gorm.DB, registry *MembershipRegistry) *GroupService {
	return &GroupService{DB: db, Registry: registry}
}

// GroupWithRole is a group as seen by one of its members.
type GroupWithRole struct {
	models.Group
	Role models.GroupRole `json:"role"`
}

type MemberView struct {
	UserID   uuid.UUID        `json:"userID"`
	Username string           `json:"username"`
	Email    string           `json:"email"`
	Role     models.GroupRole `json:"role"`
	JoinedAt time.Time        `json:"joinedAt"`
}

// Create stores the group and the creator's owner membership atomically.
func (s *GroupService) Create(ctx context.Context, actor *models.User, name string, description *string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("name is required")
	}
	if len(name) > maxGroupNameLength {
		return nil, apperr.Invalid("name must be at most %d characters", maxGroupNameLength)
	}
	if description != nil {
		trimmed := strings.TrimSpace(*description)
		if trimmed == "" {
			description = nil
		} else {
			description = &trimmed
		}
	}

	group := models.Group{
		Name:        name,
		Description: description,
		OwnerID:     actor.ID,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Owner", "Memberships").Create(&group).Error; err != nil {
			return err
		}

		membership := models.GroupMembership{
			UserID:   actor.ID,
			GroupID:  group.ID,
			Role:     models.GroupRoleOwner,
			JoinedAt: time.Now().UTC(),
		}
		return tx.Omit("User", "Group").Create(&membership).Error
	})
	if err != nil {
		return nil, dbError("creating group", err)
	}

	logger.InfoWithUser(actor.ID.String(), "group_created", map[string]interface{}{
		"group_id":   group.ID.String(),
		"group_name": group.Name,
	})
	return &group, nil
}

func (s *GroupService) Join(ctx context.Context, actor *models.User, groupID uuid.UUID) (*models.GroupMembership, error) {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return nil, err
	}

	_, ok, err := s.Registry.RoleOf(ctx, actor.ID, groupID)
	if err != nil {
		return nil, dbError("loading membership", err)
	}
	if ok {
		return nil, apperr.Invalid("you are already a member of this group")
	}

	membership := models.GroupMembership{
		UserID:   actor.ID,
		GroupID:  groupID,
		Role:     models.GroupRoleMember,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.DB.WithContext(ctx).Omit("User", "Group").Create(&membership).Error; err != nil {
		return nil, dbError("joining group", err)
	}

	logger.InfoWithUser(actor.ID.String(), "group_joined", map[string]interface{}{
		"group_id": groupID.String(),
	})
	return &membership, nil
}

// Leave removes the actor's membership. The owner can only go away by
// deleting the group.
func (s *GroupService) Leave(ctx context.Context, actor *models.User, groupID uuid.UUID) error {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}

	role, ok, err := s.Registry.RoleOf(ctx, actor.ID, groupID)
	if err != nil {
		return dbError("loading membership", err)
	}
	if !ok {
		return apperr.Invalid("you are not a member of this group")
	}
	if role == models.GroupRoleOwner {
		return apperr.Invalid("the group owner cannot leave the group, delete it instead")
	}

	if err := s.removeMembership(ctx, groupID, actor.ID); err != nil {
		return err
	}

	logger.InfoWithUser(actor.ID.String(), "group_left", map[string]interface{}{
		"group_id": groupID.String(),
	})
	return nil
}

func (s *GroupService) RemoveMember(ctx context.Context, actor *models.User, groupID, target uuid.UUID) error {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}
	if err := policy.CanRemoveMember(ctx, s.Registry, actor.ID, groupID, target); err != nil {
		return err
	}
	if err := s.requireMember(ctx, groupID, target); err != nil {
		return err
	}

	if err := s.removeMembership(ctx, groupID, target); err != nil {
		return err
	}

	logger.InfoWithUser(actor.ID.String(), "group_member_removed", map[string]interface{}{
		"group_id":       groupID.String(),
		"target_user_id": target.String(),
	})
	return nil
}

func (s *GroupService) ChangeRole(ctx context.Context, actor *models.User, groupID, target uuid.UUID, role models.GroupRole) (*models.GroupMembership, error) {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return nil, err
	}
	role = models.GroupRole(strings.ToLower(strings.TrimSpace(string(role))))
	if err := policy.CanChangeRole(ctx, s.Registry, actor.ID, groupID, target, role); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, groupID, target); err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", groupID, target).
		Update("role", role).Error; err != nil {
		return nil, dbError("updating role", err)
	}

	var membership models.GroupMembership
	if err := s.DB.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, target).
		Take(&membership).Error; err != nil {
		return nil, dbError("loading membership", err)
	}

	logger.InfoWithUser(actor.ID.String(), "group_role_changed", map[string]interface{}{
		"group_id":       groupID.String(),
		"target_user_id": target.String(),
		"role":           string(role),
	})
	return &membership, nil
}

// Delete removes the group with its memberships, events and their
// participations in one transaction.
func (s *GroupService) Delete(ctx context.Context, actor *models.User, groupID uuid.UUID) (*models.Group, error) {
	var group models.Group
	if err := s.DB.WithContext(ctx).First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("group not found")
		}
		return nil, dbError("loading group", err)
	}
	if err := policy.CanDeleteGroup(ctx, s.Registry, actor.ID, groupID); err != nil {
		return nil, err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		groupEvents := tx.Model(&models.UserEvent{}).Select("id").Where("group_id = ?", groupID)
		if err := tx.Where("event_id IN (?)", groupEvents).Delete(&models.EventParticipation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.UserEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMembership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Group{}, "id = ?", groupID).Error
	})
	if err != nil {
		return nil, dbError("deleting group", err)
	}

	logger.InfoWithUser(actor.ID.String(), "group_deleted", map[string]interface{}{
		"group_id":   groupID.String(),
		"group_name": group.Name,
	})
	return &group, nil
}

// Mine lists the groups the actor belongs to with the actor's role in each.
func (s *GroupService) Mine(ctx context.Context, actor *models.User) ([]GroupWithRole, error) {
	var memberships []models.GroupMembership
	if err := s.DB.WithContext(ctx).
		Preload("Group").
		Where("user_id = ?", actor.ID).
		Order("joined_at DESC").
		Find(&memberships).Error; err != nil {
		return nil, dbError("listing groups", err)
	}

	out := make([]GroupWithRole, 0, len(memberships))
	for _, m := range memberships {
		if m.Group == nil {
			continue
		}
		out = append(out, GroupWithRole{Group: *m.Group, Role: m.Role})
	}
	return out, nil
}

// Search finds groups the actor has not joined whose name contains query.
func (s *GroupService) Search(ctx context.Context, actor *models.User, query string, p utils.PaginationParams) ([]models.Group, int64, error) {
	joined := s.DB.Model(&models.GroupMembership{}).Select("group_id").Where("user_id = ?", actor.ID)
	q := s.DB.WithContext(ctx).Model(&models.Group{}).Where("id NOT IN (?)", joined)

	query = strings.TrimSpace(query)
	if query != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(query)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, dbError("counting groups", err)
	}

	var groups []models.Group
	if err := utils.ApplyPagination(q.Order("name ASC"), p).Find(&groups).Error; err != nil {
		return nil, 0, dbError("searching groups", err)
	}
	return groups, total, nil
}

func (s *GroupService) Members(ctx context.Context, groupID uuid.UUID) ([]MemberView, error) {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return nil, err
	}

	memberships, err := s.Registry.Members(ctx, groupID)
	if err != nil {
		return nil, dbError("listing members", err)
	}

	out := make([]MemberView, 0, len(memberships))
	for _, m := range memberships {
		view := MemberView{
			UserID:   m.UserID,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		}
		if m.User != nil {
			view.Username = m.User.Username
			view.Email = m.User.Email
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *GroupService) RoleOf(ctx context.Context, groupID, userID uuid.UUID) (models.GroupRole, error) {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return "", err
	}
	role, ok, err := s.Registry.RoleOf(ctx, userID, groupID)
	if err != nil {
		return "", dbError("loading membership", err)
	}
	if !ok {
		return "", apperr.NotFound("user is not a member of this group")
	}
	return role, nil
}

func (s *GroupService) requireGroup(ctx context.Context, groupID uuid.UUID) error {
	exists, err := s.Registry.GroupExists(ctx, groupID)
	if err != nil {
		return dbError("loading group", err)
	}
	if !exists {
		return apperr.NotFound("group not found")
	}
	return nil
}

func (s *GroupService) requireMember(ctx context.Context, groupID, userID uuid.UUID) error {
	_, ok, err := s.Registry.RoleOf(ctx, userID, groupID)
	if err != nil {
		return dbError("loading membership", err)
	}
	if !ok {
		return apperr.NotFound("user is not a member of this group")
	}
	return nil
}

// removeMembership drops the membership and the user's responses to the
// group's events.
func (s *GroupService) removeMembership(ctx context.Context, groupID, userID uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		groupEvents := tx.Model(&models.UserEvent{}).Select("id").Where("group_id = ?", groupID)
		if err := tx.Where("user_id = ? AND event_id IN (?)", userID, groupEvents).Delete(&models.EventParticipation{}).Error; err != nil {
			return err
		}
		return tx.Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&models.GroupMembership{}).Error
	})
	if err != nil {
		return dbError("removing membership", err)
	}
	return nil
}
