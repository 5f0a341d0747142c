package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/groupcal/backend/internal/models"
	"gorm.io/gorm"
)

// MembershipRegistry answers role and membership lookups from the
// group_memberships table. It never writes.
type MembershipRegistry struct {
	DB *gorm.DB
}

func NewMembershipRegistry(db *gorm.DB) *MembershipRegistry {
	return &MembershipRegistry{DB: db}
}

func (r *MembershipRegistry) RoleOf(ctx context.Context, userID, groupID uuid.UUID) (models.GroupRole, bool, error) {
	var membership models.GroupMembership
	err := r.DB.WithContext(ctx).
		Select("role").
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Take(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return membership.Role, true, nil
}

func (r *MembershipRegistry) GroupExists(ctx context.Context, groupID uuid.UUID) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.Group{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MembershipRegistry) MemberGroupIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("user_id = ?", userID).
		Pluck("group_id", &ids).Error
	return ids, err
}

// Members returns every membership of the group with its user loaded.
func (r *MembershipRegistry) Members(ctx context.Context, groupID uuid.UUID) ([]models.GroupMembership, error) {
	var memberships []models.GroupMembership
	err := r.DB.WithContext(ctx).
		Preload("User").
		Where("group_id = ?", groupID).
		Order("joined_at ASC").
		Find(&memberships).Error
	return memberships, err
}
