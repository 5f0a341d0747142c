package models

import (
	"time"

	"github.com/google/uuid"
)

type GroupRole string

const (
	GroupRoleOwner  GroupRole = "owner"
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
)

type roleCapabilities struct {
	modifyEvents  bool
	deleteEvents  bool
	manageMembers bool
}

var capabilities = map[GroupRole]roleCapabilities{
	GroupRoleOwner:  {modifyEvents: true, deleteEvents: true, manageMembers: true},
	GroupRoleAdmin:  {modifyEvents: true},
	GroupRoleMember: {},
}

func (r GroupRole) Valid() bool {
	_, ok := capabilities[r]
	return ok
}

// CanModifyEvents covers both creating and editing group events.
func (r GroupRole) CanModifyEvents() bool { return capabilities[r].modifyEvents }

func (r GroupRole) CanDeleteEvents() bool { return capabilities[r].deleteEvents }

// CanManageMembers covers member removal, role changes and group deletion.
func (r GroupRole) CanManageMembers() bool { return capabilities[r].manageMembers }

// Assignable reports whether a role may be granted through a role change.
// Ownership only comes from creating the group.
func (r GroupRole) Assignable() bool {
	return r == GroupRoleAdmin || r == GroupRoleMember
}

type GroupMembership struct {
	BaseModel
	UserID   uuid.UUID `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_group"`
	GroupID  uuid.UUID `json:"groupID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_group"`
	Role     GroupRole `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	JoinedAt time.Time `json:"joinedAt" gorm:"not null"`
	User     *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Group    *Group    `json:"group,omitempty" gorm:"foreignKey:GroupID"`
}
