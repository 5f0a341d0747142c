// Package policy decides who may create, modify or delete events and manage
// group members. Every function is deterministic and only reads from the
// Registry it is given.
package policy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/groupcal/backend/internal/apperr"
	"github.com/groupcal/backend/internal/models"
)

// Registry answers membership questions for the policy.
type Registry interface {
	RoleOf(ctx context.Context, userID, groupID uuid.UUID) (models.GroupRole, bool, error)
	GroupExists(ctx context.Context, groupID uuid.UUID) (bool, error)
}

// CanCreate expects a draft whose shape has already been validated.
func CanCreate(ctx context.Context, reg Registry, actor uuid.UUID, draft *models.UserEvent) error {
	switch draft.Type {
	case models.EventTypeSolo:
		if draft.UserID == nil || *draft.UserID != actor {
			return apperr.Forbidden("solo events can only be created for yourself")
		}
		return nil
	case models.EventTypeGroup:
		if draft.GroupID == nil {
			return apperr.Invalid("group is required for group events")
		}
		exists, err := reg.GroupExists(ctx, *draft.GroupID)
		if err != nil {
			return fmt.Errorf("checking group: %w", err)
		}
		if !exists {
			return apperr.Invalid("group does not exist")
		}
		role, ok, err := reg.RoleOf(ctx, actor, *draft.GroupID)
		if err != nil {
			return fmt.Errorf("loading membership: %w", err)
		}
		if !ok || !role.CanModifyEvents() {
			return apperr.Forbidden("only group owners and admins can create group events")
		}
		return nil
	default:
		return apperr.Invalid("unknown event type %q", draft.Type)
	}
}

func CanModify(ctx context.Context, reg Registry, actor uuid.UUID, event *models.UserEvent) error {
	if event.Type == models.EventTypeSolo {
		if !ownsSolo(actor, event) {
			return apperr.Forbidden("you don't have permission to edit this event")
		}
		return nil
	}
	role, err := groupRole(ctx, reg, actor, event)
	if err != nil {
		return err
	}
	if !role.CanModifyEvents() {
		return apperr.Forbidden("only group owners and admins can edit group events")
	}
	return nil
}

func CanDelete(ctx context.Context, reg Registry, actor uuid.UUID, event *models.UserEvent) error {
	if event.Type == models.EventTypeSolo {
		if !ownsSolo(actor, event) {
			return apperr.Forbidden("you don't have permission to delete this event")
		}
		return nil
	}
	role, err := groupRole(ctx, reg, actor, event)
	if err != nil {
		return err
	}
	if !role.CanDeleteEvents() {
		return apperr.Forbidden("only the group owner can delete group events")
	}
	return nil
}

// CanView allows the solo owner or any member of the event's group.
func CanView(ctx context.Context, reg Registry, actor uuid.UUID, event *models.UserEvent) error {
	if event.Type == models.EventTypeSolo {
		if !ownsSolo(actor, event) {
			return apperr.Forbidden("you don't have access to this event")
		}
		return nil
	}
	if _, err := groupRole(ctx, reg, actor, event); err != nil {
		return err
	}
	return nil
}

func CanRemoveMember(ctx context.Context, reg Registry, actor, groupID, target uuid.UUID) error {
	if err := requireOwner(ctx, reg, actor, groupID, "only the group owner can remove users"); err != nil {
		return err
	}
	if actor == target {
		return apperr.Invalid("owner cannot remove themselves")
	}
	return nil
}

func CanChangeRole(ctx context.Context, reg Registry, actor, groupID, target uuid.UUID, role models.GroupRole) error {
	if err := requireOwner(ctx, reg, actor, groupID, "only the group owner can update roles"); err != nil {
		return err
	}
	if actor == target {
		return apperr.Invalid("group owner cannot change their own role")
	}
	if !role.Assignable() {
		return apperr.Invalid("invalid role")
	}
	return nil
}

func CanDeleteGroup(ctx context.Context, reg Registry, actor, groupID uuid.UUID) error {
	return requireOwner(ctx, reg, actor, groupID, "only the group owner can delete the group")
}

func requireOwner(ctx context.Context, reg Registry, actor, groupID uuid.UUID, denied string) error {
	role, ok, err := reg.RoleOf(ctx, actor, groupID)
	if err != nil {
		return fmt.Errorf("loading membership: %w", err)
	}
	if !ok {
		return apperr.Forbidden("you are not a member of this group")
	}
	if !role.CanManageMembers() {
		return apperr.Forbidden("%s", denied)
	}
	return nil
}

func groupRole(ctx context.Context, reg Registry, actor uuid.UUID, event *models.UserEvent) (models.GroupRole, error) {
	if event.GroupID == nil {
		return "", apperr.Forbidden("event has no group")
	}
	role, ok, err := reg.RoleOf(ctx, actor, *event.GroupID)
	if err != nil {
		return "", fmt.Errorf("loading membership: %w", err)
	}
	if !ok {
		return "", apperr.Forbidden("you are not a member of this group")
	}
	return role, nil
}

func ownsSolo(actor uuid.UUID, event *models.UserEvent) bool {
	return event.UserID != nil && *event.UserID == actor
}
