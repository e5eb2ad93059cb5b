package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

type Role string

const (
	RolePending      Role = "PENDING"
	RolePhotographer Role = "PHOTOGRAPHER"
	RoleAdmin        Role = "ADMIN"
)

// RoleAction is an admin-driven change to a user's role.
type RoleAction string

const (
	ActionApprove RoleAction = "approve"
	ActionReject  RoleAction = "reject"
	ActionPromote RoleAction = "promote"
	ActionDemote  RoleAction = "demote"
)

// ErrRoleDeleted is returned by Transition for actions whose outcome is deleting the user.
var ErrRoleDeleted = errors.New("user is deleted")

type transition struct {
	from Role
	to   Role
}

// Reject has no target role: the account is removed.
var roleTransitions = map[RoleAction]transition{
	ActionApprove: {from: RolePending, to: RolePhotographer},
	ActionReject:  {from: RolePending},
	ActionPromote: {from: RolePhotographer, to: RoleAdmin},
	ActionDemote:  {from: RoleAdmin, to: RolePhotographer},
}

// InvalidTransitionError carries the state the user was actually in.
type InvalidTransitionError struct {
	Action RoleAction
	From   Role
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a user with role %s", e.Action, e.From)
}

// Transition returns the role a user ends up in after action. Reject yields ErrRoleDeleted.
func (r Role) Transition(action RoleAction) (Role, error) {
	t, ok := roleTransitions[action]
	if !ok {
		return r, fmt.Errorf("unknown role action %q", action)
	}
	if t.from != r {
		return r, &InvalidTransitionError{Action: action, From: r}
	}
	if t.to == "" {
		return "", ErrRoleDeleted
	}
	return t.to, nil
}

func (r Role) Valid() bool {
	switch r {
	case RolePending, RolePhotographer, RoleAdmin:
		return true
	}
	return false
}

// IsApproved is true for accounts allowed to own and upload galleries.
func (r Role) IsApproved() bool {
	return r == RolePhotographer || r == RoleAdmin
}

func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %q", string(r))
	}
	return string(r), nil
}

func (r *Role) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Role", src)
	}
	role := Role(s)
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", s)
	}
	*r = role
	return nil
}
