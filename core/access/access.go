// Package access holds the pure role/ownership predicates guarding every
// mutating operation. It performs no I/O: owner IDs are pre-fetched by the
// calling service from the loaded row.
package access

import (
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/user"
)

var ErrPermissionDenied = errors.New("permission denied")

// CanManageOwned reports whether actor may mutate a teacher-owned resource
// (session, course). Admins always may; teachers only when they own it.
func CanManageOwned(actor user.User, ownerID string) bool {
	switch actor.Role {
	case user.RoleAdmin:
		return true
	case user.RoleTeacher:
		return actor.ID == ownerID
	case user.RoleStudent:
		return false
	}
	return false
}

// CanActAsStudent reports whether actor may perform a student-scoped action
// (check-in, join, read own attendance) for the given student ID.
func CanActAsStudent(actor user.User, studentID string) bool {
	switch actor.Role {
	case user.RoleAdmin:
		return true
	case user.RoleStudent:
		return actor.ID == studentID
	case user.RoleTeacher:
		return false
	}
	return false
}

// CanReadOwned reports whether actor may read a user-scoped resource
// (notification, enrollment) belonging to the given user ID.
func CanReadOwned(actor user.User, ownerID string) bool {
	return actor.IsAdmin() || actor.ID == ownerID
}
