// Package authz decides whether a caller may change a provider's schedule.
package authz

import "errors"

// RoleAdmin is the practice-level role allowed to edit any provider's
// schedule. All other roles may only edit their own.
const RoleAdmin = "admin"

var ErrPermissionDenied = errors.New("permission denied")

// AuthorizeScheduleMutation allows the change when the caller holds the
// admin role or is the provider whose schedule is being changed.
func AuthorizeScheduleMutation(callerID, callerRole, targetProviderID string) error {
	if callerRole == RoleAdmin {
		return nil
	}
	if callerID != "" && callerID == targetProviderID {
		return nil
	}
	return ErrPermissionDenied
}
