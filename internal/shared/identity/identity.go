// Package identity carries the authenticated caller through service calls.
package identity

import "strings"

// Identity is the caller on whose behalf an operation runs.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// IsZero reports whether no caller is attached.
func (i Identity) IsZero() bool {
	return i.UserID == "" && i.Email == ""
}

// HasEmail reports whether email belongs to the caller, ignoring case.
func (i Identity) HasEmail(email string) bool {
	if i.Email == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(i.Email), strings.TrimSpace(email))
}
