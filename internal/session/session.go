// Package session maintains the one authoritative record of who is signed
// in and what their role is. It reacts to credential-change notifications
// from the identity backend, consults the role document in the document
// store, and fans consolidated snapshots out to subscribers.
package session

import (
	"context"
)

// User is the consolidated signed-in principal. It is derived state: the
// identity backend owns the credential, the document store owns the role.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
}

// Snapshot is a read-only view of the session state handed to consumers
type Snapshot struct {
	User    *User  `json:"user"`
	Loading bool   `json:"loading"`
	Err     string `json:"error,omitempty"`
}

// IsTeacher reports whether a teacher is signed in
func (s Snapshot) IsTeacher() bool {
	return s.User != nil && s.User.Role == RoleTeacher
}

// IsStudent reports whether a student is signed in
func (s Snapshot) IsStudent() bool {
	return s.User != nil && s.User.Role == RoleStudent
}

// SignUpParams are the inputs to the sign-up operation
type SignUpParams struct {
	Email       string
	Password    string
	DisplayName string
	Role        Role
	// TeacherRef links a student to a teacher record. Ignored unless
	// Role is student.
	TeacherRef string
}

// PendingProfile describes a role-document write that could not be
// completed during sign-up
type PendingProfile struct {
	UID         string
	Email       string
	Role        string
	DisplayName string
	TeacherID   string
}

// Completions accepts pending profile writes for background retry.
// Implementations must be safe to call from operation goroutines.
type Completions interface {
	EnqueueProfileWrite(ctx context.Context, p PendingProfile) error
}
