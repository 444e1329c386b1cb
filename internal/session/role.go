package session

// Role is a user's role in the classroom
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// String returns the role's wire value
func (r Role) String() string {
	return string(r)
}

// Valid reports whether the role is one of the closed enumeration
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// ParseRole maps a raw role value onto the closed enumeration. Unknown or
// empty values fail closed to student; ok reports whether the input was a
// legal role so callers can log the mismatch.
func ParseRole(raw string) (role Role, ok bool) {
	switch Role(raw) {
	case RoleTeacher:
		return RoleTeacher, true
	case RoleStudent:
		return RoleStudent, true
	default:
		return RoleStudent, false
	}
}
