package models

import "strings"

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
	RoleStaff   Role = "STAFF"
)

// ParseRole accepts any casing of a known role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleStudent, RoleTeacher, RoleAdmin, RoleStaff:
		return r, true
	}
	return "", false
}

type PrincipalKind int

const (
	KindStudent PrincipalKind = iota
	KindStaff
)

// Principal is the authenticated caller as resolved by the identity provider.
// For students ID is the student id, for staff it is the staff id.
type Principal struct {
	ID   int64  `json:"id"`
	Role Role   `json:"role"`
	Name string `json:"name,omitempty"`
}

func (p Principal) Kind() PrincipalKind {
	if p.Role == RoleStudent {
		return KindStudent
	}
	return KindStaff
}

func (p Principal) IsStaff() bool { return p.Kind() == KindStaff }

// CanReviewClasses reports whether the principal may read class-wide data.
func (p Principal) CanReviewClasses() bool {
	return p.Role == RoleTeacher || p.Role == RoleAdmin
}

// Caller is the network context of a request, stamped on audit entries.
type Caller struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}
