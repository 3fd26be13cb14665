// Package identity carries the caller's role as an explicit value. Nothing in
// the core reads a "current user" from global state; every operation that
// depends on who is asking receives a Principal.
package identity

import (
	"fmt"
	"strings"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Principal is the already-authenticated caller. Token is forwarded verbatim
// to the remote backend; it is never inspected here.
type Principal struct {
	UserID string
	Role   Role
	Token  string
}

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (p Principal) IsDoctor() bool  { return p.Role == RoleDoctor }
func (p Principal) IsPatient() bool { return p.Role == RolePatient }
