package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Role is the account role stored on every account and carried in tokens.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
	RoleSuper     Role = "super"
)

// AllRoles returns all valid roles, lowest rank first.
func AllRoles() []Role {
	return []Role{RoleMember, RoleModerator, RoleAdmin, RoleSuper}
}

// ParseRole validates a role string. An empty string defaults to member.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RoleMember, nil
	}
	for _, r := range AllRoles() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid role: %s", s)
}

// Rank orders roles; unknown roles rank below member.
func (r Role) Rank() int {
	switch r {
	case RoleMember:
		return 1
	case RoleModerator:
		return 2
	case RoleAdmin:
		return 3
	case RoleSuper:
		return 4
	default:
		return 0
	}
}

// Capability is an action gated by role.
type Capability int

const (
	CapReadOwn Capability = iota
	CapManageMembers
	CapViewActiveHunts
	CapImport
	CapCrossAssociation
	CapSwitchAssociation
)

// Can reports whether the role grants the capability.
func (r Role) Can(c Capability) bool {
	switch c {
	case CapReadOwn:
		return r.Rank() >= RoleMember.Rank()
	case CapManageMembers, CapViewActiveHunts, CapImport:
		return r.Rank() >= RoleModerator.Rank()
	case CapCrossAssociation, CapSwitchAssociation:
		return r == RoleSuper
	default:
		return false
	}
}

// Identity is the authenticated caller, decoded from a token.
type Identity struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	AssociationID string `json:"ldId"`
	Role          Role   `json:"role"`
}

// IsPrivileged is the single predicate for the top role.
func (id Identity) IsPrivileged() bool {
	return id.Role == RoleSuper
}

// Can reports whether the caller holds the capability.
func (id Identity) Can(c Capability) bool {
	return id.Role.Can(c)
}

// CanAccess reports whether the caller may act on records of the association.
func (id Identity) CanAccess(associationID string) bool {
	if id.Can(CapCrossAssociation) {
		return true
	}
	return id.AssociationID != "" && id.AssociationID == associationID
}

// CanAssign reports whether the caller may give the target role to an
// account, or act on an account currently holding it.
func (id Identity) CanAssign(target Role) bool {
	return id.Can(CapManageMembers) && target.Rank() > 0 && target.Rank() <= id.Role.Rank()
}

// Account is a member of an association (accounts table).
type Account struct {
	Code           string     `json:"code"`
	Name           string     `json:"name"`
	AssociationID  string     `json:"ldId"`
	Role           Role       `json:"role"`
	Credential     string     `json:"-"`
	Enabled        bool       `json:"enabled"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	LastPinResetAt *time.Time `json:"lastPinResetAt,omitempty"`
}

// Identity returns the token identity for the account.
func (a *Account) Identity() Identity {
	return Identity{Code: a.Code, Name: a.Name, AssociationID: a.AssociationID, Role: a.Role}
}

// AccountPatch holds the optional fields of a member update.
type AccountPatch struct {
	Enabled *bool   `json:"enabled,omitempty"`
	Name    *string `json:"name,omitempty"`
	Role    *Role   `json:"role,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p AccountPatch) Empty() bool {
	return p.Enabled == nil && p.Name == nil && p.Role == nil
}

// PINLength is the number of digits in a generated PIN.
const PINLength = 4

// GeneratePIN returns a uniformly random zero-padded 4-digit PIN.
func GeneratePIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	return fmt.Sprintf("%0*d", PINLength, n.Int64()), nil
}
