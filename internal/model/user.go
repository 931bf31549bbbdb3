package model

import (
	"slices"
	"time"
)

// User is a registered person known to the desk (staff or regular client).
// Users carry no credentials of their own; logins go through role passwords.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	Email     string    `json:"email,omitempty" db:"email"`
	Role      string    `json:"role" db:"role"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedBy string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Roles.
const (
	RoleClient      = "client"
	RoleCashier     = "cashier"
	RoleHeadCashier = "head_cashier"
	RoleAdmin       = "admin"
	RoleCreator     = "creator"
	RoleNikitovsky  = "nikitovsky"
)

// Roles lists every role. The client role logs in without a password.
var Roles = []string{RoleClient, RoleCashier, RoleHeadCashier, RoleAdmin, RoleCreator, RoleNikitovsky}

// StaffRoles lists the roles bound to a shared password.
var StaffRoles = []string{RoleCashier, RoleHeadCashier, RoleAdmin, RoleCreator, RoleNikitovsky}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	return slices.Contains(Roles, role)
}

// RequiresPassword reports whether logging in as role needs the role password.
func RequiresPassword(role string) bool {
	return role != RoleClient
}

// Capability is a permission to use one part of the desk.
type Capability string

// Capabilities.
const (
	CapAccept      Capability = "accept"
	CapReturn      Capability = "return"
	CapNotify      Capability = "notify"
	CapViewArchive Capability = "view-archive"
	CapManageUsers Capability = "manage-users"
)

// Capabilities lists every capability.
var Capabilities = []Capability{CapAccept, CapReturn, CapNotify, CapViewArchive, CapManageUsers}

// ValidCapability reports whether c is known.
func ValidCapability(c Capability) bool {
	return slices.Contains(Capabilities, c)
}

// Permissions maps roles to the capabilities they hold.
type Permissions map[string][]Capability

// DefaultPermissions returns the built-in role to capability map.
func DefaultPermissions() Permissions {
	all := slices.Clone(Capabilities)
	return Permissions{
		RoleClient:      {},
		RoleCashier:     {CapAccept, CapReturn},
		RoleHeadCashier: {CapAccept, CapReturn, CapNotify},
		RoleAdmin:       slices.Clone(all),
		RoleCreator:     slices.Clone(all),
		RoleNikitovsky:  all,
	}
}

// Allows reports whether role holds any of the given capabilities.
// Unknown roles hold nothing.
func (p Permissions) Allows(role string, caps ...Capability) bool {
	held := p[role]
	for _, c := range caps {
		if slices.Contains(held, c) {
			return true
		}
	}
	return false
}

// Of returns the capabilities held by role.
func (p Permissions) Of(role string) []Capability {
	held := p[role]
	if held == nil {
		return []Capability{}
	}
	return slices.Clone(held)
}
