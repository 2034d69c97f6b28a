package rbac

import "strings"

// Role is a closed set of access tiers. Unknown strings never map to a role.
type Role string

const (
	RoleCustomer   Role = "CUSTOMER"
	RoleStaff      Role = "STAFF"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Capability is a discrete permission checked by handlers.
type Capability string

const (
	CapProductsRead     Capability = "products.read"
	CapProductsManage   Capability = "products.manage"
	CapCategoriesRead   Capability = "categories.read"
	CapCategoriesManage Capability = "categories.manage"
	CapOrdersRead       Capability = "orders.read"
	CapOrdersManage     Capability = "orders.manage"
	CapReportsView      Capability = "reports.view"
	CapUsersManage      Capability = "users.manage"
	CapProfileSelf      Capability = "profile.self"
)

var staffAndAbove = Roles{RoleStaff, RoleAdmin, RoleSuperAdmin}

var capabilityRoles = map[Capability]Roles{
	CapProductsRead:     staffAndAbove,
	CapProductsManage:   {RoleAdmin, RoleSuperAdmin},
	CapCategoriesRead:   staffAndAbove,
	CapCategoriesManage: {RoleSuperAdmin},
	CapOrdersRead:       staffAndAbove,
	CapOrdersManage:     staffAndAbove,
	CapReportsView:      {RoleAdmin, RoleSuperAdmin},
	CapUsersManage:      {RoleSuperAdmin},
	CapProfileSelf:      {RoleCustomer, RoleStaff, RoleAdmin, RoleSuperAdmin},
}

type Roles []Role

func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// Parse converts a raw role string into a Role. ok is false for anything outside the enum.
func Parse(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", false
	}
	return role, true
}

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// RolesForCapability returns the roles able to access the capability.
func RolesForCapability(c Capability) Roles {
	return capabilityRoles[c]
}

// Can reports whether role grants the capability. Undefined capabilities are denied to everyone.
func Can(role Role, c Capability) bool {
	allowed, ok := capabilityRoles[c]
	if !ok {
		return false
	}
	return allowed.Has(role)
}

// CapabilitiesFor lists what the role may do; used by /auth/me.
func CapabilitiesFor(role Role) []Capability {
	out := make([]Capability, 0, len(capabilityRoles))
	for _, c := range allCapabilities {
		if Can(role, c) {
			out = append(out, c)
		}
	}
	return out
}

var allCapabilities = []Capability{
	CapProductsRead,
	CapProductsManage,
	CapCategoriesRead,
	CapCategoriesManage,
	CapOrdersRead,
	CapOrdersManage,
	CapReportsView,
	CapUsersManage,
	CapProfileSelf,
}
