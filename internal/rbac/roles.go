// Package rbac maps roles to per-resource capabilities and enforces them on HTTP routes.
package rbac

import "fmt"

// Role is the single role a user holds.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleOps          Role = "ops"
	RoleSales        Role = "sales"
	RoleFinance      Role = "finance"
	RoleDesigner     Role = "designer"
	RoleManufacturer Role = "manufacturer"
)

// AllRoles lists every role in display order.
var AllRoles = []Role{RoleAdmin, RoleOps, RoleSales, RoleFinance, RoleDesigner, RoleManufacturer}

// ParseRole validates a stored or submitted role name.
func ParseRole(s string) (Role, error) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("rbac: unknown role %q", s)
}

// Resource is a protected area of the application.
type Resource string

const (
	Orders        Resource = "orders"
	Quotes        Resource = "quotes"
	Invoices      Resource = "invoices"
	Commissions   Resource = "commissions"
	Tasks         Resource = "tasks"
	Manufacturing Resource = "manufacturing"
	Notifications Resource = "notifications"
	Users         Resource = "users"
	Activity      Resource = "activity"
	Dashboard     Resource = "dashboard"
)

// AllResources lists every protected resource.
var AllResources = []Resource{Orders, Quotes, Invoices, Commissions, Tasks, Manufacturing, Notifications, Users, Activity, Dashboard}

// Action is an operation checked against a Capability.
type Action string

const (
	ActionView    Action = "view"
	ActionWrite   Action = "write"
	ActionDelete  Action = "delete"
	ActionViewAll Action = "view_all"
)

// Capability is what a role may do with one resource. ViewAll lifts the "own records only" scoping.
type Capability struct {
	View    bool `json:"view"`
	Write   bool `json:"write"`
	Delete  bool `json:"delete"`
	ViewAll bool `json:"view_all"`
}

// Allows reports whether the capability covers action.
func (c Capability) Allows(action Action) bool {
	switch action {
	case ActionView:
		return c.View
	case ActionWrite:
		return c.Write
	case ActionDelete:
		return c.Delete
	case ActionViewAll:
		return c.ViewAll
	default:
		return false
	}
}

// Capabilities maps every resource to a capability.
type Capabilities map[Resource]Capability

var (
	full     = Capability{View: true, Write: true, Delete: true, ViewAll: true}
	own      = Capability{View: true, Write: true}
	ownDel   = Capability{View: true, Write: true, Delete: true}
	readAll  = Capability{View: true, ViewAll: true}
	readOwn  = Capability{View: true}
	writeAll = Capability{View: true, Write: true, ViewAll: true}
	none     = Capability{}
)

// CapabilitiesFor returns the capability table for role. Unknown roles get nothing.
func CapabilitiesFor(role Role) Capabilities {
	switch role {
	case RoleAdmin:
		return fill(full)
	case RoleOps:
		return Capabilities{
			Orders: full, Quotes: full, Invoices: readAll, Commissions: readAll,
			Tasks: full, Manufacturing: full, Notifications: own, Users: readAll,
			Activity: readAll, Dashboard: readOwn,
		}
	case RoleSales:
		return Capabilities{
			Orders: own, Quotes: ownDel, Invoices: readOwn, Commissions: readOwn,
			Tasks: own, Manufacturing: readOwn, Notifications: own, Users: readOwn,
			Activity: readOwn, Dashboard: readOwn,
		}
	case RoleFinance:
		return Capabilities{
			Orders: readAll, Quotes: readAll, Invoices: full, Commissions: writeAll,
			Tasks: own, Manufacturing: none, Notifications: own, Users: readAll,
			Activity: readAll, Dashboard: readOwn,
		}
	case RoleDesigner:
		return Capabilities{
			Orders: readAll, Quotes: none, Invoices: none, Commissions: none,
			Tasks: own, Manufacturing: readAll, Notifications: own, Users: readOwn,
			Activity: none, Dashboard: readOwn,
		}
	case RoleManufacturer:
		return Capabilities{
			Orders: readAll, Quotes: none, Invoices: none, Commissions: none,
			Tasks: own, Manufacturing: writeAll, Notifications: own, Users: readOwn,
			Activity: none, Dashboard: readOwn,
		}
	default:
		return fill(none)
	}
}

func fill(c Capability) Capabilities {
	out := make(Capabilities, len(AllResources))
	for _, r := range AllResources {
		out[r] = c
	}
	return out
}

// Can reports whether role may perform action on resource.
func Can(role Role, resource Resource, action Action) bool {
	return CapabilitiesFor(role)[resource].Allows(action)
}
