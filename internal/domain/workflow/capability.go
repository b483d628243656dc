package workflow

import "strings"

// Role is a stored role slug on a user.
type Role string

const (
	RoleMaster     Role = "master"
	RoleTechnician Role = "technician"
	RoleQC         Role = "qc"
	RoleManager    Role = "manager"
)

// Capability is a concrete permission derived from roles. Front-ends consume
// capabilities, never raw role slugs.
type Capability string

const (
	CapCreateTickets   Capability = "create_tickets"
	CapReviewTickets   Capability = "review_tickets"
	CapAssignTickets   Capability = "assign_tickets"
	CapWorkTickets     Capability = "work_tickets"
	CapQCTickets       Capability = "qc_tickets"
	CapTrackAttendance Capability = "track_attendance"
	CapManageRules     Capability = "manage_rules"
	CapManagePayroll   Capability = "manage_payroll"
	CapAdjustLedger    Capability = "adjust_ledger"
)

var roleCapabilities = map[Role][]Capability{
	RoleMaster: {
		CapCreateTickets,
		CapReviewTickets,
		CapAssignTickets,
		CapTrackAttendance,
	},
	RoleTechnician: {
		CapWorkTickets,
		CapTrackAttendance,
	},
	RoleQC: {
		CapQCTickets,
		CapTrackAttendance,
	},
	RoleManager: {
		CapAssignTickets,
		CapManageRules,
		CapManagePayroll,
		CapAdjustLedger,
	},
}

// CapabilitySet is resolved once per request/interaction and queried by
// every front-end identically.
type CapabilitySet map[Capability]struct{}

func (s CapabilitySet) Has(cap Capability) bool {
	_, ok := s[cap]
	return ok
}

// ResolveCapabilities computes the capability set for a role list.
// Unknown role slugs contribute nothing.
func ResolveCapabilities(roles []Role) CapabilitySet {
	set := make(CapabilitySet)
	for _, role := range roles {
		normalized := Role(strings.ToLower(strings.TrimSpace(string(role))))
		for _, cap := range roleCapabilities[normalized] {
			set[cap] = struct{}{}
		}
	}
	return set
}

// HasRole reports whether the slug list contains the role.
func HasRole(roles []Role, want Role) bool {
	for _, role := range roles {
		if Role(strings.ToLower(strings.TrimSpace(string(role)))) == want {
			return true
		}
	}
	return false
}
