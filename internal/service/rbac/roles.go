package rbac

import (
	"github.com/jwalitptl/clinic-api/internal/model"
)

// RolePriority ranks the system roles; the highest-ranked role an actor holds
// is its primary role.
var RolePriority = []struct {
	Role model.RoleName
	Rank int
}{
	{model.RoleSuperAdmin, 4},
	{model.RoleDoctor, 3},
	{model.RoleNurse, 2},
	{model.RolePatient, 1},
}

// DefaultGrants are the permissions linked to each system role at seed time.
var DefaultGrants = map[model.RoleName][]string{
	model.RoleSuperAdmin: allPermissions(),
	model.RoleDoctor: {
		model.PermPatientsView,
		model.PermPatientsEdit,
		model.PermPrescriptionsWrite,
		model.PermVitalsCreate,
	},
	model.RoleNurse: {
		model.PermPatientsView,
		model.PermVitalsCreate,
	},
	model.RolePatient: {},
}

func allPermissions() []string {
	names := make([]string, len(model.PermissionCatalog))
	for i, p := range model.PermissionCatalog {
		names[i] = p.Name
	}
	return names
}

// HasRole reports whether the actor holds roleName.
func HasRole(actor model.Actor, roleName model.RoleName) bool {
	for _, r := range actor.Roles {
		if r == roleName {
			return true
		}
	}
	return false
}

// PrimaryRole returns the highest-priority system role in roles, or Patient
// when none is held.
func PrimaryRole(roles []string) model.RoleName {
	best, bestRank := model.RolePatient, 0
	for _, held := range roles {
		for _, p := range RolePriority {
			if p.Role == held && p.Rank > bestRank {
				best, bestRank = p.Role, p.Rank
			}
		}
	}
	return best
}
