package access

import (
	"fmt"
	"sort"
	"strings"

	"kpitracker/utils"
)

type Mode string

const (
	ModeAdmin  Mode = "admin"
	ModeManage Mode = "manage"
	ModeSelf   Mode = "self"
)

const RoleAdmin = "admin"

// Capability flags understood in the permissions claim.
const (
	PermViewKPI   = "View KPI"
	PermManageKPI = "Manage KPI"
)

// KnownPermissions is the closed set of permission keys a subadmin token may carry.
var KnownPermissions = map[string]struct{}{
	"View payslip details":     {},
	"Generate payslip":         {},
	"View Invoice details":     {},
	"Generate invoice details": {},
	"Add Employee Details":     {},
	"View Employee Details":    {},
	PermViewKPI:                {},
	PermManageKPI:              {},
}

// Scope is the resolved authorization context of one caller.
type Scope struct {
	Mode          Mode
	Role          string
	EmployeeID    string
	ZoneIDs       []string
	Wildcard      bool
	AllZonesAdmin bool
	Permissions   map[string]int
}

// ResolveScope derives the caller's mode and zone reach. There is no implicit
// default: a caller without a recognized capability is denied.
func ResolveScope(claims *Claims) (Scope, error) {
	if claims == nil {
		return Scope{}, utils.NewPermissionDenied("Missing claims")
	}
	for key := range claims.Permissions {
		if _, ok := KnownPermissions[key]; !ok {
			return Scope{}, utils.NewPermissionDenied(fmt.Sprintf("Unknown permission %q", key))
		}
	}

	scope := Scope{
		Role:        strings.ToLower(strings.TrimSpace(claims.Role)),
		EmployeeID:  strings.TrimSpace(claims.EmployeeID.String()),
		ZoneIDs:     append([]string(nil), claims.ZoneIDs.IDs...),
		Wildcard:    claims.ZoneIDs.Wildcard,
		Permissions: make(map[string]int, len(claims.Permissions)),
	}
	for k, v := range claims.Permissions {
		scope.Permissions[k] = v
	}
	sort.Strings(scope.ZoneIDs)

	switch {
	case scope.Role == RoleAdmin:
		scope.Mode = ModeAdmin
		scope.AllZonesAdmin = scope.Wildcard || len(scope.ZoneIDs) == 0
	case scope.Permissions[PermManageKPI] > 0:
		scope.Mode = ModeManage
	case scope.Permissions[PermViewKPI] > 0:
		if scope.EmployeeID == "" {
			return Scope{}, utils.NewPermissionDenied("Self access requires an employee identity")
		}
		scope.Mode = ModeSelf
	default:
		return Scope{}, utils.NewPermissionDenied("KPI permission required")
	}
	return scope, nil
}

// AllZones reports unrestricted zone reach.
func (s Scope) AllZones() bool {
	return s.AllZonesAdmin || s.Wildcard
}

func (s Scope) AllowsZone(zoneID string) bool {
	if s.AllZones() {
		return true
	}
	if zoneID == "" {
		return false
	}
	i := sort.SearchStrings(s.ZoneIDs, zoneID)
	return i < len(s.ZoneIDs) && s.ZoneIDs[i] == zoneID
}

// SingleZone is true when the caller's reach is exactly one named zone.
func (s Scope) SingleZone() bool {
	return !s.AllZones() && len(s.ZoneIDs) == 1
}

func (s Scope) CanManage() bool {
	return s.Mode == ModeAdmin || s.Mode == ModeManage
}

func (s Scope) RequireManage() error {
	if !s.CanManage() {
		return utils.NewPermissionDenied("Manage KPI permission required")
	}
	return nil
}
