package access

import (
	"context"

	"kpitracker/models"
	"kpitracker/timezones"
	"kpitracker/utils"
)

// EmployeeLookup returns a NotFound AppError for unknown employees.
type EmployeeLookup interface {
	GetEmployee(ctx context.Context, employeeID string) (*models.Employee, error)
}

// Target is the owning employee of the entity being acted on.
type Target struct {
	EmployeeID string
	ZoneID     string
	Timezone   string
}

type Guard struct {
	employees EmployeeLookup
	resolver  *timezones.Resolver
}

func NewGuard(employees EmployeeLookup, resolver *timezones.Resolver) *Guard {
	return &Guard{employees: employees, resolver: resolver}
}

func (g *Guard) TargetOf(e *models.Employee) Target {
	return Target{
		EmployeeID: e.EmployeeID.String(),
		ZoneID:     e.ZoneID,
		Timezone:   g.resolver.ResolveEmployee(e),
	}
}

// TargetForEmployee loads the employee and returns it together with its target.
func (g *Guard) TargetForEmployee(ctx context.Context, employeeID string) (Target, *models.Employee, error) {
	emp, err := g.employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return Target{}, nil, err
	}
	return g.TargetOf(emp), emp, nil
}

// TargetForKPI prefers the employee record and falls back to the fields
// denormalized onto the KPI when the employee is gone or incomplete.
func (g *Guard) TargetForKPI(ctx context.Context, k *models.KPI) (Target, error) {
	target := Target{
		EmployeeID: k.EmployeeID.String(),
		ZoneID:     k.ZoneID,
		Timezone:   g.resolver.ResolveKPI(k),
	}
	emp, err := g.employees.GetEmployee(ctx, k.EmployeeID.String())
	if err != nil {
		if utils.IsKind(err, utils.KindNotFound) {
			return target, nil
		}
		return Target{}, err
	}
	if emp.ZoneID != "" {
		target.ZoneID = emp.ZoneID
	}
	target.Timezone = g.resolver.ResolveEmployee(emp)
	return target, nil
}

// CallerTimezone resolves the caller's own zone from their employee record.
func (g *Guard) CallerTimezone(ctx context.Context, scope Scope) (string, error) {
	if scope.EmployeeID == "" {
		return g.resolver.Default(), nil
	}
	emp, err := g.employees.GetEmployee(ctx, scope.EmployeeID)
	if err != nil {
		if utils.IsKind(err, utils.KindNotFound) {
			return g.resolver.Default(), nil
		}
		return "", err
	}
	return g.resolver.ResolveEmployee(emp), nil
}

// Authorize enforces zone membership, then the per-mode rule. Single-zone
// managers are additionally held to their own timezone.
func (g *Guard) Authorize(ctx context.Context, scope Scope, target Target) error {
	if !scope.AllowsZone(target.ZoneID) {
		return utils.NewForbidden("Forbidden (different zone)")
	}
	switch scope.Mode {
	case ModeAdmin:
		return nil
	case ModeSelf:
		if target.EmployeeID == "" || target.EmployeeID != scope.EmployeeID {
			return utils.NewForbidden("Forbidden (not your record)")
		}
		return nil
	case ModeManage:
		if !scope.SingleZone() {
			return nil
		}
		callerTZ, err := g.CallerTimezone(ctx, scope)
		if err != nil {
			return err
		}
		if target.Timezone != callerTZ {
			return utils.NewForbidden("Forbidden (different timezone)")
		}
		return nil
	default:
		return utils.NewPermissionDenied("KPI permission required")
	}
}
