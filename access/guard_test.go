package access

import (
	"context"
	"errors"
	"testing"

	"kpitracker/models"
	"kpitracker/timezones"
	"kpitracker/utils"
)

type stubEmployees map[string]models.Employee

func (s stubEmployees) GetEmployee(_ context.Context, id string) (*models.Employee, error) {
	if id == "broken" {
		return nil, errors.New("directory offline")
	}
	emp, ok := s[id]
	if !ok {
		return nil, utils.NewNotFoundError("Employee not found")
	}
	return &emp, nil
}

func newTestGuard() *Guard {
	return NewGuard(stubEmployees{
		"IN1":  {EmployeeID: "IN1", ZoneID: "Z1", Office: "Nagpur"},
		"IN2":  {EmployeeID: "IN2", ZoneID: "Z1", Office: "Kolkata"},
		"US1":  {EmployeeID: "US1", ZoneID: "Z1", Office: "Las Vegas"},
		"Z2E":  {EmployeeID: "Z2E", ZoneID: "Z2", Office: "Nagpur"},
		"MGR1": {EmployeeID: "MGR1", ZoneID: "Z1", Office: "Nagpur"},
	}, timezones.DefaultResolver())
}

func manager(zones ...string) Scope {
	scope, _ := ResolveScope(&Claims{
		Role:        "subadmin",
		EmployeeID:  "MGR1",
		ZoneIDs:     NewZoneIDs(zones...),
		Permissions: PermissionFlags{PermManageKPI: 1},
	})
	return scope
}

func target(t *testing.T, g *Guard, id string) Target {
	t.Helper()
	tgt, _, err := g.TargetForEmployee(context.Background(), id)
	if err != nil {
		t.Fatalf("target %s: %v", id, err)
	}
	return tgt
}

func TestAuthorizeRejectsOtherZone(t *testing.T) {
	g := newTestGuard()
	err := g.Authorize(context.Background(), manager("Z1"), target(t, g, "Z2E"))
	if !utils.IsKind(err, utils.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestAuthorizeSingleZoneManagerTimezone(t *testing.T) {
	g := newTestGuard()
	ctx := context.Background()

	if err := g.Authorize(ctx, manager("Z1"), target(t, g, "IN2")); err != nil {
		t.Fatalf("expected same timezone to pass, got %v", err)
	}
	err := g.Authorize(ctx, manager("Z1"), target(t, g, "US1"))
	if !utils.IsKind(err, utils.KindForbidden) {
		t.Fatalf("expected different timezone to be forbidden, got %v", err)
	}

	// Multi-zone managers are not held to their own timezone.
	if err := g.Authorize(ctx, manager("Z1", "Z2"), target(t, g, "US1")); err != nil {
		t.Fatalf("expected multi-zone manager to pass, got %v", err)
	}
}

func TestAuthorizeSelf(t *testing.T) {
	g := newTestGuard()
	ctx := context.Background()
	self, _ := ResolveScope(&Claims{EmployeeID: "IN1", ZoneIDs: NewZoneIDs("Z1"), Permissions: PermissionFlags{PermViewKPI: 1}})

	if err := g.Authorize(ctx, self, target(t, g, "IN1")); err != nil {
		t.Fatalf("expected own record to pass, got %v", err)
	}
	if err := g.Authorize(ctx, self, target(t, g, "IN2")); !utils.IsKind(err, utils.KindForbidden) {
		t.Fatalf("expected other record to be forbidden, got %v", err)
	}
}

func TestAuthorizeAdmin(t *testing.T) {
	g := newTestGuard()
	admin, _ := ResolveScope(&Claims{Role: "admin"})
	if err := g.Authorize(context.Background(), admin, target(t, g, "Z2E")); err != nil {
		t.Fatalf("expected all-zones admin to pass, got %v", err)
	}
}

func TestTargetForKPIFallsBackToRecord(t *testing.T) {
	g := newTestGuard()
	ctx := context.Background()

	tgt, err := g.TargetForKPI(ctx, &models.KPI{EmployeeID: "gone", ZoneID: "Z9", Timezone: "America/Los_Angeles"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tgt.ZoneID != "Z9" || tgt.Timezone != "America/Los_Angeles" {
		t.Fatalf("expected record fields, got %+v", tgt)
	}

	tgt, err = g.TargetForKPI(ctx, &models.KPI{EmployeeID: "US1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tgt.ZoneID != "Z1" || tgt.Timezone != "America/Los_Angeles" {
		t.Fatalf("expected employee fields, got %+v", tgt)
	}

	if _, err := g.TargetForKPI(ctx, &models.KPI{EmployeeID: "broken"}); err == nil {
		t.Fatal("expected directory failure to surface")
	}
}

func TestCallerTimezoneDefaultsWhenUnknown(t *testing.T) {
	g := newTestGuard()
	tz, err := g.CallerTimezone(context.Background(), Scope{EmployeeID: "nobody"})
	if err != nil || tz != timezones.DefaultZone {
		t.Fatalf("expected default zone, got %q %v", tz, err)
	}
}
