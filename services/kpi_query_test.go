package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"sort"
	"testing"
	"time"

	"kpitracker/models"
	"kpitracker/utils"

	"github.com/xuri/excelize/v2"
)

// seedQueryFixture creates one record per employee across two zones and two timezones.
func seedQueryFixture(t *testing.T) *fixture {
	t.Helper()
	return seedRecords(t, newFixture())
}

func seedRecords(t *testing.T, f *fixture) *fixture {
	t.Helper()
	admin := adminScope(t)
	ctx := context.Background()

	seed := []models.CreateKPIRequest{
		{EmployeeID: "IN1", ProjectName: "Alpha", Deadline: "2025-12-31", StartDate: "2025-11-01"},
		{EmployeeID: "IN2", ProjectName: "Beta", Deadline: "2025-12-31"},
		{EmployeeID: "US1", ProjectName: "Gamma", Deadline: "2025-12-31"},
		{EmployeeID: "Z2E", ProjectName: "Delta", Deadline: "2025-12-31"},
	}
	for i, req := range seed {
		f.clock.Set(time.Date(2025, 12, 1, 6, i, 0, 0, time.UTC))
		if _, err := f.svc.CreateKPI(ctx, admin, req); err != nil {
			t.Fatalf("seed %s: %v", req.ProjectName, err)
		}
	}
	return f
}

func projectNames(page *models.KPIPage) []string {
	names := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		names = append(names, item.ProjectName)
	}
	return names
}

func sortedNames(page *models.KPIPage) []string {
	names := projectNames(page)
	sort.Strings(names)
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestListKPIsRespectsScope(t *testing.T) {
	f := seedQueryFixture(t)
	ctx := context.Background()

	page, err := f.svc.ListKPIs(ctx, adminScope(t), models.KPIListRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 4 || !equalStrings(sortedNames(page), []string{"Alpha", "Beta", "Delta", "Gamma"}) {
		t.Fatalf("admin should see everything, got %d %v", page.Total, projectNames(page))
	}

	page, err = f.svc.ListKPIs(ctx, managerScope(t, "Z1"), models.KPIListRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalStrings(sortedNames(page), []string{"Alpha", "Beta"}) {
		t.Fatalf("single-zone manager should see same-zone, same-timezone records, got %v", projectNames(page))
	}

	page, err = f.svc.ListKPIs(ctx, managerScope(t, "Z1", "Z2"), models.KPIListRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 4 {
		t.Fatalf("multi-zone manager should see both zones, got %v", projectNames(page))
	}

	page, err = f.svc.ListKPIs(ctx, selfScope(t, "IN1", "Z1"), models.KPIListRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalStrings(projectNames(page), []string{"Alpha"}) {
		t.Fatalf("viewer should see only their own records, got %v", projectNames(page))
	}

	page, err = f.svc.ListKPIs(ctx, managerScope(t), models.KPIListRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 0 || len(page.Items) != 0 {
		t.Fatalf("manager without zones should see nothing, got %v", projectNames(page))
	}
}

func TestListKPIsZoneFilter(t *testing.T) {
	f := seedQueryFixture(t)
	ctx := context.Background()

	page, err := f.svc.ListKPIs(ctx, adminScope(t), models.KPIListRequest{ZoneID: "Z2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalStrings(projectNames(page), []string{"Delta"}) {
		t.Fatalf("expected only zone Z2, got %v", projectNames(page))
	}

	if _, err := f.svc.ListKPIs(ctx, adminScope(t), models.KPIListRequest{ZoneID: "Z3"}); !utils.IsKind(err, utils.KindValidation) {
		t.Fatalf("expected inactive zone to be rejected, got %v", err)
	}
	if _, err := f.svc.ListKPIs(ctx, managerScope(t, "Z1"), models.KPIListRequest{ZoneID: "Z2"}); !utils.IsKind(err, utils.KindForbidden) {
		t.Fatalf("expected zone outside reach to be forbidden, got %v", err)
	}
}

func TestListKPIsEmployeeFilterIntersectsScope(t *testing.T) {
	f := seedQueryFixture(t)
	ctx := context.Background()

	page, err := f.svc.ListKPIs(ctx, managerScope(t, "Z1"), models.KPIListRequest{EmployeeIDs: models.StringList{"US1", "Z2E"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 0 || len(page.Items) != 0 {
		t.Fatalf("requested ids outside scope must not leak, got %v", projectNames(page))
	}

	page, err = f.svc.ListKPIs(ctx, managerScope(t, "Z1"), models.KPIListRequest{EmployeeIDs: models.StringList{"IN2", "US1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalStrings(projectNames(page), []string{"Beta"}) {
		t.Fatalf("expected intersection, got %v", projectNames(page))
	}
}

func TestListKPIsSortingAndPaging(t *testing.T) {
	f := seedQueryFixture(t)
	ctx := context.Background()

	page, err := f.svc.ListKPIs(ctx, adminScope(t), models.KPIListRequest{SortBy: "projectName", SortOrder: "asc", Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 4 || page.Page != 2 || page.PageSize != 2 {
		t.Fatalf("unexpected page metadata: %+v", page)
	}
	if !equalStrings(projectNames(page), []string{"Delta", "Gamma"}) {
		t.Fatalf("unexpected second page %v", projectNames(page))
	}

	page, err = f.svc.ListKPIs(ctx, adminScope(t), models.KPIListRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Page != 1 || page.PageSize != 10 {
		t.Fatalf("unexpected default paging: %+v", page)
	}
	// Default order is newest first.
	if !equalStrings(projectNames(page), []string{"Delta", "Gamma", "Beta", "Alpha"}) {
		t.Fatalf("unexpected default order %v", projectNames(page))
	}

	if _, err := f.svc.ListKPIs(ctx, adminScope(t), models.KPIListRequest{SortBy: "password"}); !utils.IsKind(err, utils.KindValidation) {
		t.Fatalf("expected unknown sort field to be rejected, got %v", err)
	}
	if _, err := f.svc.ListKPIs(ctx, adminScope(t), models.KPIListRequest{PageSize: 1000}); !utils.IsKind(err, utils.KindValidation) {
		t.Fatalf("expected oversized page to be rejected, got %v", err)
	}
}

func TestListKPIsSearchAndDateRange(t *testing.T) {
	f := seedQueryFixture(t)
	ctx := context.Background()

	page, err := f.svc.ListKPIs(ctx, adminScope(t), models.KPIListRequest{Search: "ALP"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalStrings(projectNames(page), []string{"Alpha"}) {
		t.Fatalf("expected case-insensitive search, got %v", projectNames(page))
	}

	page, err = f.svc.ListKPIs(ctx, adminScope(t), models.KPIListRequest{StartDate: "2025-11-01", EndDate: "2025-11-30"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalStrings(projectNames(page), []string{"Alpha"}) {
		t.Fatalf("expected date range to select November start, got %v", projectNames(page))
	}

	if _, err := f.svc.ListKPIs(ctx, adminScope(t), models.KPIListRequest{StartDate: "2025-12-02", EndDate: "2025-12-01"}); !utils.IsKind(err, utils.KindValidation) {
		t.Fatalf("expected inverted range to be rejected, got %v", err)
	}
	if _, err := f.svc.ListKPIs(ctx, adminScope(t), models.KPIListRequest{StartDate: "2025-12-01", Timezone: "Nowhere"}); !utils.IsKind(err, utils.KindValidation) {
		t.Fatalf("expected invalid filter timezone to be rejected, got %v", err)
	}
}

func TestListKPIsPunchModes(t *testing.T) {
	f := seedQueryFixture(t)
	ctx := context.Background()
	admin := adminScope(t)

	page, _ := f.svc.ListKPIs(ctx, admin, models.KPIListRequest{Search: "Alpha"})
	id := page.Items[0].KpiID
	for _, remark := range []string{"first", "second"} {
		if _, err := f.svc.Punch(ctx, admin, id, remark); err != nil {
			t.Fatalf("punch: %v", err)
		}
	}

	page, _ = f.svc.ListKPIs(ctx, admin, models.KPIListRequest{Search: "Alpha"})
	item := page.Items[0]
	if item.LastPunch == nil || item.LastPunch.Remark != "second" || item.Punches != nil || item.PunchCount != 2 {
		t.Fatalf("expected latest punch only: %+v", item)
	}

	page, _ = f.svc.ListKPIs(ctx, admin, models.KPIListRequest{Search: "Alpha", Punches: models.PunchesAll})
	if len(page.Items[0].Punches) != 2 || page.Items[0].Punches[0].PointChange != 1 {
		t.Fatalf("expected full punch history: %+v", page.Items[0])
	}

	page, _ = f.svc.ListKPIs(ctx, admin, models.KPIListRequest{Search: "Alpha", Punches: models.PunchesNone})
	if page.Items[0].LastPunch != nil || page.Items[0].Punches != nil {
		t.Fatalf("expected no punches: %+v", page.Items[0])
	}
}

func TestListKPIsForEmployee(t *testing.T) {
	f := seedQueryFixture(t)
	ctx := context.Background()

	page, err := f.svc.ListKPIsForEmployee(ctx, managerScope(t, "Z1"), "IN1", models.KPIListRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalStrings(projectNames(page), []string{"Alpha"}) {
		t.Fatalf("unexpected records %v", projectNames(page))
	}

	if _, err := f.svc.ListKPIsForEmployee(ctx, selfScope(t, "IN1", "Z1"), "IN2", models.KPIListRequest{}); !utils.IsKind(err, utils.KindForbidden) {
		t.Fatalf("expected viewer to be forbidden for another employee, got %v", err)
	}
	if _, err := f.svc.ListKPIsForEmployee(ctx, managerScope(t, "Z1"), "Z2E", models.KPIListRequest{}); !utils.IsKind(err, utils.KindForbidden) {
		t.Fatalf("expected other zone to be forbidden, got %v", err)
	}
	if _, err := f.svc.ListKPIsForEmployee(ctx, adminScope(t), "ghost", models.KPIListRequest{}); !utils.IsKind(err, utils.KindNotFound) {
		t.Fatalf("expected unknown employee to be not found, got %v", err)
	}
}

func TestExportCSVMatchesList(t *testing.T) {
	f := seedQueryFixture(t)
	ctx := context.Background()
	mgr := managerScope(t, "Z1", "Z2")
	req := models.KPIListRequest{SortBy: "projectName", SortOrder: "asc", All: true}

	page, err := f.svc.ListKPIs(ctx, mgr, models.KPIListRequest{SortBy: "projectName", SortOrder: "asc", PageSize: 500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := f.svc.ExportKPIsCSV(ctx, mgr, req, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	header := records[0]
	if header[0] != "Employee Name" || len(header) != len(exportColumns) {
		t.Fatalf("unexpected header %v", header)
	}
	for _, col := range header {
		if col == "Employee ID" {
			t.Fatal("identifier column must be opt-in")
		}
	}
	if len(records)-1 != len(page.Items) {
		t.Fatalf("export has %d rows, list has %d", len(records)-1, len(page.Items))
	}
	for i, item := range page.Items {
		if records[i+1][1] != item.ProjectName {
			t.Fatalf("row %d: expected %q, got %q", i, item.ProjectName, records[i+1][1])
		}
	}

	buf.Reset()
	req.IncludeEmployeeID = true
	if err := f.svc.ExportKPIsCSV(ctx, mgr, req, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, _ = csv.NewReader(&buf).ReadAll()
	if records[0][0] != "Employee ID" || records[1][0] != page.Items[0].EmployeeID {
		t.Fatalf("expected leading employee id column, got %v / %v", records[0], records[1])
	}
}

func TestListKPIsIgnoresAllFlag(t *testing.T) {
	f := seedQueryFixture(t)
	ctx := context.Background()

	page, err := f.svc.ListKPIs(ctx, adminScope(t), models.KPIListRequest{PageSize: 1, All: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 4 || len(page.Items) != 1 {
		t.Fatalf("expected one item of four, got %d of %d", len(page.Items), page.Total)
	}

	page, err = f.svc.ListKPIsForEmployee(ctx, adminScope(t), "IN1", models.KPIListRequest{PageSize: 1, Page: 2, All: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 0 {
		t.Fatalf("expected an empty second page, got %d of %d", len(page.Items), page.Total)
	}
}

func TestExportRejectsResultsOverCap(t *testing.T) {
	f := seedRecords(t, newFixtureWithExportCap(2))
	ctx := context.Background()

	var buf bytes.Buffer
	err := f.svc.ExportKPIsCSV(ctx, adminScope(t), models.KPIListRequest{All: true}, &buf)
	if utils.KindOf(err) != utils.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written on rejection, got %q", buf.String())
	}

	err = f.svc.ExportKPIsXLSX(ctx, adminScope(t), models.KPIListRequest{All: true}, &buf)
	if utils.KindOf(err) != utils.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	buf.Reset()
	if err := f.svc.ExportKPIsCSV(ctx, managerScope(t, "Z2"), models.KPIListRequest{All: true}, &buf); err != nil {
		t.Fatalf("narrowed export should pass: %v", err)
	}
	records, _ := csv.NewReader(&buf).ReadAll()
	if len(records) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(records))
	}
}

func TestExportCSVEmptyScopeWritesHeaderOnly(t *testing.T) {
	f := seedQueryFixture(t)

	var buf bytes.Buffer
	if err := f.svc.ExportKPIsCSV(context.Background(), managerScope(t), models.KPIListRequest{All: true}, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, _ := csv.NewReader(&buf).ReadAll()
	if len(records) != 1 {
		t.Fatalf("expected header only, got %d rows", len(records))
	}
}

func TestExportXLSX(t *testing.T) {
	f := seedQueryFixture(t)
	ctx := context.Background()

	var buf bytes.Buffer
	req := models.KPIListRequest{SortBy: "projectName", SortOrder: "asc", All: true}
	if err := f.svc.ExportKPIsXLSX(ctx, adminScope(t), req, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	book, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer book.Close()

	rows, err := book.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header and 4 rows, got %d", len(rows))
	}
	if rows[0][1] != "Project Name" || rows[1][1] != "Alpha" || rows[4][1] != "Gamma" {
		t.Fatalf("unexpected workbook contents %v", rows)
	}
}

func TestSummarizeKPIs(t *testing.T) {
	f := seedQueryFixture(t)
	ctx := context.Background()

	summary, err := f.svc.SummarizeKPIs(ctx, adminScope(t), models.KPIListRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary) != 4 {
		t.Fatalf("expected one row per employee, got %+v", summary)
	}

	summary, err = f.svc.SummarizeKPIs(ctx, managerScope(t, "Z1"), models.KPIListRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("expected summary limited to visible employees, got %+v", summary)
	}

	summary, err = f.svc.SummarizeKPIs(ctx, managerScope(t), models.KPIListRequest{})
	if err != nil || summary == nil || len(summary) != 0 {
		t.Fatalf("expected empty summary, got %+v %v", summary, err)
	}
}

func TestListNormalizesLegacyRecordsInOneBatch(t *testing.T) {
	f := newFixture()
	for i, owner := range []string{"IN1", "IN2", "US1"} {
		f.repo.put(models.KPI{
			KpiID:       "legacy-" + owner,
			EmployeeID:  models.StringID(owner),
			ProjectName: "Legacy",
			Points:      models.PointsPending,
			CreatedAt:   time.Date(2025, 1, i+1, 0, 0, 0, 0, time.UTC),
		})
	}

	page, err := f.svc.ListKPIs(context.Background(), adminScope(t), models.KPIListRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, item := range page.Items {
		if item.ZoneID != "Z1" || item.EmployeeName == "" {
			t.Fatalf("expected enriched item: %+v", item)
		}
	}
	if f.dir.batches != 1 {
		t.Fatalf("expected one batched directory lookup, got %d", f.dir.batches)
	}
	if len(f.repo.patches) != 3 {
		t.Fatalf("expected three persisted patches, got %d", len(f.repo.patches))
	}
}

func TestIntersectIDs(t *testing.T) {
	if got := intersectIDs(nil, nil); got != nil {
		t.Fatalf("expected unrestricted, got %v", got)
	}
	if got := intersectIDs(nil, []string{"A", " "}); !equalStrings(got, []string{"A"}) {
		t.Fatalf("expected requested ids, got %v", got)
	}
	got := intersectIDs([]string{"A", "B"}, []string{"B", "C", "B"})
	if !equalStrings(got, []string{"B"}) {
		t.Fatalf("expected intersection without duplicates, got %v", got)
	}
	if got := intersectIDs([]string{}, nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil restriction, got %v", got)
	}
}
