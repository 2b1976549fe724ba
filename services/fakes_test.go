package services

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"kpitracker/models"
	"kpitracker/timezones"
	"kpitracker/utils"

	"github.com/sirupsen/logrus"
)

type memKPIRepo struct {
	mu      sync.Mutex
	records map[string]*models.KPI
	patches []models.LegacyPatch
}

func newMemKPIRepo() *memKPIRepo {
	return &memKPIRepo{records: map[string]*models.KPI{}}
}

func cloneKPI(k *models.KPI) *models.KPI {
	c := *k
	c.Punches = append([]models.Punch(nil), k.Punches...)
	if k.QualityPoints != nil {
		v := *k.QualityPoints
		c.QualityPoints = &v
	}
	return &c
}

func (r *memKPIRepo) put(k models.KPI) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[k.KpiID] = cloneKPI(&k)
}

func (r *memKPIRepo) Create(_ context.Context, kpi *models.KPI) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[kpi.KpiID] = cloneKPI(kpi)
	return nil
}

func (r *memKPIRepo) GetByKpiID(_ context.Context, kpiID string) (*models.KPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.records[kpiID]
	if !ok {
		return nil, utils.NewNotFoundError("KPI not found")
	}
	return cloneKPI(k), nil
}

func (r *memKPIRepo) Update(_ context.Context, kpiID string, c models.KPIChanges) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.records[kpiID]
	if !ok {
		return utils.NewNotFoundError("KPI not found")
	}
	if c.ProjectName != nil {
		k.ProjectName = *c.ProjectName
	}
	if c.Remark != nil {
		k.Remark = *c.Remark
	}
	if c.StartDate != nil {
		k.StartDate = *c.StartDate
	}
	if c.Deadline != nil {
		k.Deadline = *c.Deadline
	}
	if c.Timezone != nil {
		k.Timezone = *c.Timezone
	}
	k.UpdatedAt = c.UpdatedAt
	return nil
}

func (r *memKPIRepo) ApplyLegacyPatch(_ context.Context, kpiID string, p models.LegacyPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.records[kpiID]
	if !ok {
		return utils.NewNotFoundError("KPI not found")
	}
	r.patches = append(r.patches, p)
	if p.ZoneID != "" && k.ZoneID == "" {
		k.ZoneID = p.ZoneID
	}
	if p.Timezone != "" && k.Timezone == "" {
		k.Timezone = p.Timezone
	}
	if p.EmployeeName != "" && k.EmployeeName == "" {
		k.EmployeeName = p.EmployeeName
	}
	if p.PendingPoints && k.Points == 0 {
		k.Points = models.PointsPending
	}
	return nil
}

func (r *memKPIRepo) PunchIfPending(_ context.Context, kpiID string, punch models.Punch) (*models.KPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.records[kpiID]
	if !ok || k.Points == models.PointsScored || punch.PunchDate.After(k.Deadline) {
		return nil, nil
	}
	k.Points = models.PointsScored
	k.Punches = append(k.Punches, punch)
	k.UpdatedAt = punch.PunchDate
	return cloneKPI(k), nil
}

func (r *memKPIRepo) AppendPunch(_ context.Context, kpiID string, punch models.Punch) (*models.KPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.records[kpiID]
	if !ok {
		return nil, utils.NewNotFoundError("KPI not found")
	}
	k.Punches = append(k.Punches, punch)
	k.UpdatedAt = punch.PunchDate
	return cloneKPI(k), nil
}

func (r *memKPIRepo) SetQualityPoints(_ context.Context, kpiID string, value int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.records[kpiID]
	if !ok {
		return utils.NewNotFoundError("KPI not found")
	}
	k.QualityPoints = &value
	k.UpdatedAt = at
	return nil
}

func (r *memKPIRepo) Delete(_ context.Context, kpiID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[kpiID]; !ok {
		return utils.NewNotFoundError("KPI not found")
	}
	delete(r.records, kpiID)
	return nil
}

func (r *memKPIRepo) match(q models.KPIQuery) []models.KPI {
	var allowed map[string]bool
	if q.EmployeeIDs != nil {
		allowed = map[string]bool{}
		for _, id := range q.EmployeeIDs {
			allowed[id] = true
		}
	}
	search := strings.ToLower(strings.TrimSpace(q.Search))

	var out []models.KPI
	for _, k := range r.records {
		if allowed != nil && !allowed[k.EmployeeID.String()] {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(k.ProjectName), search) &&
			!strings.Contains(strings.ToLower(k.EmployeeName), search) &&
			!strings.Contains(strings.ToLower(k.EmployeeID.String()), search) {
			continue
		}
		if q.StartFrom != nil && k.StartDate.Before(*q.StartFrom) {
			continue
		}
		if q.StartTo != nil && k.StartDate.After(*q.StartTo) {
			continue
		}
		out = append(out, *cloneKPI(k))
	}
	return out
}

func (r *memKPIRepo) Find(_ context.Context, q models.KPIQuery) ([]models.KPI, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.match(q)
	less := func(a, b models.KPI) int {
		switch q.SortField {
		case "project_name":
			return strings.Compare(a.ProjectName, b.ProjectName)
		case "deadline":
			return a.Deadline.Compare(b.Deadline)
		case "startdate":
			return a.StartDate.Compare(b.StartDate)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := less(out[i], out[j])
		if q.SortDesc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return out[i].KpiID < out[j].KpiID
	})

	total := int64(len(out))
	if q.Skip > 0 {
		if q.Skip >= total {
			return []models.KPI{}, total, nil
		}
		out = out[q.Skip:]
	}
	if q.Limit > 0 && int64(len(out)) > q.Limit {
		out = out[:q.Limit]
	}
	return out, total, nil
}

func (r *memKPIRepo) Summarize(_ context.Context, q models.KPIQuery) ([]models.EmployeeSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID := map[string]*models.EmployeeSummary{}
	for _, k := range r.match(q) {
		s, ok := byID[k.EmployeeID.String()]
		if !ok {
			s = &models.EmployeeSummary{EmployeeID: k.EmployeeID, EmployeeName: k.EmployeeName}
			byID[k.EmployeeID.String()] = s
		}
		s.Total++
		if k.Points == models.PointsScored {
			s.Scored++
		} else {
			s.Pending++
		}
		s.Punches += len(k.Punches)
	}
	out := make([]models.EmployeeSummary, 0, len(byID))
	for _, s := range byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

type memDirectory struct {
	employees []models.Employee
	zones     map[string]bool
	batches   int
	mu        sync.Mutex
}

func (d *memDirectory) GetEmployee(_ context.Context, id string) (*models.Employee, error) {
	for i := range d.employees {
		if d.employees[i].EmployeeID.String() == id {
			emp := d.employees[i]
			return &emp, nil
		}
	}
	return nil, utils.NewNotFoundError("Employee not found")
}

func (d *memDirectory) GetEmployees(_ context.Context, ids []string) ([]models.Employee, error) {
	d.mu.Lock()
	d.batches++
	d.mu.Unlock()

	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Employee
	for _, e := range d.employees {
		if want[e.EmployeeID.String()] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *memDirectory) ListEmployees(_ context.Context, zoneIDs []string) ([]models.Employee, error) {
	if zoneIDs == nil {
		return append([]models.Employee(nil), d.employees...), nil
	}
	want := map[string]bool{}
	for _, z := range zoneIDs {
		want[z] = true
	}
	var out []models.Employee
	for _, e := range d.employees {
		if want[e.ZoneID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *memDirectory) ZoneActive(_ context.Context, zoneID string) (bool, error) {
	return d.zones[zoneID], nil
}

func newDirectory() *memDirectory {
	return &memDirectory{
		employees: []models.Employee{
			{EmployeeID: "IN1", Name: "Asha Rao", ZoneID: "Z1", Office: "Nagpur"},
			{EmployeeID: "IN2", Name: "Vikram Das", ZoneID: "Z1", Office: "Kolkata"},
			{EmployeeID: "US1", Name: "Jordan Lee", ZoneID: "Z1", Office: "Las Vegas"},
			{EmployeeID: "Z2E", Name: "Meera Iyer", ZoneID: "Z2", Office: "Nagpur"},
			{EmployeeID: "MGR1", Name: "Priya Nair", ZoneID: "Z1", Office: "Nagpur"},
		},
		zones: map[string]bool{"Z1": true, "Z2": true, "Z3": false},
	}
}

// fixedClock lets tests move time across deadlines.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc   KPIService
	repo  *memKPIRepo
	dir   *memDirectory
	clock *fixedClock
}

func newFixture() *fixture {
	return newFixtureWithExportCap(1000)
}

func newFixtureWithExportCap(maxRows int) *fixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo := newMemKPIRepo()
	dir := newDirectory()
	clock := &fixedClock{now: time.Date(2025, 12, 1, 6, 0, 0, 0, time.UTC)}

	svc := NewKPIService(repo, dir, dir, timezones.DefaultResolver(), Options{
		Now:           clock.Now,
		ExportMaxRows: maxRows,
		Logger:        logger,
	})
	return &fixture{svc: svc, repo: repo, dir: dir, clock: clock}
}
