package services

import (
	"context"
	"strings"

	"kpitracker/access"
	"kpitracker/models"
	repository "kpitracker/repositories"
	"kpitracker/timezones"
	"kpitracker/utils"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
)

type queryPlan struct {
	query    models.KPIQuery
	page     int
	pageSize int
	punches  string
	// empty short-circuits to no results without touching the store.
	empty bool
}

// planQuery turns a list request into a store query restricted to the
// caller's visible employees. List, export and summary share it so that the
// same filters always select the same records. The all flag is only honored
// for exports; lists are always paged.
func (s *kpiService) planQuery(ctx context.Context, scope access.Scope, req models.KPIListRequest, export bool) (queryPlan, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return queryPlan{}, err
	}

	plan := queryPlan{page: req.Page, pageSize: req.PageSize, punches: req.Punches}
	if plan.page <= 0 {
		plan.page = defaultPage
	}
	if plan.pageSize <= 0 {
		plan.pageSize = defaultPageSize
	}
	if plan.punches == "" {
		plan.punches = models.PunchesLatest
	}

	allowed, err := s.allowedEmployeeIDs(ctx, scope, strings.TrimSpace(req.ZoneID))
	if err != nil {
		return queryPlan{}, err
	}
	ids := intersectIDs(allowed, req.EmployeeIDs)
	if ids != nil && len(ids) == 0 {
		plan.empty = true
		return plan, nil
	}
	plan.query.EmployeeIDs = ids
	plan.query.Search = strings.TrimSpace(req.Search)

	if err := s.applyDateRange(ctx, scope, req, &plan.query); err != nil {
		return queryPlan{}, err
	}

	sortBy := strings.TrimSpace(req.SortBy)
	if sortBy == "" {
		sortBy = repository.DefaultKPISortField
	}
	field, ok := repository.KPISortFields[sortBy]
	if !ok {
		return queryPlan{}, utils.NewValidationError("sortBy", "Unsupported sortBy field")
	}
	plan.query.SortField = field
	plan.query.SortDesc = req.SortOrder != "asc"

	if !export || !req.All {
		plan.query.Skip = int64((plan.page - 1) * plan.pageSize)
		plan.query.Limit = int64(plan.pageSize)
	} else {
		plan.query.Limit = int64(s.exportMaxRows)
	}
	return plan, nil
}

// applyDateRange interprets startDate/endDate as calendar days in the filter
// timezone, which defaults to the caller's own.
func (s *kpiService) applyDateRange(ctx context.Context, scope access.Scope, req models.KPIListRequest, q *models.KPIQuery) error {
	if strings.TrimSpace(req.StartDate) == "" && strings.TrimSpace(req.EndDate) == "" {
		return nil
	}

	var zone string
	if tz := strings.TrimSpace(req.Timezone); tz != "" {
		canonical, ok := s.resolver.Canonical(tz)
		if !ok {
			return utils.NewValidationError("timezone", "Invalid timezone")
		}
		zone = canonical
	} else {
		callerTZ, err := s.guard.CallerTimezone(ctx, scope)
		if err != nil {
			return err
		}
		zone = callerTZ
	}
	loc := s.resolver.Location(zone)

	if strings.TrimSpace(req.StartDate) != "" {
		from, err := timezones.ParseLocalDate(req.StartDate, "startDate", loc)
		if err != nil {
			return err
		}
		q.StartFrom = &from
	}
	if strings.TrimSpace(req.EndDate) != "" {
		to, err := timezones.ParseLocalEndOfDay(req.EndDate, "endDate", loc)
		if err != nil {
			return err
		}
		q.StartTo = &to
	}
	if q.StartFrom != nil && q.StartTo != nil && q.StartTo.Before(*q.StartFrom) {
		return utils.NewValidationError("endDate", "endDate must not be before startDate")
	}
	return nil
}

// allowedEmployeeIDs returns the employees whose records the caller may see.
// A nil result means no restriction.
func (s *kpiService) allowedEmployeeIDs(ctx context.Context, scope access.Scope, zoneID string) ([]string, error) {
	if zoneID != "" {
		active, err := s.zones.ZoneActive(ctx, zoneID)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, utils.NewValidationError("zoneId", "Zone not found or inactive")
		}
		if !scope.AllowsZone(zoneID) {
			return nil, utils.NewForbidden("Forbidden (different zone)")
		}
	}

	if scope.Mode == access.ModeSelf {
		emp, err := s.employees.GetEmployee(ctx, scope.EmployeeID)
		switch {
		case err == nil:
			if !scope.AllowsZone(emp.ZoneID) || (zoneID != "" && emp.ZoneID != zoneID) {
				return []string{}, nil
			}
		case utils.IsKind(err, utils.KindNotFound):
			if zoneID != "" {
				return []string{}, nil
			}
		default:
			return nil, err
		}
		return []string{scope.EmployeeID}, nil
	}

	var zoneFilter []string
	switch {
	case zoneID != "":
		zoneFilter = []string{zoneID}
	case scope.AllZones():
		return nil, nil
	default:
		if len(scope.ZoneIDs) == 0 {
			return []string{}, nil
		}
		zoneFilter = scope.ZoneIDs
	}

	employees, err := s.employees.ListEmployees(ctx, zoneFilter)
	if err != nil {
		return nil, err
	}

	callerTZ := ""
	if scope.Mode == access.ModeManage && scope.SingleZone() {
		if callerTZ, err = s.guard.CallerTimezone(ctx, scope); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(employees))
	for i := range employees {
		if callerTZ != "" && s.resolver.ResolveEmployee(&employees[i]) != callerTZ {
			continue
		}
		ids = append(ids, employees[i].EmployeeID.String())
	}
	return ids, nil
}

// intersectIDs narrows allowed by requested. A nil allowed means everything.
func intersectIDs(allowed []string, requested []string) []string {
	wanted := make([]string, 0, len(requested))
	for _, id := range requested {
		if id = strings.TrimSpace(id); id != "" {
			wanted = append(wanted, id)
		}
	}
	if len(wanted) == 0 {
		return allowed
	}
	if allowed == nil {
		return wanted
	}

	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(wanted))
	for _, id := range wanted {
		if _, ok := set[id]; ok {
			out = append(out, id)
			delete(set, id)
		}
	}
	return out
}

func (s *kpiService) ListKPIs(ctx context.Context, scope access.Scope, req models.KPIListRequest) (*models.KPIPage, error) {
	plan, err := s.planQuery(ctx, scope, req, false)
	if err != nil {
		return nil, err
	}
	return s.runList(ctx, plan)
}

// ListKPIsForEmployee lists one employee's records after checking that the
// caller may act on that employee.
func (s *kpiService) ListKPIsForEmployee(ctx context.Context, scope access.Scope, employeeID string, req models.KPIListRequest) (*models.KPIPage, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return nil, utils.NewValidationError("employeeId", "employeeId is required")
	}
	target, _, err := s.guard.TargetForEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, scope, target); err != nil {
		return nil, err
	}

	req.ZoneID = ""
	req.EmployeeIDs = models.StringList{employeeID}
	plan, err := s.planQuery(ctx, scope, req, false)
	if err != nil {
		return nil, err
	}
	return s.runList(ctx, plan)
}

func (s *kpiService) runList(ctx context.Context, plan queryPlan) (*models.KPIPage, error) {
	page := &models.KPIPage{Items: []models.KPIView{}, Page: plan.page, PageSize: plan.pageSize}
	if plan.empty {
		return page, nil
	}

	kpis, total, err := s.fetch(ctx, plan)
	if err != nil {
		return nil, err
	}
	page.Total = total
	for _, k := range kpis {
		page.Items = append(page.Items, s.render(k, plan.punches))
	}
	return page, nil
}

// fetch runs the store query and normalizes legacy records in the result.
func (s *kpiService) fetch(ctx context.Context, plan queryPlan) ([]*models.KPI, int64, error) {
	found, total, err := s.repo.Find(ctx, plan.query)
	if err != nil {
		return nil, 0, err
	}

	kpis := make([]*models.KPI, len(found))
	owners := make([]string, 0, len(found))
	backfill := false
	for i := range found {
		kpis[i] = &found[i]
		if found[i].ZoneID == "" || found[i].Timezone == "" || found[i].EmployeeName == "" {
			owners = append(owners, found[i].EmployeeID.String())
		} else if found[i].NeedsBackfill() {
			backfill = true
		}
	}
	if len(owners) > 0 || backfill {
		loader := newEmployeeLoader(s.employees)
		loader.Prime(ctx, owners)
		s.normalizer.Normalize(ctx, kpis, loader.Load)
	}
	return kpis, total, nil
}

func (s *kpiService) SummarizeKPIs(ctx context.Context, scope access.Scope, req models.KPIListRequest) ([]models.EmployeeSummary, error) {
	plan, err := s.planQuery(ctx, scope, req, false)
	if err != nil {
		return nil, err
	}
	if plan.empty {
		return []models.EmployeeSummary{}, nil
	}
	plan.query.Skip, plan.query.Limit = 0, 0
	summary, err := s.repo.Summarize(ctx, plan.query)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		summary = []models.EmployeeSummary{}
	}
	return summary, nil
}
