package services

import (
	"context"
	"io"
	"strings"
	"time"

	"kpitracker/access"
	"kpitracker/config"
	"kpitracker/models"
	repository "kpitracker/repositories"
	"kpitracker/timezones"
	"kpitracker/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type KPIService interface {
	CreateKPI(ctx context.Context, scope access.Scope, req models.CreateKPIRequest) (string, error)
	GetKPI(ctx context.Context, scope access.Scope, kpiID string) (*models.KPIView, error)
	UpdateKPI(ctx context.Context, scope access.Scope, kpiID string, req models.UpdateKPIRequest) (*models.KPIView, error)
	Punch(ctx context.Context, scope access.Scope, kpiID string, remark string) (*models.PunchResult, error)
	SetQualityPoint(ctx context.Context, scope access.Scope, kpiID string, raw interface{}) (int, error)
	DeleteKPI(ctx context.Context, scope access.Scope, kpiID string) error
	// Query and export
	ListKPIs(ctx context.Context, scope access.Scope, req models.KPIListRequest) (*models.KPIPage, error)
	ListKPIsForEmployee(ctx context.Context, scope access.Scope, employeeID string, req models.KPIListRequest) (*models.KPIPage, error)
	ExportKPIsCSV(ctx context.Context, scope access.Scope, req models.KPIListRequest, w io.Writer) error
	ExportKPIsXLSX(ctx context.Context, scope access.Scope, req models.KPIListRequest, w io.Writer) error
	SummarizeKPIs(ctx context.Context, scope access.Scope, req models.KPIListRequest) ([]models.EmployeeSummary, error)
}

type Options struct {
	Now           func() time.Time
	ExportMaxRows int
	Logger        *logrus.Logger
}

type kpiService struct {
	repo          repository.KPIRepository
	employees     repository.EmployeeRepository
	zones         repository.ZoneRepository
	guard         *access.Guard
	resolver      *timezones.Resolver
	normalizer    *legacyNormalizer
	logger        *logrus.Logger
	now           func() time.Time
	exportMaxRows int
}

func NewKPIService(repo repository.KPIRepository, employees repository.EmployeeRepository, zones repository.ZoneRepository, resolver *timezones.Resolver, opts Options) KPIService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ExportMaxRows <= 0 {
		opts.ExportMaxRows = 50000
	}
	if opts.Logger == nil {
		opts.Logger = config.GetLogger()
	}
	return &kpiService{
		repo:          repo,
		employees:     employees,
		zones:         zones,
		guard:         access.NewGuard(employees, resolver),
		resolver:      resolver,
		normalizer:    newLegacyNormalizer(repo, resolver, opts.Logger),
		logger:        opts.Logger,
		now:           opts.Now,
		exportMaxRows: opts.ExportMaxRows,
	}
}

func (s *kpiService) CreateKPI(ctx context.Context, scope access.Scope, req models.CreateKPIRequest) (string, error) {
	projectName := strings.TrimSpace(req.ProjectName)
	if projectName == "" {
		return "", utils.NewValidationError("projectName", "projectName is required")
	}
	if strings.TrimSpace(req.Deadline) == "" {
		return "", utils.NewValidationError("deadline", "deadline is required")
	}

	employeeID := strings.TrimSpace(req.EmployeeID.String())
	if employeeID == "" {
		employeeID = scope.EmployeeID
	}
	if employeeID == "" {
		return "", utils.NewValidationError("employeeId", "employeeId is required")
	}

	target, emp, err := s.guard.TargetForEmployee(ctx, employeeID)
	if err != nil {
		return "", err
	}
	if err := s.guard.Authorize(ctx, scope, target); err != nil {
		return "", err
	}

	now := s.now().UTC()
	loc := s.resolver.Location(target.Timezone)

	deadline, err := timezones.ParseLocalEndOfDay(req.Deadline, "deadline", loc)
	if err != nil {
		return "", err
	}
	startDate := timezones.StartOfDay(now, loc)
	if strings.TrimSpace(req.StartDate) != "" {
		if startDate, err = timezones.ParseLocalDate(req.StartDate, "startDate", loc); err != nil {
			return "", err
		}
	}
	if deadline.Before(startDate) {
		return "", utils.NewValidationError("deadline", "deadline must not be before startDate")
	}

	kpi := &models.KPI{
		KpiID:         uuid.NewString(),
		ZoneID:        emp.ZoneID,
		EmployeeID:    emp.EmployeeID,
		EmployeeName:  emp.Name,
		ProjectName:   projectName,
		Remark:        strings.TrimSpace(req.Remark),
		StartDate:     startDate,
		Deadline:      deadline,
		Timezone:      target.Timezone,
		Points:        models.PointsPending,
		QualityPoints: nil,
		Punches:       []models.Punch{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, kpi); err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"kpiId":      kpi.KpiID,
		"employeeId": employeeID,
		"mode":       scope.Mode,
	}).Info("KPI created")
	return kpi.KpiID, nil
}

// GetKPI answers NotFound for records outside the caller's scope so that
// other tenants' records cannot be probed by id.
func (s *kpiService) GetKPI(ctx context.Context, scope access.Scope, kpiID string) (*models.KPIView, error) {
	kpi, err := s.loadAuthorized(ctx, scope, kpiID)
	if err != nil {
		if utils.IsKind(err, utils.KindForbidden) || utils.IsKind(err, utils.KindPermissionDenied) {
			return nil, utils.NewNotFoundError("KPI not found")
		}
		return nil, err
	}
	s.normalizer.Normalize(ctx, []*models.KPI{kpi}, s.employees.GetEmployee)
	view := s.render(kpi, models.PunchesAll)
	return &view, nil
}

func (s *kpiService) UpdateKPI(ctx context.Context, scope access.Scope, kpiID string, req models.UpdateKPIRequest) (*models.KPIView, error) {
	if req.ProjectName == nil && req.Remark == nil && req.StartDate == nil && req.Deadline == nil && req.Timezone == nil {
		return nil, utils.NewValidationError("", "No fields to update")
	}

	kpi, err := s.loadAuthorized(ctx, scope, kpiID)
	if err != nil {
		return nil, err
	}

	changes := models.KPIChanges{UpdatedAt: s.now().UTC()}
	loc := s.resolver.Location(s.resolver.ResolveKPI(kpi))

	if req.Timezone != nil {
		zone, ok := s.resolver.Canonical(*req.Timezone)
		if !ok {
			return nil, utils.NewValidationError("timezone", "Invalid timezone")
		}
		newLoc := s.resolver.Location(zone)
		start := timezones.Rezone(kpi.StartDate, loc, newLoc)
		deadline := timezones.Rezone(kpi.Deadline, loc, newLoc)
		changes.Timezone = &zone
		changes.StartDate = &start
		changes.Deadline = &deadline
		loc = newLoc
	}
	if req.ProjectName != nil {
		name := strings.TrimSpace(*req.ProjectName)
		if name == "" {
			return nil, utils.NewValidationError("projectName", "projectName must not be empty")
		}
		changes.ProjectName = &name
	}
	if req.Remark != nil {
		remark := strings.TrimSpace(*req.Remark)
		changes.Remark = &remark
	}
	if req.StartDate != nil {
		start, err := timezones.ParseLocalDate(*req.StartDate, "startDate", loc)
		if err != nil {
			return nil, err
		}
		changes.StartDate = &start
	}
	if req.Deadline != nil {
		deadline, err := timezones.ParseLocalEndOfDay(*req.Deadline, "deadline", loc)
		if err != nil {
			return nil, err
		}
		changes.Deadline = &deadline
	}

	start, deadline := kpi.StartDate, kpi.Deadline
	if changes.StartDate != nil {
		start = *changes.StartDate
	}
	if changes.Deadline != nil {
		deadline = *changes.Deadline
	}
	if deadline.Before(start) {
		return nil, utils.NewValidationError("deadline", "deadline must not be before startDate")
	}

	if err := s.repo.Update(ctx, kpiID, changes); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetByKpiID(ctx, kpiID)
	if err != nil {
		return nil, err
	}
	view := s.render(updated, models.PunchesNone)
	return &view, nil
}

// Punch always appends a punch. Only the first on-time punch scores, and the
// scoring happens inside one conditional update so that concurrent punches
// cannot both grant the point.
func (s *kpiService) Punch(ctx context.Context, scope access.Scope, kpiID string, remark string) (*models.PunchResult, error) {
	kpi, err := s.loadAuthorized(ctx, scope, kpiID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	onTime := !now.After(kpi.Deadline)

	punch := models.Punch{
		PunchDate: now,
		Remark:    strings.TrimSpace(remark),
		Status:    models.PunchLate,
	}
	if onTime {
		punch.Status = models.PunchOnTime
	}

	var updated *models.KPI
	if onTime && kpi.IsPending() {
		scoring := punch
		scoring.PointChange = 1
		if updated, err = s.repo.PunchIfPending(ctx, kpiID, scoring); err != nil {
			return nil, err
		}
		if updated != nil {
			punch = scoring
		}
	}
	if updated == nil {
		if updated, err = s.repo.AppendPunch(ctx, kpiID, punch); err != nil {
			return nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"kpiId":       kpiID,
		"status":      punch.Status,
		"pointChange": punch.PointChange,
	}).Info("KPI punch recorded")

	loc := s.resolver.Location(s.resolver.ResolveKPI(updated))
	return &models.PunchResult{
		KpiID:       kpiID,
		PunchDate:   timezones.FormatTimestamp(punch.PunchDate, loc),
		Remark:      punch.Remark,
		Status:      punch.Status,
		PointChange: punch.PointChange,
		Points:      updated.Points,
	}, nil
}

func (s *kpiService) SetQualityPoint(ctx context.Context, scope access.Scope, kpiID string, raw interface{}) (int, error) {
	if err := scope.RequireManage(); err != nil {
		return 0, err
	}
	value, err := ParseQualityPoint(raw)
	if err != nil {
		return 0, err
	}
	if _, err := s.loadAuthorized(ctx, scope, kpiID); err != nil {
		return 0, err
	}
	if err := s.repo.SetQualityPoints(ctx, kpiID, value, s.now().UTC()); err != nil {
		return 0, err
	}
	return value, nil
}

func (s *kpiService) DeleteKPI(ctx context.Context, scope access.Scope, kpiID string) error {
	if err := scope.RequireManage(); err != nil {
		return err
	}
	if _, err := s.loadAuthorized(ctx, scope, kpiID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, kpiID); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"kpiId": kpiID, "mode": scope.Mode}).Info("KPI deleted")
	return nil
}

func (s *kpiService) loadAuthorized(ctx context.Context, scope access.Scope, kpiID string) (*models.KPI, error) {
	kpiID = strings.TrimSpace(kpiID)
	if kpiID == "" {
		return nil, utils.NewValidationError("kpiId", "kpiId is required")
	}
	kpi, err := s.repo.GetByKpiID(ctx, kpiID)
	if err != nil {
		return nil, err
	}
	target, err := s.guard.TargetForKPI(ctx, kpi)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, scope, target); err != nil {
		return nil, err
	}
	return kpi, nil
}

// render converts a record into its output form in the record's own timezone.
func (s *kpiService) render(k *models.KPI, punches string) models.KPIView {
	loc := s.resolver.Location(s.resolver.ResolveKPI(k))
	zone := loc.String()

	view := models.KPIView{
		KpiID:         k.KpiID,
		ZoneID:        k.ZoneID,
		EmployeeID:    k.EmployeeID.String(),
		EmployeeName:  k.EmployeeName,
		ProjectName:   k.ProjectName,
		Remark:        k.Remark,
		StartDate:     timezones.FormatDate(k.StartDate, loc),
		Deadline:      timezones.FormatDate(k.Deadline, loc),
		DeadlineAt:    timezones.FormatISO(k.Deadline, loc),
		Timezone:      zone,
		Points:        k.Points,
		QualityPoints: k.QualityPoints,
		PunchCount:    len(k.Punches),
		CreatedAt:     timezones.FormatISO(k.CreatedAt, loc),
		UpdatedAt:     timezones.FormatISO(k.UpdatedAt, loc),
	}

	renderPunch := func(p models.Punch) models.PunchView {
		return models.PunchView{
			PunchDate:   timezones.FormatTimestamp(p.PunchDate, loc),
			Remark:      p.Remark,
			PointChange: p.PointChange,
			Status:      p.Status,
		}
	}
	switch punches {
	case models.PunchesAll:
		view.Punches = make([]models.PunchView, 0, len(k.Punches))
		for _, p := range k.Punches {
			view.Punches = append(view.Punches, renderPunch(p))
		}
	case models.PunchesLatest:
		if n := len(k.Punches); n > 0 {
			last := renderPunch(k.Punches[n-1])
			view.LastPunch = &last
		}
	}
	return view
}
