package services

import (
	"context"

	"kpitracker/models"
	repository "kpitracker/repositories"
	"kpitracker/timezones"

	"github.com/sirupsen/logrus"
)

type employeeLookupFunc func(ctx context.Context, employeeID string) (*models.Employee, error)

// legacyNormalizer fills zoneId, timezone, employeeName and points on records
// written before those fields existed. It patches the in-memory record and
// persists the missing fields; failures never fail the read.
type legacyNormalizer struct {
	repo     repository.KPIRepository
	resolver *timezones.Resolver
	logger   *logrus.Logger
}

func newLegacyNormalizer(repo repository.KPIRepository, resolver *timezones.Resolver, logger *logrus.Logger) *legacyNormalizer {
	return &legacyNormalizer{repo: repo, resolver: resolver, logger: logger}
}

func (n *legacyNormalizer) Normalize(ctx context.Context, kpis []*models.KPI, lookup employeeLookupFunc) {
	for _, k := range kpis {
		if !k.NeedsBackfill() {
			continue
		}

		var patch models.LegacyPatch
		if k.ZoneID == "" || k.Timezone == "" || k.EmployeeName == "" {
			emp, err := lookup(ctx, k.EmployeeID.String())
			if err != nil {
				n.logger.WithFields(logrus.Fields{
					"kpiId":      k.KpiID,
					"employeeId": k.EmployeeID,
				}).WithError(err).Debug("Legacy KPI owner lookup failed")
			} else {
				patch = n.patchFor(k, emp)
			}
		}
		patch.PendingPoints = k.Points == 0
		if patch.IsEmpty() {
			continue
		}
		if patch.ZoneID != "" {
			k.ZoneID = patch.ZoneID
		}
		if patch.Timezone != "" {
			k.Timezone = patch.Timezone
		}
		if patch.EmployeeName != "" {
			k.EmployeeName = patch.EmployeeName
		}
		if patch.PendingPoints {
			k.Points = models.PointsPending
		}

		if err := n.repo.ApplyLegacyPatch(ctx, k.KpiID, patch); err != nil {
			n.logger.WithFields(logrus.Fields{
				"module": "services",
				"kpiId":  k.KpiID,
				"patch":  patch,
			}).WithError(err).Warn("Persisting legacy KPI fields failed")
		}
	}
}

func (n *legacyNormalizer) patchFor(k *models.KPI, emp *models.Employee) models.LegacyPatch {
	var patch models.LegacyPatch
	if k.ZoneID == "" && emp.ZoneID != "" {
		patch.ZoneID = emp.ZoneID
	}
	if k.Timezone == "" {
		patch.Timezone = n.resolver.ResolveEmployee(emp)
	}
	if k.EmployeeName == "" && emp.Name != "" {
		patch.EmployeeName = emp.Name
	}
	return patch
}
