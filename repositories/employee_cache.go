package repository

import (
	"context"
	"encoding/json"
	"time"

	"kpitracker/config"
	"kpitracker/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const employeeCachePrefix = "kpi:employee:"

// cachedEmployeeRepository keeps employee records in Redis for a short TTL.
// Batch lookups, which only enrich records for display, are served from the
// cache. Single lookups feed authorization and always read the directory,
// refreshing the cached copy. Cache failures fall through to the directory.
type cachedEmployeeRepository struct {
	next EmployeeRepository
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCachedEmployeeRepository wraps next with a Redis cache. A nil client or
// non-positive TTL returns next unchanged.
func NewCachedEmployeeRepository(next EmployeeRepository, rdb *redis.Client, ttl time.Duration) EmployeeRepository {
	if rdb == nil || ttl <= 0 {
		return next
	}
	return &cachedEmployeeRepository{next: next, rdb: rdb, ttl: ttl}
}

func (r *cachedEmployeeRepository) GetEmployee(ctx context.Context, employeeID string) (*models.Employee, error) {
	emp, err := r.next.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	r.store(ctx, employeeCachePrefix+employeeID, emp)
	return emp, nil
}

func (r *cachedEmployeeRepository) GetEmployees(ctx context.Context, employeeIDs []string) ([]models.Employee, error) {
	if len(employeeIDs) == 0 {
		return []models.Employee{}, nil
	}
	keys := make([]string, len(employeeIDs))
	for i, id := range employeeIDs {
		keys[i] = employeeCachePrefix + id
	}

	employees := make([]models.Employee, 0, len(employeeIDs))
	var misses []string
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		config.GetLogger().Warn("employee cache batch read failed: ", err)
		return r.next.GetEmployees(ctx, employeeIDs)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			misses = append(misses, employeeIDs[i])
			continue
		}
		var emp models.Employee
		if err := json.Unmarshal([]byte(s), &emp); err != nil {
			misses = append(misses, employeeIDs[i])
			continue
		}
		employees = append(employees, emp)
	}
	if len(misses) == 0 {
		return employees, nil
	}

	loaded, err := r.next.GetEmployees(ctx, misses)
	if err != nil {
		return nil, err
	}
	for i := range loaded {
		r.store(ctx, employeeCachePrefix+loaded[i].EmployeeID.String(), &loaded[i])
	}
	return append(employees, loaded...), nil
}

// ListEmployees is not cached; it backs the allowed-id computation.
func (r *cachedEmployeeRepository) ListEmployees(ctx context.Context, zoneIDs []string) ([]models.Employee, error) {
	return r.next.ListEmployees(ctx, zoneIDs)
}

func (r *cachedEmployeeRepository) store(ctx context.Context, key string, emp *models.Employee) {
	raw, err := json.Marshal(emp)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		config.GetLogger().WithFields(logrus.Fields{"key": key}).Warn("employee cache write failed: ", err)
	}
}
