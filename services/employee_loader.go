package services

import (
	"context"
	"time"

	"kpitracker/models"
	repository "kpitracker/repositories"
	"kpitracker/utils"

	"github.com/graph-gophers/dataloader/v7"
)

// employeeLoader batches employee lookups made while rendering one page.
// It lives for a single request.
type employeeLoader struct {
	loader *dataloader.Loader[string, *models.Employee]
}

func newEmployeeLoader(employees repository.EmployeeRepository) *employeeLoader {
	batch := func(ctx context.Context, ids []string) []*dataloader.Result[*models.Employee] {
		results := make([]*dataloader.Result[*models.Employee], len(ids))

		found, err := employees.GetEmployees(ctx, ids)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result[*models.Employee]{Error: err}
			}
			return results
		}

		byID := make(map[string]*models.Employee, len(found))
		for i := range found {
			byID[found[i].EmployeeID.String()] = &found[i]
		}
		for i, id := range ids {
			if emp, ok := byID[id]; ok {
				results[i] = &dataloader.Result[*models.Employee]{Data: emp}
			} else {
				results[i] = &dataloader.Result[*models.Employee]{Error: utils.NewNotFoundError("Employee not found")}
			}
		}
		return results
	}

	return &employeeLoader{
		loader: dataloader.NewBatchedLoader(batch, dataloader.WithWait[string, *models.Employee](time.Millisecond)),
	}
}

// Prime fetches every id in one batch so later Loads are served from cache.
func (l *employeeLoader) Prime(ctx context.Context, ids []string) {
	seen := make(map[string]struct{}, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, id)
	}
	if len(keys) == 0 {
		return
	}
	l.loader.LoadMany(ctx, keys)()
}

func (l *employeeLoader) Load(ctx context.Context, id string) (*models.Employee, error) {
	return l.loader.Load(ctx, id)()
}
