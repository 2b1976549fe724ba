package repository

import (
	"context"
	"errors"

	"kpitracker/models"
	"kpitracker/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	EmployeeCollection = "employees"
	ZoneCollection     = "zones"
)

// EmployeeRepository is the read-only view of the employee directory.
type EmployeeRepository interface {
	GetEmployee(ctx context.Context, employeeID string) (*models.Employee, error)
	GetEmployees(ctx context.Context, employeeIDs []string) ([]models.Employee, error)
	// ListEmployees returns every employee in the given zones; nil means all zones.
	ListEmployees(ctx context.Context, zoneIDs []string) ([]models.Employee, error)
}

type ZoneRepository interface {
	ZoneActive(ctx context.Context, zoneID string) (bool, error)
}

var employeeProjection = bson.M{
	"_id":        0,
	"employeeId": 1,
	"name":       1,
	"zoneId":     1,
	"timezone":   1,
	"tz":         1,
	"office":     1,
	"branch":     1,
	"location":   1,
}

type employeeRepository struct {
	collection *mongo.Collection
}

func NewEmployeeRepository(db *mongo.Database) EmployeeRepository {
	return &employeeRepository{
		collection: db.Collection(EmployeeCollection),
	}
}

func (r *employeeRepository) GetEmployee(ctx context.Context, employeeID string) (*models.Employee, error) {
	filter := bson.M{"employeeId": bson.M{"$in": models.IDVariants(employeeID)}}
	opts := options.FindOne().SetProjection(employeeProjection)

	var emp models.Employee
	err := r.collection.FindOne(ctx, filter, opts).Decode(&emp)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewNotFoundError("Employee not found")
	}
	if err != nil {
		return nil, utils.NewInternalError("failed to load employee", err)
	}
	return &emp, nil
}

func (r *employeeRepository) GetEmployees(ctx context.Context, employeeIDs []string) ([]models.Employee, error) {
	if len(employeeIDs) == 0 {
		return []models.Employee{}, nil
	}
	ids := bson.A{}
	for _, id := range employeeIDs {
		ids = append(ids, models.IDVariants(id)...)
	}
	return r.find(ctx, bson.M{"employeeId": bson.M{"$in": ids}})
}

func (r *employeeRepository) ListEmployees(ctx context.Context, zoneIDs []string) ([]models.Employee, error) {
	filter := bson.M{}
	if zoneIDs != nil {
		filter["zoneId"] = bson.M{"$in": zoneIDs}
	}
	return r.find(ctx, filter)
}

func (r *employeeRepository) find(ctx context.Context, filter bson.M) ([]models.Employee, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetProjection(employeeProjection))
	if err != nil {
		return nil, utils.NewInternalError("failed to query employees", err)
	}
	defer cursor.Close(ctx)

	employees := []models.Employee{}
	if err = cursor.All(ctx, &employees); err != nil {
		return nil, utils.NewInternalError("failed to decode employees", err)
	}
	return employees, nil
}

type zoneRepository struct {
	collection *mongo.Collection
}

func NewZoneRepository(db *mongo.Database) ZoneRepository {
	return &zoneRepository{
		collection: db.Collection(ZoneCollection),
	}
}

func (r *zoneRepository) ZoneActive(ctx context.Context, zoneID string) (bool, error) {
	var zone models.Zone
	err := r.collection.FindOne(ctx, bson.M{"zoneId": zoneID}).Decode(&zone)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, utils.NewInternalError("failed to load zone", err)
	}
	return zone.IsActive, nil
}
