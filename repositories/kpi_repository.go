package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"kpitracker/models"
	"kpitracker/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const KPICollection = "kpi"

// KPISortFields is the allow-list of sortable fields, keyed by API name.
var KPISortFields = map[string]string{
	"createdAt":     "createdAt",
	"updatedAt":     "updatedAt",
	"startDate":     "startdate",
	"deadline":      "deadline",
	"projectName":   "project_name",
	"employeeName":  "employeeName",
	"points":        "points",
	"qualityPoints": "qualityPoints",
}

const DefaultKPISortField = "createdAt"

type KPIRepository interface {
	Create(ctx context.Context, kpi *models.KPI) error
	GetByKpiID(ctx context.Context, kpiID string) (*models.KPI, error)
	Update(ctx context.Context, kpiID string, changes models.KPIChanges) error
	ApplyLegacyPatch(ctx context.Context, kpiID string, patch models.LegacyPatch) error
	// PunchIfPending appends an on-time punch and scores the record in one
	// atomic update. It returns nil when the record is already scored or the
	// deadline has passed.
	PunchIfPending(ctx context.Context, kpiID string, punch models.Punch) (*models.KPI, error)
	AppendPunch(ctx context.Context, kpiID string, punch models.Punch) (*models.KPI, error)
	SetQualityPoints(ctx context.Context, kpiID string, value int, at time.Time) error
	Delete(ctx context.Context, kpiID string) error
	Find(ctx context.Context, q models.KPIQuery) ([]models.KPI, int64, error)
	Summarize(ctx context.Context, q models.KPIQuery) ([]models.EmployeeSummary, error)
}

type kpiRepository struct {
	collection *mongo.Collection
}

func NewKPIRepository(db *mongo.Database) KPIRepository {
	return &kpiRepository{
		collection: db.Collection(KPICollection),
	}
}

func (r *kpiRepository) Create(ctx context.Context, kpi *models.KPI) error {
	if kpi.Punches == nil {
		kpi.Punches = []models.Punch{}
	}
	res, err := r.collection.InsertOne(ctx, kpi)
	if err != nil {
		return utils.NewInternalError("failed to insert KPI", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		kpi.ID = id
	}
	return nil
}

func (r *kpiRepository) GetByKpiID(ctx context.Context, kpiID string) (*models.KPI, error) {
	var kpi models.KPI
	err := r.collection.FindOne(ctx, bson.M{"kpiId": kpiID}).Decode(&kpi)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewNotFoundError("KPI not found")
	}
	if err != nil {
		return nil, utils.NewInternalError("failed to load KPI", err)
	}
	return &kpi, nil
}

func (r *kpiRepository) Update(ctx context.Context, kpiID string, changes models.KPIChanges) error {
	set := bson.M{"updatedAt": changes.UpdatedAt}
	if changes.ProjectName != nil {
		set["project_name"] = *changes.ProjectName
	}
	if changes.Remark != nil {
		set["remark"] = *changes.Remark
	}
	if changes.StartDate != nil {
		set["startdate"] = *changes.StartDate
	}
	if changes.Deadline != nil {
		set["deadline"] = *changes.Deadline
	}
	if changes.Timezone != nil {
		set["timezone"] = *changes.Timezone
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"kpiId": kpiID}, bson.M{"$set": set})
	if err != nil {
		return utils.NewInternalError("failed to update KPI", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("KPI not found")
	}
	return nil
}

func (r *kpiRepository) ApplyLegacyPatch(ctx context.Context, kpiID string, patch models.LegacyPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	set := bson.M{}
	if patch.ZoneID != "" {
		set["zoneId"] = patch.ZoneID
	}
	if patch.Timezone != "" {
		set["timezone"] = patch.Timezone
	}
	if patch.EmployeeName != "" {
		set["employeeName"] = patch.EmployeeName
	}
	if len(set) > 0 {
		if _, err := r.collection.UpdateOne(ctx, bson.M{"kpiId": kpiID}, bson.M{"$set": set}); err != nil {
			return utils.NewInternalError("failed to backfill KPI", err)
		}
	}
	if patch.PendingPoints {
		// Only touch records still missing points so a concurrent score survives.
		filter := bson.M{"kpiId": kpiID, "points": bson.M{"$in": bson.A{0, nil}}}
		update := bson.M{"$set": bson.M{"points": models.PointsPending}}
		if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
			return utils.NewInternalError("failed to backfill KPI", err)
		}
	}
	return nil
}

func (r *kpiRepository) PunchIfPending(ctx context.Context, kpiID string, punch models.Punch) (*models.KPI, error) {
	filter := bson.M{
		"kpiId":    kpiID,
		"points":   bson.M{"$ne": models.PointsScored},
		"deadline": bson.M{"$gte": punch.PunchDate},
	}
	update := bson.M{
		"$push": bson.M{"punches": punch},
		"$set": bson.M{
			"points":    models.PointsScored,
			"updatedAt": punch.PunchDate,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var kpi models.KPI
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&kpi)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewInternalError("failed to record punch", err)
	}
	return &kpi, nil
}

func (r *kpiRepository) AppendPunch(ctx context.Context, kpiID string, punch models.Punch) (*models.KPI, error) {
	update := bson.M{
		"$push": bson.M{"punches": punch},
		"$set":  bson.M{"updatedAt": punch.PunchDate},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var kpi models.KPI
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"kpiId": kpiID}, update, opts).Decode(&kpi)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewNotFoundError("KPI not found")
	}
	if err != nil {
		return nil, utils.NewInternalError("failed to record punch", err)
	}
	return &kpi, nil
}

func (r *kpiRepository) SetQualityPoints(ctx context.Context, kpiID string, value int, at time.Time) error {
	update := bson.M{"$set": bson.M{"qualityPoints": value, "updatedAt": at}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"kpiId": kpiID}, update)
	if err != nil {
		return utils.NewInternalError("failed to set quality points", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("KPI not found")
	}
	return nil
}

func (r *kpiRepository) Delete(ctx context.Context, kpiID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"kpiId": kpiID})
	if err != nil {
		return utils.NewInternalError("failed to delete KPI", err)
	}
	if result.DeletedCount == 0 {
		return utils.NewNotFoundError("KPI not found")
	}
	return nil
}

func (r *kpiRepository) Find(ctx context.Context, q models.KPIQuery) ([]models.KPI, int64, error) {
	filter := BuildKPIFilter(q)

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, utils.NewInternalError("failed to count KPIs", err)
	}

	opts := options.Find().SetSort(BuildKPISort(q))
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, utils.NewInternalError("failed to query KPIs", err)
	}
	defer cursor.Close(ctx)

	kpis := []models.KPI{}
	if err = cursor.All(ctx, &kpis); err != nil {
		return nil, 0, utils.NewInternalError("failed to decode KPIs", err)
	}
	return kpis, total, nil
}

// Summarize groups the matching records per employee.
func (r *kpiRepository) Summarize(ctx context.Context, q models.KPIQuery) ([]models.EmployeeSummary, error) {
	punches := bson.M{"$ifNull": bson.A{"$punches", bson.A{}}}
	countIf := func(cond bson.M) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{cond, 1, 0}}}
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: BuildKPIFilter(q)}},

		bson.D{{Key: "$addFields", Value: bson.M{
			"punch_count": bson.M{"$size": punches},
			"late_count": bson.M{"$size": bson.M{"$filter": bson.M{
				"input": punches,
				"as":    "p",
				"cond":  bson.M{"$eq": bson.A{"$$p.status", models.PunchLate}},
			}}},
		}}},

		bson.D{{Key: "$group", Value: bson.M{
			"_id":             "$employeeId",
			"employeeName":    bson.M{"$max": "$employeeName"},
			"total":           bson.M{"$sum": 1},
			"scored":          countIf(bson.M{"$eq": bson.A{"$points", models.PointsScored}}),
			"pending":         countIf(bson.M{"$ne": bson.A{"$points", models.PointsScored}}),
			"qualityPositive": countIf(bson.M{"$eq": bson.A{"$qualityPoints", 1}}),
			"qualityNegative": countIf(bson.M{"$eq": bson.A{"$qualityPoints", -1}}),
			"punches":         bson.M{"$sum": "$punch_count"},
			"latePunches":     bson.M{"$sum": "$late_count"},
		}}},

		bson.D{{Key: "$sort", Value: bson.D{{Key: "scored", Value: -1}, {Key: "_id", Value: 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, utils.NewInternalError("failed to aggregate KPIs", err)
	}
	defer cursor.Close(ctx)

	results := []models.EmployeeSummary{}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, utils.NewInternalError("failed to decode KPI summary", err)
	}
	return results, nil
}

// BuildKPIFilter translates a query into a Mongo filter. A non-nil but empty
// EmployeeIDs matches nothing.
func BuildKPIFilter(q models.KPIQuery) bson.M {
	filter := bson.M{}

	if q.EmployeeIDs != nil {
		ids := bson.A{}
		for _, id := range q.EmployeeIDs {
			ids = append(ids, models.IDVariants(id)...)
		}
		filter["employeeId"] = bson.M{"$in": ids}
	}

	if s := strings.TrimSpace(q.Search); s != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"project_name": rx},
			bson.M{"employeeName": rx},
			bson.M{"employeeId": rx},
		}
	}

	if q.StartFrom != nil || q.StartTo != nil {
		rng := bson.M{}
		if q.StartFrom != nil {
			rng["$gte"] = *q.StartFrom
		}
		if q.StartTo != nil {
			rng["$lte"] = *q.StartTo
		}
		filter["startdate"] = rng
	}

	return filter
}

// BuildKPISort always appends kpiId so that pages are stable on ties.
func BuildKPISort(q models.KPIQuery) bson.D {
	field := q.SortField
	if field == "" {
		field = KPISortFields[DefaultKPISortField]
	}
	dir := 1
	if q.SortDesc {
		dir = -1
	}
	sort := bson.D{{Key: field, Value: dir}}
	if field != "kpiId" {
		sort = append(sort, bson.E{Key: "kpiId", Value: 1})
	}
	return sort
}
