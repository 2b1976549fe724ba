package database

import (
	"context"
	"fmt"
	"time"

	"kpitracker/config"
	repository "kpitracker/repositories"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func KPIIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Every single-record operation addresses kpiId.
		{
			Keys:    bson.D{{Key: "kpiId", Value: 1}},
			Options: options.Index().SetName("idx_kpi_id").SetUnique(true),
		},

		// LIST: employee restriction with default createdAt ordering
		{
			Keys: bson.D{
				{Key: "employeeId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
			Options: options.Index().SetName("idx_employee_id_created_at"),
		},

		// LIST / SUMMARY: date range filters
		{
			Keys: bson.D{
				{Key: "startdate", Value: 1},
				{Key: "employeeId", Value: 1},
			},
			Options: options.Index().SetName("idx_startdate_employee_id"),
		},

		// Legacy normalization scans for records missing zoneId.
		{
			Keys:    bson.D{{Key: "zoneId", Value: 1}, {Key: "startdate", Value: 1}},
			Options: options.Index().SetName("idx_zone_id_startdate"),
		},
	}
}

func CreateKPIIndexes(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(repository.KPICollection)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, KPIIndexes()); err != nil {
		return fmt.Errorf("failed to create KPI indexes: %w", err)
	}

	config.GetLogger().WithField("collection", repository.KPICollection).Info("KPI indexes created successfully")
	return nil
}
