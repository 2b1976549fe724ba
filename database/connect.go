package database

import (
	"context"
	"fmt"
	"time"

	"kpitracker/config"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Connect opens the client and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	config.GetLogger().Info("Successfully connected to MongoDB")
	return client, nil
}

// IsReplicaSet reports whether the deployment is a replica set.
func IsReplicaSet(ctx context.Context, client *mongo.Client) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	logger := config.GetLogger()

	var result bson.M
	if err := client.Database("admin").RunCommand(ctx, bson.M{"hello": 1}).Decode(&result); err != nil {
		config.LogError(logger, "database", "IsReplicaSet", "hello command", nil, err)
		return false
	}

	if setName, exists := result["setName"]; exists {
		logger.WithFields(logrus.Fields{"setName": setName}).Info("Part of replica set")
		return true
	}

	logger.Warn("Not part of a replica set")
	return false
}
