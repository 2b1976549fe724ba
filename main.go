package main

import (
	"context"
	"net/http"
	"time"

	"kpitracker/config"
	"kpitracker/database"
	"kpitracker/handlers"
	repository "kpitracker/repositories"
	routes "kpitracker/routes"
	services "kpitracker/services"

	"github.com/redis/go-redis/v9"
)

func main() {
	logger := config.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration: ", err)
	}
	config.SetLogLevel(cfg.LogLevel)

	resolver, err := cfg.Resolver()
	if err != nil {
		logger.Fatal("Invalid timezone configuration: ", err)
	}

	ctx := context.Background()

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		logger.Fatal(err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error("Failed to disconnect from MongoDB: ", err)
		}
	}()

	database.IsReplicaSet(ctx, client)

	db := client.Database(cfg.MongoDatabase)

	if err := database.CreateKPIIndexes(ctx, db); err != nil {
		logger.Warn("Failed to create KPI indexes: ", err)
	}

	var rdb *redis.Client
	if cfg.RedisAddress != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddress, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("Redis unavailable, employee cache disabled: ", err)
			rdb.Close()
			rdb = nil
		}
		cancel()
	}

	kpiRepo := repository.NewKPIRepository(db)
	employeeRepo := repository.NewCachedEmployeeRepository(repository.NewEmployeeRepository(db), rdb, cfg.EmployeeCacheTTL)
	zoneRepo := repository.NewZoneRepository(db)

	kpiService := services.NewKPIService(kpiRepo, employeeRepo, zoneRepo, resolver, services.Options{
		ExportMaxRows: cfg.ExportMaxRows,
		Logger:        logger,
	})
	kpiHandler := handlers.NewKPIHandler(kpiService, cfg.RequestTimeout, logger)

	healthHandler := handlers.NewHealthHandler(func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	})

	handler := routes.SetupKPIRoutes(kpiHandler, healthHandler, cfg.JWTSecret, logger)

	logger.WithField("port", cfg.Port).Info("Server starting")
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		logger.Fatal(err)
	}
}
