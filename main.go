package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"telepharmacy-server/internal/config"
	"telepharmacy-server/internal/handlers"
	"telepharmacy-server/internal/logger"
	"telepharmacy-server/internal/metrics"
	"telepharmacy-server/internal/middleware"
	"telepharmacy-server/internal/models"
	"telepharmacy-server/internal/redisstore"
	"telepharmacy-server/internal/repository"
	"telepharmacy-server/internal/routes"
	"telepharmacy-server/internal/services"
	"telepharmacy-server/internal/video"
)

type stores struct {
	users        repository.UserRepository
	appointments repository.AppointmentRepository
	check        handlers.HealthCheck
	close        func(ctx context.Context) error
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		store := repository.NewMemoryStore()
		return &stores{
			users:        store.Users(),
			appointments: store.Appointments(),
			check:        handlers.HealthCheck{Name: "memory", Check: func(context.Context) error { return nil }},
			close:        func(context.Context) error { return nil },
		}, nil
	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		db := client.Database(cfg.Mongo.Database)
		if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
			return nil, err
		}
		return &stores{
			users:        repository.NewMongoUserRepository(db),
			appointments: repository.NewMongoAppointmentRepository(db),
			check: handlers.HealthCheck{Name: "mongo", Check: func(ctx context.Context) error {
				return client.Ping(ctx, nil)
			}},
			close: client.Disconnect,
		}, nil
	}

	db, err := models.InitDB(models.DatabaseConfig{
		DSN:   cfg.Database.DSN,
		Debug: cfg.Environment == "development",
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return &stores{
		users:        repository.NewGormUserRepository(db),
		appointments: repository.NewGormAppointmentRepository(db),
		check:        handlers.HealthCheck{Name: "mysql", Check: sqlDB.PingContext},
		close:        func(context.Context) error { return sqlDB.Close() },
	}, nil
}

func main() {
	// A missing .env is fine when the environment is set by the platform.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error loading .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logg, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer logg.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := openStores(ctx, cfg)
	cancel()
	if err != nil {
		logg.Fatal("Error connecting to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	err = redisClient.Ping(pingCtx).Err()
	cancelPing()
	if err != nil {
		logg.Fatal("Error connecting to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	creds := video.Credentials{
		AccountSID:   cfg.Video.AccountSID,
		APIKeySID:    cfg.Video.APIKeySID,
		APIKeySecret: cfg.Video.APIKeySecret,
	}
	if !creds.Configured() {
		logg.Warn("Video credentials missing, join and token requests will fail")
	}
	tokens := video.NewTokenIssuer(creds, cfg.Video.TokenTTL)

	appointmentService := services.NewAppointmentService(services.Dependencies{
		Appointments: db.appointments,
		Users:        db.users,
		Locker:       redisstore.NewLocker(redisClient, logg),
		Tokens:       tokens,
		Metrics:      m,
		Logger:       logg,
		Location:     cfg.ClinicLocation,
	})

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logg), middleware.Metrics(m))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Dependencies{
		Config:        cfg,
		Logger:        logg,
		Users:         db.users,
		RefreshTokens: redisstore.NewRefreshTokenStore(redisClient),
		Appointments:  appointmentService,
		Gatherer:      registry,
		HealthChecks: []handlers.HealthCheck{
			db.check,
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logg.Info("Server running", zap.String("port", cfg.Port), zap.String("driver", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("Server shutdown failed", zap.Error(err))
	}
	if err := db.close(shutdownCtx); err != nil {
		logg.Error("Closing database failed", zap.Error(err))
	}
	if err := redisClient.Close(); err != nil {
		logg.Error("Closing redis failed", zap.Error(err))
	}
	logg.Info("Server stopped")
}
