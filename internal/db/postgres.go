package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
	"github.com/dengue-gen/denguegen-backend/internal/types"
	"github.com/dengue-gen/denguegen-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	//1) Get and Set Environment Variables
	log.Info("Attempting to load environment variables for Postgres now...")
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "denguegen", log)
	postgresSSLMode := utils.GetEnv("POSTGRES_SSLMODE", "disable", log)
	log.Info("Environment variables loaded for Postgres :)")

	//2) Construct DSN From Environment Variables
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		postgresUser, postgresPassword, postgresHost, postgresPort, postgresName, postgresSSLMode)

	//3) Attempt DB Connection
	log.Info("Attempting to connect to Postgres DB now...", "host", postgresHost, "dbname", postgresName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Error("Failed to connect to Postgres DB", "error", err)
		return nil, fmt.Errorf("Failed to connect to Postgres DB: %w", err)
	}
	log.Info("Successfully Connected to Postgres DB :)")

	return &PostgresService{db: db, log: serviceLog}, nil
}

// AutoMigrateAll creates the kv_entry table and its prefix index.
func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Starting AutoMigrateAll for all GORM models now...")
	if err := s.db.AutoMigrate(&types.KvEntry{}); err != nil {
		s.log.Error("AutoMigrateAll failed :(", "error", err)
		return err
	}
	// text_pattern_ops lets LIKE 'prefix%' use the index.
	if err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS "idx_kv_entry_key_prefix"
		ON "kv_entry" ("key" text_pattern_ops)
	`).Error; err != nil {
		return fmt.Errorf("failed to add idx_kv_entry_key_prefix: %w", err)
	}
	s.log.Info("AutoMigrateAll completed successfully :)")
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
