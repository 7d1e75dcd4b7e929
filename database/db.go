package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"fraservotes-backend/migrations"
	"fraservotes-backend/models"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database handle
var DB *gorm.DB

// InitDB opens the database connection and migrates all models
func InitDB() error {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	var err error

	switch getEnv("DB_DRIVER", "mysql") {
	case "sqlite":
		dbPath := getEnv("DB_PATH", "fraservotes.db")
		log.Printf("using SQLite database at %s", dbPath)
		DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: newLogger})
	default:
		dbUser := getEnv("DB_USER", "votes")
		dbPassword := getEnv("DB_PASSWORD", "votespassword")
		dbHost := getEnv("DB_HOST", "mysql")
		dbPort := getEnv("DB_PORT", "3306")
		dbName := getEnv("DB_NAME", "fraservotes")

		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			dbUser, dbPassword, dbHost, dbPort, dbName)

		log.Println("using MySQL database")
		DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: newLogger})
	}

	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	if err := Migrate(DB); err != nil {
		return fmt.Errorf("failed to migrate models: %v", err)
	}
	if err := migrations.AddCampaignVideoToCandidate(DB); err != nil {
		return fmt.Errorf("failed to run migrations: %v", err)
	}

	if getEnv("ENVIRONMENT", "development") == "development" {
		createSampleData()
	}

	log.Println("database connection and migration succeeded")
	return nil
}

// Migrate runs AutoMigrate for every model. Exposed separately so the test
// environment can migrate its in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Position{},
		&models.Candidate{},
		&models.Config{},
		&models.VotingStatus{},
		&models.EncryptedBallot{},
		&models.DecryptedBallot{},
		&models.Result{},
	)
}

// createSampleData seeds reference data for local development. The production
// voter roll and candidate list are loaded by the import scripts instead.
func createSampleData() {
	var count int64
	DB.Model(&models.Position{}).Count(&count)
	if count > 0 {
		log.Println("database already has data, skipping sample data")
		return
	}

	log.Println("creating sample data...")

	president := models.Position{ID: uuid.NewString(), Name: "President", SpotsAvailable: 1}
	secretary := models.Position{ID: uuid.NewString(), Name: "Secretary", SpotsAvailable: 2}
	if err := DB.Create([]*models.Position{&president, &secretary}).Error; err != nil {
		log.Printf("failed to create sample positions: %v", err)
		return
	}

	candidates := []models.Candidate{
		{ID: uuid.NewString(), FullName: "Avery Chen", PositionID: president.ID, Grade: 12},
		{ID: uuid.NewString(), FullName: "Jordan Patel", PositionID: president.ID, Grade: 11},
		{ID: uuid.NewString(), FullName: "Sam Okafor", PositionID: secretary.ID, Grade: 10},
		{ID: uuid.NewString(), FullName: "Riley Nguyen", PositionID: secretary.ID, Grade: 11},
	}
	if err := DB.Create(&candidates).Error; err != nil {
		log.Printf("failed to create sample candidates: %v", err)
		return
	}

	statuses := make([]models.VotingStatus, 0, 5)
	for i := 0; i < 5; i++ {
		statuses = append(statuses, models.VotingStatus{
			ID:            uuid.NewString(),
			StudentNumber: 1000001 + i,
		})
	}
	if err := DB.Create(&statuses).Error; err != nil {
		log.Printf("failed to create sample voting statuses: %v", err)
		return
	}

	log.Println("sample data created")
}

// CloseDB closes the underlying connection pool
func CloseDB() {
	sqlDB, err := DB.DB()
	if err != nil {
		log.Printf("failed to get database connection: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("failed to close database connection: %v", err)
		return
	}

	log.Println("database connection closed")
}

// getEnv returns the environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
