package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"fraservotes-backend/auth"
	"fraservotes-backend/cache"
	"fraservotes-backend/database"
	"fraservotes-backend/models"
	"fraservotes-backend/mq"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Static test tokens registered with the verifier.
const (
	adminToken     = "test-admin-token"
	volunteerToken = "test-volunteer-token"
)

// SetupTestEnvironment sets up the Gin router, the in-memory SQLite database,
// the mock cache, and a static verifier for testing.
func SetupTestEnvironment(t *testing.T) (*gin.Engine, *gorm.DB) {
	testing.Init()
	gin.SetMode(gin.TestMode)

	// Force the cache into mock mode before anything touches Redis
	os.Setenv("REDIS_MOCK", "true")
	if err := cache.InitRedis(); err != nil {
		t.Fatalf("failed to init mock cache: %v", err)
	}
	cache.InitDistLock()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("failed to connect to in-memory database: %v", err)
	}

	database.DB = db

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := database.DB.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})

	verifier := auth.NewStaticVerifier()
	verifier.Register(adminToken, auth.Claims{UID: "admin-uid", Admin: true, Volunteer: true})
	verifier.Register(volunteerToken, auth.Claims{UID: "volunteer-uid", Volunteer: true})

	adapter := mq.NewAdapter()
	_ = adapter.Initialize()
	InitHandler(adapter, verifier)

	router := gin.New()
	api := router.Group("/api")
	{
		api.GET("/config", GetConfig)
		api.GET("/positions", GetPositions)
		api.GET("/candidates", GetCandidates)

		authed := api.Group("")
		authed.Use(auth.RequireAuth(verifier))
		{
			authed.GET("/voting-statuses/lookup", LookupVotingStatus)
			authed.POST("/ballots", SubmitBallot)
			authed.GET("/results/:id", GetResult)

			admin := authed.Group("")
			admin.Use(auth.RequireAdmin())
			{
				admin.PATCH("/config", UpdateConfig)
				admin.GET("/voting-statuses", GetVotingStatuses)
				admin.GET("/voting-statuses/count", GetVotingStatusCount)
				admin.GET("/voting-statuses/count/completed", GetCompletedVotingStatusCount)
				admin.GET("/voting-statuses/turnout", GetTurnout)
				admin.POST("/voting-statuses/reset", ResetVotingStatuses)
				admin.GET("/ballots/encrypted", GetEncryptedBallots)
				admin.GET("/ballots/encrypted/count", GetEncryptedBallotCount)
				admin.GET("/ballots/decrypted", GetDecryptedBallots)
				admin.GET("/ballots/decrypted/count", GetDecryptedBallotCount)
				admin.POST("/ballots/decrypted", AddDecryptedBallot)
				admin.POST("/ballots/decrypted/save", SaveDecryptedBallots)
				admin.DELETE("/ballots", DeleteBallots)
				admin.GET("/results", GetResults)
				admin.DELETE("/results", DeleteAllResults)
			}
		}
	}

	return router, db
}

// ClearTables empties every table between tests.
func ClearTables(db *gorm.DB) {
	session := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	session.Delete(&models.DecryptedBallot{})
	session.Delete(&models.EncryptedBallot{})
	session.Delete(&models.Result{})
	session.Delete(&models.VotingStatus{})
	session.Delete(&models.Candidate{})
	session.Delete(&models.Position{})
	session.Delete(&models.Config{})
}

// seedRoll inserts voting statuses for the given student numbers.
func seedRoll(t *testing.T, db *gorm.DB, studentNumbers ...int) []models.VotingStatus {
	t.Helper()
	statuses := make([]models.VotingStatus, 0, len(studentNumbers))
	for _, n := range studentNumbers {
		statuses = append(statuses, models.VotingStatus{ID: uuid.NewString(), StudentNumber: n})
	}
	if err := db.Create(&statuses).Error; err != nil {
		t.Fatalf("failed to seed roll: %v", err)
	}
	return statuses
}

// seedElection inserts two positions and three candidates, returning them in
// creation order.
func seedElection(t *testing.T, db *gorm.DB) ([]models.Position, []models.Candidate) {
	t.Helper()
	positions := []models.Position{
		{ID: uuid.NewString(), Name: "President", SpotsAvailable: 1},
		{ID: uuid.NewString(), Name: "Secretary", SpotsAvailable: 2},
	}
	if err := db.Create(&positions).Error; err != nil {
		t.Fatalf("failed to seed positions: %v", err)
	}
	candidates := []models.Candidate{
		{ID: uuid.NewString(), FullName: "Avery Chen", PositionID: positions[0].ID, Grade: 12},
		{ID: uuid.NewString(), FullName: "Jordan Patel", PositionID: positions[0].ID, Grade: 11},
		{ID: uuid.NewString(), FullName: "Sam Okafor", PositionID: positions[1].ID, Grade: 10},
	}
	if err := db.Create(&candidates).Error; err != nil {
		t.Fatalf("failed to seed candidates: %v", err)
	}
	return positions, candidates
}

// doRequest performs a JSON request against the router with an optional
// bearer token.
func doRequest(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}
