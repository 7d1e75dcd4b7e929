package routes

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"fraservotes-backend/auth"
	"fraservotes-backend/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server wraps the HTTP server.
type Server struct {
	*http.Server
}

// SetupRouter configures the Gin engine: CORS, rate limiting, and the
// election API grouped under /api. Authenticated routes require a fresh
// token; admin routes additionally require the admin claim.
func SetupRouter() *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.InitRateLimiters()

	verifier := handlers.Verifier()

	api := router.Group("/api")
	{
		api.Use(handlers.RateLimitMiddleware())

		api.GET("/health", handlers.HealthCheck)
		api.GET("/status", handlers.SystemStatus)

		// Public reads: the ballot screen needs these before sign-in
		api.GET("/config", handlers.GetConfig)
		api.GET("/positions", handlers.GetPositions)
		api.GET("/positions/:id", handlers.GetPosition)
		api.GET("/candidates", handlers.GetCandidates)
		api.GET("/candidates/:id", handlers.GetCandidate)

		authed := api.Group("")
		authed.Use(auth.RequireAuth(verifier))
		{
			authed.GET("/voting-statuses/lookup", handlers.LookupVotingStatus)
			authed.POST("/ballots", handlers.SubmitBallot)
			authed.GET("/results/:id", handlers.GetResult)

			admin := authed.Group("")
			admin.Use(auth.RequireAdmin())
			{
				admin.PATCH("/config", handlers.UpdateConfig)

				admin.GET("/voting-statuses", handlers.GetVotingStatuses)
				admin.GET("/voting-statuses/count", handlers.GetVotingStatusCount)
				admin.GET("/voting-statuses/count/completed", handlers.GetCompletedVotingStatusCount)
				admin.GET("/voting-statuses/turnout", handlers.GetTurnout)
				admin.POST("/voting-statuses/reset", handlers.ResetVotingStatuses)

				admin.GET("/ballots/encrypted", handlers.GetEncryptedBallots)
				admin.GET("/ballots/encrypted/count", handlers.GetEncryptedBallotCount)
				admin.GET("/ballots/decrypted", handlers.GetDecryptedBallots)
				admin.GET("/ballots/decrypted/count", handlers.GetDecryptedBallotCount)
				admin.POST("/ballots/decrypted", handlers.AddDecryptedBallot)
				admin.POST("/ballots/decrypted/save", handlers.SaveDecryptedBallots)
				admin.DELETE("/ballots", handlers.DeleteBallots)

				admin.GET("/results", handlers.GetResults)
				admin.DELETE("/results", handlers.DeleteAllResults)
			}
		}

		// WebSocket upgrade carries the token in the subprotocol header on
		// some browsers, so the turnout feed does its own auth at upgrade
		// time rather than through middleware.
		api.GET("/voting-statuses/live", handlers.HandleTurnoutWS)
	}

	return router
}

func allowedOrigins() []string {
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		return strings.Split(origins, ",")
	}
	return []string{"*"}
}

// StartServer starts the HTTP server on SERVER_PORT (default 8090).
func StartServer(router *gin.Engine) *Server {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8090"
	}

	addr := ":" + port

	srv := &Server{
		&http.Server{
			Addr:    addr,
			Handler: router,
		},
	}

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	return srv
}
