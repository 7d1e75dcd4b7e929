package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fraservotes-backend/auth"
	"fraservotes-backend/cache"
	"fraservotes-backend/database"
	"fraservotes-backend/handlers"
	"fraservotes-backend/mq"
	"fraservotes-backend/routes"

	"github.com/joho/godotenv"
)

var mqAdapter *mq.Adapter

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	if err := database.InitDB(); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	log.Println("database connection initialized")

	if err := cache.InitRedis(); err != nil {
		log.Printf("warning: Redis initialization failed: %v", err)
	}
	cache.InitDistLock()

	mqAdapter = mq.NewAdapter()
	if err := mqAdapter.Initialize(); err != nil {
		log.Printf("warning: message queue initialization failed, using memory mode: %v", err)
	}

	verifier, err := buildVerifier()
	if err != nil {
		log.Fatalf("failed to initialize auth: %v", err)
	}

	handlers.InitHandler(mqAdapter, verifier)

	if err := mqAdapter.RegisterHandler(handlers.RefreshTurnout); err != nil {
		log.Printf("warning: failed to register ballot event handler: %v", err)
	}

	router := routes.SetupRouter()
	srv := routes.StartServer(router)
	log.Println("server started")

	log.Printf("message queue stats: %v", mqAdapter.GetQueueStats())

	// Wait for an interrupt, then drain in-flight requests
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shut down: %v", err)
	}

	database.CloseDB()
	cache.CloseRedis()
	mqAdapter.Close()

	log.Println("server exited gracefully")
}

// buildVerifier wires Firebase auth, or a static verifier when
// AUTH_MODE=static is set for local development.
func buildVerifier() (auth.Verifier, error) {
	if os.Getenv("AUTH_MODE") == "static" {
		log.Println("warning: static auth enabled, local development only")
		static := auth.NewStaticVerifier()
		static.Register("dev-admin-token", auth.Claims{UID: "dev-admin", Admin: true, Volunteer: true})
		static.Register("dev-volunteer-token", auth.Claims{UID: "dev-volunteer", Volunteer: true})
		return static, nil
	}
	return auth.NewFirebaseVerifier(context.Background(), os.Getenv("FIREBASE_CREDENTIALS"))
}
