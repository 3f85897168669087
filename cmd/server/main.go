package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safenest-backend/internal/config"
	"safenest-backend/internal/database"
	"safenest-backend/internal/handlers"
	"safenest-backend/internal/middleware"
	"safenest-backend/internal/repository"
	"safenest-backend/internal/router"
	"safenest-backend/internal/services"
	"safenest-backend/internal/websocket"
)

func main() {
	log.Println("🚀 Starting SafeNest Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	activityRepo := repository.NewActivityRepo(pool, services.RecencyWindow)
	auditRepo := repository.NewAlertAuditRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.FrontendURL)
	smsService := services.NewSMSService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)

	sosStore := services.NewRedisConditionStore(redisClients.Cache)
	sosService := services.NewSOSService(sosStore)

	classifier := services.NewClassifierClient(
		cfg.ClassifierURL,
		time.Duration(cfg.ClassifierTimeoutSeconds)*time.Second,
		redisClients.Cache,
	)

	dispatcher := services.NewAlertDispatcher(emailService, smsService, sosService, auditRepo)
	ledger := services.NewLedgerService(activityRepo, classifier, dispatcher, userRepo, redisClients.PubSub)
	log.Println("✓ Activity ledger initialized")

	// ──── Initialize Handlers ────
	activityHandler := handlers.NewActivityHandler(ledger, activityRepo)
	sosHandler := handlers.NewSOSHandler(sosService)
	preferencesHandler := handlers.NewPreferencesHandler(userRepo)

	// ──── Step 5: Start SOS Sweeper ────
	sweeper := services.NewSOSSweeper(sosStore)
	sweeper.Start()
	log.Println("✓ SOS sweeper started")

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		activityHandler,
		sosHandler,
		preferencesHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		sweeper.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ SafeNest Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
