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

	"icruise-backend/internal/config"
	"icruise-backend/internal/database"
	"icruise-backend/internal/handlers"
	"icruise-backend/internal/middleware"
	"icruise-backend/internal/repository"
	"icruise-backend/internal/router"
	"icruise-backend/internal/services"
)

func main() {
	log.Println("🚀 Starting iCruise Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	cruiseRepo := repository.NewCruiseRepo(pool)

	// ──── Initialize Services ────
	aiClient := services.NewAIClient(services.AIConfig{
		APIKey:           cfg.AIAPIKey,
		FallbackAPIKey:   cfg.AIFallbackAPIKey,
		BaseURL:          cfg.AIBaseURL,
		Model:            cfg.AIModel,
		Temperature:      float32(cfg.AITemperature),
		MaxTokens:        cfg.AIMaxTokens,
		FrequencyPenalty: float32(cfg.AIFrequencyPenalty),
		PresencePenalty:  float32(cfg.AIPresencePenalty),
		Timeout:          time.Duration(cfg.AITimeoutSeconds) * time.Second,
	})
	if aiClient.HasFallback() {
		log.Println("✓ AI client initialized (failover enabled)")
	} else {
		log.Println("✓ AI client initialized (no fallback credential)")
	}

	searchService := services.NewSearchService(cruiseRepo)
	chatService := services.NewChatService(aiClient, searchService)

	// ──── Initialize Handlers ────
	chatHandler := handlers.NewChatHandler(chatService)
	cruiseHandler := handlers.NewCruiseHandler(cruiseRepo)

	// Chat rate limiter (per IP)
	chatLimiter := middleware.NewRateLimiter(
		redisClient,
		"chat",
		cfg.ChatRateLimit,
		time.Duration(cfg.ChatRateWindowSecs)*time.Second,
	)

	// ──── Step 5: Start HTTP Server ────
	r := router.New(chatHandler, cruiseHandler, chatLimiter, cfg.FrontendURL)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the chat endpoint streams for longer than any
		// fixed deadline; the AI client enforces its own timeout upstream.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ iCruise Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
