package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"kiwilearn/internal/auth"
	"kiwilearn/internal/config"
	"kiwilearn/internal/database"
	"kiwilearn/internal/handlers"
	"kiwilearn/internal/logging"
	"kiwilearn/internal/oracle"
	"kiwilearn/internal/security"
	"kiwilearn/internal/service"
)

const (
	stepDatabase   = "Database connection"
	stepMigrations = "Running migrations"
	stepSeed       = "Seeding achievements"
	stepServices   = "Initializing services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if cfg.AuthIssuer == "" || cfg.AuthAudience == "" {
		log.Fatal().Msg("AUTH_DOMAIN (or AUTH_ISSUER) and AUTH_AUDIENCE must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startup := handlers.NewStartupStatus(stepDatabase, stepMigrations, stepSeed, stepServices)

	// Listen straight away so /healthz reports progress through migrations and seeding
	addr := ":" + cfg.ServerPort
	router := handlers.NewHandlerSwitch(handlers.StartupRoutes(handlers.NewHealthHandler(startup, nil)))
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Initialize database with config (supports sqlite, postgres, mysql)
	startup.SetCurrentStep(stepDatabase)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()
	startup.CompleteStep(stepDatabase)
	log.Info().Str("type", cfg.DatabaseType).Msg("Database connection established")

	startup.SetCurrentStep(stepMigrations)
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	startup.CompleteStep(stepMigrations)

	startup.SetCurrentStep(stepSeed)
	if _, err := db.SeedAchievements(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed achievements")
	}
	startup.CompleteStep(stepSeed)

	startup.SetCurrentStep(stepServices)
	verifier := auth.NewVerifier(auth.Config{
		Issuer:          cfg.AuthIssuer,
		Audience:        cfg.AuthAudience,
		JWKSURL:         cfg.AuthJWKSURL,
		RoleClaim:       cfg.AuthRoleClaim,
		CacheTTL:        cfg.JWKSCacheTTL,
		RefreshInterval: cfg.JWKSRefreshInterval,
	})

	gemini, err := oracle.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	defer gemini.Close()
	var completer oracle.Completer
	if gemini != nil {
		completer = gemini
	}
	questionOracle := oracle.New(completer, oracle.Options{
		MaxAttempts: cfg.OracleMaxAttempts,
		Timeout:     cfg.OracleTimeout,
	})

	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("Email service unavailable, link emails disabled")
		emailService = nil
	}
	var notifier service.LinkNotifier
	if emailService != nil && emailService.IsEnabled() {
		notifier = emailService
	}

	userService := service.NewUserService(db, cfg.UserInfoURL(), &http.Client{Timeout: 10 * time.Second})
	achievementService := service.NewAchievementService(db)
	practiceService := service.NewPracticeService(db, questionOracle, achievementService)
	petService := service.NewPetService(db)
	linkService := service.NewLinkService(db, notifier)

	limiter := security.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, handlers.RateLimitKey)
	limiter.StartCleanup(5*time.Minute, ctx.Done())

	h := &handlers.Handlers{
		Middleware:   handlers.NewMiddleware(verifier, userService, cfg.CORSAllowOrigin),
		RateLimiter:  limiter,
		Auth:         handlers.NewAuthHandler(userService),
		Practice:     handlers.NewPracticeHandler(practiceService),
		Pets:         handlers.NewPetHandler(petService),
		Achievements: handlers.NewAchievementHandler(achievementService),
		Links:        handlers.NewLinkHandler(linkService),
		Health:       handlers.NewHealthHandler(startup, db),
	}
	startup.CompleteStep(stepServices)

	go decayPets(ctx, petService, cfg.PetDecayInterval)

	router.Switch(h.Routes())
	startup.MarkReady()
	log.Info().Msg("Server ready")

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error().Err(err).Msg("Server failed")
	}

	log.Info().Msg("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
		os.Exit(1)
	}
}

// decayPets periodically makes every pet a little hungrier
func decayPets(ctx context.Context, petService *service.PetService, interval time.Duration) {
	if interval <= 0 {
		log.Info().Msg("Pet hunger decay disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := petService.DecayAll(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Error decaying pet hunger")
				continue
			}
			log.Info().Int64("pets", n).Msg("Pet hunger decayed")
		}
	}
}
