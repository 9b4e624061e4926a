package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"costtrack-backend/config"
	"costtrack-backend/controllers"
	"costtrack-backend/database"
	"costtrack-backend/logger"
	"costtrack-backend/middlewares"
	"costtrack-backend/routes"
	"costtrack-backend/services"
	"costtrack-backend/sheets"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/joho/godotenv"
)

func main() {
	_ = logger.Setup(logger.DefaultConfig())
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Error(err, "could not read .env")
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(err, "invalid configuration")
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		logger.Fatal(err, "invalid logging configuration")
	}
	log := logger.WithComponent("main")

	// ---- Database
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal(err, "could not connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal(err, "migration failed")
	}

	ctx := context.Background()
	if err := database.ConnectRedis(ctx, cfg.RedisAddress); err != nil {
		log.Warn().Err(err).Msg("redis unavailable; distributed locks disabled")
	}
	defer database.CloseRedis()

	deps := controllers.Deps{
		JWTSecret: []byte(cfg.JWTSecret),
		JWTTTL:    cfg.JWTTTL,
		Sequence:  services.NewSequenceService(db),
	}
	if cfg.SheetsEnabled() {
		svc, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
		if err != nil {
			log.Warn().Err(err).Msg("Google Sheets sync disabled")
		} else {
			deps.Sheets = svc
		}
	}
	controllers.Configure(deps)

	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    cfg.BodyLimitBytes,
	})

	app.Use(middlewares.RequestLogger())

	// ---- CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key, X-Request-ID",
	}))

	// ---- Global rate limiter (applies to all routes; tune via env)
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
	}))

	// ---- Routes
	routes.Register(app, db, []byte(cfg.JWTSecret))

	// ---- Start
	go func() {
		log.Info().Str("port", cfg.Port).Msg("API server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Fatal(err, "server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
