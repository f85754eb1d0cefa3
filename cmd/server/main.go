package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/simaogato/dealflow-backend/internal/adapter/httpapi"
	"github.com/simaogato/dealflow-backend/internal/adapter/pricefeed"
	"github.com/simaogato/dealflow-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/dealflow-backend/internal/config"
	"github.com/simaogato/dealflow-backend/internal/usecase/valuation"
	"github.com/simaogato/dealflow-backend/pkg/logger"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "error"})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	log.Info().Msg("Starting dealflow")

	// 2. Setup database
	db, err := postgres.NewDB(cfg.DBConnStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// 3. Initialize repository and services
	positionRepo := postgres.NewPositionRepository(db)

	policy, err := cfg.RebalancePolicy()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build rebalance policy")
	}

	valuationService := valuation.NewService(positionRepo, policy, log)

	// 4. Optional price feed (requests must carry a price when absent)
	var priceFeed httpapi.PriceSource
	if cfg.PriceFeedURL != "" {
		priceFeed = pricefeed.NewClient(cfg.PriceFeedURL, log)
		log.Info().Str("url", cfg.PriceFeedURL).Msg("Price feed configured")
	}

	// 5. Start HTTP server
	srv := httpapi.New(httpapi.Config{
		Port:      cfg.Port,
		Log:       log,
		Valuator:  valuationService,
		PriceFeed: priceFeed,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
