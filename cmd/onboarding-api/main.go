package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shoplocal/onboarding-api/internal/app"
	"github.com/shoplocal/onboarding-api/internal/bootstrap"
	"github.com/shoplocal/onboarding-api/internal/config"
)

func main() {
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("app", "onboarding-api").
		Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	settings, err := config.LoadSettings()
	if err != nil {
		logger.Fatal().Err(err).Msg("could not load settings")
	}

	if level, err := zerolog.ParseLevel(settings.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	services, err := bootstrap.InitializeServices(ctx, &logger, settings)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not initialize services")
	}

	startMonitoringServer(&logger, settings)

	webAPI := app.App(settings, &logger, services.Sessions, services.Engine, services.Resolver, services.Submitter)

	go func() {
		logger.Info().Msgf("Starting HTTP server on port %d", settings.Port)
		if err := webAPI.Listen(fmt.Sprintf(":%d", settings.Port)); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server terminated unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Gracefully shutting down and running cleanup tasks...")
	if err := webAPI.ShutdownWithTimeout(30 * time.Second); err != nil {
		logger.Err(err).Msg("HTTP server did not shut down cleanly")
	}
}

// startMonitoringServer serves prometheus metrics on a separate port so the
// scrape endpoint never shares the public listener.
func startMonitoringServer(logger *zerolog.Logger, settings *config.Settings) {
	monApp := fiber.New(fiber.Config{DisableStartupMessage: true})
	monApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	go func() {
		if err := monApp.Listen(fmt.Sprintf(":%d", settings.MonPort)); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Int("port", settings.MonPort).Msg("Failed to start monitoring web server.")
		}
	}()

	logger.Info().Int("port", settings.MonPort).Msg("Started monitoring web server.")
}
