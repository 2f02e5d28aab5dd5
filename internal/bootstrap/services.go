package bootstrap

import (
	"context"
	"fmt"

	rd "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/shoplocal/onboarding-api/internal/cipher"
	"github.com/shoplocal/onboarding-api/internal/config"
	"github.com/shoplocal/onboarding-api/internal/onboarding"
	"github.com/shoplocal/onboarding-api/internal/repository"
	"github.com/shoplocal/onboarding-api/internal/service"
)

// Services holds all initialized services
type Services struct {
	Sessions  repository.SessionRepository
	Registry  service.RegistryAPIService
	Accounts  service.AccountAPIService
	Uploader  *service.ImageUploadService
	Resolver  *service.AddressResolver
	Engine    *onboarding.Engine
	Submitter *service.SubmissionOrchestrator
}

// InitializeServices creates and initializes all application services
func InitializeServices(ctx context.Context, logger *zerolog.Logger, settings *config.Settings) (*Services, error) {
	sessions, err := initializeSessionRepository(ctx, settings)
	if err != nil {
		return nil, err
	}

	registry := service.NewRegistryAPIService(settings, logger)
	accounts := service.NewAccountAPIService(settings, logger)
	uploader := service.NewImageUploadService(registry, logger)
	resolver := service.NewAddressResolver(settings, logger)
	engine := onboarding.NewEngine(registry, logger)
	submitter := service.NewSubmissionOrchestrator(logger, engine, accounts, registry, uploader)

	return &Services{
		Sessions:  sessions,
		Registry:  registry,
		Accounts:  accounts,
		Uploader:  uploader,
		Resolver:  resolver,
		Engine:    engine,
		Submitter: submitter,
	}, nil
}

func initializeSessionRepository(ctx context.Context, settings *config.Settings) (repository.SessionRepository, error) {
	cph, err := sessionCipher(settings)
	if err != nil {
		return nil, err
	}

	if settings.SessionStore != "redis" {
		return repository.NewLocalSessionRepository(settings.SessionTTL, cph), nil
	}

	opts, err := rd.ParseURL(settings.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis_url: %w", err)
	}
	if settings.RedisPassword != "" {
		opts.Password = settings.RedisPassword
	}

	client := rd.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	return repository.NewRedisSessionRepository(client, settings.SessionTTL, cph), nil
}

func sessionCipher(settings *config.Settings) (cipher.Cipher, error) {
	if settings.SessionCipherKey != "" {
		return cipher.NewAESGCMCipher(settings.SessionCipherKey)
	}
	if settings.Environment == "local" {
		// FIXME: local development only, configure session_cipher_key
		return new(cipher.ROT13Cipher), nil
	}
	return nil, fmt.Errorf("session_cipher_key is required outside local environments")
}
