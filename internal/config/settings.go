package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings holds all runtime configuration for the onboarding API.
type Settings struct {
	Environment    string `mapstructure:"environment"`
	Port           int    `mapstructure:"port"`
	MonPort        int    `mapstructure:"mon_port"`
	LogLevel       string `mapstructure:"log_level"`
	AllowedOrigins string `mapstructure:"allowed_origins"`

	// Wizard session storage. Store is "local" or "redis". The cipher key is
	// hex encoded, 32 bytes; stored sessions are sealed with it.
	SessionStore       string        `mapstructure:"session_store"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	SessionTokenSecret string        `mapstructure:"session_token_secret"`
	SessionCipherKey   string        `mapstructure:"session_cipher_key"`
	RedisURL           string        `mapstructure:"redis_url"`
	RedisPassword      string        `mapstructure:"redis_password"`

	// External collaborators.
	AuthAPIURL     string `mapstructure:"auth_api_url"`
	PlatformAPIURL string `mapstructure:"platform_api_url"`

	// Address resolution chain: token exchange + postal search at the
	// geocoding authority, coordinates from a separate geocoding service.
	GeocodeAPIURL      string        `mapstructure:"geocode_api_url"`
	GeocodeAPIEmail    string        `mapstructure:"geocode_api_email"`
	GeocodeAPIPassword string        `mapstructure:"geocode_api_password"`
	CoordsAPIURL       string        `mapstructure:"coords_api_url"`
	AddressDebounce    time.Duration `mapstructure:"address_debounce"`
}

// LoadSettings reads settings.yaml when present and lets environment
// variables override every key (SESSION_TTL, PLATFORM_API_URL, ...).
func LoadSettings() (*Settings, error) {
	// Optional .env for local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("settings")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("environment", "local")
	v.SetDefault("port", 3000)
	v.SetDefault("mon_port", 8888)
	v.SetDefault("log_level", "info")
	v.SetDefault("allowed_origins", "https://app.shoplocal.sg")
	v.SetDefault("session_store", "local")
	v.SetDefault("session_ttl", 30*time.Minute)
	v.SetDefault("address_debounce", 500*time.Millisecond)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading settings file: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if settings.SessionTokenSecret == "" {
		return nil, fmt.Errorf("session_token_secret is required")
	}
	if settings.SessionStore == "redis" && settings.RedisURL == "" {
		return nil, fmt.Errorf("redis_url is required when session_store is redis")
	}
	if settings.Environment != "local" && settings.SessionCipherKey == "" {
		return nil, fmt.Errorf("session_cipher_key is required outside local environments")
	}

	return &settings, nil
}
