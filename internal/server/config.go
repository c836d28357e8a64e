package server

import (
	"fmt"
	"os"
	"time"

	"github.com/civicstream/civic-auth/internal/config"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

func LoadConfig() (*config.AppConfig, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = EnvDevelopment
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath("./config/server")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Secrets come from the environment, never the config file.
	if secret := os.Getenv("AUTH_JWT_SECRET"); secret != "" {
		v.Set("auth.jwt_secret", secret)
	}
	if apiKey := os.Getenv("MAILGUN_API_KEY"); apiKey != "" {
		v.Set("mail.api_key", apiKey)
	}

	var cfg config.AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Load environment-specific configurations
	if envSettings := v.GetStringMap(fmt.Sprintf("server.%s", env)); len(envSettings) > 0 {
		if err := v.UnmarshalKey(fmt.Sprintf("server.%s", env), &cfg.Server); err != nil {
			return nil, fmt.Errorf("error unmarshaling env config: %w", err)
		}
	}

	if cfg.Auth.JWTSecret == "" && env == EnvProduction {
		return nil, fmt.Errorf("auth.jwt_secret must be set in production")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("auth.token_expiration", time.Hour)
	v.SetDefault("auth.remember_me_expiration", 30*24*time.Hour)
	v.SetDefault("auth.issuer", "civic-auth")
	v.SetDefault("auth.audience", "civicstream")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.min_password_length", 8)

	v.SetDefault("lockout.max_attempts", 5)
	v.SetDefault("lockout.lockout_duration", 15*time.Minute)

	v.SetDefault("verification.email_token_ttl", 24*time.Hour)
	v.SetDefault("verification.reset_token_ttl", time.Hour)

	v.SetDefault("mail.send_timeout", 5*time.Second)

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout", 30*time.Second)
	v.SetDefault("breaker.half_open_success_threshold", 2)
}
