package config

import "time"

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type AuthConfig struct {
	JWTSecret            string        `mapstructure:"jwt_secret"`
	TokenExpiration      time.Duration `mapstructure:"token_expiration"`
	RememberMeExpiration time.Duration `mapstructure:"remember_me_expiration"`
	Issuer               string        `mapstructure:"issuer"`
	Audience             string        `mapstructure:"audience"`
	BcryptCost           int           `mapstructure:"bcrypt_cost"`
	MinPasswordLength    int           `mapstructure:"min_password_length"`
}

type LockoutConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	LockoutDuration time.Duration `mapstructure:"lockout_duration"`
}

type VerificationConfig struct {
	EmailTokenTTL time.Duration `mapstructure:"email_token_ttl"`
	ResetTokenTTL time.Duration `mapstructure:"reset_token_ttl"`
}

type MailConfig struct {
	Domain      string        `mapstructure:"domain"`
	APIKey      string        `mapstructure:"api_key"`
	APIBase     string        `mapstructure:"api_base"`
	Sender      string        `mapstructure:"sender"`
	BaseURL     string        `mapstructure:"base_url"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

type BreakerConfig struct {
	FailureThreshold         int           `mapstructure:"failure_threshold"`
	ResetTimeout             time.Duration `mapstructure:"reset_timeout"`
	HalfOpenSuccessThreshold int           `mapstructure:"half_open_success_threshold"`
}

type AppConfig struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Lockout      LockoutConfig      `mapstructure:"lockout"`
	Verification VerificationConfig `mapstructure:"verification"`
	Mail         MailConfig         `mapstructure:"mail"`
	Breaker      BreakerConfig      `mapstructure:"breaker"`
}
