package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Core contains the parameters of a login context.
// Values are read from ABC_* environment variables and can be overridden
// field by field by the caller before the context is built.
type Core struct {
	AppID      string `envconfig:"APP_ID"`
	AuthServer string `envconfig:"AUTH_SERVER" default:"http://localhost:8080"`
	APIKey     string `envconfig:"API_KEY"`

	LobbyTimeout      time.Duration `envconfig:"LOBBY_TIMEOUT" default:"10m"`
	LobbyPollInterval time.Duration `envconfig:"LOBBY_POLL_INTERVAL" default:"2s"`

	OtpResetWindow time.Duration `envconfig:"OTP_RESET_WINDOW" default:"168h"`
	OtpDriftSteps  int           `envconfig:"OTP_DRIFT_STEPS" default:"1"`

	EngineKillTimeout      time.Duration `envconfig:"ENGINE_KILL_TIMEOUT" default:"10s"`
	SingleSessionPerDevice bool          `envconfig:"SINGLE_SESSION_PER_DEVICE" default:"false"`

	// scrypt parameters for new password keys. Existing accounts keep the
	// parameters they were created with.
	ScryptN int `envconfig:"SCRYPT_N" default:"16384"`
	ScryptR int `envconfig:"SCRYPT_R" default:"8"`
	ScryptP int `envconfig:"SCRYPT_P" default:"1"`
}

// Server contains the parameters of the reference login server.
type Server struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	BcryptCost      int           `envconfig:"BCRYPT_COST" default:"10"`
	RedisURL        string        `envconfig:"REDIS_URL"`
	OtpResetWindow  time.Duration `envconfig:"OTP_RESET_WINDOW" default:"168h"`
	OtpDriftSteps   int           `envconfig:"OTP_DRIFT_STEPS" default:"1"`
	LobbyMaxTimeout time.Duration `envconfig:"LOBBY_MAX_TIMEOUT" default:"30m"`
}

// LoadCore reads Core from the environment.
func LoadCore() (*Core, error) {
	cfg := &Core{}
	if err := envconfig.Process("ABC", cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadServer reads Server from the environment.
func LoadServer() (*Server, error) {
	cfg := &Server{}
	if err := envconfig.Process("AUTHSERVER", cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if cfg.OtpDriftSteps < 0 {
		return nil, errors.New("OTP_DRIFT_STEPS must not be negative")
	}
	return cfg, nil
}

// Validate checks values that envconfig cannot.
func (c *Core) Validate() error {
	if c.AuthServer == "" {
		return errors.New("AUTH_SERVER must be set")
	}
	if c.LobbyTimeout <= 0 || c.LobbyPollInterval <= 0 {
		return errors.New("lobby timeout and poll interval must be positive")
	}
	if c.OtpDriftSteps < 0 {
		return errors.New("OTP_DRIFT_STEPS must not be negative")
	}
	if c.ScryptN < 2 || c.ScryptN&(c.ScryptN-1) != 0 {
		return fmt.Errorf("SCRYPT_N must be a power of two, got %d", c.ScryptN)
	}
	return nil
}
