package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/keshon/disbot/pkg/cmd"
)

// Config is the process configuration, read from the environment.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,notEmpty"`
	DiscordGuild uint64 `env:"DISCORD_GUILD" envDefault:"0"`

	CommandPrefix  string        `env:"COMMAND_PREFIX" envDefault:"!"`
	PrefixCommands bool          `env:"PREFIX_COMMANDS" envDefault:"true"`
	DispatchBudget time.Duration `env:"DISPATCH_BUDGET" envDefault:"2500ms"`
	CommandsFile   string        `env:"COMMANDS_FILE"`

	SyncOnStart  bool   `env:"SYNC_ON_START" envDefault:"true"`
	SyncSchedule string `env:"SYNC_SCHEDULE"`
	SyncAttempts int    `env:"SYNC_ATTEMPTS" envDefault:"3"`
	SyncWorkers  int    `env:"SYNC_WORKERS" envDefault:"4"`

	AdminAddr string `env:"ADMIN_ADDR"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"false"`
}

// New loads .env files (the default .env when none are given; a missing file
// is fine) and parses the environment into a Config.
func New(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && len(files) > 0 {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.DispatchBudget <= 0 || c.DispatchBudget >= 3*time.Second {
		errs = append(errs, fmt.Errorf("DISPATCH_BUDGET must be between 0 and 3s, got %s", c.DispatchBudget))
	}
	if c.SyncAttempts < 1 {
		errs = append(errs, fmt.Errorf("SYNC_ATTEMPTS must be at least 1, got %d", c.SyncAttempts))
	}
	if c.SyncWorkers < 1 {
		errs = append(errs, fmt.Errorf("SYNC_WORKERS must be at least 1, got %d", c.SyncWorkers))
	}
	if c.PrefixCommands && c.CommandPrefix == "" {
		errs = append(errs, errors.New("COMMAND_PREFIX must not be empty while PREFIX_COMMANDS is on"))
	}
	return errors.Join(errs...)
}

// Scope is the command scope configured by DISCORD_GUILD.
func (c *Config) Scope() cmd.Scope {
	if c.DiscordGuild == 0 {
		return cmd.Global()
	}
	return cmd.Guild(strconv.FormatUint(c.DiscordGuild, 10))
}
