package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration, populated from the environment.
type Config struct {
	// Race platform (racetime-style) connection.
	PlatformHost     string `envconfig:"PLATFORM_HOST" default:"racetime.gg"`
	PlatformCategory string `envconfig:"PLATFORM_CATEGORY" default:"ootr"`
	ClientID         string `envconfig:"PLATFORM_CLIENT_ID"`
	ClientSecret     string `envconfig:"PLATFORM_CLIENT_SECRET"`

	// Seed generator web API.
	GeneratorAPIKey        string `envconfig:"GENERATOR_API_KEY"`
	GeneratorEncryptionKey string `envconfig:"GENERATOR_ENCRYPTION_KEY"`
	GeneratorBaseURL       string `envconfig:"GENERATOR_BASE_URL" default:"https://ootrandomizer.com"`

	// Local generator subprocess.
	RandomizerDir string `envconfig:"RANDOMIZER_DIR" default:"/opt/randomizer"`
	SeedDir       string `envconfig:"SEED_DIR" default:"./data/seeds"`

	// Alternate (blitz) generator site.
	BlitzBaseURL string `envconfig:"BLITZ_BASE_URL" default:"https://www.triforceblitz.com"`

	// Discord notifications.
	DiscordToken        string `envconfig:"DISCORD_TOKEN"`
	DiscordAlertChannel string `envconfig:"DISCORD_ALERT_CHANNEL"`

	DatabasePath string `envconfig:"DATABASE_PATH" default:"./data/racebot.db"`
	StatusAddr   string `envconfig:"STATUS_ADDR" default:":8080"`
	Production   bool   `envconfig:"PRODUCTION" default:"false"`
}

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
