package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds everything read from the environment. It is built once in
// main and handed to whatever needs it.
type Config struct {
	Port           string
	DatabaseURL    string
	DataPath       string
	JWTSecret      string
	TokenTTL       time.Duration
	AdminUsername  string
	AdminPassword  string
	Location       *time.Location
	GinMode        string
	APIBaseURL     string
	PositionMaxAge time.Duration
}

// LoadEnvFiles loads the first .env found in the current or parent
// directories. A missing file is not an error.
func LoadEnvFiles(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env", "../.env", "../../.env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err != nil {
				log.Printf("config: could not load %s: %v", p, err)
			}
			return
		}
	}
}

func defaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("PORT", "8000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATA_PATH", "attendance.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", 24*time.Hour)
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "admin123")
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("GIN_MODE", "")
	v.SetDefault("API_BASE_URL", "http://localhost:8000/api")
	v.SetDefault("POSITION_MAX_AGE", 10*time.Second)
}

// Load reads .env files and the environment
func Load() (*Config, error) {
	LoadEnvFiles()
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, errors.Wrapf(err, "config: bad TIMEZONE %q", v.GetString("TIMEZONE"))
	}

	cfg := &Config{
		Port:           v.GetString("PORT"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		DataPath:       v.GetString("DATA_PATH"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		TokenTTL:       v.GetDuration("TOKEN_TTL"),
		AdminUsername:  v.GetString("ADMIN_USERNAME"),
		AdminPassword:  v.GetString("ADMIN_PASSWORD"),
		Location:       loc,
		GinMode:        v.GetString("GIN_MODE"),
		APIBaseURL:     v.GetString("API_BASE_URL"),
		PositionMaxAge: v.GetDuration("POSITION_MAX_AGE"),
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.Errorf("config: TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}
	if cfg.JWTSecret == "" {
		log.Printf("config: JWT_SECRET is empty, tokens are signed with an empty key")
	}
	return cfg, nil
}

// Now is the current time in the configured timezone
func (c *Config) Now() time.Time {
	return time.Now().In(c.Location)
}
