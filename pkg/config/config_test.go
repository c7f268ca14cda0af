package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	v := viper.New()
	defaults(v)
	v.Set("TIMEZONE", "UTC")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "attendance.db", cfg.DataPath)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.PositionMaxAge)
	assert.Equal(t, "admin", cfg.AdminUsername)
	assert.Equal(t, "http://localhost:8000/api", cfg.APIBaseURL)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	defaults(v)
	v.Set("PORT", "9090")
	v.Set("TOKEN_TTL", "90m")
	v.Set("TIMEZONE", "America/La_Paz")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "America/La_Paz", cfg.Location.String())
}

func TestFromViper_Errors(t *testing.T) {
	v := viper.New()
	defaults(v)
	v.Set("TIMEZONE", "Mars/Olympus")
	_, err := FromViper(v)
	assert.Error(t, err)

	v = viper.New()
	defaults(v)
	v.Set("TIMEZONE", "UTC")
	v.Set("TOKEN_TTL", "0s")
	_, err = FromViper(v)
	assert.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("TIMEZONE", "UTC")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
}
