// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 200*time.Second, cfg.Network.Timeout)
	assert.Equal(t, "irs-v5", cfg.Schema.Version)
	assert.Equal(t, 5, cfg.Retry.CaptchaAttempts)
	assert.Contains(t, cfg.Endpoints.RefreshCaptcha, "{jsessionid}")
	assert.Contains(t, cfg.Endpoints.InterfacePage, "{interface}")
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	t.Parallel()

	v := viper.New()
	SetDefaults(v)
	v.Set("booking.from", "Taipei")
	v.Set("booking.to", "Zuouing")
	v.Set("booking.tickets", map[string]int{"adult": 2})
	v.Set("retry.captcha_attempts", 2)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "Taipei", cfg.Booking.From)
	assert.Equal(t, 2, cfg.Booking.Tickets["adult"])
	assert.Equal(t, 2, cfg.Retry.CaptchaAttempts)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.Network.Timeout = 0 }},
		{"empty captcha endpoint", func(c *Config) { c.Captcha.Endpoint = "" }},
		{"zero captcha budget", func(c *Config) { c.Retry.CaptchaAttempts = 0 }},
		{"negative pace", func(c *Config) { c.Retry.AttemptsPerSecond = -1 }},
		{"relative endpoint", func(c *Config) { c.Endpoints.SubmitForm = "/IMINT/" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
