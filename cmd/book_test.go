// File: cmd/book_test.go
package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wabisuke-dev/thsrbot/internal/config"
)

func TestTripFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("dash dates are normalized", func(t *testing.T) {
		trip := tripFromConfig(config.BookingConfig{Date: "2026-09-01", Time: "10:05"})
		assert.Equal(t, "2026/09/01", trip.Date)
		assert.Equal(t, "10:05", trip.Time)
	})

	t.Run("empty date defaults to today", func(t *testing.T) {
		trip := tripFromConfig(config.BookingConfig{})
		assert.Equal(t, time.Now().Format("2006/01/02"), trip.Date)
		assert.NotEmpty(t, trip.Time)
	})

	t.Run("identity fields are trimmed", func(t *testing.T) {
		trip := tripFromConfig(config.BookingConfig{
			TrainNo:    " 0823 ",
			NationalID: " A123456789 ",
			Phone:      " 0912345678",
		})
		assert.Equal(t, "0823", trip.TrainNo)
		assert.Equal(t, "A123456789", trip.NationalID)
		assert.Equal(t, "0912345678", trip.Phone)
	})
}

func TestBuildOrchestrator(t *testing.T) {
	t.Parallel()

	t.Run("default config wires", func(t *testing.T) {
		orch, err := buildOrchestrator(config.NewDefaultConfig(), zap.NewNop())
		require.NoError(t, err)
		assert.NotNil(t, orch)
	})

	t.Run("unknown schema version is rejected", func(t *testing.T) {
		c := config.NewDefaultConfig()
		c.Schema.Version = "irs-v9"
		_, err := buildOrchestrator(c, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("malformed proxy is rejected", func(t *testing.T) {
		c := config.NewDefaultConfig()
		c.Network.Proxy = "socks5://localhost:1080"
		_, err := buildOrchestrator(c, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "proxy")
	})
}

func TestRootCommandFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()
	for _, name := range []string{"config", "debug", "proxy"} {
		assert.NotNil(t, flags.Lookup(name), "missing persistent flag %q", name)
	}

	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, strings.Fields(c.Use)[0])
	}
	assert.Subset(t, names, []string{"book", "list", "version"})
}
