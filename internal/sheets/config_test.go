package sheets

import (
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	oauth := func() Config {
		c := DefaultConfig()
		c.ClientID = "test-client"
		c.ClientSecret = "test-secret"
		c.RefreshToken = "test-token"
		return c
	}

	tests := []struct {
		mutate  func(*Config)
		wantErr error
		name    string
		errMsg  string
	}{
		{name: "valid oauth config"},
		{
			name: "valid service account config",
			mutate: func(c *Config) {
				c.ClientID, c.ClientSecret, c.RefreshToken = "", "", ""
				c.ServiceAccountPath = "/path/to/key.json"
			},
		},
		{
			name:    "partial oauth credentials",
			mutate:  func(c *Config) { c.ClientSecret = "" },
			wantErr: common.ErrMissingConfig,
			errMsg:  "no Google Sheets authentication method configured",
		},
		{
			name:    "multiple auth methods",
			mutate:  func(c *Config) { c.ServiceAccountPath = "/path/to/key.json" },
			wantErr: common.ErrInvalidConfig,
			errMsg:  "multiple authentication methods configured",
		},
		{
			name:    "missing tab",
			mutate:  func(c *Config) { c.TabName = "" },
			wantErr: common.ErrInvalidConfig,
			errMsg:  "tab name is required",
		},
		{
			name:    "invalid batch size",
			mutate:  func(c *Config) { c.BatchSize = 0 },
			wantErr: common.ErrInvalidConfig,
			errMsg:  "batch size must be positive",
		},
		{
			name:    "negative retry attempts",
			mutate:  func(c *Config) { c.RetryAttempts = -1 },
			wantErr: common.ErrInvalidConfig,
			errMsg:  "retry attempts cannot be negative",
		},
		{
			name:   "zero retry delay is valid",
			mutate: func(c *Config) { c.RetryAttempts, c.RetryDelay = 0, 0 },
		},
		{
			name:    "negative retry delay",
			mutate:  func(c *Config) { c.RetryDelay = -1 * time.Second },
			wantErr: common.ErrInvalidConfig,
			errMsg:  "retry delay cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := oauth()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, "Reconcile", c.TabName)
	assert.True(t, c.EnableFormatting)
	assert.Equal(t, 1000, c.BatchSize)
}
