package config

import (
	"os"

	"github.com/Veraticus/the-books-must-balance/internal/sheets"
	"github.com/spf13/viper"
)

// LoadSheetsConfig reads sheets.* settings over sheets.DefaultConfig.
// Credentials fall back to their GOOGLE_SHEETS_* environment variables.
func LoadSheetsConfig() (*sheets.Config, error) {
	cfg := sheets.DefaultConfig()

	settings := []struct {
		dst  *string
		key  string
		env  string
		path bool
	}{
		{dst: &cfg.ServiceAccountPath, key: "sheets.service_account_path", env: "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", path: true},
		{dst: &cfg.ClientID, key: "sheets.client_id", env: "GOOGLE_SHEETS_CLIENT_ID"},
		{dst: &cfg.ClientSecret, key: "sheets.client_secret", env: "GOOGLE_SHEETS_CLIENT_SECRET"},
		{dst: &cfg.RefreshToken, key: "sheets.refresh_token", env: "GOOGLE_SHEETS_REFRESH_TOKEN"},
		{dst: &cfg.SpreadsheetID, key: "sheets.spreadsheet_id", env: "GOOGLE_SHEETS_SPREADSHEET_ID"},
		{dst: &cfg.SpreadsheetName, key: "sheets.spreadsheet_name"},
		{dst: &cfg.TabName, key: "sheets.tab_name"},
		{dst: &cfg.TimeZone, key: "sheets.time_zone"},
	}
	for _, s := range settings {
		v := viper.GetString(s.key)
		if v == "" && s.env != "" {
			v = os.Getenv(s.env)
		}
		if v == "" {
			continue
		}
		if s.path {
			v = ExpandPath(v)
		}
		*s.dst = v
	}

	if viper.IsSet("sheets.batch_size") {
		cfg.BatchSize = viper.GetInt("sheets.batch_size")
	}
	if viper.IsSet("sheets.retry_attempts") {
		cfg.RetryAttempts = viper.GetInt("sheets.retry_attempts")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
