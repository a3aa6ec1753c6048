package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SimpleFIN holds the bridge settings. AccessURL skips the claim step.
type SimpleFIN struct {
	Token     string
	AccessURL string
	StateFile string
}

// LoadSimpleFINConfig reads simplefin.* settings, falling back to
// SIMPLEFIN_TOKEN and SIMPLEFIN_ACCESS_URL.
func LoadSimpleFINConfig() *SimpleFIN {
	cfg := &SimpleFIN{
		Token:     viper.GetString("simplefin.token"),
		AccessURL: viper.GetString("simplefin.access_url"),
		StateFile: ExpandPath(viper.GetString("simplefin.state_file")),
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("SIMPLEFIN_TOKEN")
	}
	if cfg.AccessURL == "" {
		cfg.AccessURL = os.Getenv("SIMPLEFIN_ACCESS_URL")
	}
	if cfg.StateFile == "" {
		cfg.StateFile = filepath.Join(filepath.Dir(DatabasePath()), "simplefin_auth.json")
	}
	return cfg
}
