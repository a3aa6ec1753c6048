package config

import (
	"fmt"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/spf13/viper"
)

// Server holds the HTTP API settings.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// CertDir holds the self-signed certificate when TLS is on.
	CertDir string
	Hosts   []string
	TLS     bool
}

// DefaultCertDir is used when server.cert_dir is not configured.
const DefaultCertDir = "$HOME/.config/books/certs"

// LoadServerConfig reads server.* settings with defaults.
func LoadServerConfig() (*Server, error) {
	viper.SetDefault("server.addr", "127.0.0.1:8484")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.cert_dir", DefaultCertDir)

	cfg := &Server{
		Addr:            viper.GetString("server.addr"),
		ReadTimeout:     viper.GetDuration("server.read_timeout"),
		WriteTimeout:    viper.GetDuration("server.write_timeout"),
		ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
		TLS:             viper.GetBool("server.tls"),
		CertDir:         ExpandPath(viper.GetString("server.cert_dir")),
		Hosts:           viper.GetStringSlice("server.hosts"),
	}

	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: server.addr is required", common.ErrMissingConfig)
	}
	if cfg.ReadTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return nil, fmt.Errorf("%w: server timeouts must be positive", common.ErrInvalidConfig)
	}
	if cfg.TLS && cfg.CertDir == "" {
		return nil, fmt.Errorf("%w: server.cert_dir is required when TLS is enabled", common.ErrMissingConfig)
	}
	return cfg, nil
}
