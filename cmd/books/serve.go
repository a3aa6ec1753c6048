package main

import (
	"crypto/tls"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/api"
	"github.com/Veraticus/the-books-must-balance/internal/certs"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reconciliation HTTP API",
		Long: `Serve the HTTP API:

  POST /api/accounts/{id}/recalculate   reconcile one account
  POST /api/reconcile                   reconcile every account
  GET  /api/accounts                    list accounts
  GET  /api/accounts/{id}               show one account
  GET  /api/accounts/{id}/transactions  list an account's transactions
  GET  /health                          liveness check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			serverConfig, err := config.LoadServerConfig()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var tlsConfig *tls.Config
			if serverConfig.TLS {
				tlsConfig, err = certs.TLSConfig(certs.NewFileManager(serverConfig.CertDir, serverConfig.Hosts...))
				if err != nil {
					return common.NewUserError("Could not prepare the TLS certificate in "+serverConfig.CertDir, err)
				}
			}

			return api.NewServer(store, slog.Default()).ListenAndServe(ctx, serverConfig, tlsConfig)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default 127.0.0.1:8484)")
	cmd.Flags().Bool("tls", false, "Serve HTTPS with a self-signed certificate")
	cmd.Flags().String("cert-dir", "", "Directory for the TLS certificate (default ~/.config/books/certs)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag("server.cert_dir", cmd.Flags().Lookup("cert-dir"))

	return cmd
}
