package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/app"
	"github.com/aussiebroadwan/clubauth/pkg/cryptox"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway and its admin API",
		Long: `Run the gateway until SIGINT or SIGTERM.

Configuration is read from clubauth.yaml (or $CLUBAUTH_CONFIG) and CLUBAUTH_*
environment variables. When no admin token is configured a random one is
generated and printed once on stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			if token, generated := a.AdminToken(); generated {
				a.Logger().Warn("no admin token configured; generated one for this process",
					"fingerprint", cryptox.FingerprintToken(token))
				fmt.Fprintf(cmd.ErrOrStderr(), "admin token: %s\n", token)
			}

			return a.Run()
		},
	}
}
