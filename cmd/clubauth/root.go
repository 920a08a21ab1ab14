package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/app"
	"github.com/aussiebroadwan/clubauth/pkg/clubsdk"
)

// adminTokenEnv is shared with the server so one variable configures both.
const adminTokenEnv = "CLUBAUTH_SERVER_ADMIN_TOKEN"

var errServerRequired = errors.New("--server is required: sessions live in the running gateway")

type rootOptions struct {
	server string
	token  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "clubauth",
		Short: "Vendor session gateway for ClubOS and ClubHub",
		Long: `clubauth logs in to the ClubOS and ClubHub vendor portals and keeps the
resulting sessions alive for other services.

Run "clubauth serve" for the long-running gateway. The other commands either
work on the local configuration directly or, with --server, talk to a running
gateway through its admin API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", "", "base URL of a running gateway, e.g. http://localhost:8080")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv(adminTokenEnv), "admin token for --server (default $"+adminTokenEnv+")")

	cmd.AddCommand(
		newServeCmd(),
		newLoginCmd(opts),
		newSessionsCmd(opts),
		newAttemptsCmd(opts),
		newCredentialsCmd(),
	)
	return cmd
}

func (o *rootOptions) client() (*clubsdk.Client, error) {
	if o.server == "" {
		return nil, errServerRequired
	}
	return clubsdk.NewClient(o.server, o.token), nil
}

// openLocal loads the configuration and wires an application without
// starting its HTTP server.
func openLocal(cmd *cobra.Command) (*app.Application, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
