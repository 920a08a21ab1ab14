package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/app"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/service"
)

var (
	errStoreDisabled = errors.New("the local credential store is disabled (secrets.store / database.enabled)")
	errNoMasterKey   = errors.New("no master key configured: set secrets.master_key_path or $CLUBAUTH_MASTER_KEY")
)

// openCredentialStore wires a local application and returns its encrypted
// credential store.
func openCredentialStore(cmd *cobra.Command) (*app.Application, *service.StoreSource, error) {
	a, err := openLocal(cmd)
	if err != nil {
		return nil, nil, err
	}
	src := a.CredentialStore()
	if src == nil {
		_ = a.Close()
		return nil, nil, errStoreDisabled
	}
	if a.EphemeralMasterKey() {
		_ = a.Close()
		return nil, nil, errNoMasterKey
	}
	return a, src, nil
}

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage vendor credentials in the encrypted local store",
		Long: `Manage vendor credentials kept in the local database, sealed with the
master key (secrets.master_key_path or $CLUBAUTH_MASTER_KEY).

Environment variables such as CLUBOS_PASSWORD still take precedence over
stored values.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var (
		username      string
		passwordStdin bool
	)
	set := &cobra.Command{
		Use:     "set <service>",
		Short:   "Store a username and password for a vendor",
		Example: `  printf '%s\n' "$PASS" | clubauth credentials set clubos --username svc_user --password-stdin`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := domain.ParseService(args[0])
			if err != nil {
				return err
			}
			if username == "" {
				return errors.New("--username is required")
			}
			if !passwordStdin {
				return errors.New("--password-stdin is required; passwords are never taken as flags")
			}
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer memguard.WipeBytes(password)

			a, src, err := openCredentialStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := src.Save(cmd.Context(), svc, username, password); err != nil {
				return fmt.Errorf("store credentials: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s credentials for %s\n", svc, username)
			return nil
		},
	}
	set.Flags().StringVar(&username, "username", "", "vendor username or email")
	set.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")

	del := &cobra.Command{
		Use:   "delete <service>",
		Short: "Remove the stored credentials of a vendor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := domain.ParseService(args[0])
			if err != nil {
				return err
			}
			a, src, err := openCredentialStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			n, err := src.Delete(cmd.Context(), svc)
			if err != nil {
				return fmt.Errorf("delete credentials: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d %s secrets\n", n, svc)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored secret names (never values)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, src, err := openCredentialStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			refs, err := src.Store.Credentials().ListSecrets(cmd.Context())
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored credentials.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SERVICE\tSECRET\tUPDATED")
			for _, r := range refs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Service, r.Name, r.UpdatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(set, del, list)
	return cmd
}
