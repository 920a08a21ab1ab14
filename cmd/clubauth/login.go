package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/pkg/clubsdk"
)

// readPassword reads one line from r. The caller wipes the result.
func readPassword(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read password: %w", err)
	}
	line = []byte(strings.TrimRight(string(line), "\r\n"))
	if len(line) == 0 {
		return nil, errors.New("empty password on stdin")
	}
	return line, nil
}

func newLoginCmd(root *rootOptions) *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login <service>",
		Short: "Authenticate with a vendor and print the session",
		Long: `Authenticate with clubos or clubhub and print the session diagnostics.

Without --server the login runs in this process against the configured
credential chain, which is useful for checking credentials. With --server the
running gateway performs it and caches the session for everyone.`,
		Example: `  clubauth login clubos
  printf '%s\n' "$PASS" | clubauth login clubhub --username ops@example.com --password-stdin
  clubauth login clubos --server http://localhost:8080`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := domain.ParseService(args[0])
			if err != nil {
				return err
			}

			var password []byte
			if passwordStdin {
				if password, err = readPassword(cmd.InOrStdin()); err != nil {
					return err
				}
				defer memguard.WipeBytes(password)
			}

			if root.server != "" {
				c, err := root.client()
				if err != nil {
					return err
				}
				info, err := c.Login(cmd.Context(), string(svc), clubsdk.LoginRequest{
					Username: username,
					Password: string(password),
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), info)
			}

			a, err := openLocal(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			sess, err := a.Auth().Authenticate(cmd.Context(), svc, username, string(password))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.Auth().Cache().Info(sess))
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "vendor username or email (default from the credential chain)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}
