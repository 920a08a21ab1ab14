package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/internal/clubauth/store"
	"github.com/aussiebroadwan/clubauth/pkg/clubsdk"
)

func newAttemptsCmd(root *rootOptions) *cobra.Command {
	var (
		service  string
		username string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Show the vendor login audit trail, newest first",
		Long: `Show recorded vendor logins, newest first.

Without --server the local database is read directly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var svc domain.Service
			if service != "" {
				s, err := domain.ParseService(service)
				if err != nil {
					return err
				}
				svc = s
			}

			var attempts []clubsdk.LoginAttempt
			if root.server != "" {
				c, err := root.client()
				if err != nil {
					return err
				}
				attempts, err = c.ListLoginAttempts(cmd.Context(), clubsdk.LoginAttemptsQuery{
					Service:  string(svc),
					Username: username,
					Limit:    limit,
				})
				if err != nil {
					return err
				}
			} else {
				a, err := openLocal(cmd)
				if err != nil {
					return err
				}
				defer func() { _ = a.Close() }()

				rows, err := a.Auth().LoginAttempts(cmd.Context(), store.LoginAttemptFilter{
					Service:  svc,
					Username: username,
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				for _, r := range rows {
					attempts = append(attempts, clubsdk.LoginAttempt{
						ID:         r.ID,
						Service:    string(r.Service),
						Username:   r.Username,
						StartedAt:  r.StartedAt,
						FinishedAt: r.FinishedAt,
						Outcome:    r.Outcome,
						Reason:     r.Reason,
					})
				}
			}

			if len(attempts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No login attempts recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tSERVICE\tUSERNAME\tDURATION\tOUTCOME\tREASON")
			for _, a := range attempts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					a.StartedAt.Local().Format(time.DateTime),
					a.Service,
					a.Username,
					a.FinishedAt.Sub(a.StartedAt).Round(time.Millisecond),
					a.Outcome,
					a.Reason,
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&service, "service", "", "only this vendor (clubos or clubhub)")
	cmd.Flags().StringVar(&username, "username", "", "only this vendor username")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}
