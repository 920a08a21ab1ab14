package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
	"github.com/aussiebroadwan/clubauth/pkg/clubsdk"
)

func newSessionsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and drop sessions cached by a running gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List cached sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := root.client()
			if err != nil {
				return err
			}
			sessions, err := c.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), sessions)
			}
			return printSessions(cmd, sessions)
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	drop := &cobra.Command{
		Use:   "drop <service> <username>",
		Short: "Invalidate a cached session",
		Long:  "Invalidate a cached session so the next request logs in again. Dropping a session that is not cached is not an error.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := domain.ParseService(args[0])
			if err != nil {
				return err
			}
			c, err := root.client()
			if err != nil {
				return err
			}
			ok, err := c.InvalidateSession(cmd.Context(), string(svc), args[1])
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(cmd.OutOrStdout(), "dropped %s session for %s\n", svc, args[1])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "no %s session cached for %s\n", svc, args[1])
			}
			return nil
		},
	}

	cmd.AddCommand(list, drop)
	return cmd
}

func printSessions(cmd *cobra.Command, sessions []clubsdk.SessionInfo) error {
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cached sessions.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tUSERNAME\tAGE\tIDLE\tSTATE")
	now := time.Now()
	for _, s := range sessions {
		state := "ok"
		switch {
		case !s.Authenticated:
			state = "invalid"
		case s.Expired:
			state = "expired"
		case s.Stale:
			state = "stale"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.Service,
			s.Username,
			now.Sub(s.CreatedAt).Round(time.Second),
			now.Sub(s.LastUsedAt).Round(time.Second),
			state,
		)
	}
	return tw.Flush()
}
