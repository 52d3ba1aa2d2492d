package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"social-publisher/internal/auth"
	"social-publisher/internal/logging"
	"social-publisher/internal/model"
	"social-publisher/internal/publishers"
)

var (
	accountID     string
	commentsLimit int
)

func accountFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&accountID, "account", "a", "", "Account id from the credentials file")
	_ = cmd.MarkFlagRequired("account")
}

func newDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Delete a published post",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			pub, err := a.publisher(cmd.Context(), accountID)
			if err != nil {
				return err
			}
			err = pub.Delete(cmd.Context(), args[0])
			if !publishers.DeleteSucceeded(err) {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s from %s\n", args[0], pub.Platform())
			return nil
		}),
	}
	accountFlag(cmd)
	return cmd
}

func newMetricsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics <post-id>",
		Short: "Show engagement metrics of a post",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			pub, err := a.publisher(cmd.Context(), accountID)
			if err != nil {
				return err
			}
			m, err := pub.Metrics(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		}),
	}
	accountFlag(cmd)
	return cmd
}

func newCommentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comments <post-id>",
		Short: "List comments on a post",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			pub, err := a.publisher(cmd.Context(), accountID)
			if err != nil {
				return err
			}
			comments, err := pub.Comments(cmd.Context(), args[0], commentsLimit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), comments)
		}),
	}
	accountFlag(cmd)
	cmd.Flags().IntVar(&commentsLimit, "limit", 20, "Maximum number of comments")
	return cmd
}

func newAccountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Validate an account's credentials and show its profile",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			pub, err := a.publisher(cmd.Context(), accountID)
			if err != nil {
				return err
			}
			ok, err := pub.ValidateCredentials(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("credentials for %s were rejected by %s", accountID, pub.Platform())
			}
			info, err := pub.AccountInfo(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		}),
	}
	accountFlag(cmd)
	return cmd
}

// accountSummary is a stored credential without its secrets.
type accountSummary struct {
	AccountID  string `json:"account_id"`
	Platform   string `json:"platform"`
	Username   string `json:"username,omitempty"`
	ExpiresAt  string `json:"expires_at,omitempty"`
	Refresh    bool   `json:"refreshable"`
	LegacyAuth bool   `json:"oauth1,omitempty"`
}

func newAccountsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the accounts in the credentials file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listAccounts(cmd.OutOrStdout(), auth.NewFileStore(credentialsPath))
		},
	}
}

func listAccounts(w io.Writer, store *auth.FileStore) error {
	creds, err := store.All()
	if err != nil {
		return err
	}
	summaries := lo.Map(creds, func(c model.Credential, _ int) accountSummary {
		s := accountSummary{
			AccountID:  c.AccountID,
			Platform:   string(c.Platform),
			Username:   c.Username,
			Refresh:    c.CanRefresh(),
			LegacyAuth: c.HasLegacy(),
		}
		if !c.ExpiresAt.IsZero() {
			s.ExpiresAt = c.ExpiresAt.UTC().Format(time.RFC3339)
		}
		return s
	})
	return printJSON(w, summaries)
}

func newErrorsCommand() *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Show the last lines of the errors log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tail, err := logging.Tail(errorsLogPath, lines)
			if err != nil {
				return err
			}
			if len(tail) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no errors logged")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(tail, "\n"))
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of lines to show")
	return cmd
}
