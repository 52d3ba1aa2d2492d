package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"

	"social-publisher/internal/model"
)

var clientSecretsPath string

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Authorize accounts and store their credentials",
	}
	youtubeCmd := &cobra.Command{
		Use:   "youtube",
		Short: "Run the Google OAuth consent flow and store a YouTube credential",
		Args:  cobra.NoArgs,
		RunE:  withApp(runYouTubeToken),
	}
	accountFlag(youtubeCmd)
	youtubeCmd.Flags().StringVar(&clientSecretsPath, "client-secrets", "client_secrets.json", "OAuth client file downloaded from the Google Cloud console")
	cmd.AddCommand(youtubeCmd)
	return cmd
}

func runYouTubeToken(cmd *cobra.Command, a *app, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	b, err := os.ReadFile(clientSecretsPath)
	if err != nil {
		return fmt.Errorf("read client secrets: %w", err)
	}
	config, err := google.ConfigFromJSON(b, youtube.YoutubeUploadScope, youtube.YoutubeScope, youtube.YoutubeForceSslScope)
	if err != nil {
		return fmt.Errorf("parse client secrets: %w", err)
	}

	fmt.Fprintln(out, "Open this URL in your browser and authorize the channel:")
	fmt.Fprintf(out, "  %s\n\n", config.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce))
	fmt.Fprint(out, "Authorization code: ")

	var code string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &code); err != nil {
		return fmt.Errorf("read authorization code: %w", err)
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	if token.RefreshToken == "" {
		a.log.Warnf("google returned no refresh token; the credential stops working at %s", token.Expiry)
	}

	cred := model.Credential{
		AccountID:    accountID,
		Platform:     model.PlatformYouTube,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if err := a.store.Save(ctx, cred); err != nil {
		return err
	}
	fmt.Fprintf(out, "saved credential %s to %s\n", accountID, credentialsPath)

	pub, err := a.factory.Create(string(model.PlatformYouTube), cred)
	if err != nil {
		return err
	}
	info, err := pub.AccountInfo(ctx)
	if err != nil {
		a.log.Warnf("could not verify channel: %v", err)
		return nil
	}
	return printJSON(out, info)
}
