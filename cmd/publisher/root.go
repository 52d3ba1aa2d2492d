package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"social-publisher/internal"
	"social-publisher/internal/auth"
	"social-publisher/internal/logging"
	"social-publisher/internal/media"
	"social-publisher/internal/model"
	"social-publisher/internal/publishers"
	"social-publisher/internal/s3"
)

var (
	credentialsPath string
	errorsLogPath   string
	verbose         bool
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publisher",
		Short: "Publish posts to social platforms",
		Long: "publisher sends one post to Facebook, Instagram, X, TikTok, YouTube or LinkedIn accounts stored in a " +
			"credentials file, and manages what was published.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: `  publisher publish --account yt-main --media ./clip.mp4 --title "Cat" --set youtube.privacy=unlisted
  publisher publish --account x-main --account fb-page "Release shipped"
  publisher metrics --account x-main 1790000000000000000`,
	}

	cmd.PersistentFlags().StringVar(&credentialsPath, "credentials", envOr("PUBLISH_CREDENTIALS", "credentials.json"), "JSON file with account credentials")
	cmd.PersistentFlags().StringVar(&errorsLogPath, "errors-log", "errors.log", "Mirror errors into this file (empty disables)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newPublishCommand(),
		newDeleteCommand(),
		newMetricsCommand(),
		newCommentsCommand(),
		newAccountCommand(),
		newAccountsCommand(),
		newTokenCommand(),
		newErrorsCommand(),
	)
	return cmd
}

// app wires configuration, credentials and adapters for one CLI invocation.
type app struct {
	cfg     internal.Config
	log     *logging.Logger
	store   *auth.FileStore
	factory *publishers.Factory
}

func newApp() (*app, error) {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(logging.Options{ErrorsPath: errorsLogPath, Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	httpClient := publishers.NewHTTPClient(cfg.ConnectTimeout, cfg.RequestTimeout)
	mediaClient := publishers.NewHTTPClient(cfg.ConnectTimeout, cfg.MediaTimeout)

	s3c, err := s3.New(cfg)
	if err != nil {
		log.Warnf("s3 media disabled: %v", err)
	}

	store := auth.NewFileStore(credentialsPath)
	tokens := auth.NewProvider(store, auth.DefaultRefreshers(cfg, httpClient), auth.ProviderOptions{
		CacheSize: cfg.TokenCacheSize,
		CacheTTL:  cfg.TokenCacheTTL,
		Skew:      cfg.RefreshSkew,
		Log:       log,
	})

	factory := publishers.NewFactory(publishers.Deps{
		Config:      cfg,
		Tokens:      tokens,
		Media:       media.NewResolver(mediaClient, s3c, cfg.TempDir, log),
		Log:         log,
		HTTPClient:  httpClient,
		MediaClient: mediaClient,
	})
	return &app{cfg: cfg, log: log, store: store, factory: factory}, nil
}

func (a *app) Close() error {
	return a.log.Close()
}

// credential loads a stored account.
func (a *app) credential(ctx context.Context, accountID string) (model.Credential, error) {
	cred, err := a.store.Load(ctx, accountID)
	if err != nil {
		return model.Credential{}, err
	}
	if cred.Platform == "" {
		return model.Credential{}, fmt.Errorf("credential %q has no platform", accountID)
	}
	return cred, nil
}

func (a *app) publisher(ctx context.Context, accountID string) (publishers.Publisher, error) {
	cred, err := a.credential(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return a.factory.Create(string(cred.Platform), cred)
}

// withApp builds the app for a command and tears it down afterwards.
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
