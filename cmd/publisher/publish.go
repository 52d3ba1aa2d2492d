package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"social-publisher/internal/model"
	"social-publisher/internal/publishers"
)

var (
	publishAccounts    []string
	publishTitle       string
	publishMedia       []string
	publishSettings    []string
	publishMetadata    []string
	publishConcurrency int
)

func newPublishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish [content]",
		Short: "Publish a post to one or more accounts",
		Args:  cobra.MaximumNArgs(1),
		RunE:  withApp(runPublish),
	}
	cmd.Flags().StringSliceVarP(&publishAccounts, "account", "a", nil, "Account ids from the credentials file")
	cmd.Flags().StringVar(&publishTitle, "title", "", "Post title (YouTube, Facebook video)")
	cmd.Flags().StringSliceVar(&publishMedia, "media", nil, "Media path, http(s) URL or s3://bucket/key")
	cmd.Flags().StringArrayVar(&publishSettings, "set", nil, "Platform setting as platform.key=value, e.g. twitter.thread=true")
	cmd.Flags().StringArrayVar(&publishMetadata, "meta", nil, "Metadata as key=value, e.g. link=https://example.com")
	cmd.Flags().IntVar(&publishConcurrency, "concurrency", 4, "Accounts published in parallel")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func runPublish(cmd *cobra.Command, a *app, args []string) error {
	ctx := cmd.Context()

	req := model.PostRequest{Title: publishTitle, MediaPaths: publishMedia}
	if len(args) > 0 {
		req.Content = strings.TrimSpace(args[0])
	}
	var err error
	if req.PlatformSettings, err = parseSettings(publishSettings); err != nil {
		return err
	}
	if req.Metadata, err = parsePairs(publishMetadata); err != nil {
		return err
	}

	targets := make([]publishers.Target, 0, len(publishAccounts))
	for _, id := range publishAccounts {
		cred, err := a.credential(ctx, id)
		if err != nil {
			return err
		}
		targets = append(targets, publishers.Target{Platform: string(cred.Platform), Credential: cred})
	}

	outcomes := publishers.NewManager(a.factory, publishConcurrency, a.log).PublishToSelected(ctx, targets, req)
	report := lo.MapValues(outcomes, func(o *publishers.Outcome, _ string) *model.PostResult { return o.Result })
	if err := printJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}

	failed := lo.PickBy(outcomes, func(_ string, o *publishers.Outcome) bool { return !o.Result.Success })
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d targets failed: %s", len(failed), len(outcomes), strings.Join(lo.Keys(failed), ", "))
	}
	return nil
}

// parseSettings turns platform.key=value flags into per-platform settings.
func parseSettings(values []string) (map[model.Platform]model.Settings, error) {
	out := make(map[model.Platform]model.Settings)
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		platform, key, dotted := strings.Cut(name, ".")
		if !ok || !dotted || key == "" {
			return nil, fmt.Errorf("invalid setting %q, want platform.key=value", v)
		}
		p, err := model.ParsePlatform(platform)
		if err != nil {
			return nil, err
		}
		if out[p] == nil {
			out[p] = model.Settings{}
		}
		out[p][key] = value
	}
	return out, nil
}

func parsePairs(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, errors.New("invalid metadata " + v + ", want key=value")
		}
		out[key] = value
	}
	return out, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
