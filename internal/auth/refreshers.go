package auth

import (
	"net/http"

	"golang.org/x/oauth2"

	"social-publisher/internal"
	"social-publisher/internal/model"
)

const linkedInTokenURL = "https://www.linkedin.com/oauth/v2/accessToken"

// DefaultRefreshers builds a refresher for every platform whose application credentials are configured.
func DefaultRefreshers(cfg internal.Config, client *http.Client) map[model.Platform]Refresher {
	out := make(map[model.Platform]Refresher)
	if cfg.GoogleClientID != "" {
		out[model.PlatformYouTube] = NewOAuth2Refresher(cfg.GoogleClientID, cfg.GoogleClientSecret,
			cfg.GoogleTokenURL, oauth2.AuthStyleInParams, client)
	}
	if cfg.TwitterClientID != "" {
		out[model.PlatformTwitter] = NewOAuth2Refresher(cfg.TwitterClientID, cfg.TwitterClientSecret,
			cfg.TwitterAPIURL+"/2/oauth2/token", oauth2.AuthStyleInHeader, client)
	}
	if cfg.LinkedInClientID != "" {
		out[model.PlatformLinkedIn] = NewOAuth2Refresher(cfg.LinkedInClientID, cfg.LinkedInClientSecret,
			linkedInTokenURL, oauth2.AuthStyleInParams, client)
	}
	if cfg.TikTokClientKey != "" {
		out[model.PlatformTikTok] = &TikTokRefresher{
			BaseURL:      cfg.TikTokAPIURL,
			ClientKey:    cfg.TikTokClientKey,
			ClientSecret: cfg.TikTokClientSecret,
			HTTPClient:   client,
		}
	}
	if cfg.FacebookAppID != "" {
		fb := &FacebookRefresher{
			GraphURL:   cfg.FacebookGraphURL,
			AppID:      cfg.FacebookAppID,
			AppSecret:  cfg.FacebookAppSecret,
			HTTPClient: client,
		}
		// Instagram business accounts use page tokens issued by the same app.
		out[model.PlatformFacebook] = fb
		out[model.PlatformInstagram] = fb
	}
	return out
}
