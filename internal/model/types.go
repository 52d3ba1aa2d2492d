package model

import (
	"fmt"
	"strings"
	"time"
)

type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformLinkedIn  Platform = "linkedin"
)

// Platforms lists every platform a publisher can be created for.
var Platforms = []Platform{
	PlatformFacebook,
	PlatformInstagram,
	PlatformTwitter,
	PlatformTikTok,
	PlatformYouTube,
	PlatformLinkedIn,
}

// ParsePlatform maps a user supplied identifier onto a Platform. "x" is accepted as an alias for twitter.
func ParsePlatform(s string) (Platform, error) {
	id := strings.ToLower(strings.TrimSpace(s))
	if id == "x" {
		return PlatformTwitter, nil
	}
	for _, p := range Platforms {
		if string(p) == id {
			return p, nil
		}
	}
	return "", &UnsupportedPlatformError{Platform: s}
}

// PostRequest is the normalized input handed to every publisher.
type PostRequest struct {
	Content          string                `json:"content"`
	Title            string                `json:"title,omitempty"`
	MediaPaths       []string              `json:"media_paths,omitempty"` // local path, http(s) URL or s3://bucket/key
	PlatformSettings map[Platform]Settings `json:"platform_settings,omitempty"`
	Metadata         map[string]string     `json:"metadata,omitempty"` // e.g. "link"
}

// Settings returns the per-platform settings, never nil.
func (r PostRequest) Settings(p Platform) Settings {
	if s, ok := r.PlatformSettings[p]; ok && s != nil {
		return s
	}
	return Settings{}
}

// Media returns the single media item a publisher consumes, or "" when none was given.
func (r PostRequest) Media(p Platform) (string, error) {
	switch len(r.MediaPaths) {
	case 0:
		return "", nil
	case 1:
		return strings.TrimSpace(r.MediaPaths[0]), nil
	default:
		return "", &ValidationError{
			Platform: p,
			Reason:   fmt.Sprintf("%d media items given, only one is supported", len(r.MediaPaths)),
		}
	}
}

// PostResult is the normalized output of a publish call.
type PostResult struct {
	Success      bool           `json:"success"`
	PostID       string         `json:"post_id,omitempty"`
	PostURL      string         `json:"post_url,omitempty"`
	RawData      map[string]any `json:"raw_data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Succeeded builds a successful result. An empty id is treated as a failure so that a success always carries one.
func Succeeded(id, url string, raw map[string]any) *PostResult {
	if id == "" {
		return Failed("platform returned no post id", raw)
	}
	return &PostResult{Success: true, PostID: id, PostURL: url, RawData: raw}
}

// Failed builds a failed result.
func Failed(msg string, raw map[string]any) *PostResult {
	if msg == "" {
		msg = "unknown error"
	}
	return &PostResult{Success: false, ErrorMessage: msg, RawData: raw}
}

// Credential is the access material of one connected account.
type Credential struct {
	AccountID      string            `json:"account_id"`
	Platform       Platform          `json:"platform"`
	PlatformUserID string            `json:"platform_user_id,omitempty"` // page id, instagram business id, open_id
	Username       string            `json:"username,omitempty"`
	AccessToken    string            `json:"access_token"`
	RefreshToken   string            `json:"refresh_token,omitempty"`
	ExpiresAt      time.Time         `json:"expires_at,omitempty"`
	Legacy         *LegacyCredential `json:"legacy,omitempty"`
}

// LegacyCredential is an OAuth1 token pair.
type LegacyCredential struct {
	Token  string `json:"token"`
	Secret string `json:"secret"`
}

// Expired reports whether the access token is expired or will be within skew. A zero ExpiresAt never expires.
func (c Credential) Expired(now time.Time, skew time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(c.ExpiresAt)
}

// CanRefresh reports whether the credential carries a refresh token.
func (c Credential) CanRefresh() bool {
	return c.RefreshToken != ""
}

// HasLegacy reports whether a usable OAuth1 token pair is attached.
func (c Credential) HasLegacy() bool {
	return c.Legacy != nil && c.Legacy.Token != "" && c.Legacy.Secret != ""
}

// Segment is one post of a thread. Media is attached to the first segment only.
type Segment struct {
	Text      string   `json:"text"`
	MediaIDs  []string `json:"media_ids,omitempty"`
	ReplyToID string   `json:"reply_to_id,omitempty"`
}

type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	LikeCount int64     `json:"like_count,omitempty"`
}
