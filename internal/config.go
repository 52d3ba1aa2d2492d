package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	MiB = 1024 * 1024

	tiktokMinChunk = 5 * MiB
	tiktokMaxChunk = 64 * MiB
)

type Config struct {
	// API roots, overridable so tests can point adapters at fake servers.
	FacebookGraphURL string
	TwitterAPIURL    string
	TwitterUploadURL string
	TikTokAPIURL     string
	YouTubeAPIURL    string
	LinkedInAPIURL   string
	GoogleTokenURL   string

	// OAuth application credentials used for signing and token refresh.
	TwitterConsumerKey    string
	TwitterConsumerSecret string
	TwitterClientID       string
	TwitterClientSecret   string
	GoogleClientID        string
	GoogleClientSecret    string
	TikTokClientKey       string
	TikTokClientSecret    string
	FacebookAppID         string
	FacebookAppSecret     string
	LinkedInClientID      string
	LinkedInClientSecret  string

	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	ConnectTimeout time.Duration // dial timeout for every client
	RequestTimeout time.Duration // default API call timeout
	MediaTimeout   time.Duration // uploads and remote media downloads

	ChunkMaxAttempts int
	ChunkBaseDelay   time.Duration
	TwitterChunkSize int64
	TikTokChunkSize  int64

	PollInterval    time.Duration
	PollMaxInterval time.Duration // ceiling applied to platform supplied check-after hints
	PollMaxAttempts int

	ThreadDelay     time.Duration
	TweetMaxLength  int
	RequestsPerSec  float64
	RefreshSkew     time.Duration
	TokenCacheSize  int
	TokenCacheTTL   time.Duration
	TempDir         string
	ShortMaxSeconds float64
}

// Default returns the configuration used when no environment overrides are present.
func Default() Config {
	return Config{
		FacebookGraphURL: "https://graph.facebook.com/v19.0",
		TwitterAPIURL:    "https://api.twitter.com",
		TwitterUploadURL: "https://upload.twitter.com",
		TikTokAPIURL:     "https://open.tiktokapis.com",
		YouTubeAPIURL:    "https://www.googleapis.com",
		LinkedInAPIURL:   "https://api.linkedin.com",
		GoogleTokenURL:   "https://oauth2.googleapis.com/token",

		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 30 * time.Second,
		MediaTimeout:   600 * time.Second,

		ChunkMaxAttempts: 3,
		ChunkBaseDelay:   time.Second,
		TwitterChunkSize: 5 * MiB,
		TikTokChunkSize:  10 * MiB,

		PollInterval:    2 * time.Second,
		PollMaxInterval: 10 * time.Second,
		PollMaxAttempts: 30,

		ThreadDelay:     500 * time.Millisecond,
		TweetMaxLength:  280,
		RequestsPerSec:  5,
		RefreshSkew:     60 * time.Second,
		TokenCacheSize:  1024,
		TokenCacheTTL:   time.Hour,
		TempDir:         os.TempDir(),
		ShortMaxSeconds: 60,
	}
}

func LoadConfig() (Config, error) {
	cfg := Default()

	cfg.FacebookGraphURL = envString("FACEBOOK_GRAPH_URL", cfg.FacebookGraphURL)
	cfg.TwitterAPIURL = envString("TWITTER_API_URL", cfg.TwitterAPIURL)
	cfg.TwitterUploadURL = envString("TWITTER_UPLOAD_URL", cfg.TwitterUploadURL)
	cfg.TikTokAPIURL = envString("TIKTOK_API_URL", cfg.TikTokAPIURL)
	cfg.YouTubeAPIURL = envString("YOUTUBE_API_URL", cfg.YouTubeAPIURL)
	cfg.LinkedInAPIURL = envString("LINKEDIN_API_URL", cfg.LinkedInAPIURL)
	cfg.GoogleTokenURL = envString("GOOGLE_TOKEN_URL", cfg.GoogleTokenURL)

	cfg.TwitterConsumerKey = firstNonEmpty(os.Getenv("TWITTER_CONSUMER_KEY"), os.Getenv("X_CONSUMER_KEY"))
	cfg.TwitterConsumerSecret = firstNonEmpty(os.Getenv("TWITTER_CONSUMER_SECRET"), os.Getenv("X_CONSUMER_SECRET"))
	cfg.TwitterClientID = firstNonEmpty(os.Getenv("TWITTER_CLIENT_ID"), os.Getenv("X_CLIENT_ID"))
	cfg.TwitterClientSecret = firstNonEmpty(os.Getenv("TWITTER_CLIENT_SECRET"), os.Getenv("X_CLIENT_SECRET"))
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.TikTokClientKey = os.Getenv("TIKTOK_CLIENT_KEY")
	cfg.TikTokClientSecret = os.Getenv("TIKTOK_CLIENT_SECRET")
	cfg.FacebookAppID = os.Getenv("FACEBOOK_APP_ID")
	cfg.FacebookAppSecret = os.Getenv("FACEBOOK_APP_SECRET")
	cfg.LinkedInClientID = os.Getenv("LINKEDIN_CLIENT_ID")
	cfg.LinkedInClientSecret = os.Getenv("LINKEDIN_CLIENT_SECRET")

	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3Region = firstNonEmpty(os.Getenv("S3_REGION"), "us-east-1")
	cfg.S3AccessKey = firstNonEmpty(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_ACCESS_KEY_ID"))
	cfg.S3SecretKey = firstNonEmpty(os.Getenv("S3_SECRET_ACCESS_KEY"), os.Getenv("S3_SECRET_ACCESS_KEY_ID"))

	cfg.ConnectTimeout = envDuration("PUBLISH_CONNECT_TIMEOUT", cfg.ConnectTimeout)
	cfg.RequestTimeout = envDuration("PUBLISH_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.MediaTimeout = envDuration("PUBLISH_MEDIA_TIMEOUT", cfg.MediaTimeout)

	cfg.ChunkMaxAttempts = envInt("PUBLISH_CHUNK_MAX_ATTEMPTS", cfg.ChunkMaxAttempts)
	cfg.ChunkBaseDelay = envDuration("PUBLISH_CHUNK_BASE_DELAY", cfg.ChunkBaseDelay)
	cfg.TwitterChunkSize = int64(envInt("TWITTER_CHUNK_SIZE", int(cfg.TwitterChunkSize)))
	cfg.TikTokChunkSize = int64(envInt("TIKTOK_CHUNK_SIZE", int(cfg.TikTokChunkSize)))

	cfg.PollInterval = envDuration("PUBLISH_POLL_INTERVAL", cfg.PollInterval)
	cfg.PollMaxInterval = envDuration("PUBLISH_POLL_MAX_INTERVAL", cfg.PollMaxInterval)
	cfg.PollMaxAttempts = envInt("PUBLISH_POLL_MAX_ATTEMPTS", cfg.PollMaxAttempts)

	cfg.ThreadDelay = envDuration("PUBLISH_THREAD_DELAY", cfg.ThreadDelay)
	cfg.TweetMaxLength = envInt("TWITTER_MAX_TWEET_LENGTH", cfg.TweetMaxLength)
	cfg.RefreshSkew = envDuration("PUBLISH_TOKEN_REFRESH_SKEW", cfg.RefreshSkew)
	cfg.TokenCacheSize = envInt("PUBLISH_TOKEN_CACHE_SIZE", cfg.TokenCacheSize)
	cfg.TokenCacheTTL = envDuration("PUBLISH_TOKEN_CACHE_TTL", cfg.TokenCacheTTL)
	cfg.TempDir = envString("PUBLISH_TEMP_DIR", cfg.TempDir)

	if v := os.Getenv("PUBLISH_REQUESTS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RequestsPerSec = f
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that would make uploads or polling unbounded or invalid.
func (c Config) Validate() error {
	var errs []error
	if c.ChunkMaxAttempts <= 0 {
		errs = append(errs, errors.New("chunk max attempts must be positive"))
	}
	if c.TwitterChunkSize <= 0 {
		errs = append(errs, errors.New("twitter chunk size must be positive"))
	}
	if c.TikTokChunkSize < tiktokMinChunk || c.TikTokChunkSize > tiktokMaxChunk {
		errs = append(errs, fmt.Errorf("tiktok chunk size must be within [%d, %d] bytes", tiktokMinChunk, tiktokMaxChunk))
	}
	if c.PollMaxAttempts <= 0 {
		errs = append(errs, errors.New("poll max attempts must be positive"))
	}
	if c.TweetMaxLength <= 0 {
		errs = append(errs, errors.New("tweet max length must be positive"))
	}
	if c.RequestTimeout <= 0 || c.MediaTimeout <= 0 || c.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	return errors.Join(errs...)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return strings.TrimRight(v, "/")
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}
