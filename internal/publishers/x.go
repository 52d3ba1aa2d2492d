package publishers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"social-publisher/internal/auth"
	"social-publisher/internal/media"
	"social-publisher/internal/model"
	"social-publisher/internal/poll"
	"social-publisher/internal/segment"
	"social-publisher/internal/upload"
)

const (
	pollMinOptions      = 2
	pollMaxOptions      = 4
	pollDefaultDuration = 1440
)

// XPublisher posts tweets through API v2 and uploads media through the v1.1 chunked media endpoint.
type XPublisher struct {
	acct   account
	api    *apiClient // tweets, users, search
	upload *apiClient // upload.twitter.com, OAuth1 signed when the account has a legacy token pair
}

func newTwitter(a account) *XPublisher {
	cfg := a.Config
	var tweets auth.Signer = auth.BearerTransport{Client: a.HTTPClient}
	if a.cred.AccessToken == "" {
		tweets = auth.SelectSigner(a.cred, cfg.TwitterConsumerKey, cfg.TwitterConsumerSecret, a.HTTPClient)
	}
	return &XPublisher{
		acct:   a,
		api:    a.client(tweets),
		upload: a.client(auth.SelectSigner(a.cred, cfg.TwitterConsumerKey, cfg.TwitterConsumerSecret, a.MediaClient)),
	}
}

func (x *XPublisher) Platform() model.Platform { return model.PlatformTwitter }

func (x *XPublisher) endpoint(path string) string {
	return x.acct.Config.TwitterAPIURL + path
}

func (x *XPublisher) uploadURL() string {
	return x.acct.Config.TwitterUploadURL + "/1.1/media/upload.json"
}

func (x *XPublisher) tweetURL(id string) string {
	if u := x.acct.cred.Username; u != "" {
		return fmt.Sprintf("https://x.com/%s/status/%s", u, id)
	}
	return "https://x.com/i/web/status/" + id
}

// Publish sends a poll, a thread or a single tweet, in that order of precedence. Content longer than the
// tweet limit, or the "thread" setting, produces a thread. The "strip_shorts_tag" setting removes #shorts
// from captions shared with YouTube.
func (x *XPublisher) Publish(ctx context.Context, req model.PostRequest) (*model.PostResult, error) {
	settings := req.Settings(model.PlatformTwitter)
	uri, err := req.Media(model.PlatformTwitter)
	if err != nil {
		return failure(x.acct.log, x.Platform(), err, nil), nil
	}
	text := req.Content
	if settings.Bool("strip_shorts_tag", false) {
		text = RemoveShortsHashtag(text)
	}
	if strings.TrimSpace(text) == "" && uri == "" {
		return failure(x.acct.log, x.Platform(), &model.ValidationError{Platform: x.Platform(), Reason: "empty content"}, nil), nil
	}

	if options := settings.Strings("poll_options"); len(options) > 0 {
		id, err := x.publishPoll(ctx, text, uri, options, settings.Int("poll_duration_minutes", pollDefaultDuration))
		if err != nil {
			return failure(x.acct.log, x.Platform(), err, nil), nil
		}
		return model.Succeeded(id, x.tweetURL(id), map[string]any{"poll_options": options}), nil
	}

	var mediaIDs []string
	if uri != "" {
		id, err := x.uploadMedia(ctx, uri)
		if err != nil {
			return failure(x.acct.log, x.Platform(), fmt.Errorf("upload media: %w", err), nil), nil
		}
		mediaIDs = []string{id}
	}

	maxLen := x.acct.Config.TweetMaxLength
	if settings.Bool("thread", false) || utf8.RuneCountInString(text) > maxLen {
		// media without text falls through to a single tweet
		if texts := segment.Split(text, maxLen); len(texts) > 0 {
			return x.publishThread(ctx, texts, mediaIDs)
		}
	}

	id, err := x.createTweet(ctx, model.Segment{Text: text, MediaIDs: mediaIDs})
	if err != nil {
		return failure(x.acct.log, x.Platform(), err, nil), nil
	}
	return model.Succeeded(id, x.tweetURL(id), map[string]any{"media_ids": mediaIDs}), nil
}

func (x *XPublisher) publishThread(ctx context.Context, texts, mediaIDs []string) (*model.PostResult, error) {
	ids, err := publishThread(ctx, segmentsOf(texts, mediaIDs), x.acct.Config.ThreadDelay, x.createTweet)
	if err != nil {
		var te *model.ThreadError
		if errors.As(err, &te) {
			x.acct.log.Errorf("twitter: thread broke at segment %d, %d tweets stay published", te.Index, len(te.PublishedIDs))
			return model.Failed(err.Error(), map[string]any{
				"published_ids": te.PublishedIDs,
				"failed_index":  te.Index,
			}), err
		}
		return failure(x.acct.log, x.Platform(), err, nil), nil
	}
	x.acct.log.Infof("twitter: thread of %d tweets published", len(ids))
	return model.Succeeded(ids[0], x.tweetURL(ids[0]), map[string]any{"thread_ids": ids}), nil
}

func (x *XPublisher) publishPoll(ctx context.Context, text, uri string, options []string, minutes int) (string, error) {
	switch {
	case uri != "":
		return "", &model.ValidationError{Platform: model.PlatformTwitter, Reason: "polls cannot carry media"}
	case len(options) < pollMinOptions || len(options) > pollMaxOptions:
		return "", &model.ValidationError{
			Platform: model.PlatformTwitter,
			Reason:   fmt.Sprintf("polls need %d to %d options, got %d", pollMinOptions, pollMaxOptions, len(options)),
		}
	}
	payload := map[string]any{
		"text": text,
		"poll": map[string]any{"options": options, "duration_minutes": minutes},
	}
	resp, err := x.api.postJSON(ctx, "create poll", x.endpoint("/2/tweets"), payload)
	if err != nil {
		return "", err
	}
	return tweetID(resp.JSON())
}

// createTweet posts one segment and returns the tweet id.
func (x *XPublisher) createTweet(ctx context.Context, seg model.Segment) (string, error) {
	payload := map[string]any{}
	if seg.Text != "" {
		payload["text"] = seg.Text
	}
	if len(seg.MediaIDs) > 0 {
		payload["media"] = map[string]any{"media_ids": seg.MediaIDs}
	}
	if seg.ReplyToID != "" {
		payload["reply"] = map[string]any{"in_reply_to_tweet_id": seg.ReplyToID}
	}
	resp, err := x.api.postJSON(ctx, "create tweet", x.endpoint("/2/tweets"), payload)
	if err != nil {
		return "", err
	}
	return tweetID(resp.JSON())
}

func tweetID(res gjson.Result) (string, error) {
	id := res.Get("data.id").String()
	if id == "" {
		return "", errors.New("create tweet: response has no id")
	}
	return id, nil
}

func mediaCategory(kind media.Kind) string {
	switch kind {
	case media.KindImage:
		return "tweet_image"
	case media.KindGIF:
		return "tweet_gif"
	case media.KindVideo:
		return "tweet_video"
	}
	return ""
}

// uploadMedia runs INIT, APPEND per chunk and FINALIZE, then polls STATUS while the media is processed.
func (x *XPublisher) uploadMedia(ctx context.Context, uri string) (string, error) {
	file, err := x.acct.Media.Open(ctx, uri)
	if err != nil {
		return "", err
	}
	defer file.Close()

	category := mediaCategory(file.Kind)
	if category == "" {
		return "", &model.ValidationError{Platform: model.PlatformTwitter, Reason: fmt.Sprintf("unsupported media type %q", file.MIME)}
	}

	resp, err := x.upload.postForm(ctx, "media INIT", x.uploadURL(), url.Values{
		"command":        {"INIT"},
		"total_bytes":    {strconv.FormatInt(file.Size, 10)},
		"media_type":     {file.MIME},
		"media_category": {category},
	})
	if err != nil {
		return "", fmt.Errorf("initialize upload: %w", err)
	}
	mediaID := resp.JSON().Get("media_id_string").String()
	if mediaID == "" {
		return "", errors.New("initialize upload: response has no media_id_string")
	}
	x.acct.log.Debugf("twitter: INIT media=%s bytes=%d category=%s", mediaID, file.Size, category)

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	var processing gjson.Result
	cfg := x.acct.Config
	u := upload.Uploader{ChunkSize: cfg.TwitterChunkSize, MaxAttempts: cfg.ChunkMaxAttempts, BaseDelay: cfg.ChunkBaseDelay}
	stats, err := u.Upload(ctx, src, file.Size,
		func(ctx context.Context, c upload.Chunk) error {
			fields := url.Values{
				"command":       {"APPEND"},
				"media_id":      {mediaID},
				"segment_index": {strconv.Itoa(c.Index)},
			}
			_, err := x.upload.do(ctx, "media APPEND", func(ctx context.Context) (*http.Request, error) {
				return multipartRequest(ctx, http.MethodPost, x.uploadURL(), fields,
					formFile{Field: "media", Name: "blob", Data: c.Data})
			})
			return err
		},
		func(ctx context.Context) error {
			resp, err := x.upload.postForm(ctx, "media FINALIZE", x.uploadURL(), url.Values{
				"command":  {"FINALIZE"},
				"media_id": {mediaID},
			})
			if err != nil {
				return err
			}
			processing = resp.JSON().Get("processing_info")
			return nil
		})
	if err != nil {
		return "", err
	}
	x.acct.log.Debugf("twitter: FINALIZE media=%s chunks=%d retries=%d", mediaID, stats.Chunks, stats.Retries)

	if !processing.Exists() {
		return mediaID, nil
	}
	return mediaID, x.waitProcessing(ctx, mediaID, processing)
}

// waitProcessing polls STATUS until the media is ready. The first status comes from FINALIZE.
func (x *XPublisher) waitProcessing(ctx context.Context, mediaID string, first gjson.Result) error {
	cfg := x.acct.Config
	_, err := poll.Until(ctx, func(ctx context.Context, attempt int) (poll.Status, error) {
		info := first
		if attempt > 1 {
			resp, err := x.upload.get(ctx, "media STATUS", x.uploadURL(), url.Values{
				"command":  {"STATUS"},
				"media_id": {mediaID},
			})
			if err != nil {
				return poll.Status{}, err
			}
			info = resp.JSON().Get("processing_info")
		}
		return processingStatus(info), nil
	}, poll.Options{ID: mediaID, Interval: cfg.PollInterval, MaxInterval: cfg.PollMaxInterval, MaxAttempts: cfg.PollMaxAttempts})
	return err
}

func processingStatus(info gjson.Result) poll.Status {
	state := info.Get("state").String()
	return poll.Status{
		State:     state,
		Done:      state == "succeeded" || !info.Exists(),
		Failed:    state == "failed",
		Reason:    firstNonEmpty(info.Get("error.message").String(), info.Get("error.name").String()),
		NextCheck: time.Duration(info.Get("check_after_secs").Int()) * time.Second,
	}
}

// Delete removes a tweet. A tweet that no longer exists counts as deleted.
func (x *XPublisher) Delete(ctx context.Context, postID string) error {
	resp, err := x.api.delete(ctx, "delete tweet", x.endpoint("/2/tweets/"+postID))
	if err != nil {
		if model.IsNotFound(err) {
			return nil
		}
		return err
	}
	if deleted := resp.JSON().Get("data.deleted"); deleted.Exists() && !deleted.Bool() {
		return fmt.Errorf("delete tweet %s: platform reported deleted=false", postID)
	}
	return nil
}

func (x *XPublisher) Metrics(ctx context.Context, postID string) (map[string]any, error) {
	resp, err := x.api.get(ctx, "tweet metrics", x.endpoint("/2/tweets/"+postID), url.Values{"tweet.fields": {"public_metrics"}})
	if err != nil {
		return nil, err
	}
	metrics, _ := resp.JSON().Get("data.public_metrics").Value().(map[string]any)
	if metrics == nil {
		metrics = map[string]any{}
	}
	return metrics, nil
}

func (x *XPublisher) AccountInfo(ctx context.Context) (map[string]any, error) {
	resp, err := x.api.get(ctx, "account info", x.endpoint("/2/users/me"),
		url.Values{"user.fields": {"public_metrics,profile_image_url"}})
	if err != nil {
		return nil, err
	}
	data := resp.JSON().Get("data")
	return map[string]any{
		"id":        data.Get("id").String(),
		"username":  data.Get("username").String(),
		"name":      data.Get("name").String(),
		"avatar":    data.Get("profile_image_url").String(),
		"followers": data.Get("public_metrics.followers_count").Int(),
		"following": data.Get("public_metrics.following_count").Int(),
		"tweets":    data.Get("public_metrics.tweet_count").Int(),
	}, nil
}

func (x *XPublisher) ValidateCredentials(ctx context.Context) (bool, error) {
	_, err := x.api.get(ctx, "validate token", x.endpoint("/2/users/me"), nil)
	return validation(err)
}

// Comments lists replies in the tweet's conversation via recent search.
func (x *XPublisher) Comments(ctx context.Context, postID string, limit int) ([]model.Comment, error) {
	limit = limitOr(limit, 10)
	// recent search accepts max_results within [10, 100]
	maxResults := lo.Clamp(limit, 10, 100)
	resp, err := x.api.get(ctx, "list replies", x.endpoint("/2/tweets/search/recent"), url.Values{
		"query":        {"conversation_id:" + postID},
		"tweet.fields": {"author_id,created_at,public_metrics"},
		"expansions":   {"author_id"},
		"user.fields":  {"username"},
		"max_results":  {strconv.Itoa(maxResults)},
	})
	if err != nil {
		return nil, err
	}
	res := resp.JSON()
	users := map[string]string{}
	res.Get("includes.users").ForEach(func(_, u gjson.Result) bool {
		users[u.Get("id").String()] = u.Get("username").String()
		return true
	})

	comments := lo.Map(res.Get("data").Array(), func(t gjson.Result, _ int) model.Comment {
		return model.Comment{
			ID:        t.Get("id").String(),
			Text:      t.Get("text").String(),
			Author:    firstNonEmpty(users[t.Get("author_id").String()], t.Get("author_id").String()),
			CreatedAt: parseTime(t.Get("created_at").String()),
			LikeCount: t.Get("public_metrics.like_count").Int(),
		}
	})
	if len(comments) > limit {
		comments = comments[:limit]
	}
	return comments, nil
}

var (
	shortsTag  = regexp.MustCompile(`(?i)(?:^|\s)#shorts\b`)
	extraSpace = regexp.MustCompile(`[ \t]{2,}`)
)

// RemoveShortsHashtag strips the #shorts tag YouTube captions carry when the same text is reused on X.
func RemoveShortsHashtag(s string) string {
	if s == "" {
		return s
	}
	s = shortsTag.ReplaceAllString(s, " ")
	return strings.TrimSpace(extraSpace.ReplaceAllString(s, " "))
}
