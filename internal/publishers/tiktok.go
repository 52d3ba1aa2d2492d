package publishers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"social-publisher/internal/auth"
	"social-publisher/internal/media"
	"social-publisher/internal/model"
	"social-publisher/internal/poll"
	"social-publisher/internal/upload"
)

const (
	tiktokDefaultPrivacy = "PUBLIC_TO_EVERYONE"
	tiktokFileUpload     = "FILE_UPLOAD"
	tiktokPullFromURL    = "PULL_FROM_URL"
)

// TikTokPublisher uploads videos through the Content Posting API: init, chunked PUT, then status polling.
type TikTokPublisher struct {
	acct   account
	api    *apiClient
	upload *apiClient
}

func newTikTok(a account) *TikTokPublisher {
	return &TikTokPublisher{
		acct:   a,
		api:    a.client(auth.BearerTransport{Client: a.HTTPClient}),
		upload: a.client(presigned{client: a.MediaClient}),
	}
}

// presigned sends requests to upload URLs that already carry their authorization.
type presigned struct {
	client *http.Client
}

func (p presigned) HTTPClient() *http.Client { return p.client }

func (presigned) Authorize(*http.Request, string) {}

func (presigned) Refreshable() bool { return false }

func (t *TikTokPublisher) Platform() model.Platform { return model.PlatformTikTok }

func (t *TikTokPublisher) endpoint(path string) string {
	return t.acct.Config.TikTokAPIURL + path
}

func (t *TikTokPublisher) Publish(ctx context.Context, req model.PostRequest) (*model.PostResult, error) {
	publishID, status, err := t.publish(ctx, req)
	if err != nil {
		return failure(t.acct.log, t.Platform(), err, status.Data), nil
	}

	id, _ := status.Data["post_id"].(string)
	postURL := ""
	if id != "" && t.acct.cred.Username != "" {
		postURL = fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", t.acct.cred.Username, id)
	}
	if id == "" {
		// Posts sent to the creator inbox or still under review have no public id yet.
		id = publishID
	}
	raw := map[string]any{"publish_id": publishID, "status": status.State}
	return model.Succeeded(id, postURL, raw), nil
}

func (t *TikTokPublisher) publish(ctx context.Context, req model.PostRequest) (string, poll.Status, error) {
	uri, err := req.Media(model.PlatformTikTok)
	if err != nil {
		return "", poll.Status{}, err
	}
	if uri == "" {
		return "", poll.Status{}, &model.ValidationError{Platform: model.PlatformTikTok, Reason: "a video is required"}
	}
	settings := req.Settings(model.PlatformTikTok)

	postInfo := map[string]any{
		"title":           req.Content,
		"privacy_level":   settings.String("privacy_level", tiktokDefaultPrivacy),
		"disable_comment": settings.Bool("disable_comment", false),
		"disable_duet":    settings.Bool("disable_duet", false),
		"disable_stitch":  settings.Bool("disable_stitch", false),
	}
	if ms := settings.Int("video_cover_timestamp_ms", -1); ms >= 0 {
		postInfo["video_cover_timestamp_ms"] = ms
	}

	var publishID string
	if media.IsRemote(uri) && settings.String("source", tiktokFileUpload) == tiktokPullFromURL {
		publishID, err = t.initPull(ctx, postInfo, uri)
	} else {
		publishID, err = t.initUpload(ctx, postInfo, uri)
	}
	if err != nil {
		return "", poll.Status{}, err
	}

	status, err := t.waitPublished(ctx, publishID)
	return publishID, status, err
}

func (t *TikTokPublisher) initPull(ctx context.Context, postInfo map[string]any, uri string) (string, error) {
	resp, err := t.init(ctx, map[string]any{
		"post_info":   postInfo,
		"source_info": map[string]any{"source": tiktokPullFromURL, "video_url": uri},
	})
	if err != nil {
		return "", err
	}
	id := resp.Get("data.publish_id").String()
	if id == "" {
		return "", fmt.Errorf("initialize upload: response lacks publish_id")
	}
	return id, nil
}

// initUpload opens the video (downloading remote media to a temp file), announces the chunk plan and PUTs
// every chunk to the returned upload URL.
func (t *TikTokPublisher) initUpload(ctx context.Context, postInfo map[string]any, uri string) (string, error) {
	file, err := t.acct.Media.Open(ctx, uri)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if file.Kind != media.KindVideo {
		return "", &model.ValidationError{Platform: model.PlatformTikTok, Reason: fmt.Sprintf("only video is supported, got %q", file.MIME)}
	}

	cfg := t.acct.Config
	plan := upload.Plan(file.Size, cfg.TikTokChunkSize, true)
	if len(plan) == 0 {
		return "", &model.ValidationError{Platform: model.PlatformTikTok, Reason: "video is empty"}
	}
	res, err := t.init(ctx, map[string]any{
		"post_info": postInfo,
		"source_info": map[string]any{
			"source":            tiktokFileUpload,
			"video_size":        file.Size,
			"chunk_size":        plan[0].Size,
			"total_chunk_count": len(plan),
		},
	})
	if err != nil {
		return "", err
	}
	publishID := res.Get("data.publish_id").String()
	uploadURL := res.Get("data.upload_url").String()
	if publishID == "" || uploadURL == "" {
		return "", fmt.Errorf("initialize upload: response lacks publish_id or upload_url")
	}
	t.acct.log.Debugf("tiktok: INIT publish=%s bytes=%d chunks=%d", publishID, file.Size, len(plan))

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	u := upload.Uploader{
		ChunkSize:   cfg.TikTokChunkSize,
		MaxAttempts: cfg.ChunkMaxAttempts,
		BaseDelay:   cfg.ChunkBaseDelay,
		AbsorbTail:  true,
	}
	mimeType := file.MIME
	stats, err := u.Upload(ctx, src, file.Size, func(ctx context.Context, c upload.Chunk) error {
		_, err := t.upload.do(ctx, "upload chunk", func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(c.Data))
			if err != nil {
				return nil, err
			}
			req.ContentLength = int64(len(c.Data))
			req.Header.Set("Content-Type", mimeType)
			req.Header.Set("Content-Range", c.ContentRange())
			return req, nil
		})
		return err
	}, nil)
	if err != nil {
		return "", err
	}
	t.acct.log.Debugf("tiktok: uploaded publish=%s chunks=%d retries=%d", publishID, stats.Chunks, stats.Retries)
	return publishID, nil
}

func (t *TikTokPublisher) init(ctx context.Context, payload map[string]any) (gjson.Result, error) {
	resp, err := t.api.postJSON(ctx, "initialize upload", t.endpoint("/v2/post/publish/video/init/"), payload)
	if err != nil {
		return resp.JSON(), err
	}
	return resp.JSON(), tiktokError(resp)
}

// waitPublished polls the status fetch endpoint until TikTok finished or rejected the post.
func (t *TikTokPublisher) waitPublished(ctx context.Context, publishID string) (poll.Status, error) {
	cfg := t.acct.Config
	return poll.Until(ctx, func(ctx context.Context, attempt int) (poll.Status, error) {
		resp, err := t.api.postJSON(ctx, "fetch status", t.endpoint("/v2/post/publish/status/fetch/"),
			map[string]any{"publish_id": publishID})
		if err == nil {
			err = tiktokError(resp)
		}
		if err != nil {
			return poll.Status{}, err
		}
		data := resp.JSON().Get("data")
		state := data.Get("status").String()
		t.acct.log.Debugf("tiktok: publish=%s status=%s attempt=%d", publishID, state, attempt)
		return poll.Status{
			State:  state,
			Done:   state == "PUBLISH_COMPLETE" || state == "SEND_TO_USER_INBOX",
			Failed: state == "FAILED",
			Reason: data.Get("fail_reason").String(),
			Data:   map[string]any{"post_id": data.Get("publicaly_available_post_id.0").String()},
		}, nil
	}, poll.Options{ID: publishID, Interval: cfg.PollInterval, MaxInterval: cfg.PollMaxInterval, MaxAttempts: cfg.PollMaxAttempts})
}

// tiktokError reports the error object TikTok embeds in otherwise successful responses.
func tiktokError(resp *response) error {
	res := resp.JSON()
	code := res.Get("error.code").String()
	if code == "" || code == "ok" {
		return nil
	}
	if code == "access_token_invalid" {
		return &model.AuthError{Platform: model.PlatformTikTok, Message: res.Get("error.message").String()}
	}
	return &model.APIError{
		Platform: model.PlatformTikTok,
		Status:   resp.Status,
		Message:  fmt.Sprintf("%s: %s", code, res.Get("error.message").String()),
	}
}

func (t *TikTokPublisher) Delete(context.Context, string) error {
	return &model.UnsupportedOperationError{Platform: model.PlatformTikTok, Operation: "delete"}
}

func (t *TikTokPublisher) Metrics(ctx context.Context, postID string) (map[string]any, error) {
	q := url.Values{"fields": {"id,like_count,comment_count,share_count,view_count"}}
	resp, err := t.api.postJSON(ctx, "query video", t.endpoint("/v2/video/query/?"+q.Encode()),
		map[string]any{"filters": map[string]any{"video_ids": []string{postID}}})
	if err == nil {
		err = tiktokError(resp)
	}
	if err != nil {
		return nil, err
	}
	video := resp.JSON().Get("data.videos.0")
	if !video.Exists() {
		return nil, &model.NotFoundError{Platform: model.PlatformTikTok, Resource: "video " + postID}
	}
	return map[string]any{
		"likes":    video.Get("like_count").Int(),
		"comments": video.Get("comment_count").Int(),
		"shares":   video.Get("share_count").Int(),
		"views":    video.Get("view_count").Int(),
	}, nil
}

func (t *TikTokPublisher) userInfo(ctx context.Context, fields string) (gjson.Result, error) {
	resp, err := t.api.get(ctx, "user info", t.endpoint("/v2/user/info/"), url.Values{"fields": {fields}})
	if err == nil {
		err = tiktokError(resp)
	}
	if err != nil {
		return gjson.Result{}, err
	}
	return resp.JSON().Get("data.user"), nil
}

func (t *TikTokPublisher) AccountInfo(ctx context.Context) (map[string]any, error) {
	user, err := t.userInfo(ctx, "open_id,avatar_url,display_name,follower_count,following_count,likes_count,video_count")
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":        user.Get("open_id").String(),
		"name":      user.Get("display_name").String(),
		"avatar":    user.Get("avatar_url").String(),
		"followers": user.Get("follower_count").Int(),
		"following": user.Get("following_count").Int(),
		"likes":     user.Get("likes_count").Int(),
		"videos":    user.Get("video_count").Int(),
	}, nil
}

func (t *TikTokPublisher) ValidateCredentials(ctx context.Context) (bool, error) {
	_, err := t.userInfo(ctx, "open_id")
	return validation(err)
}

// Comments is empty: the Content Posting scopes grant no comment access.
func (t *TikTokPublisher) Comments(context.Context, string, int) ([]model.Comment, error) {
	return []model.Comment{}, nil
}
