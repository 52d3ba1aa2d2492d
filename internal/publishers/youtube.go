package publishers

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"social-publisher/internal/auth"
	"social-publisher/internal/media"
	"social-publisher/internal/model"
)

const (
	youtubeTitleMax        = 100
	youtubeDefaultCategory = "22" // People & Blogs
	youtubeDefaultPrivacy  = "public"
	shortsTagText          = "#Shorts"
)

// YouTubePublisher uploads with a single multipart/related request and uses the youtube/v3 client for
// everything else.
type YouTubePublisher struct {
	acct   account
	upload *apiClient
}

func newYouTube(a account) *YouTubePublisher {
	return &YouTubePublisher{acct: a, upload: a.client(auth.BearerTransport{Client: a.MediaClient})}
}

func (y *YouTubePublisher) Platform() model.Platform { return model.PlatformYouTube }

func (y *YouTubePublisher) Publish(ctx context.Context, req model.PostRequest) (*model.PostResult, error) {
	uri, err := req.Media(model.PlatformYouTube)
	if err != nil {
		return failure(y.acct.log, y.Platform(), err, nil), nil
	}
	if uri == "" {
		return failure(y.acct.log, y.Platform(), &model.ValidationError{Platform: model.PlatformYouTube, Reason: "a video is required"}, nil), nil
	}

	file, err := y.acct.Media.Open(ctx, uri)
	if err != nil {
		return failure(y.acct.log, y.Platform(), err, nil), nil
	}
	defer file.Close()
	if file.Kind != media.KindVideo {
		return failure(y.acct.log, y.Platform(), &model.ValidationError{Platform: model.PlatformYouTube, Reason: fmt.Sprintf("only video is supported, got %q", file.MIME)}, nil), nil
	}

	settings := req.Settings(model.PlatformYouTube)
	short := y.isShort(ctx, settings, file)
	metadata, err := json.Marshal(videoMetadata(req, settings, short))
	if err != nil {
		return failure(y.acct.log, y.Platform(), fmt.Errorf("encode metadata: %w", err), nil), nil
	}

	endpoint := y.acct.Config.YouTubeAPIURL + "/upload/youtube/v3/videos?uploadType=multipart&part=snippet,status"
	resp, err := y.upload.do(ctx, "upload video", func(ctx context.Context) (*http.Request, error) {
		body, boundary, err := newRelatedBody(metadata, file.Path, file.MIME)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			body.Close()
			return nil, err
		}
		req.ContentLength = body.Length
		req.Header.Set("Content-Type", "multipart/related; boundary="+boundary)
		return req, nil
	})
	if err != nil {
		return failure(y.acct.log, y.Platform(), err, rawMap(resp.JSON())), nil
	}

	id := resp.JSON().Get("id").String()
	raw := rawMap(resp.JSON())
	if raw != nil {
		raw["is_short"] = short
	}
	return model.Succeeded(id, videoURL(id, short), raw), nil
}

func videoURL(id string, short bool) string {
	if short {
		return "https://www.youtube.com/shorts/" + id
	}
	return "https://www.youtube.com/watch?v=" + id
}

// isShort uses the explicit "is_short" setting, then the declared "type", then the probed duration.
// A duration that cannot be determined classifies the video as regular.
func (y *YouTubePublisher) isShort(ctx context.Context, settings model.Settings, file *media.File) bool {
	if settings.Has("is_short") {
		return settings.Bool("is_short", false)
	}
	if t := strings.ToLower(settings.String("type", "")); t != "" {
		return t == "short" || t == "shorts"
	}
	d, err := y.acct.Prober.Duration(ctx, file.Path)
	if err != nil {
		y.acct.log.Warnf("youtube: duration probe failed, treating as regular video: %v", err)
		return false
	}
	return d > 0 && d.Seconds() <= y.acct.Config.ShortMaxSeconds
}

func videoMetadata(req model.PostRequest, settings model.Settings, short bool) *youtube.Video {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = truncateRunes(strings.TrimSpace(req.Content), youtubeTitleMax)
	}
	description := req.Content
	if short && !strings.Contains(strings.ToLower(description), strings.ToLower(shortsTagText)) {
		description = strings.TrimSpace(description + "\n\n" + shortsTagText)
	}
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: description,
			Tags:        settings.Strings("tags"),
			CategoryId:  settings.String("category_id", youtubeDefaultCategory),
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           settings.String("privacy", youtubeDefaultPrivacy),
			SelfDeclaredMadeForKids: settings.Bool("made_for_kids", false),
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// relatedBody streams a multipart/related upload: the JSON metadata part followed by the video bytes.
type relatedBody struct {
	io.Reader
	file   *os.File
	Length int64
}

func (b *relatedBody) Close() error { return b.file.Close() }

// newRelatedBody builds the body and returns the boundary it used, which the caller puts in Content-Type.
func newRelatedBody(metadata []byte, videoPath, mimeType string) (*relatedBody, string, error) {
	boundary, err := newBoundary()
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(videoPath)
	if err != nil {
		return nil, "", err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, "", err
	}
	if mimeType == "" {
		mimeType = "video/*"
	}

	var head bytes.Buffer
	fmt.Fprintf(&head, "--%s\r\n", boundary)
	head.WriteString("Content-Type: application/json; charset=UTF-8\r\n\r\n")
	head.Write(metadata)
	fmt.Fprintf(&head, "\r\n--%s\r\n", boundary)
	fmt.Fprintf(&head, "Content-Type: %s\r\nContent-Transfer-Encoding: binary\r\n\r\n", mimeType)
	tail := []byte(fmt.Sprintf("\r\n--%s--\r\n", boundary))

	return &relatedBody{
		Reader: io.MultiReader(&head, f, bytes.NewReader(tail)),
		file:   f,
		Length: int64(head.Len()) + info.Size() + int64(len(tail)),
	}, boundary, nil
}

func newBoundary() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "publisher_" + hex.EncodeToString(b), nil
}

// service builds a youtube/v3 client authorized with token.
func (y *YouTubePublisher) service(ctx context.Context, token string) (*youtube.Service, error) {
	base := context.WithValue(ctx, oauth2.HTTPClient, y.acct.HTTPClient)
	client := oauth2.NewClient(base, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	return youtube.NewService(ctx,
		option.WithHTTPClient(client),
		option.WithEndpoint(y.acct.Config.YouTubeAPIURL+"/"),
	)
}

// call runs fn with a fresh service and repeats it once with a refreshed token after a 401.
func (y *YouTubePublisher) call(ctx context.Context, op string, fn func(*youtube.Service) error) error {
	cred, err := y.acct.tokens.Token(ctx, y.acct.cred.AccountID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	svc, err := y.service(ctx, cred.AccessToken)
	if err != nil {
		return fmt.Errorf("%s: create service: %w", op, err)
	}
	err = fn(svc)
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusUnauthorized {
		return googleError(op, err)
	}

	y.acct.log.Warnf("youtube: %s rejected the access token, refreshing once", op)
	fresh, rerr := y.acct.tokens.ForceRefresh(ctx, y.acct.cred.AccountID, cred.AccessToken)
	if rerr != nil {
		return googleError(op, err)
	}
	if svc, err = y.service(ctx, fresh.AccessToken); err != nil {
		return fmt.Errorf("%s: create service: %w", op, err)
	}
	return googleError(op, fn(svc))
}

// googleError maps googleapi errors onto the error taxonomy.
func googleError(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &model.TransientTransportError{Op: op, Err: err}
	}
	switch gerr.Code {
	case http.StatusUnauthorized:
		return &model.AuthError{Platform: model.PlatformYouTube, Message: gerr.Message}
	case http.StatusNotFound:
		return &model.NotFoundError{Platform: model.PlatformYouTube, Resource: op}
	}
	return &model.APIError{Platform: model.PlatformYouTube, Status: gerr.Code, Message: gerr.Message}
}

func googleReason(err error) string {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && len(gerr.Errors) > 0 {
		return gerr.Errors[0].Reason
	}
	return ""
}

// Delete removes a video. A video that no longer exists counts as deleted.
func (y *YouTubePublisher) Delete(ctx context.Context, postID string) error {
	err := y.call(ctx, "delete video", func(svc *youtube.Service) error {
		return svc.Videos.Delete(postID).Context(ctx).Do()
	})
	if model.IsNotFound(err) {
		return nil
	}
	return err
}

func (y *YouTubePublisher) Metrics(ctx context.Context, postID string) (map[string]any, error) {
	var stats *youtube.VideoStatistics
	err := y.call(ctx, "video metrics", func(svc *youtube.Service) error {
		res, err := svc.Videos.List([]string{"statistics"}).Id(postID).Context(ctx).Do()
		if err != nil {
			return err
		}
		if len(res.Items) == 0 || res.Items[0].Statistics == nil {
			return &googleapi.Error{Code: http.StatusNotFound, Message: "video not found"}
		}
		stats = res.Items[0].Statistics
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"views":     stats.ViewCount,
		"likes":     stats.LikeCount,
		"comments":  stats.CommentCount,
		"favorites": stats.FavoriteCount,
	}, nil
}

func (y *YouTubePublisher) channel(ctx context.Context, parts ...string) (*youtube.Channel, error) {
	var ch *youtube.Channel
	err := y.call(ctx, "channel info", func(svc *youtube.Service) error {
		res, err := svc.Channels.List(parts).Mine(true).Context(ctx).Do()
		if err != nil {
			return err
		}
		if len(res.Items) == 0 {
			return &googleapi.Error{Code: http.StatusNotFound, Message: "no channel for this account"}
		}
		ch = res.Items[0]
		return nil
	})
	return ch, err
}

func (y *YouTubePublisher) AccountInfo(ctx context.Context) (map[string]any, error) {
	ch, err := y.channel(ctx, "snippet", "statistics")
	if err != nil {
		return nil, err
	}
	info := map[string]any{"id": ch.Id}
	if ch.Snippet != nil {
		info["name"] = ch.Snippet.Title
		info["handle"] = ch.Snippet.CustomUrl
	}
	if ch.Statistics != nil {
		info["subscribers"] = ch.Statistics.SubscriberCount
		info["videos"] = ch.Statistics.VideoCount
		info["views"] = ch.Statistics.ViewCount
	}
	return info, nil
}

func (y *YouTubePublisher) ValidateCredentials(ctx context.Context) (bool, error) {
	_, err := y.channel(ctx, "id")
	return validation(err)
}

// Comments lists top level comments. Videos with comments disabled yield an empty list.
func (y *YouTubePublisher) Comments(ctx context.Context, postID string, limit int) ([]model.Comment, error) {
	var threads []*youtube.CommentThread
	err := y.call(ctx, "list comments", func(svc *youtube.Service) error {
		res, err := svc.CommentThreads.List([]string{"snippet"}).
			VideoId(postID).
			MaxResults(int64(limitOr(limit, 20))).
			TextFormat("plainText").
			Context(ctx).
			Do()
		if err != nil {
			if googleReason(err) == "commentsDisabled" {
				return nil
			}
			return err
		}
		threads = res.Items
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := []model.Comment{}
	for _, th := range threads {
		if th.Snippet == nil || th.Snippet.TopLevelComment == nil || th.Snippet.TopLevelComment.Snippet == nil {
			continue
		}
		c := th.Snippet.TopLevelComment
		out = append(out, model.Comment{
			ID:        c.Id,
			Text:      c.Snippet.TextDisplay,
			Author:    c.Snippet.AuthorDisplayName,
			CreatedAt: parseTime(c.Snippet.PublishedAt),
			LikeCount: c.Snippet.LikeCount,
		})
	}
	return out, nil
}
