package publishers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"social-publisher/internal/media"
	"social-publisher/internal/model"
)

var ytCred = model.Credential{AccountID: "yt-1"}

func TestRelatedBody(t *testing.T) {
	path := writeVideo(t, 1500)
	video, err := os.ReadFile(path)
	require.NoError(t, err)

	body, boundary, err := newRelatedBody([]byte(`{"snippet":{"title":"t"}}`), path, "video/mp4")
	require.NoError(t, err)
	defer body.Close()
	assert.True(t, strings.HasPrefix(boundary, "publisher_"))

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, body.Length, int64(len(raw)))

	mr := multipart.NewReader(bytes.NewReader(raw), boundary)
	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "application/json; charset=UTF-8", part.Header.Get("Content-Type"))
	meta, _ := io.ReadAll(part)
	assert.Equal(t, "t", gjson.GetBytes(meta, "snippet.title").String())

	part, err = mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", part.Header.Get("Content-Type"))
	data, _ := io.ReadAll(part)
	assert.Equal(t, video, data)

	_, err = mr.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestNewBoundaryIsUnique(t *testing.T) {
	a, err := newBoundary()
	require.NoError(t, err)
	b, err := newBoundary()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

// youtubeUpload decodes the multipart/related upload and returns its metadata and video parts.
func youtubeUpload(t *testing.T, r *http.Request) (gjson.Result, []byte) {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/related", mediaType)

	mr := multipart.NewReader(r.Body, params["boundary"])
	part, err := mr.NextPart()
	require.NoError(t, err)
	meta, _ := io.ReadAll(part)
	part, err = mr.NextPart()
	require.NoError(t, err)
	video, _ := io.ReadAll(part)
	return gjson.ParseBytes(meta), video
}

func TestYouTubePublishShort(t *testing.T) {
	var meta gjson.Result
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload/youtube/v3/videos", r.URL.Path)
		assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		var video []byte
		meta, video = youtubeUpload(t, r)
		assert.Len(t, video, 2048)
		writeJSON(w, http.StatusOK, `{"id":"vid123","snippet":{"title":"Cat"}}`)
	}))

	pub := env.publisher(t, model.PlatformYouTube, ytCred)
	res, err := pub.Publish(context.Background(), model.PostRequest{
		Title:      "Cat",
		Content:    "cat jumps",
		MediaPaths: []string{writeVideo(t, 2048)},
		PlatformSettings: map[model.Platform]model.Settings{
			model.PlatformYouTube: {"is_short": true, "tags": []any{"cat", "funny"}},
		},
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "vid123", res.PostID)
	assert.Equal(t, "https://www.youtube.com/shorts/vid123", res.PostURL)
	assert.Equal(t, true, res.RawData["is_short"])

	assert.Equal(t, "Cat", meta.Get("snippet.title").String())
	assert.Equal(t, "cat jumps\n\n#Shorts", meta.Get("snippet.description").String())
	assert.Equal(t, "22", meta.Get("snippet.categoryId").String())
	assert.Equal(t, "funny", meta.Get("snippet.tags.1").String())
	assert.Equal(t, "public", meta.Get("status.privacyStatus").String())
	assert.True(t, meta.Get("status.selfDeclaredMadeForKids").Exists())
}

func TestYouTubeShortDetectionByDuration(t *testing.T) {
	tests := []struct {
		name  string
		probe media.ProbeFunc
		short bool
	}{
		{"short clip", func(context.Context, string) (time.Duration, error) { return 30 * time.Second, nil }, true},
		{"long clip", func(context.Context, string) (time.Duration, error) { return 5 * time.Minute, nil }, false},
		{"probe error", func(context.Context, string) (time.Duration, error) { return 0, errors.New("no ffprobe") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var description string
			env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				meta, _ := youtubeUpload(t, r)
				description = meta.Get("snippet.description").String()
				writeJSON(w, http.StatusOK, `{"id":"v1"}`)
			}))
			pub, err := env.factory(tt.probe).CreateFor(model.PlatformYouTube, ytCred)
			require.NoError(t, err)

			res, err := pub.Publish(context.Background(), model.PostRequest{Content: "clip", MediaPaths: []string{writeVideo(t, 512)}})
			require.NoError(t, err)
			require.True(t, res.Success, res.ErrorMessage)
			assert.Equal(t, tt.short, strings.Contains(res.PostURL, "/shorts/"))
			assert.Equal(t, tt.short, strings.Contains(description, "#Shorts"))
		})
	}
}

func TestYouTubeTitleFallsBackToContent(t *testing.T) {
	video := videoMetadata(model.PostRequest{Content: strings.Repeat("é", 150)}, nil, false)
	assert.Equal(t, 100, len([]rune(video.Snippet.Title)))
	assert.Equal(t, strings.Repeat("é", 150), video.Snippet.Description)

	video = videoMetadata(model.PostRequest{Content: "already #shorts"}, model.Settings{"privacy": "unlisted"}, true)
	assert.Equal(t, "already #shorts", video.Snippet.Description)
	assert.Equal(t, "unlisted", video.Status.PrivacyStatus)
}

func TestYouTubeRequiresVideo(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	}))
	pub := env.publisher(t, model.PlatformYouTube, ytCred)

	res, _ := pub.Publish(context.Background(), model.PostRequest{Content: "text only"})
	assert.False(t, res.Success)
	res, _ = pub.Publish(context.Background(), model.PostRequest{MediaPaths: []string{writeImage(t)}})
	assert.False(t, res.Success)
}

func TestYouTubeDeleteMissingVideo(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/youtube/v3/videos", r.URL.Path)
		if r.URL.Query().Get("id") == "gone" {
			writeJSON(w, http.StatusNotFound, `{"error":{"code":404,"message":"Video not found","errors":[{"reason":"videoNotFound"}]}}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	pub := env.publisher(t, model.PlatformYouTube, ytCred)

	assert.NoError(t, pub.Delete(context.Background(), "vid123"))
	assert.NoError(t, pub.Delete(context.Background(), "gone"))
}

func TestYouTubeMetricsRefreshesOnce(t *testing.T) {
	var calls atomic.Int32
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer token-2" {
			writeJSON(w, http.StatusUnauthorized, `{"error":{"code":401,"message":"Invalid Credentials","errors":[{"reason":"authError"}]}}`)
			return
		}
		assert.Equal(t, "statistics", r.URL.Query().Get("part"))
		writeJSON(w, http.StatusOK, `{"items":[{"id":"vid123","statistics":{"viewCount":"10","likeCount":"3","commentCount":"1","favoriteCount":"0"}}]}`)
	}))
	pub := env.publisher(t, model.PlatformYouTube, ytCred)

	m, err := pub.Metrics(context.Background(), "vid123")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), m["views"])
	assert.Equal(t, uint64(3), m["likes"])
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, env.tokens.refreshes())
}

func TestYouTubeMetricsUnknownVideo(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"items":[]}`)
	}))
	pub := env.publisher(t, model.PlatformYouTube, ytCred)

	_, err := pub.Metrics(context.Background(), "nope")
	assert.True(t, model.IsNotFound(err))
}

func TestYouTubeComments(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/youtube/v3/commentThreads", r.URL.Path)
		if r.URL.Query().Get("videoId") == "quiet" {
			writeJSON(w, http.StatusForbidden, `{"error":{"code":403,"message":"disabled","errors":[{"reason":"commentsDisabled"}]}}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"items":[{"snippet":{"topLevelComment":{"id":"c1","snippet":{
			"textDisplay":"great","authorDisplayName":"Ann","likeCount":4,"publishedAt":"2024-06-01T12:00:00Z"}}}}]}`)
	}))
	pub := env.publisher(t, model.PlatformYouTube, ytCred)
	ctx := context.Background()

	comments, err := pub.Comments(ctx, "vid123", 5)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "c1", comments[0].ID)
	assert.Equal(t, "great", comments[0].Text)
	assert.Equal(t, "Ann", comments[0].Author)
	assert.Equal(t, int64(4), comments[0].LikeCount)
	assert.True(t, comments[0].CreatedAt.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))

	comments, err = pub.Comments(ctx, "quiet", 5)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestYouTubeValidateCredentials(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("mine"))
		writeJSON(w, http.StatusOK, `{"items":[{"id":"UC1"}]}`)
	}))
	pub := env.publisher(t, model.PlatformYouTube, ytCred)

	ok, err := pub.ValidateCredentials(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)
}
