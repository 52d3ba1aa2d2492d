package publishers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"social-publisher/internal/auth"
	"social-publisher/internal/media"
	"social-publisher/internal/model"
)

// graphObjectMissing is the Graph API error code for an object that does not exist or was already removed.
const graphObjectMissing = 100

// FacebookPublisher posts to a Facebook page through the Graph API.
type FacebookPublisher struct {
	acct  account
	api   *apiClient
	video *apiClient
}

func newFacebook(a account) *FacebookPublisher {
	return &FacebookPublisher{
		acct:  a,
		api:   a.client(auth.QueryTokenTransport{Client: a.HTTPClient}),
		video: a.client(auth.QueryTokenTransport{Client: a.MediaClient}),
	}
}

func (f *FacebookPublisher) Platform() model.Platform { return model.PlatformFacebook }

func (f *FacebookPublisher) graph(path string) string {
	return f.acct.Config.FacebookGraphURL + "/" + path
}

func (f *FacebookPublisher) pageID() string {
	if f.acct.cred.PlatformUserID != "" {
		return f.acct.cred.PlatformUserID
	}
	return "me"
}

// Publish posts text to /feed, images to /photos and videos to /videos.
func (f *FacebookPublisher) Publish(ctx context.Context, req model.PostRequest) (*model.PostResult, error) {
	res, err := f.publish(ctx, req)
	if err != nil {
		return failure(f.acct.log, f.Platform(), err, rawMap(res)), nil
	}
	id := res.Get("post_id").String()
	if id == "" {
		id = res.Get("id").String()
	}
	return model.Succeeded(id, "https://www.facebook.com/"+id, rawMap(res)), nil
}

func (f *FacebookPublisher) publish(ctx context.Context, req model.PostRequest) (gjson.Result, error) {
	uri, err := req.Media(model.PlatformFacebook)
	if err != nil {
		return gjson.Result{}, err
	}
	settings := req.Settings(model.PlatformFacebook)

	if uri == "" {
		form := url.Values{"message": {req.Content}}
		if link := req.Metadata["link"]; link != "" {
			form.Set("link", link)
		}
		if !settings.Bool("published", true) {
			form.Set("published", "false")
		}
		resp, err := f.api.postForm(ctx, "create feed post", f.graph(f.pageID()+"/feed"), form)
		return resp.JSON(), err
	}

	if media.IsRemote(uri) {
		return f.publishRemote(ctx, req, uri)
	}

	file, err := f.acct.Media.Open(ctx, uri)
	if err != nil {
		return gjson.Result{}, err
	}
	defer file.Close()

	switch file.Kind {
	case media.KindImage, media.KindGIF:
		fields := url.Values{"caption": {req.Content}}
		resp, err := f.api.do(ctx, "upload photo", func(ctx context.Context) (*http.Request, error) {
			return multipartRequest(ctx, http.MethodPost, f.graph(f.pageID()+"/photos"), fields,
				formFile{Field: "source", Path: file.Path, MIME: file.MIME})
		})
		return resp.JSON(), err
	case media.KindVideo:
		fields := url.Values{"description": {req.Content}}
		if req.Title != "" {
			fields.Set("title", req.Title)
		}
		resp, err := f.video.do(ctx, "upload video", func(ctx context.Context) (*http.Request, error) {
			return multipartRequest(ctx, http.MethodPost, f.graph(f.pageID()+"/videos"), fields,
				formFile{Field: "source", Path: file.Path, MIME: file.MIME})
		})
		return resp.JSON(), err
	}
	return gjson.Result{}, &model.ValidationError{Platform: model.PlatformFacebook, Reason: fmt.Sprintf("unsupported media type %q", file.MIME)}
}

func (f *FacebookPublisher) publishRemote(ctx context.Context, req model.PostRequest, uri string) (gjson.Result, error) {
	switch media.KindOfURI(uri) {
	case media.KindImage, media.KindGIF:
		form := url.Values{"url": {uri}, "caption": {req.Content}}
		resp, err := f.api.postForm(ctx, "create photo", f.graph(f.pageID()+"/photos"), form)
		return resp.JSON(), err
	case media.KindVideo:
		form := url.Values{"file_url": {uri}, "description": {req.Content}}
		if req.Title != "" {
			form.Set("title", req.Title)
		}
		resp, err := f.video.postForm(ctx, "create video", f.graph(f.pageID()+"/videos"), form)
		return resp.JSON(), err
	}
	return gjson.Result{}, &model.ValidationError{Platform: model.PlatformFacebook, Reason: "cannot tell media type of " + uri}
}

// Delete removes a post. Missing posts (404 or Graph code 100) count as deleted.
func (f *FacebookPublisher) Delete(ctx context.Context, postID string) error {
	resp, err := f.api.delete(ctx, "delete post", f.graph(postID))
	if err == nil || model.IsNotFound(err) {
		return nil
	}
	if resp != nil && resp.JSON().Get("error.code").Int() == graphObjectMissing {
		f.acct.log.Debugf("facebook: post %s already gone", postID)
		return nil
	}
	return err
}

func (f *FacebookPublisher) Metrics(ctx context.Context, postID string) (map[string]any, error) {
	q := url.Values{"fields": {"likes.summary(true),comments.summary(true),shares"}}
	resp, err := f.api.get(ctx, "post metrics", f.graph(postID), q)
	if err != nil {
		return nil, err
	}
	res := resp.JSON()
	return map[string]any{
		"likes":    res.Get("likes.summary.total_count").Int(),
		"comments": res.Get("comments.summary.total_count").Int(),
		"shares":   res.Get("shares.count").Int(),
	}, nil
}

func (f *FacebookPublisher) AccountInfo(ctx context.Context) (map[string]any, error) {
	q := url.Values{"fields": {"id,name,fan_count,link"}}
	resp, err := f.api.get(ctx, "page info", f.graph(f.pageID()), q)
	if err != nil {
		return nil, err
	}
	res := resp.JSON()
	return map[string]any{
		"id":        res.Get("id").String(),
		"name":      res.Get("name").String(),
		"followers": res.Get("fan_count").Int(),
		"url":       res.Get("link").String(),
	}, nil
}

func (f *FacebookPublisher) ValidateCredentials(ctx context.Context) (bool, error) {
	_, err := f.api.get(ctx, "validate token", f.graph("me"), url.Values{"fields": {"id"}})
	return validation(err)
}

func (f *FacebookPublisher) Comments(ctx context.Context, postID string, limit int) ([]model.Comment, error) {
	q := url.Values{
		"fields": {"id,message,from,created_time,like_count"},
		"limit":  {strconv.Itoa(limitOr(limit, 25))},
	}
	resp, err := f.api.get(ctx, "list comments", f.graph(postID+"/comments"), q)
	if err != nil {
		return nil, err
	}
	return graphComments(resp.JSON().Get("data"), "message", "from.name"), nil
}
