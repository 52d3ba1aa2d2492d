package publishers

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"social-publisher/internal/auth"
	"social-publisher/internal/media"
	"social-publisher/internal/model"
	"social-publisher/internal/poll"
)

// InstagramPublisher publishes through the two-phase container flow of the Instagram Graph API.
type InstagramPublisher struct {
	acct account
	api  *apiClient
}

func newInstagram(a account) *InstagramPublisher {
	return &InstagramPublisher{acct: a, api: a.client(auth.QueryTokenTransport{Client: a.HTTPClient})}
}

func (i *InstagramPublisher) Platform() model.Platform { return model.PlatformInstagram }

func (i *InstagramPublisher) graph(path string) string {
	return i.acct.Config.FacebookGraphURL + "/" + path
}

func (i *InstagramPublisher) userID() string {
	if i.acct.cred.PlatformUserID != "" {
		return i.acct.cred.PlatformUserID
	}
	return "me"
}

var errNoContainer = errors.New("container response has no id")

func (i *InstagramPublisher) Publish(ctx context.Context, req model.PostRequest) (*model.PostResult, error) {
	uri, err := req.Media(model.PlatformInstagram)
	if err != nil {
		return failure(i.acct.log, i.Platform(), err, nil), nil
	}
	switch {
	case uri == "":
		return failure(i.acct.log, i.Platform(), &model.ValidationError{Platform: model.PlatformInstagram, Reason: "a media item is required"}, nil), nil
	case !media.IsRemote(uri):
		return failure(i.acct.log, i.Platform(), &model.ValidationError{Platform: model.PlatformInstagram, Reason: "media must be a public http(s) URL"}, nil), nil
	}

	settings := req.Settings(model.PlatformInstagram)
	form := url.Values{"caption": {req.Content}}
	video := media.KindOfURI(uri) == media.KindVideo
	if video {
		form.Set("video_url", uri)
		form.Set("media_type", strings.ToUpper(settings.String("type", "REELS")))
		if settings.Has("share_to_feed") {
			form.Set("share_to_feed", strconv.FormatBool(settings.Bool("share_to_feed", true)))
		}
	} else {
		form.Set("image_url", uri)
		form.Set("media_type", "IMAGE")
	}

	resp, err := i.api.postForm(ctx, "create container", i.graph(i.userID()+"/media"), form)
	if err != nil {
		return failure(i.acct.log, i.Platform(), err, rawMap(resp.JSON())), nil
	}
	containerID := resp.JSON().Get("id").String()
	if containerID == "" {
		return failure(i.acct.log, i.Platform(), errNoContainer, rawMap(resp.JSON())), nil
	}
	i.acct.log.Debugf("instagram: container %s created", containerID)

	if video {
		if err := i.waitContainer(ctx, containerID); err != nil {
			return failure(i.acct.log, i.Platform(), err, nil), nil
		}
	}

	resp, err = i.api.postForm(ctx, "publish container", i.graph(i.userID()+"/media_publish"),
		url.Values{"creation_id": {containerID}})
	if err != nil {
		return failure(i.acct.log, i.Platform(), err, rawMap(resp.JSON())), nil
	}
	id := resp.JSON().Get("id").String()
	return model.Succeeded(id, i.permalink(ctx, id), rawMap(resp.JSON())), nil
}

// waitContainer polls a video container until Instagram finished processing it.
func (i *InstagramPublisher) waitContainer(ctx context.Context, id string) error {
	cfg := i.acct.Config
	_, err := poll.Until(ctx, func(ctx context.Context, attempt int) (poll.Status, error) {
		resp, err := i.api.get(ctx, "container status", i.graph(id), url.Values{"fields": {"status_code,status"}})
		if err != nil {
			return poll.Status{}, err
		}
		res := resp.JSON()
		state := res.Get("status_code").String()
		i.acct.log.Debugf("instagram: container %s state=%s attempt=%d", id, state, attempt)
		return poll.Status{
			State:  state,
			Done:   state == "FINISHED" || state == "PUBLISHED",
			Failed: state == "ERROR" || state == "EXPIRED",
			Reason: res.Get("status").String(),
		}, nil
	}, poll.Options{ID: id, Interval: cfg.PollInterval, MaxInterval: cfg.PollMaxInterval, MaxAttempts: cfg.PollMaxAttempts})
	return err
}

// permalink is best effort; the post exists even when the lookup fails.
func (i *InstagramPublisher) permalink(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	resp, err := i.api.get(ctx, "permalink", i.graph(id), url.Values{"fields": {"permalink"}})
	if err != nil {
		i.acct.log.Warnf("instagram: permalink lookup for %s failed: %v", id, err)
		return "https://www.instagram.com/"
	}
	return resp.JSON().Get("permalink").String()
}

func (i *InstagramPublisher) Delete(context.Context, string) error {
	return &model.UnsupportedOperationError{Platform: model.PlatformInstagram, Operation: "delete"}
}

func (i *InstagramPublisher) Metrics(ctx context.Context, postID string) (map[string]any, error) {
	resp, err := i.api.get(ctx, "media metrics", i.graph(postID), url.Values{"fields": {"like_count,comments_count"}})
	if err != nil {
		return nil, err
	}
	res := resp.JSON()
	return map[string]any{
		"likes":    res.Get("like_count").Int(),
		"comments": res.Get("comments_count").Int(),
	}, nil
}

func (i *InstagramPublisher) AccountInfo(ctx context.Context) (map[string]any, error) {
	q := url.Values{"fields": {"id,username,followers_count,media_count"}}
	resp, err := i.api.get(ctx, "account info", i.graph(i.userID()), q)
	if err != nil {
		return nil, err
	}
	res := resp.JSON()
	return map[string]any{
		"id":        res.Get("id").String(),
		"username":  res.Get("username").String(),
		"followers": res.Get("followers_count").Int(),
		"posts":     res.Get("media_count").Int(),
	}, nil
}

func (i *InstagramPublisher) ValidateCredentials(ctx context.Context) (bool, error) {
	_, err := i.api.get(ctx, "validate token", i.graph(i.userID()), url.Values{"fields": {"id"}})
	return validation(err)
}

func (i *InstagramPublisher) Comments(ctx context.Context, postID string, limit int) ([]model.Comment, error) {
	q := url.Values{
		"fields": {"id,text,username,timestamp,like_count"},
		"limit":  {strconv.Itoa(limitOr(limit, 25))},
	}
	resp, err := i.api.get(ctx, "list comments", i.graph(postID+"/comments"), q)
	if err != nil {
		return nil, err
	}
	return graphComments(resp.JSON().Get("data"), "text", "username"), nil
}
