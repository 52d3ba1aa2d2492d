package publishers

import (
	"context"

	"social-publisher/internal/auth"
	"social-publisher/internal/model"
)

// LinkedInPublisher can identify the member but does not publish: posting is not implemented for LinkedIn.
type LinkedInPublisher struct {
	acct account
	api  *apiClient
}

func newLinkedIn(a account) *LinkedInPublisher {
	return &LinkedInPublisher{acct: a, api: a.client(auth.BearerTransport{Client: a.HTTPClient})}
}

func (l *LinkedInPublisher) Platform() model.Platform { return model.PlatformLinkedIn }

func (l *LinkedInPublisher) Publish(context.Context, model.PostRequest) (*model.PostResult, error) {
	err := &model.UnsupportedOperationError{Platform: model.PlatformLinkedIn, Operation: "publish"}
	return failure(l.acct.log, l.Platform(), err, nil), nil
}

func (l *LinkedInPublisher) Delete(context.Context, string) error {
	return &model.UnsupportedOperationError{Platform: model.PlatformLinkedIn, Operation: "delete"}
}

func (l *LinkedInPublisher) Metrics(context.Context, string) (map[string]any, error) {
	return nil, &model.UnsupportedOperationError{Platform: model.PlatformLinkedIn, Operation: "metrics"}
}

// AccountInfo reads the OpenID Connect userinfo of the member.
func (l *LinkedInPublisher) AccountInfo(ctx context.Context) (map[string]any, error) {
	resp, err := l.api.get(ctx, "userinfo", l.acct.Config.LinkedInAPIURL+"/v2/userinfo", nil)
	if err != nil {
		return nil, err
	}
	res := resp.JSON()
	return map[string]any{
		"id":     res.Get("sub").String(),
		"name":   res.Get("name").String(),
		"email":  res.Get("email").String(),
		"avatar": res.Get("picture").String(),
	}, nil
}

func (l *LinkedInPublisher) ValidateCredentials(ctx context.Context) (bool, error) {
	_, err := l.api.get(ctx, "userinfo", l.acct.Config.LinkedInAPIURL+"/v2/userinfo", nil)
	return validation(err)
}

func (l *LinkedInPublisher) Comments(context.Context, string, int) ([]model.Comment, error) {
	return []model.Comment{}, nil
}
