package publishers

import (
	"time"

	"github.com/tidwall/gjson"

	"social-publisher/internal/model"
)

// Graph API timestamps look like 2024-03-01T10:00:00+0000.
const graphTimeLayout = "2006-01-02T15:04:05-0700"

func limitOr(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}

// graphComments maps a Graph API comment list (Facebook and Instagram name the text field differently).
func graphComments(data gjson.Result, textField, authorField string) []model.Comment {
	out := []model.Comment{}
	data.ForEach(func(_, c gjson.Result) bool {
		out = append(out, model.Comment{
			ID:        c.Get("id").String(),
			Text:      c.Get(textField).String(),
			Author:    c.Get(authorField).String(),
			CreatedAt: parseTime(c.Get("created_time").String(), c.Get("timestamp").String()),
			LikeCount: c.Get("like_count").Int(),
		})
		return true
	})
	return out
}

// parseTime returns the first value that parses as RFC 3339 or Graph time.
func parseTime(values ...string) time.Time {
	for _, v := range values {
		if v == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, graphTimeLayout} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
