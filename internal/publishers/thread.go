package publishers

import (
	"context"
	"time"

	"social-publisher/internal/model"
)

// postSegment publishes one segment and returns its post id.
type postSegment func(ctx context.Context, seg model.Segment) (string, error)

// publishThread posts segments in order, each replying to the previous one. A failure on the first segment
// is returned as is. A failure later returns *model.ThreadError naming the failing (zero based) index and
// the ids that stay published; later segments are not attempted.
func publishThread(ctx context.Context, segments []model.Segment, delay time.Duration, post postSegment) ([]string, error) {
	if len(segments) == 0 {
		return nil, &model.ValidationError{Reason: "thread has no segments"}
	}
	ids := make([]string, 0, len(segments))
	for i, seg := range segments {
		if i > 0 {
			seg.ReplyToID = ids[i-1]
			seg.MediaIDs = nil
			if err := pause(ctx, delay); err != nil {
				return ids, &model.ThreadError{Index: i, PublishedIDs: ids, Err: err}
			}
		}
		id, err := post(ctx, seg)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			return ids, &model.ThreadError{Index: i, PublishedIDs: ids, Err: err}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// segmentsOf turns split texts into segments with mediaIDs on the first one.
func segmentsOf(texts []string, mediaIDs []string) []model.Segment {
	segs := make([]model.Segment, len(texts))
	for i, t := range texts {
		segs[i] = model.Segment{Text: t}
	}
	if len(segs) > 0 {
		segs[0].MediaIDs = mediaIDs
	}
	return segs
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
