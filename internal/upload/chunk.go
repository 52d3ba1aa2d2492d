// Package upload sends a byte stream to a platform as ordered, individually retried chunks.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"social-publisher/internal/model"
)

// Chunk is one byte range of the stream.
type Chunk struct {
	Index  int
	Offset int64
	Data   []byte
	Total  int64
	Final  bool
}

// End is the inclusive offset of the last byte of the chunk.
func (c Chunk) End() int64 {
	return c.Offset + int64(len(c.Data)) - 1
}

// ContentRange renders the chunk as an HTTP Content-Range value ("bytes 0-1023/4096").
func (c Chunk) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", c.Offset, c.End(), c.Total)
}

// Range is a planned chunk before its bytes are read.
type Range struct {
	Offset int64
	Size   int64
}

// Plan splits total bytes into chunkSize ranges. With absorbTail the last range takes the remainder
// instead of producing a short trailing chunk (TikTok sizing rules).
func Plan(total, chunkSize int64, absorbTail bool) []Range {
	if total <= 0 || chunkSize <= 0 {
		return nil
	}
	if total <= chunkSize {
		return []Range{{Offset: 0, Size: total}}
	}
	n := total / chunkSize
	if !absorbTail && total%chunkSize != 0 {
		n++
	}
	out := make([]Range, 0, n)
	for i := int64(0); i < n; i++ {
		off := i * chunkSize
		size := chunkSize
		if i == n-1 {
			size = total - off
		}
		out = append(out, Range{Offset: off, Size: size})
	}
	return out
}

// SendFunc delivers one chunk. Errors for which model.IsPermanent holds are not retried.
type SendFunc func(ctx context.Context, c Chunk) error

// FinalizeFunc is invoked once after every chunk was accepted. It may be nil for implicit finalization.
type FinalizeFunc func(ctx context.Context) error

type Uploader struct {
	ChunkSize   int64
	MaxAttempts int
	BaseDelay   time.Duration
	AbsorbTail  bool
}

// Stats summarizes a finished upload.
type Stats struct {
	Chunks    int
	BytesSent int64
	Retries   int
}

// Upload reads total bytes from r and sends them chunk by chunk.
func (u Uploader) Upload(ctx context.Context, r io.Reader, total int64, send SendFunc, finalize FinalizeFunc) (Stats, error) {
	var stats Stats
	if u.ChunkSize <= 0 {
		return stats, errors.New("upload: chunk size must be positive")
	}
	maxAttempts := u.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	ranges := Plan(total, u.ChunkSize, u.AbsorbTail)
	for i, rg := range ranges {
		buf := make([]byte, rg.Size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return stats, fmt.Errorf("read chunk %d: %w", i, err)
		}
		chunk := Chunk{Index: i, Offset: rg.Offset, Data: buf, Total: total, Final: i == len(ranges)-1}

		attempts := 0
		op := func() error {
			attempts++
			err := send(ctx, chunk)
			if err != nil && model.IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		b := backoff.WithContext(backoff.WithMaxRetries(&linearBackOff{base: u.BaseDelay}, uint64(maxAttempts-1)), ctx)
		if err := backoff.Retry(op, b); err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			return stats, &model.UploadFailedError{Chunk: i, Attempts: attempts, Err: err}
		}
		stats.Chunks++
		stats.BytesSent += int64(len(buf))
		stats.Retries += attempts - 1
	}

	if finalize != nil {
		if err := finalize(ctx); err != nil {
			return stats, fmt.Errorf("finalize upload: %w", err)
		}
	}
	return stats, nil
}

// linearBackOff waits attempt*base between tries.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.base
}

func (b *linearBackOff) Reset() { b.attempt = 0 }
