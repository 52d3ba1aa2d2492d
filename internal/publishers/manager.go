package publishers

import (
	"context"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"social-publisher/internal/logging"
	"social-publisher/internal/model"
)

// Target is one account a post is sent to.
type Target struct {
	Platform   string
	Credential model.Credential
}

func (t Target) key() string {
	if t.Credential.AccountID != "" {
		return t.Credential.AccountID
	}
	return t.Platform
}

// Outcome is the result of publishing to one target. Err is set for unsupported platforms and partial
// threads; Result is never nil.
type Outcome struct {
	Platform  string
	AccountID string
	Result    *model.PostResult
	Err       error
}

// Manager fans one post out to several accounts.
type Manager struct {
	factory     *Factory
	concurrency int
	log         *logging.Logger
}

// NewManager creates a manager running at most concurrency publishes at once (all at once when <= 0).
func NewManager(factory *Factory, concurrency int, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{factory: factory, concurrency: concurrency, log: log}
}

// Publish builds the adapter for platform and publishes req with it.
func (m *Manager) Publish(ctx context.Context, platform string, cred model.Credential, req model.PostRequest) (*model.PostResult, error) {
	p, err := m.factory.Create(platform, cred)
	if err != nil {
		return model.Failed(err.Error(), nil), err
	}
	return p.Publish(ctx, req)
}

// PublishToSelected publishes req to every target concurrently. Results are keyed by account id, or by
// platform for targets without one.
func (m *Manager) PublishToSelected(ctx context.Context, targets []Target, req model.PostRequest) map[string]*Outcome {
	var (
		mu      sync.Mutex
		results = make(map[string]*Outcome, len(targets))
	)
	g, gctx := errgroup.WithContext(ctx)
	if m.concurrency > 0 {
		g.SetLimit(m.concurrency)
	}
	for _, t := range lo.UniqBy(targets, Target.key) {
		g.Go(func() error {
			res, err := m.Publish(gctx, t.Platform, t.Credential, req)
			mu.Lock()
			results[t.key()] = &Outcome{Platform: t.Platform, AccountID: t.Credential.AccountID, Result: res, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	ok := lo.CountBy(lo.Values(results), func(o *Outcome) bool { return o.Result.Success })
	m.log.Infof("published to %d/%d targets", ok, len(results))
	return results
}

// Supported lists the platform identifiers the factory can build.
func (m *Manager) Supported() []string {
	return lo.Map(model.Platforms, func(p model.Platform, _ int) string { return string(p) })
}
