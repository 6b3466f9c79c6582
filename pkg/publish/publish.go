package publish

import "context"

// Publisher is the hook invoked after a successful restore to trigger
// redeployment of the restored site. Implementations are adapters
// around whatever actually redeploys (a version-control push, a
// deployment API call); orchestration logic never shells out directly.
type Publisher interface {
	Name() string
	Publish(ctx context.Context) error
}

// Noop is used when no publish hook is configured
type Noop struct{}

func (Noop) Name() string                      { return "noop" }
func (Noop) Publish(ctx context.Context) error { return nil }
