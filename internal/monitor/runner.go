// internal/monitor/runner.go
package monitor

import (
	"context"
	"time"
)

// Run starts the ticker loop and emits Result on the provided channel.
// One goroutine per device. No overlap. No retries.
func (m *Monitor) Run(ctx context.Context, out chan<- Result) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case out <- m.CheckOnce():
			case <-ctx.Done():
				return
			}
		}
	}
}
