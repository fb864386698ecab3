// internal/monitor/types.go
package monitor

import "time"

// Result is the outcome of one validation pass.
type Result struct {
	Device string
	At     time.Time

	// LinkMbps is the negotiated line rate, 0 when down or unknown.
	LinkMbps uint32

	// Stale means the register backend failed during the pass; Err then
	// carries the transport error instead of any validation verdict.
	Stale bool

	Err error // nil means every shadowed register matched
}
