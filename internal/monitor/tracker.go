// internal/monitor/tracker.go
package monitor

import (
	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/fault"
	"github.com/tamzrod/nicplane/internal/status"
)

// Tracker folds results into the published status snapshot.
// It owns the state; writers only deliver it.
type Tracker struct {
	snap status.Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{snap: status.Initial()}
}

func (t *Tracker) Snapshot() status.Snapshot { return t.snap }

// Apply records one result and reports whether the snapshot changed.
// seconds_in_error is advanced by Tick only.
func (t *Tracker) Apply(res Result) bool {
	next := t.snap
	next.LinkSpeed = status.LinkSpeedSlot(res.LinkMbps)

	if res.Err == nil {
		// Recovery / OK
		next.Health = status.HealthOK
		next.LastErrorCode = 0
		next.SecondsInError = 0
		next.CorruptIndex = status.CorruptNone
	} else {
		next.Health = status.HealthError
		if res.Stale {
			next.Health = status.HealthStale
		}
		next.LastErrorCode = fault.StatusCode(res.Err)

		// The index describes the current error only.
		next.CorruptIndex = status.CorruptNone
		var ce *fault.CorruptionError
		if errors.As(res.Err, &ce) {
			next.CorruptIndex = ce.Slot()
		}
	}

	changed := next != t.snap
	t.snap = next
	return changed
}

// Tick advances seconds_in_error while not OK, saturating at 65535.
// It reports whether the snapshot changed.
func (t *Tracker) Tick() bool {
	if t.snap.Health == status.HealthOK || t.snap.SecondsInError == 65535 {
		return false
	}
	t.snap.SecondsInError++
	return true
}
