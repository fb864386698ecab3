// internal/monitor/monitor.go
package monitor

import (
	"time"

	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/pcs"
)

// Validator compares shadowed registers against hardware.
type Validator interface {
	Validate() error
}

// Chain validates each register set in order and stops at the first
// failure.
type Chain []Validator

func (c Chain) Validate() error {
	for _, v := range c {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// LinkReader samples link state without side effects.
type LinkReader interface {
	Link() pcs.LinkStatus
}

// Backend exposes the latched transport error of a register backend.
type Backend interface {
	Err() error
	ClearErr()
}

// Config is the minimal runtime config the monitor needs.
type Config struct {
	Device   string
	Interval time.Duration
}

// Monitor is a clock-driven validator. Link and Backend are optional.
type Monitor struct {
	cfg     Config
	v       Validator
	Link    LinkReader
	Backend Backend

	now func() time.Time
}

// New creates a monitor with immutable config.
func New(cfg Config, v Validator) (*Monitor, error) {
	if cfg.Device == "" {
		return nil, errors.New("monitor: device name required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("monitor: interval must be > 0")
	}
	if v == nil {
		return nil, errors.New("monitor: validator required")
	}
	return &Monitor{cfg: cfg, v: v, now: time.Now}, nil
}

// CheckOnce performs exactly one validation pass.
func (m *Monitor) CheckOnce() Result {
	res := Result{
		Device: m.cfg.Device,
		At:     m.now(),
	}

	res.Err = m.v.Validate()

	if m.Link != nil {
		if ls := m.Link.Link(); ls.Up {
			res.LinkMbps = uint32(ls.Speed)
		}
	}

	// A failed transfer makes every value read in this pass suspect.
	if m.Backend != nil {
		if err := m.Backend.Err(); err != nil {
			m.Backend.ClearErr()
			res.Stale = true
			res.LinkMbps = 0
			res.Err = errors.Wrap(err, "monitor: backend")
		}
	}

	return res
}
