// internal/poll/poll.go
package poll

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ErrExhausted is returned by Until when the retry budget runs out.
// Callers wrap it into a stage-specific fault.
var ErrExhausted = errors.New("poll: retry budget exhausted")

// Delay blocks the calling goroutine for usec microseconds.
type Delay func(usec uint32)

// Sleep is the production Delay.
func Sleep(usec uint32) { time.Sleep(time.Duration(usec) * time.Microsecond) }

// Policy is a retry budget. It is a value, never mutated.
type Policy struct {
	MaxAttempts uint32
	DelayUsec   uint32
}

// Default is shared by every bring-up wait.
var Default = Policy{MaxAttempts: 1000, DelayUsec: 1000}

// Worst returns the upper bound on time spent sleeping in one Until call.
func (p Policy) Worst() time.Duration {
	return time.Duration(p.MaxAttempts) * time.Duration(p.DelayUsec) * time.Microsecond
}

// Until evaluates cond until it reports true.
//
// The attempt counter starts at 0 and the budget is exhausted once it
// exceeds MaxAttempts, so cond is checked MaxAttempts+1 times and delay
// runs at most MaxAttempts times. A condition already true on the first
// check returns without any delay.
func Until(cond func() bool, p Policy, delay Delay) error {
	var count uint32
	for {
		if cond() {
			return nil
		}
		count++
		if count > p.MaxAttempts {
			return ErrExhausted
		}
		delay(p.DelayUsec)
	}
}

// Counter is a Delay that records invocations instead of sleeping.
type Counter struct {
	calls int64
	usec  int64
}

func (c *Counter) Delay(usec uint32) {
	atomic.AddInt64(&c.calls, 1)
	atomic.AddInt64(&c.usec, int64(usec))
}

func (c *Counter) Calls() int    { return int(atomic.LoadInt64(&c.calls)) }
func (c *Counter) Total() uint64 { return uint64(atomic.LoadInt64(&c.usec)) }
