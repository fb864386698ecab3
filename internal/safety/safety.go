// internal/safety/safety.go
package safety

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/fault"
	"github.com/tamzrod/nicplane/internal/regio"
)

// Kind is one tracked DMA channel register kind. Each kind has one slot
// per channel.
type Kind int

const (
	KindChanCtrl Kind = iota
	KindTxCtrl
	KindRxCtrl
	KindTxRingLen
	KindRxRingLen
	KindIntrEnable

	NumKinds = 6
)

func (k Kind) String() string {
	switch k {
	case KindChanCtrl:
		return "ctrl"
	case KindTxCtrl:
		return "tx_ctrl"
	case KindRxCtrl:
		return "rx_ctrl"
	case KindTxRingLen:
		return "tdrl"
	case KindRxRingLen:
		return "rdrl"
	case KindIntrEnable:
		return "intr_ena"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MaxChannels bounds the channel number of any tracked register.
const MaxChannels = 4

// NumEntries is the size of a DMA channel Config.
const NumEntries = NumKinds * MaxChannels

// Index returns the slot of register kind k on channel ch.
func Index(k Kind, ch uint32) int { return int(k)*MaxChannels + int(ch) }

// Tracked describes how to locate and mask one register kind.
type Tracked struct {
	Kind   Kind
	Offset func(ch uint32) uint32
	Mask   uint32
}

// Layout lists the tracked register kinds of a block.
type Layout []Tracked

// Slot places one register at a fixed shadow index.
type Slot struct {
	Index  int
	Name   string
	Offset uint32
	Mask   uint32
}

// Entry is the shadow of one register.
// Value holds the last intended value, already masked.
type Entry struct {
	Index  int
	Name   string
	Offset uint32
	Mask   uint32
	Value  uint32

	used bool
}

// Used reports whether the slot tracks a register.
func (e Entry) Used() bool { return e.used }

// Config shadows the safety-critical registers of one block for one
// device session. It is created once after reset and clock enable;
// entries are only overwritten afterwards.
type Config struct {
	mu      sync.Mutex
	block   fault.Block
	bank    regio.Bank
	sink    fault.Sink
	entries []Entry
}

// New builds the DMA channel shadow for the enabled channels.
// Slot numbering follows Index.
func New(io regio.RegisterIO, base uintptr, layout Layout, channels []uint32, sink fault.Sink) (*Config, error) {
	for _, ch := range channels {
		if ch >= MaxChannels {
			return nil, errors.Wrapf(fault.ErrInvalidArgument, "safety: channel %d out of range", ch)
		}
	}
	for _, t := range layout {
		if t.Kind < 0 || t.Kind >= NumKinds || t.Offset == nil {
			return nil, errors.Wrapf(fault.ErrInvalidArgument, "safety: bad layout kind %v", t.Kind)
		}
	}

	var slots []Slot
	for _, ch := range channels {
		for _, t := range layout {
			slots = append(slots, Slot{
				Index:  Index(t.Kind, ch),
				Name:   fmt.Sprintf("%s%d", t.Kind, ch),
				Offset: t.Offset(ch),
				Mask:   t.Mask,
			})
		}
	}
	return NewSlots(io, base, fault.BlockDMA, NumEntries, slots, sink)
}

// NewSlots builds a shadow of size entries. Only the listed slots are
// tracked; the rest stay unused. The current hardware contents of every
// tracked register become the baseline, trusted as-is.
func NewSlots(io regio.RegisterIO, base uintptr, block fault.Block, size int, slots []Slot, sink fault.Sink) (*Config, error) {
	if size <= 0 {
		return nil, errors.Wrapf(fault.ErrInvalidArgument, "safety: size %d", size)
	}

	c := &Config{
		block:   block,
		bank:    regio.NewBank(io, base),
		sink:    fault.OrDiscard(sink),
		entries: make([]Entry, size),
	}
	for i := range c.entries {
		c.entries[i].Index = i
	}

	for _, sl := range slots {
		if sl.Index < 0 || sl.Index >= size {
			return nil, errors.Wrapf(fault.ErrInvalidArgument, "safety: slot %d out of range", sl.Index)
		}
		e := &c.entries[sl.Index]
		if e.used {
			return nil, errors.Wrapf(fault.ErrInvalidArgument, "safety: slot %d tracked twice", sl.Index)
		}
		e.Name = sl.Name
		e.Offset = sl.Offset
		e.Mask = sl.Mask
		e.used = true
	}

	// Power-on-reset baseline.
	for i := range c.entries {
		e := &c.entries[i]
		if !e.used {
			continue
		}
		e.Value = c.bank.Get(e.Offset) & e.Mask
	}

	return c, nil
}

// Block returns the register set this shadow belongs to.
func (c *Config) Block() fault.Block { return c.block }

// CheckedWrite writes v to the register at idx and records v&mask as the
// intended value. Write and shadow update are atomic with respect to other
// CheckedWrite and ValidateAll calls.
func (c *Config) CheckedWrite(idx int, v uint32) error {
	if idx < 0 || idx >= len(c.entries) || !c.entries[idx].used {
		return errors.Wrapf(fault.ErrInvalidArgument, "safety: index %d not tracked", idx)
	}

	c.mu.Lock()
	e := &c.entries[idx]
	c.bank.Set(e.Offset, v)
	e.Value = v & e.Mask
	c.mu.Unlock()

	return nil
}

// ValidateAll compares every tracked register against its shadow.
// It stops at the first mismatch. A mismatch seen while the backend
// reports a transfer failure returns that failure instead.
func (c *Config) ValidateAll() error {
	c.mu.Lock()
	for i := range c.entries {
		e := &c.entries[i]
		if !e.used {
			continue
		}
		got := c.bank.Get(e.Offset) & e.Mask
		if got == e.Value {
			continue
		}
		want, name := e.Value, e.Name
		c.mu.Unlock()

		// A lost transfer reads as a master abort, not as corruption.
		if err := regio.Err(c.bank.IO); err != nil {
			return errors.Wrap(err, "safety: register backend")
		}

		c.sink.Report(fault.Record{
			Component: "safety",
			Level:     fault.LevelErr,
			Code:      fault.CodeHWFail,
			Text:      fmt.Sprintf("%s register %s content differs from last write", c.block, name),
			Arg:       uint64(i),
		})
		return &fault.CorruptionError{Block: c.block, Index: i, Want: want, Got: got}
	}
	c.mu.Unlock()

	return nil
}

// Entry returns a copy of slot idx.
func (c *Config) Entry(idx int) (Entry, bool) {
	if idx < 0 || idx >= len(c.entries) {
		return Entry{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[idx], true
}

// Used returns the number of tracked (non-sentinel) entries.
func (c *Config) Used() (n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].used {
			n++
		}
	}
	return
}
