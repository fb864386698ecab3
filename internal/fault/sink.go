// internal/fault/sink.go
package fault

import (
	"fmt"
	"sync"

	"github.com/platinasystems/log"
)

// Level is the severity of a Record.
type Level uint32

const (
	LevelWarn Level = 2
	LevelErr  Level = 3
)

// Code is the numeric error type of a Record.
type Code uint32

const (
	CodeInvalidArg Code = 2
	CodeOpNotSupp  Code = 3
	CodeHWFail     Code = 4
)

// Record is one hardware-level failure report.
// The shape is part of the output contract; the transport is not.
type Record struct {
	Component string
	Level     Level
	Code      Code
	Text      string
	Arg       uint64
}

func (r Record) String() string {
	return fmt.Sprintf("%s: %s (code=%d arg=0x%x)", r.Component, r.Text, r.Code, r.Arg)
}

// Sink receives failure records.
type Sink interface {
	Report(r Record)
}

// LogSink forwards records to the platform log.
type LogSink struct{}

func (LogSink) Report(r Record) {
	pri := "err"
	if r.Level == LevelWarn {
		pri = "warn"
	}
	log.Print("daemon", pri, r.String())
}

type discard struct{}

func (discard) Report(Record) {}

// Discard drops every record.
var Discard Sink = discard{}

// Recorder keeps records in memory.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

func (r *Recorder) Report(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// Records returns a copy of everything reported so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Last returns the most recent record, if any.
func (r *Recorder) Last() (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return Record{}, false
	}
	return r.records[len(r.records)-1], true
}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}
