// internal/mac/mac_test.go
package mac

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/fault"
	"github.com/tamzrod/nicplane/internal/poll"
	"github.com/tamzrod/nicplane/internal/regio"
)

const testBase = 0x40000

func at(off uint32) uint64 { return testBase + uint64(off) }

// newFile returns a register file whose flush bits clear on write.
func newFile() *regio.File {
	f := regio.NewFile()
	f.OnWrite = func(a uint64, v uint32) uint32 {
		for q := uint32(0); q < 4; q++ {
			if a == at(mtlTxOpMode(q)) {
				return v &^ uint32(TxOpFTQ)
			}
		}
		return v
	}
	return f
}

func newCore(f *regio.File, d *poll.Counter, rec *fault.Recorder) *Core {
	return New(f, testBase, Options{
		Policy: poll.Policy{MaxAttempts: 3, DelayUsec: 1000},
		Delay:  d.Delay,
		Sink:   rec,
	})
}

func initCore(t *testing.T, f *regio.File, queues ...Queue) *Core {
	t.Helper()
	c := newCore(f, &poll.Counter{}, &fault.Recorder{})
	if _, err := c.Init(queues); err != nil {
		t.Fatalf("Init err=%v", err)
	}
	return c
}

// ---- init ----

func TestInitWriteOrder(t *testing.T) {
	f := newFile()
	initCore(t, f, Queue{ID: 1, TxFifo: 4096, RxFifo: 8192})

	want := []uint64{
		at(mtlTxOpMode(1)), // flush
		at(mtlTxOpMode(1)),
		at(mtlRxOpMode(1)),
		at(mtlTxQW(1)),
		at(regRQC0R),
		at(regSBUS),
	}
	got := f.Writes()
	if len(got) != len(want) {
		t.Fatalf("writes: got=%d want=%d (%+v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Addr != want[i] {
			t.Fatalf("write %d: got=0x%x want=0x%x", i, got[i].Addr, want[i])
		}
	}
}

func TestInitValues(t *testing.T) {
	f := newFile()
	f.Poke(at(mtlRxOpMode(1)), 0x0FF00001) // stale size field, unrelated bit 0
	initCore(t, f, Queue{ID: 1, TxFifo: 4096, RxFifo: 8192})

	cases := []struct {
		name string
		addr uint64
		want uint32
	}{
		{"tx op mode", at(mtlTxOpMode(1)), 0x000F000A},
		{"rx op mode", at(mtlRxOpMode(1)), 0x01F00021},
		{"tx weight", at(mtlTxQW(1)), 0x19},
		{"rqc0", at(regRQC0R), 0x8},
		{"sbus", at(regSBUS), 0x1F1F080C},
	}
	for _, c := range cases {
		if got := f.Peek(c.addr); got != c.want {
			t.Fatalf("%s: got=0x%x want=0x%x", c.name, got, c.want)
		}
	}
}

func TestInitTracksOnlyEnabledQueues(t *testing.T) {
	f := newFile()
	c := initCore(t, f, Queue{ID: 0, TxFifo: 2048, RxFifo: 2048}, Queue{ID: 2, TxFifo: 2048, RxFifo: 2048})

	// fixed registers plus three per enabled queue
	if got, want := c.Safety().Used(), 15+numHashRegs+2*3; got != want {
		t.Fatalf("used: got=%d want=%d", got, want)
	}
	if c.Safety().Block() != fault.BlockCore {
		t.Fatalf("block: got=%v", c.Safety().Block())
	}

	f.ResetLog()
	err := c.ConfigureQueue(Queue{ID: 1, TxFifo: 2048, RxFifo: 2048})
	if !errors.Is(err, fault.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if n := len(f.Log()); n != 0 {
		t.Fatalf("expected no register access, got %d", n)
	}
}

func TestInitRejects(t *testing.T) {
	cases := []struct {
		name   string
		queues []Queue
	}{
		{"queue out of range", []Queue{{ID: 4, TxFifo: 2048, RxFifo: 2048}}},
		{"duplicate queue", []Queue{{ID: 0, TxFifo: 2048, RxFifo: 2048}, {ID: 0, TxFifo: 2048, RxFifo: 2048}}},
		{"zero fifo", []Queue{{ID: 0, RxFifo: 2048}}},
		{"unaligned fifo", []Queue{{ID: 0, TxFifo: 2000, RxFifo: 2048}}},
		{"fifo too large", []Queue{{ID: 0, TxFifo: 2048, RxFifo: MaxFifo + FifoBlock}}},
	}

	for _, tc := range cases {
		f := newFile()
		c := newCore(f, &poll.Counter{}, &fault.Recorder{})
		if _, err := c.Init(tc.queues); !errors.Is(err, fault.ErrInvalidArgument) {
			t.Fatalf("%s: expected ErrInvalidArgument, got %v", tc.name, err)
		}
		if n := len(f.Log()); n != 0 {
			t.Fatalf("%s: expected no register access, got %d", tc.name, n)
		}
	}
}

func TestFlushTimeout(t *testing.T) {
	f := regio.NewFile() // flush bit never clears
	rec := &fault.Recorder{}
	delay := &poll.Counter{}
	c := newCore(f, delay, rec)

	_, err := c.Init([]Queue{{ID: 0, TxFifo: 2048, RxFifo: 2048}})
	var te *fault.TimeoutError
	if !errors.As(err, &te) || te.Stage != fault.StageTxQueueFlush {
		t.Fatalf("expected flush timeout, got %v", err)
	}
	if got := delay.Calls(); got != 3 {
		t.Fatalf("delay calls: got=%d want=3", got)
	}
	if last, ok := rec.Last(); !ok || last.Component != "mac" || last.Code != fault.CodeHWFail {
		t.Fatalf("unexpected record: %+v", last)
	}
}

// ---- validate ----

func TestValidateAfterInit(t *testing.T) {
	f := newFile()
	f.Poke(at(regMCR), 0xFFFFFFFF)
	f.Poke(at(regPadAutoCal), 0x12345678)
	c := initCore(t, f, Queue{ID: 0, TxFifo: 2048, RxFifo: 2048})

	if err := c.Validate(); err != nil {
		t.Fatalf("Validate err=%v", err)
	}
}

func TestValidateDetectsCoreCorruption(t *testing.T) {
	f := newFile()
	c := initCore(t, f, Queue{ID: 3, TxFifo: 2048, RxFifo: 2048})
	if err := c.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}

	// receiver switched off behind our back
	f.Poke(at(regMCR), f.Peek(at(regMCR))&^uint32(MCRRE))

	var ce *fault.CorruptionError
	if err := c.Validate(); !errors.As(err, &ce) {
		t.Fatalf("expected corruption, got %v", err)
	}
	if ce.Block != fault.BlockCore || ce.Index != idxMCR {
		t.Fatalf("corruption: got=%+v", ce)
	}

	// queue registers are validated too
	if err := c.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	f.Poke(at(mtlRxOpMode(3)), 0)
	if err := c.Validate(); !errors.As(err, &ce) || ce.Index != idxRxOpMode0+3 {
		t.Fatalf("expected rx op mode corruption, got %v", err)
	}
}

func TestValidateIgnoresSelfClearingFlush(t *testing.T) {
	f := newFile()
	c := initCore(t, f, Queue{ID: 0, TxFifo: 2048, RxFifo: 2048})

	f.Poke(at(mtlTxOpMode(0)), f.Peek(at(mtlTxOpMode(0)))|uint32(TxOpFTQ))
	if err := c.Validate(); err != nil {
		t.Fatalf("flush bit is outside the mask: %v", err)
	}
}

func TestBeforeInit(t *testing.T) {
	c := newCore(regio.NewFile(), &poll.Counter{}, &fault.Recorder{})
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error before init")
	}
	if err := c.Start(); err == nil {
		t.Fatalf("expected error before init")
	}
}

// ---- mac ----

func TestSetSpeed(t *testing.T) {
	cases := []struct {
		mbps uint32
		want MCR
	}{
		{10, MCRPS},
		{100, MCRPS | MCRFES},
		{1000, 0},
		{2500, 0},
	}

	for _, tc := range cases {
		f := newFile()
		f.Poke(at(regMCR), uint32(MCRPS|MCRFES|MCRDM))
		c := initCore(t, f)

		if err := c.SetSpeed(tc.mbps); err != nil {
			t.Fatalf("SetSpeed(%d) err=%v", tc.mbps, err)
		}
		got := MCR(f.Peek(at(regMCR)))
		if got&(MCRPS|MCRFES) != tc.want || got&MCRDM == 0 {
			t.Fatalf("SetSpeed(%d): got=0x%x", tc.mbps, uint32(got))
		}
		if err := c.Validate(); err != nil {
			t.Fatalf("SetSpeed(%d): Validate err=%v", tc.mbps, err)
		}
	}
}

func TestSetDuplex(t *testing.T) {
	f := newFile()
	rec := &fault.Recorder{}
	c := newCore(f, &poll.Counter{}, rec)
	if _, err := c.Init(nil); err != nil {
		t.Fatalf("Init err=%v", err)
	}

	if err := c.SetDuplex(HalfDuplex); err != nil {
		t.Fatalf("half: %v", err)
	}
	if v := MCR(f.Peek(at(regMCR))); v&MCRDM != 0 || v&MCRDO == 0 {
		t.Fatalf("half: got=0x%x", uint32(v))
	}

	if err := c.SetDuplex(FullDuplex); err != nil {
		t.Fatalf("full: %v", err)
	}
	if v := MCR(f.Peek(at(regMCR))); v&MCRDM == 0 || v&MCRDO != 0 {
		t.Fatalf("full: got=0x%x", uint32(v))
	}

	f.ResetLog()
	if err := c.SetDuplex(Duplex(7)); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if n := len(f.Writes()); n != 0 {
		t.Fatalf("invalid mode must not write: got=%d", n)
	}
	if last, _ := rec.Last(); last.Code != fault.CodeInvalidArg {
		t.Fatalf("unexpected record: %+v", last)
	}
}

func TestStartStop(t *testing.T) {
	f := newFile()
	c := initCore(t, f)

	if err := c.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	if v := MCR(f.Peek(at(regMCR))); v&(MCRTE|MCRRE) != MCRTE|MCRRE {
		t.Fatalf("start: got=0x%x", uint32(v))
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop err=%v", err)
	}
	if v := MCR(f.Peek(at(regMCR))); v&(MCRTE|MCRRE) != 0 {
		t.Fatalf("stop: got=0x%x", uint32(v))
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate err=%v", err)
	}
}

func TestSetForwardErrors(t *testing.T) {
	f := newFile()
	c := initCore(t, f, Queue{ID: 2, TxFifo: 2048, RxFifo: 2048})

	if err := c.SetForwardErrors(2, true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if f.Peek(at(mtlRxOpMode(2)))&uint32(RxOpFEP) == 0 {
		t.Fatalf("FEP not set")
	}
	if err := c.SetForwardErrors(2, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if f.Peek(at(mtlRxOpMode(2)))&uint32(RxOpFEP) != 0 {
		t.Fatalf("FEP not cleared")
	}
	if err := c.SetForwardErrors(0, true); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Fatalf("queue 0 not enabled: got %v", err)
	}
}
