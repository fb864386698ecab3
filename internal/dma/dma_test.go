// internal/dma/dma_test.go
package dma

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/fault"
	"github.com/tamzrod/nicplane/internal/poll"
	"github.com/tamzrod/nicplane/internal/regio"
)

const testBase = 0x20000

func at(off uint32) uint64 { return testBase + uint64(off) }

func newDMA(f *regio.File, d *poll.Counter, rec *fault.Recorder) *DMA {
	return New(f, testBase, Options{
		Policy: poll.Policy{MaxAttempts: 3, DelayUsec: 1000},
		Delay:  d.Delay,
		Sink:   rec,
	})
}

func defaultChannel(id uint32) Channel {
	return Channel{ID: id, Config: ChannelConfig{
		BufferLength: 1536,
		Watchdog:     true,
		WatchdogUsec: 1000,
		TSO:          true,
		OSF:          true,
	}}
}

// ---- configure ----

func TestConfigureWriteOrder(t *testing.T) {
	f := regio.NewFile()
	d := newDMA(f, &poll.Counter{}, &fault.Recorder{})

	if _, err := d.Init([]Channel{defaultChannel(1)}); err != nil {
		t.Fatalf("Init err=%v", err)
	}

	want := []uint64{
		at(chanIntrEna(1)),
		at(chanCtrl(1)),
		at(chanTxCtrl(1)),
		at(chanRxCtrl(1)),
		at(chanRxWDT(1)),
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

func TestConfigureValues(t *testing.T) {
	f := regio.NewFile()
	d := newDMA(f, &poll.Counter{}, &fault.Recorder{})

	if _, err := d.Init([]Channel{defaultChannel(0)}); err != nil {
		t.Fatalf("Init err=%v", err)
	}

	checks := []struct {
		name string
		off  uint32
		want uint32
	}{
		{"intr_ena", chanIntrEna(0), uint32(IntrTIE | IntrRIE)},
		{"ctrl", chanCtrl(0), uint32(CtrlPBLx8)},
		{"tx_ctrl", chanTxCtrl(0), uint32(TxOSF | TxPBLRecommended | TxTSE)},
		{"rx_ctrl", chanRxCtrl(0), 1536<<1 | uint32(RxPBLRecommended)},
		{"rx_wdt", chanRxWDT(0), 244 | uint32(WdtUnit512Cycle)},
	}
	for _, c := range checks {
		if got := f.Peek(at(c.off)); got != c.want {
			t.Fatalf("%s: got=0x%x want=0x%x", c.name, got, c.want)
		}
	}
}

func TestConfigurePreservesUnrelatedBits(t *testing.T) {
	f := regio.NewFile()
	f.Poke(at(chanIntrEna(2)), 0x8000)
	f.Poke(at(chanCtrl(2)), 0x3)
	f.Poke(at(chanTxCtrl(2)), 0x1)
	f.Poke(at(chanRxCtrl(2)), 0x80007FFE) // stale buffer size must be replaced
	f.Poke(at(chanRxWDT(2)), 0xABC300FF)

	d := newDMA(f, &poll.Counter{}, &fault.Recorder{})
	c := defaultChannel(2)
	c.Config.TSO = false
	c.Config.OSF = false
	c.Config.WatchdogUsec = 100

	if _, err := d.Init([]Channel{c}); err != nil {
		t.Fatalf("Init err=%v", err)
	}

	if got, want := f.Peek(at(chanIntrEna(2))), uint32(0x8000|IntrTIE|IntrRIE); got != want {
		t.Fatalf("intr_ena: got=0x%x want=0x%x", got, want)
	}
	if got, want := f.Peek(at(chanCtrl(2))), uint32(0x3|CtrlPBLx8); got != want {
		t.Fatalf("ctrl: got=0x%x want=0x%x", got, want)
	}
	if got, want := f.Peek(at(chanTxCtrl(2))), uint32(0x1|TxPBLRecommended); got != want {
		t.Fatalf("tx_ctrl: got=0x%x want=0x%x", got, want)
	}
	if got, want := f.Peek(at(chanRxCtrl(2))), uint32(0x80000000|1536<<1|RxPBLRecommended); got != want {
		t.Fatalf("rx_ctrl: got=0x%x want=0x%x", got, want)
	}
	// 100 usec at 125 MHz is 24 counts.
	if got, want := f.Peek(at(chanRxWDT(2))), uint32(0xABC00000|24|WdtUnit512Cycle); got != want {
		t.Fatalf("rx_wdt: got=0x%x want=0x%x", got, want)
	}
}

func TestConfigureWatchdogSkipped(t *testing.T) {
	cases := []ChannelConfig{
		{BufferLength: 2048, Watchdog: true, WatchdogUsec: WatchdogUnlimited},
		{BufferLength: 2048, Watchdog: false, WatchdogUsec: 10},
	}
	for i, c := range cases {
		f := regio.NewFile()
		d := newDMA(f, &poll.Counter{}, &fault.Recorder{})
		if _, err := d.Init([]Channel{{ID: 0, Config: c}}); err != nil {
			t.Fatalf("case %d: Init err=%v", i, err)
		}
		if n := len(f.Writes(at(chanRxWDT(0)))); n != 0 {
			t.Fatalf("case %d: watchdog writes got=%d want=0", i, n)
		}
	}
}

func TestWatchdogCycles(t *testing.T) {
	cases := []struct {
		usec, hz, want uint32
	}{
		{0, DefaultAxiClockHz, 0},
		{1000, DefaultAxiClockHz, 244},
		{100, DefaultAxiClockHz, 24},
		{1000, 250000000, 488},
		// no 32-bit overflow for large intervals
		{WatchdogUnlimited - 1, DefaultAxiClockHz, uint32(uint64(WatchdogUnlimited-1) * 125 / 512)},
	}
	for _, c := range cases {
		if got := WatchdogCycles(c.usec, c.hz); got != c.want {
			t.Fatalf("WatchdogCycles(%d, %d): got=%d want=%d", c.usec, c.hz, got, c.want)
		}
	}
}

func TestValidateAfterConfigure(t *testing.T) {
	f := regio.NewFile()
	d := newDMA(f, &poll.Counter{}, &fault.Recorder{})

	chans := []Channel{defaultChannel(0), defaultChannel(1), defaultChannel(3)}
	if _, err := d.Init(chans); err != nil {
		t.Fatalf("Init err=%v", err)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate err=%v", err)
	}

	// Hardware drops the transmit interrupt enable on channel 3.
	f.Poke(at(chanIntrEna(3)), uint32(IntrRIE))

	var ce *fault.CorruptionError
	if err := d.Validate(); !errors.As(err, &ce) {
		t.Fatalf("expected CorruptionError, got %v", err)
	}
}

func TestConfigureRejects(t *testing.T) {
	f := regio.NewFile()
	d := newDMA(f, &poll.Counter{}, &fault.Recorder{})

	if err := d.Configure(0, defaultChannel(0).Config); err == nil {
		t.Fatalf("expected error before init")
	}
	if _, err := d.Init([]Channel{defaultChannel(0)}); err != nil {
		t.Fatalf("Init err=%v", err)
	}
	f.ResetLog()

	if err := d.Configure(1, defaultChannel(1).Config); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Fatalf("disabled channel: expected ErrInvalidArgument, got %v", err)
	}
	big := defaultChannel(0).Config
	big.BufferLength = MaxBufferLength + 1
	if err := d.Configure(0, big); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Fatalf("buffer length: expected ErrInvalidArgument, got %v", err)
	}
	if n := len(f.Log()); n != 0 {
		t.Fatalf("rejected configure touched hardware: %d accesses", n)
	}
}

// ---- ring length / slot ----

func TestSetRingLength(t *testing.T) {
	f := regio.NewFile()
	d := newDMA(f, &poll.Counter{}, &fault.Recorder{})
	if _, err := d.Init([]Channel{defaultChannel(0)}); err != nil {
		t.Fatalf("Init err=%v", err)
	}

	if err := d.SetRingLength(0, 512, 1024); err != nil {
		t.Fatalf("SetRingLength err=%v", err)
	}
	if got := f.Peek(at(chanTDRL(0))); got != 511 {
		t.Fatalf("tdrl: got=%d want=511", got)
	}
	if got := f.Peek(at(chanRDRL(0))); got != 1023 {
		t.Fatalf("rdrl: got=%d want=1023", got)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate err=%v", err)
	}

	if err := d.SetRingLength(0, 0, 16); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Fatalf("zero length: expected ErrInvalidArgument, got %v", err)
	}
	if err := d.SetRingLength(0, 16, 1025); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Fatalf("long ring: expected ErrInvalidArgument, got %v", err)
	}
}

func TestConfigSlot(t *testing.T) {
	f := regio.NewFile()
	f.Poke(at(chanSlot(1)), 0x30000)
	d := newDMA(f, &poll.Counter{}, &fault.Recorder{})

	if err := d.ConfigSlot(1, true, 125); err != nil {
		t.Fatalf("ConfigSlot err=%v", err)
	}
	if got, want := f.Peek(at(chanSlot(1))), uint32(0x30000|125<<4|1); got != want {
		t.Fatalf("enable: got=0x%x want=0x%x", got, want)
	}

	if err := d.ConfigSlot(1, false, 0); err != nil {
		t.Fatalf("ConfigSlot err=%v", err)
	}
	if got, want := f.Peek(at(chanSlot(1))), uint32(0x30000|125<<4); got != want {
		t.Fatalf("disable: got=0x%x want=0x%x", got, want)
	}

	if err := d.ConfigSlot(4, true, 1); !errors.Is(err, fault.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

// ---- software reset ----

func TestPollSoftwareReset(t *testing.T) {
	f := regio.NewFile()
	reads := 0
	f.OnRead = func(a uint64) {
		if a != at(regBusMode) {
			return
		}
		reads++
		if reads == 3 {
			f.Poke(a, 0)
		}
	}
	delay := &poll.Counter{}
	d := newDMA(f, delay, &fault.Recorder{})

	if err := d.PollSoftwareReset(true); err != nil {
		t.Fatalf("PollSoftwareReset err=%v", err)
	}
	if w := f.Writes(at(regBusMode)); len(w) != 1 || w[0].Value != uint32(BusModeSWR) {
		t.Fatalf("reset write: got=%+v", w)
	}
	// settle delay plus two retries
	if got, want := delay.Total(), uint64(10+2*1000); got != want {
		t.Fatalf("delay: got=%d want=%d", got, want)
	}
}

func TestPollSoftwareResetTimeout(t *testing.T) {
	f := regio.NewFile()
	f.Poke(at(regBusMode), uint32(BusModeSWR))
	rec := &fault.Recorder{}
	delay := &poll.Counter{}
	d := newDMA(f, delay, rec)

	err := d.PollSoftwareReset(false)
	var te *fault.TimeoutError
	if !errors.As(err, &te) || te.Stage != fault.StageSoftwareReset {
		t.Fatalf("expected software reset timeout, got %v", err)
	}
	if n := len(f.Writes()); n != 0 {
		t.Fatalf("silicon path must not write: got=%d", n)
	}
	if got, want := delay.Calls(), 1+3; got != want {
		t.Fatalf("delay calls: got=%d want=%d", got, want)
	}
	if last, ok := rec.Last(); !ok || last.Component != "dma" || last.Code != fault.CodeHWFail {
		t.Fatalf("unexpected record: %+v", last)
	}
}
