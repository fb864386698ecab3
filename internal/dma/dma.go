// internal/dma/dma.go
package dma

import (
	"math"

	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/fault"
	"github.com/tamzrod/nicplane/internal/poll"
	"github.com/tamzrod/nicplane/internal/regio"
	"github.com/tamzrod/nicplane/internal/safety"
)

// DefaultAxiClockHz is the AXI clock of the reference platform.
const DefaultAxiClockHz = 125000000

// WatchdogUnlimited disables the receive watchdog.
const WatchdogUnlimited = math.MaxUint32

// ChannelConfig is the caller-supplied configuration of one channel.
// It is consumed by Configure and not retained.
type ChannelConfig struct {
	BufferLength uint32
	Watchdog     bool
	WatchdogUsec uint32 // WatchdogUnlimited skips watchdog programming
	TSO          bool
	OSF          bool
}

// Channel pairs a channel number with its configuration.
type Channel struct {
	ID     uint32
	Config ChannelConfig
}

// Options tune a DMA session. Zero values select defaults.
type Options struct {
	AxiClockHz uint32
	Policy     poll.Policy
	Delay      poll.Delay
	Sink       fault.Sink
}

// DMA sequences channel bring-up and owns the safety shadow of the
// channel registers.
type DMA struct {
	bank   regio.Bank
	clock  uint32
	policy poll.Policy
	delay  poll.Delay
	sink   fault.Sink

	safety *safety.Config
}

func New(io regio.RegisterIO, base uintptr, opts Options) *DMA {
	d := &DMA{
		bank:   regio.NewBank(io, base),
		clock:  opts.AxiClockHz,
		policy: opts.Policy,
		delay:  opts.Delay,
		sink:   fault.OrDiscard(opts.Sink),
	}
	if d.clock == 0 {
		d.clock = DefaultAxiClockHz
	}
	if d.policy == (poll.Policy{}) {
		d.policy = poll.Default
	}
	if d.delay == nil {
		d.delay = poll.Sleep
	}
	return d
}

// Init builds the safety shadow for the given channels, then configures
// each channel in order. It must run after reset and clock enable.
func (d *DMA) Init(chans []Channel) (*safety.Config, error) {
	ids := make([]uint32, 0, len(chans))
	for _, c := range chans {
		if err := checkConfig(c.ID, c.Config); err != nil {
			return nil, err
		}
		ids = append(ids, c.ID)
	}

	cfg, err := safety.New(d.bank.IO, d.bank.Base, SafetyLayout, ids, d.sink)
	if err != nil {
		return nil, err
	}
	d.safety = cfg

	for _, c := range chans {
		if err := d.Configure(c.ID, c.Config); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Safety returns the shadow store built by Init, or nil.
func (d *DMA) Safety() *safety.Config { return d.safety }

func checkConfig(ch uint32, c ChannelConfig) error {
	if ch >= safety.MaxChannels {
		return errors.Wrapf(fault.ErrInvalidArgument, "dma: channel %d out of range", ch)
	}
	if c.BufferLength > MaxBufferLength {
		return errors.Wrapf(fault.ErrInvalidArgument, "dma: buffer length %d exceeds %d", c.BufferLength, MaxBufferLength)
	}
	return nil
}

// Configure brings channel ch to its operating state. Every step is a
// read-modify-write that leaves unrelated bits alone; the order is fixed.
func (d *DMA) Configure(ch uint32, c ChannelConfig) error {
	if err := checkConfig(ch, c); err != nil {
		return err
	}
	if d.safety == nil {
		return errors.New("dma: configure before init")
	}
	if e, _ := d.safety.Entry(safety.Index(safety.KindChanCtrl, ch)); !e.Used() {
		return errors.Wrapf(fault.ErrInvalidArgument, "dma: channel %d not enabled", ch)
	}

	// 1. Transmit and receive interrupts.
	ie := IntrEnable(d.bank.Get(chanIntrEna(ch)))
	ie |= IntrTIE | IntrRIE
	d.checked(safety.KindIntrEnable, ch, uint32(ie))

	// 2. 8x burst length.
	cc := ChanCtrl(d.bank.Get(chanCtrl(ch)))
	cc |= CtrlPBLx8
	d.checked(safety.KindChanCtrl, ch, uint32(cc))

	// 3. Transmit control.
	tc := TxCtrl(d.bank.Get(chanTxCtrl(ch)))
	if c.OSF {
		tc |= TxOSF
	}
	tc |= TxPBLRecommended
	if c.TSO {
		tc |= TxTSE
	}
	d.checked(safety.KindTxCtrl, ch, uint32(tc))

	// 4. Receive control: buffer size and burst length.
	rc := RxCtrl(d.bank.Get(chanRxCtrl(ch)))
	rc &^= RxBufSizeMask
	rc |= RxCtrl(c.BufferLength << RxBufSizeShift)
	rc |= RxPBLRecommended
	d.checked(safety.KindRxCtrl, ch, uint32(rc))

	// 5. Receive interrupt watchdog. Not part of the safety set.
	if c.Watchdog && c.WatchdogUsec < WatchdogUnlimited {
		w := RxWatchdog(d.bank.Get(chanRxWDT(ch)))
		w &^= WdtCountMask | WdtUnitMask
		w |= RxWatchdog(WatchdogCycles(c.WatchdogUsec, d.clock)) & WdtCountMask
		w |= WdtUnit512Cycle
		d.bank.Set(chanRxWDT(ch), uint32(w))
	}

	return nil
}

// WatchdogCycles converts usec into watchdog counts of 512 AXI clock cycles.
// At 125 MHz one count is 4.096 usec.
func WatchdogCycles(usec, axiClockHz uint32) uint32 {
	return uint32(uint64(usec) * uint64(axiClockHz/1000000) / wdtCyclesPerUnit)
}

func (d *DMA) checked(k safety.Kind, ch uint32, v uint32) {
	// Index validity was checked by the caller.
	_ = d.safety.CheckedWrite(safety.Index(k, ch), v)
}

// Validate compares every shadowed channel register against hardware.
// Recovery on failure is up to the caller.
func (d *DMA) Validate() error {
	if d.safety == nil {
		return errors.New("dma: validate before init")
	}
	return d.safety.ValidateAll()
}

// SetRingLength programs the descriptor ring lengths of ch.
func (d *DMA) SetRingLength(ch uint32, txLen, rxLen uint32) error {
	if ch >= safety.MaxChannels {
		return errors.Wrapf(fault.ErrInvalidArgument, "dma: channel %d out of range", ch)
	}
	limit := uint32(RingLenMask) + 1
	if txLen == 0 || rxLen == 0 || txLen > limit || rxLen > limit {
		return errors.Wrapf(fault.ErrInvalidArgument, "dma: ring length tx=%d rx=%d out of range", txLen, rxLen)
	}
	if d.safety == nil {
		return errors.New("dma: ring length before init")
	}

	if err := d.safety.CheckedWrite(safety.Index(safety.KindTxRingLen, ch), txLen-1); err != nil {
		return err
	}
	return d.safety.CheckedWrite(safety.Index(safety.KindRxRingLen, ch), rxLen-1)
}

// ConfigSlot enables or disables slot checking on ch. The interval is
// truncated to the 12-bit field.
func (d *DMA) ConfigSlot(ch uint32, enable bool, intervalUsec uint32) error {
	if ch >= safety.MaxChannels {
		return errors.Wrapf(fault.ErrInvalidArgument, "dma: channel %d out of range", ch)
	}

	v := Slot(d.bank.Get(chanSlot(ch)))
	if enable {
		v &^= SlotSIVMask
		v |= (Slot(intervalUsec) & SlotSIVMask) << SlotSIVShift
		v |= SlotESC
	} else {
		v &^= SlotESC
	}
	d.bank.Set(chanSlot(ch), uint32(v))
	return nil
}

// PollSoftwareReset waits for the DMA software reset to complete.
// preSilicon platforms need the reset issued by software.
func (d *DMA) PollSoftwareReset(preSilicon bool) error {
	if preSilicon {
		d.bank.Set(regBusMode, uint32(BusModeSWR))
	}
	d.delay(10)

	done := func() bool { return BusMode(d.bank.Get(regBusMode))&BusModeSWR == 0 }
	if err := poll.Until(done, d.policy, d.delay); err != nil {
		d.sink.Report(fault.Record{
			Component: "dma",
			Level:     fault.LevelErr,
			Code:      fault.CodeHWFail,
			Text:      "software reset timeout",
		})
		return fault.Timeout(fault.StageSoftwareReset)
	}
	return nil
}
