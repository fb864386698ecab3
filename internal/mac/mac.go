// internal/mac/mac.go
package mac

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/fault"
	"github.com/tamzrod/nicplane/internal/poll"
	"github.com/tamzrod/nicplane/internal/regio"
	"github.com/tamzrod/nicplane/internal/safety"
)

// Duplex selects the MAC operating mode.
type Duplex int

const (
	HalfDuplex Duplex = iota
	FullDuplex
)

// Queue is one MTL queue with its FIFO sizes in bytes.
type Queue struct {
	ID     uint32
	TxFifo uint32
	RxFifo uint32
}

// Options tune a core session. Zero values select defaults.
type Options struct {
	Policy poll.Policy
	Delay  poll.Delay
	Sink   fault.Sink
}

// Core programs the MAC and MTL registers and owns their safety shadow.
// Calls must be serialized by the caller.
type Core struct {
	bank   regio.Bank
	policy poll.Policy
	delay  poll.Delay
	sink   fault.Sink

	safety *safety.Config
}

func New(io regio.RegisterIO, base uintptr, opts Options) *Core {
	c := &Core{
		bank:   regio.NewBank(io, base),
		policy: opts.Policy,
		delay:  opts.Delay,
		sink:   fault.OrDiscard(opts.Sink),
	}
	if c.policy == (poll.Policy{}) {
		c.policy = poll.Default
	}
	if c.delay == nil {
		c.delay = poll.Sleep
	}
	return c
}

func checkQueue(q Queue) error {
	if q.ID >= safety.MaxChannels {
		return errors.Wrapf(fault.ErrInvalidArgument, "mac: queue %d out of range", q.ID)
	}
	for _, n := range []uint32{q.TxFifo, q.RxFifo} {
		if n < FifoBlock || n > MaxFifo || n%FifoBlock != 0 {
			return errors.Wrapf(fault.ErrInvalidArgument, "mac: queue %d fifo size %d", q.ID, n)
		}
	}
	return nil
}

// Init builds the core shadow for the given queues, then configures each
// queue and the system bus. It must run after reset and clock enable.
func (c *Core) Init(queues []Queue) (*safety.Config, error) {
	ids := make([]uint32, 0, len(queues))
	seen := map[uint32]bool{}
	for _, q := range queues {
		if err := checkQueue(q); err != nil {
			return nil, err
		}
		if seen[q.ID] {
			return nil, errors.Wrapf(fault.ErrInvalidArgument, "mac: queue %d listed twice", q.ID)
		}
		seen[q.ID] = true
		ids = append(ids, q.ID)
	}

	cfg, err := safety.NewSlots(c.bank.IO, c.bank.Base, fault.BlockCore, NumRegs, layout(ids), c.sink)
	if err != nil {
		return nil, err
	}
	c.safety = cfg

	for _, q := range queues {
		if err := c.ConfigureQueue(q); err != nil {
			return nil, err
		}
	}
	c.ConfigureSysBus()
	return cfg, nil
}

// Safety returns the shadow store built by Init, or nil.
func (c *Core) Safety() *safety.Config { return c.safety }

func (c *Core) checked(idx int, v uint32) {
	// Index validity was checked by the caller.
	_ = c.safety.CheckedWrite(idx, v)
}

func (c *Core) tracked(idx int) bool {
	e, _ := c.safety.Entry(idx)
	return e.Used()
}

func (c *Core) ready(op string) error {
	if c.safety == nil {
		return errors.Errorf("mac: %s before init", op)
	}
	return nil
}

// ---- MTL ----

// ConfigureQueue flushes the transmit queue, then programs both queue
// operation modes, the transmit weight and receive queue enable.
func (c *Core) ConfigureQueue(q Queue) error {
	if err := checkQueue(q); err != nil {
		return err
	}
	if err := c.ready("configure queue"); err != nil {
		return err
	}
	if !c.tracked(idxTxOpMode0 + int(q.ID)) {
		return errors.Wrapf(fault.ErrInvalidArgument, "mac: queue %d not enabled", q.ID)
	}

	if err := c.flushTxQueue(q.ID); err != nil {
		return err
	}

	tx := TxOpMode(q.TxFifo/FifoBlock-1) << TxOpSizeShift
	tx |= TxOpTSF | TxOpQEnable
	c.checked(idxTxOpMode0+int(q.ID), uint32(tx))

	rx := RxOpMode(c.bank.Get(mtlRxOpMode(q.ID)))
	rx &^= 0xFF << RxOpSizeShift
	rx |= RxOpMode(q.RxFifo/FifoBlock-1) << RxOpSizeShift
	rx |= RxOpRSF
	c.checked(idxRxOpMode0+int(q.ID), uint32(rx))

	qw := QueueWeight(c.bank.Get(mtlTxQW(q.ID)))
	qw |= QWISCQW + QueueWeight(q.ID)
	c.checked(idxTxQW0+int(q.ID), uint32(qw))

	rqc := RQC0(c.bank.Get(regRQC0R))
	rqc |= RQC0EnableDCB << (2 * q.ID)
	c.checked(idxRQC0R, uint32(rqc))
	return nil
}

func (c *Core) flushTxQueue(q uint32) error {
	v := TxOpMode(c.bank.Get(mtlTxOpMode(q)))
	c.checked(idxTxOpMode0+int(q), uint32(v|TxOpFTQ))

	done := func() bool { return TxOpMode(c.bank.Get(mtlTxOpMode(q)))&TxOpFTQ == 0 }
	if err := poll.Until(done, c.policy, c.delay); err != nil {
		c.sink.Report(fault.Record{
			Component: "mac",
			Level:     fault.LevelErr,
			Code:      fault.CodeHWFail,
			Text:      fmt.Sprintf("tx queue %d flush timeout", q),
			Arg:       uint64(q),
		})
		return fault.Timeout(fault.StageTxQueueFlush)
	}
	return nil
}

// SetForwardErrors makes receive queue q pass frames with errors up to
// the DMA instead of dropping them.
func (c *Core) SetForwardErrors(q uint32, on bool) error {
	if err := c.ready("forward errors"); err != nil {
		return err
	}
	if q >= safety.MaxChannels || !c.tracked(idxRxOpMode0+int(q)) {
		return errors.Wrapf(fault.ErrInvalidArgument, "mac: queue %d not enabled", q)
	}

	v := RxOpMode(c.bank.Get(mtlRxOpMode(q)))
	if on {
		v |= RxOpFEP
	} else {
		v &^= RxOpFEP
	}
	c.checked(idxRxOpMode0+int(q), uint32(v))
	return nil
}

// ConfigureSysBus sets 8 and 16 beat bursts, enhanced addressing and the
// maximum outstanding read and write requests.
func (c *Core) ConfigureSysBus() {
	v := SBusBLEN8 | SBusBLEN16 | SBusEAME | SBusRdOSRLmt | SBusWrOSRLmt
	c.checked(idxSBUS, uint32(v))
}

// ---- MAC ----

// SetSpeed selects the port speed in Mb/s. Speeds other than 10 and 100
// select the gigabit (and above) port.
func (c *Core) SetSpeed(mbps uint32) error {
	if err := c.ready("set speed"); err != nil {
		return err
	}

	v := MCR(c.bank.Get(regMCR))
	switch mbps {
	case 100:
		v |= MCRPS | MCRFES
	case 10:
		v |= MCRPS
		v &^= MCRFES
	default:
		v &^= MCRPS | MCRFES
	}
	c.checked(idxMCR, uint32(v))
	return nil
}

func (c *Core) SetDuplex(d Duplex) error {
	if err := c.ready("set duplex"); err != nil {
		return err
	}

	v := MCR(c.bank.Get(regMCR))
	switch d {
	case FullDuplex:
		v |= MCRDM
		v &^= MCRDO
	case HalfDuplex:
		v &^= MCRDM
		v |= MCRDO
	default:
		c.sink.Report(fault.Record{
			Component: "mac",
			Level:     fault.LevelErr,
			Code:      fault.CodeInvalidArg,
			Text:      "invalid duplex mode",
			Arg:       uint64(d),
		})
		return errors.Wrapf(fault.ErrInvalidArgument, "mac: duplex %d", d)
	}
	c.checked(idxMCR, uint32(v))
	return nil
}

// Start enables the transmitter and receiver.
func (c *Core) Start() error {
	if err := c.ready("start"); err != nil {
		return err
	}
	v := MCR(c.bank.Get(regMCR)) | MCRTE | MCRRE
	c.checked(idxMCR, uint32(v))
	return nil
}

// Stop disables the transmitter and receiver.
func (c *Core) Stop() error {
	if err := c.ready("stop"); err != nil {
		return err
	}
	v := MCR(c.bank.Get(regMCR)) &^ (MCRTE | MCRRE)
	c.checked(idxMCR, uint32(v))
	return nil
}

// Validate compares every shadowed core register against hardware.
func (c *Core) Validate() error {
	if err := c.ready("validate"); err != nil {
		return err
	}
	return c.safety.ValidateAll()
}
