// internal/pcs/xpcs.go
package pcs

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/fault"
	"github.com/tamzrod/nicplane/internal/poll"
	"github.com/tamzrod/nicplane/internal/regio"
)

// Speed is a negotiated line rate in Mb/s.
type Speed uint32

const (
	SpeedNone Speed = 0
	Speed2500 Speed = 2500
	Speed5000 Speed = 5000
	Speed10G  Speed = 10000
)

func (s Speed) String() string {
	switch s {
	case SpeedNone:
		return "none"
	case Speed2500:
		return "2.5G"
	case Speed5000:
		return "5G"
	case Speed10G:
		return "10G"
	}
	return fmt.Sprintf("%dM", uint32(s))
}

// EEE modes.
const (
	EEEDisable uint32 = 0
	EEEEnable  uint32 = 1
)

// ---- STATE ----

// State is the position of the bring-up sequence.
type State int

const (
	StateReset State = iota
	StateSetBaseR
	StateVendorResetIssue
	StateVendorResetWait
	StateClearLegacyAN
	StateBackplaneBypass
	StateInitDone
	StateANEnable
	StateANCompleteWait
	StateANSpeedCheck
	StateSpeedProgram
	StateRateAdapterResetIssue
	StateRateAdapterResetWait
	StateLinkUpWait
	StateLinkUp
	StateFailed
)

var stateNames = [...]string{
	StateReset:                 "reset",
	StateSetBaseR:              "set_base_r",
	StateVendorResetIssue:      "vendor_reset_issue",
	StateVendorResetWait:       "vendor_reset_wait",
	StateClearLegacyAN:         "clear_legacy_an",
	StateBackplaneBypass:       "backplane_bypass",
	StateInitDone:              "init_done",
	StateANEnable:              "an_enable",
	StateANCompleteWait:        "an_complete_wait",
	StateANSpeedCheck:          "an_speed_check",
	StateSpeedProgram:          "speed_program",
	StateRateAdapterResetIssue: "rate_adapter_reset_issue",
	StateRateAdapterResetWait:  "rate_adapter_reset_wait",
	StateLinkUpWait:            "link_up_wait",
	StateLinkUp:                "link_up",
	StateFailed:                "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ---- LINK STATUS ----

// LinkStatus is the decoded result of autonegotiation and link polling.
type LinkStatus struct {
	Speed    Speed
	Complete bool // autonegotiation complete
	Up       bool
	AN       ANIntrStatus
}

func (l LinkStatus) String() string {
	if !l.Up {
		return "down"
	}
	return "up " + l.Speed.String()
}

// DecodeLinkStatus interprets raw autoneg and PCS status values.
func DecodeLinkStatus(an ANIntrStatus, sts PCSStatus1) LinkStatus {
	return LinkStatus{
		Speed:    an.Speed(),
		Complete: an&ANComplete != 0,
		Up:       sts&Status1RLU != 0,
		AN:       an,
	}
}

// ---- XPCS ----

// Options tune an XPCS session. Zero values select defaults.
type Options struct {
	Policy poll.Policy
	Delay  poll.Delay
	Sink   fault.Sink
}

// XPCS drives USXGMII bring-up of one PCS block.
// Calls must be serialized by the caller.
type XPCS struct {
	win    window
	policy poll.Policy
	delay  poll.Delay
	sink   fault.Sink
	state  State
}

func New(io regio.RegisterIO, base uintptr, opts Options) *XPCS {
	x := &XPCS{
		win:    window{bank: regio.NewBank(io, base)},
		policy: opts.Policy,
		delay:  opts.Delay,
		sink:   fault.OrDiscard(opts.Sink),
	}
	if x.policy == (poll.Policy{}) {
		x.policy = poll.Default
	}
	if x.delay == nil {
		x.delay = poll.Sleep
	}
	return x
}

// State returns the last state entered.
func (x *XPCS) State() State { return x.state }

func (x *XPCS) or(reg uint32, v uint32) {
	x.win.write(reg, x.win.read(reg)|v)
}

func (x *XPCS) andNot(reg uint32, v uint32) {
	x.win.write(reg, x.win.read(reg)&^v)
}

func (x *XPCS) waitClear(reg uint32, bit uint32) error {
	return poll.Until(func() bool { return x.win.read(reg)&bit == 0 }, x.policy, x.delay)
}

func (x *XPCS) fail(stage fault.Stage, text string) error {
	x.state = StateFailed
	x.sink.Report(fault.Record{
		Component: "xpcs",
		Level:     fault.LevelErr,
		Code:      fault.CodeHWFail,
		Text:      text,
		Arg:       uint64(stage),
	})
	return fault.Timeout(stage)
}

// Init switches the PCS to USXGMII over BASE-R and performs the vendor
// soft reset. The PHY must already be running at its line rate.
func (x *XPCS) Init() error {
	x.state = StateSetBaseR
	x.or(regPCSCtrl2, uint32(Ctrl2BaseR))

	x.state = StateVendorResetIssue
	x.or(regDigCtrl1, uint32(DigUSXGEnable|DigVendorReset))

	x.state = StateVendorResetWait
	if err := x.waitClear(regDigCtrl1, uint32(DigVendorReset)); err != nil {
		return x.fail(fault.StageVendorReset, "vendor reset timeout")
	}

	x.state = StateClearLegacyAN
	x.andNot(regANCtrl, uint32(ANCtrlEnable))

	x.state = StateBackplaneBypass
	x.or(regDigCtrl1, uint32(DigCL37Bypass))

	x.state = StateInitDone
	return nil
}

// Start enables clause 37 autonegotiation, programs the negotiated speed,
// resets the rate adapter and waits for receive link up.
func (x *XPCS) Start() (LinkStatus, error) {
	x.state = StateANEnable
	x.or(regMIICtrl, uint32(MIIANEnable))

	x.state = StateANCompleteWait
	var an ANIntrStatus
	done := func() bool {
		an = ANIntrStatus(x.win.read(regANIntrSts))
		return an&ANComplete != 0
	}
	if err := poll.Until(done, x.policy, x.delay); err != nil {
		return LinkStatus{}, x.fail(fault.StageAutonegComplete, "autoneg completion timed out")
	}
	// The completion bit is cleared in hardware but kept in what we report.
	seen := an
	an &^= ANComplete
	x.win.write(regANIntrSts, uint32(an))

	x.state = StateANSpeedCheck
	if an&ANSpeedMask == 0 {
		x.state = StateFailed
		x.sink.Report(fault.Record{
			Component: "xpcs",
			Level:     fault.LevelErr,
			Code:      fault.CodeHWFail,
			Text:      "autoneg completed with zero speed",
		})
		return DecodeLinkStatus(seen, 0), fault.ErrZeroSpeed
	}

	x.state = StateSpeedProgram
	x.setSpeed(an)

	x.state = StateRateAdapterResetIssue
	x.or(regDigCtrl1, uint32(DigUSRAReset))

	x.state = StateRateAdapterResetWait
	if err := x.waitClear(regDigCtrl1, uint32(DigUSRAReset)); err != nil {
		return DecodeLinkStatus(seen, 0), x.fail(fault.StageRateAdapterReset, "rate adapter reset timeout")
	}

	x.state = StateLinkUpWait
	var sts PCSStatus1
	up := func() bool {
		sts = PCSStatus1(x.win.read(regPCSStatus1))
		return sts&Status1RLU != 0
	}
	if err := poll.Until(up, x.policy, x.delay); err != nil {
		return DecodeLinkStatus(seen, sts), x.fail(fault.StageLinkUp, "receive link up timeout")
	}

	x.state = StateLinkUp
	return DecodeLinkStatus(seen, sts), nil
}

// setSpeed maps the negotiated rate onto the speed select bits.
// Unrecognized rates fall back to 10G.
func (x *XPCS) setSpeed(an ANIntrStatus) {
	ctrl := MIICtrl(x.win.read(regMIICtrl))
	switch an & ANSpeedMask {
	case ANSpeed2500:
		ctrl |= MIISS5
		ctrl &^= MIISS6 | MIISS13
	case ANSpeed5000:
		ctrl |= MIISS5 | MIISS13
		ctrl &^= MIISS6
	default:
		ctrl |= MIISS6 | MIISS13
		ctrl &^= MIISS5
	}
	x.win.write(regMIICtrl, uint32(ctrl))
}

// EEE enables or disables low power idle on both paths.
// EEE timers are left at their defaults.
func (x *XPCS) EEE(mode uint32) error {
	if mode != EEEDisable && mode != EEEEnable {
		x.sink.Report(fault.Record{
			Component: "xpcs",
			Level:     fault.LevelErr,
			Code:      fault.CodeInvalidArg,
			Text:      "invalid EEE mode",
			Arg:       uint64(mode),
		})
		return errors.Wrapf(fault.ErrInvalidArgument, "xpcs: eee mode %d", mode)
	}

	v := EEECtrl0(x.win.read(regEEECtrl0))
	v &^= EEETxLPIEnable | EEERxLPIEnable
	if mode == EEEEnable {
		v |= EEETxLPIEnable | EEERxLPIEnable
	}
	x.win.write(regEEECtrl0, uint32(v))
	return nil
}

// Link samples the current autoneg and link status without clearing
// anything.
func (x *XPCS) Link() LinkStatus {
	an := ANIntrStatus(x.win.read(regANIntrSts))
	sts := PCSStatus1(x.win.read(regPCSStatus1))
	return DecodeLinkStatus(an, sts)
}
