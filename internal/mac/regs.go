// internal/mac/regs.go
package mac

import (
	"fmt"

	"github.com/tamzrod/nicplane/internal/safety"
)

// ---- REGISTER OFFSETS ----

const (
	regMCR          = 0x0000
	regPFR          = 0x0008
	regQ0TxFlowCtrl = 0x0070
	regRQC0R        = 0x00A0
	regRQC1R        = 0x00A4
	regRQC2R        = 0x00A8
	regIMR          = 0x00B4
	regMA0HR        = 0x0300
	regMA0LR        = 0x0304
	regTCR          = 0x0B00
	regSSIR         = 0x0B04
	regTAR          = 0x0B18
	regRxQDMAMap0   = 0x0C30
	regSBUS         = 0x1004
	regPadAutoCal   = 0x8804

	numHashRegs = 8
)

const queueStride = 0x40

func regHTR(i uint32) uint32      { return 0x0010 + 4*i }
func mtlTxOpMode(q uint32) uint32 { return queueStride*q + 0x0D00 }
func mtlTxQW(q uint32) uint32     { return queueStride*q + 0x0D18 }
func mtlRxOpMode(q uint32) uint32 { return queueStride*q + 0x0D30 }

// Span is the register window the core block occupies from its base.
const Span = regPadAutoCal + 4

// ---- REGISTER BITS ----

// MCR is the MAC configuration register.
type MCR uint32

const (
	MCRRE  MCR = 1 << 0  // receiver enable
	MCRTE  MCR = 1 << 1  // transmitter enable
	MCRDO  MCR = 1 << 10 // disable receive own
	MCRDM  MCR = 1 << 13 // full duplex
	MCRFES MCR = 1 << 14
	MCRPS  MCR = 1 << 15

	MCRMask MCR = 0xFFFFFF7F
)

// TxOpMode is the MTL transmit queue operation mode register.
//
//	[0] flush (self-clearing)
//	[23:16] queue size, 256-byte blocks minus one
type TxOpMode uint32

const (
	TxOpFTQ       TxOpMode = 1 << 0
	TxOpTSF       TxOpMode = 1 << 1
	TxOpQEnable   TxOpMode = 2 << 2
	TxOpSizeShift          = 16

	TxOpModeMask TxOpMode = 0xFF007E
)

// RxOpMode is the MTL receive queue operation mode register.
//
//	[27:20] queue size, 256-byte blocks minus one
type RxOpMode uint32

const (
	RxOpFEP       RxOpMode = 1 << 4 // forward error packets
	RxOpRSF       RxOpMode = 1 << 5
	RxOpSizeShift          = 20

	RxOpModeMask RxOpMode = 0xFFFFFFB
)

// QueueWeight is the MTL transmit queue weight register.
type QueueWeight uint32

const (
	QWISCQW QueueWeight = 0x18
	QWMask  QueueWeight = 0x1FFFFF
)

// RQC0 enables receive queues, two bits per queue.
type RQC0 uint32

const (
	RQC0EnableDCB RQC0 = 0x2
	RQC0Mask      RQC0 = 0xFF
)

// SysBus is the DMA system bus mode register.
type SysBus uint32

const (
	SBusBLEN8    SysBus = 1 << 2
	SBusBLEN16   SysBus = 1 << 3
	SBusEAME     SysBus = 1 << 11
	SBusRdOSRLmt SysBus = 0x1F0000
	SBusWrOSRLmt SysBus = 0x1F000000

	SBusMask SysBus = 0xDF1F3CFF
)

// FifoBlock is the granularity of MTL queue sizes.
const FifoBlock = 256

// MaxFifo is the largest queue size the 8-bit size fields hold.
const MaxFifo = FifoBlock * 256

// ---- SAFETY LAYOUT ----

// Shadow indexes of the core register set.
const (
	idxMCR = iota
	idxPFR
	idxHTR0
)

const (
	idxQ0TxFC = idxHTR0 + numHashRegs + iota
	idxRQC0R
	idxRQC1R
	idxRQC2R
	idxIMR
	idxMA0HR
	idxMA0LR
	idxTCR
	idxSSIR
	idxTAR
	idxPadAutoCal
	idxRxQDMAMap0
	idxTxOpMode0
)

const (
	idxTxQW0     = idxTxOpMode0 + safety.MaxChannels
	idxRxOpMode0 = idxTxQW0 + safety.MaxChannels
	idxSBUS      = idxRxOpMode0 + safety.MaxChannels

	// NumRegs is the size of the core shadow.
	NumRegs = idxSBUS + 1
)

// layout returns the tracked core registers. Per-queue MTL registers are
// tracked only for the given queues.
func layout(queues []uint32) []safety.Slot {
	slots := []safety.Slot{
		{Index: idxMCR, Name: "mcr", Offset: regMCR, Mask: uint32(MCRMask)},
		{Index: idxPFR, Name: "pfr", Offset: regPFR, Mask: 0x803107FF},
		{Index: idxQ0TxFC, Name: "q0_txfc", Offset: regQ0TxFlowCtrl, Mask: 0xFFFF00F2},
		{Index: idxRQC0R, Name: "rqc0r", Offset: regRQC0R, Mask: uint32(RQC0Mask)},
		{Index: idxRQC1R, Name: "rqc1r", Offset: regRQC1R, Mask: 0xF77077},
		{Index: idxRQC2R, Name: "rqc2r", Offset: regRQC2R, Mask: 0xFFFFFFFF},
		{Index: idxIMR, Name: "imr", Offset: regIMR, Mask: 0x67039},
		{Index: idxMA0HR, Name: "ma0hr", Offset: regMA0HR, Mask: 0xFFFFF},
		{Index: idxMA0LR, Name: "ma0lr", Offset: regMA0LR, Mask: 0xFFFFFFFF},
		{Index: idxTCR, Name: "tcr", Offset: regTCR, Mask: 0x1107FF03},
		{Index: idxSSIR, Name: "ssir", Offset: regSSIR, Mask: 0xFFFF00},
		{Index: idxTAR, Name: "tar", Offset: regTAR, Mask: 0xFFFFFFFF},
		{Index: idxPadAutoCal, Name: "pad_auto_cal", Offset: regPadAutoCal, Mask: 0x7FFFFFFF},
		{Index: idxRxQDMAMap0, Name: "rxq_dma_map0", Offset: regRxQDMAMap0, Mask: 0x13131313},
		{Index: idxSBUS, Name: "sbus", Offset: regSBUS, Mask: uint32(SBusMask)},
	}
	for i := uint32(0); i < numHashRegs; i++ {
		slots = append(slots, safety.Slot{
			Index: idxHTR0 + int(i), Name: fmt.Sprintf("htr%d", i), Offset: regHTR(i), Mask: 0xFFFFFFFF,
		})
	}
	for _, q := range queues {
		slots = append(slots,
			safety.Slot{Index: idxTxOpMode0 + int(q), Name: fmt.Sprintf("tx_op_mode%d", q), Offset: mtlTxOpMode(q), Mask: uint32(TxOpModeMask)},
			safety.Slot{Index: idxTxQW0 + int(q), Name: fmt.Sprintf("txq_qw%d", q), Offset: mtlTxQW(q), Mask: uint32(QWMask)},
			safety.Slot{Index: idxRxOpMode0 + int(q), Name: fmt.Sprintf("rx_op_mode%d", q), Offset: mtlRxOpMode(q), Mask: uint32(RxOpModeMask)},
		)
	}
	return slots
}
