// internal/dma/regs.go
package dma

import "github.com/tamzrod/nicplane/internal/safety"

// ---- REGISTER OFFSETS ----

const (
	// [0] software reset (self-clearing)
	regBusMode = 0x1000
)

const chanStride = 0x80

func chanCtrl(ch uint32) uint32    { return chanStride*ch + 0x1100 }
func chanTxCtrl(ch uint32) uint32  { return chanStride*ch + 0x1104 }
func chanRxCtrl(ch uint32) uint32  { return chanStride*ch + 0x1108 }
func chanTDRL(ch uint32) uint32    { return chanStride*ch + 0x112C }
func chanRDRL(ch uint32) uint32    { return chanStride*ch + 0x1130 }
func chanIntrEna(ch uint32) uint32 { return chanStride*ch + 0x1134 }
func chanRxWDT(ch uint32) uint32   { return chanStride*ch + 0x1138 }
func chanSlot(ch uint32) uint32    { return chanStride*ch + 0x113C }

// ---- REGISTER BITS ----

// IntrEnable is the per-channel interrupt enable register.
type IntrEnable uint32

const (
	IntrTIE  IntrEnable = 1 << 0 // transmit interrupt
	IntrTBUE IntrEnable = 1 << 2 // transmit buffer unavailable
	IntrRIE  IntrEnable = 1 << 6 // receive interrupt
	IntrRBUE IntrEnable = 1 << 7 // receive buffer unavailable
	IntrFBEE IntrEnable = 1 << 12
	IntrAIE  IntrEnable = 1 << 14
	IntrNIE  IntrEnable = 1 << 15

	IntrEnableMask IntrEnable = 0xFFC7
)

// ChanCtrl is the per-channel control register.
type ChanCtrl uint32

const (
	// 8x programmable burst length
	CtrlPBLx8 ChanCtrl = 1 << 16

	ChanCtrlMask ChanCtrl = 0x11D3FFF
)

// TxCtrl is the per-channel transmit control register.
type TxCtrl uint32

const (
	TxOSF            TxCtrl = 1 << 4  // operate on second frame
	TxTSE            TxCtrl = 1 << 12 // TCP segmentation enable
	TxPBLRecommended TxCtrl = 0x200000

	TxCtrlMask TxCtrl = 0xF3F9010
)

// RxCtrl is the per-channel receive control register.
//
//	[14:1] receive buffer size
//	[21:16] receive burst length
type RxCtrl uint32

const (
	RxBufSizeMask    RxCtrl = 0x7FFE
	RxBufSizeShift          = 1
	RxPBLRecommended RxCtrl = 0xC0000

	RxCtrlMask RxCtrl = 0x8F3F7FE0
)

// MaxBufferLength is the largest receive buffer size the field holds.
const MaxBufferLength = uint32(RxBufSizeMask >> RxBufSizeShift)

// RxWatchdog is the per-channel receive interrupt watchdog register.
//
//	[7:0] watchdog count, in units selected by [17:16]
type RxWatchdog uint32

const (
	WdtCountMask    RxWatchdog = 0xFF
	WdtUnitMask     RxWatchdog = 0x30000
	WdtUnit512Cycle RxWatchdog = 0x10000

	// clock cycles per count with WdtUnit512Cycle
	wdtCyclesPerUnit = 512
)

// RingLen is the per-channel descriptor ring length register (length - 1).
type RingLen uint32

const RingLenMask RingLen = 0x3FF

// Slot is the per-channel slot function control register.
//
//	[0] enable slot checking
//	[15:4] slot interval (usec)
type Slot uint32

const (
	SlotESC      Slot = 1 << 0
	SlotSIVMask  Slot = 0xFFF
	SlotSIVShift      = 4
)

// BusMode is the DMA bus mode register.
type BusMode uint32

const BusModeSWR BusMode = 1 << 0

// ---- SAFETY LAYOUT ----

// SafetyLayout is the set of DMA registers shadowed per channel.
var SafetyLayout = safety.Layout{
	{Kind: safety.KindChanCtrl, Offset: chanCtrl, Mask: uint32(ChanCtrlMask)},
	{Kind: safety.KindTxCtrl, Offset: chanTxCtrl, Mask: uint32(TxCtrlMask)},
	{Kind: safety.KindRxCtrl, Offset: chanRxCtrl, Mask: uint32(RxCtrlMask)},
	{Kind: safety.KindTxRingLen, Offset: chanTDRL, Mask: uint32(RingLenMask)},
	{Kind: safety.KindRxRingLen, Offset: chanRDRL, Mask: uint32(RingLenMask)},
	{Kind: safety.KindIntrEnable, Offset: chanIntrEna, Mask: uint32(IntrEnableMask)},
}
