// internal/pcs/regs.go
package pcs

import "github.com/tamzrod/nicplane/internal/regio"

// ---- INDIRECT WINDOW ----

// XPCS register numbers are wider than the mapped window. The upper bits
// select a 1 KiB page through the window select register; the low 10 bits
// address the register inside the page.
const (
	windowSelect = 0x3FC
	windowPage   = 0x1FFF
	windowOffset = 0x3FF
)

type window struct {
	bank regio.Bank
}

func (w window) sel(reg uint32) uint32 {
	w.bank.Set(windowSelect, (reg>>10)&windowPage)
	return reg & windowOffset
}

func (w window) read(reg uint32) uint32 {
	return w.bank.Get(w.sel(reg))
}

func (w window) write(reg uint32, v uint32) {
	w.bank.Set(w.sel(reg), v)
}

// ---- REGISTER NUMBERS ----

const (
	regPCSStatus1 = 0x0C0004
	regPCSCtrl2   = 0x0C001C
	regDigCtrl1   = 0x0E0000
	regEEECtrl0   = 0x0E0018
	regANCtrl     = 0x1C0000
	regMIICtrl    = 0x7C0000
	regANIntrSts  = 0x7E0008
)

// ---- REGISTER BITS ----

// PCSStatus1 is SR_XS_PCS_STS1.
type PCSStatus1 uint32

// receive link up
const Status1RLU PCSStatus1 = 1 << 2

// PCSCtrl2 is SR_XS_PCS_CTRL2.
//
//	[3:0] PCS type select
type PCSCtrl2 uint32

const Ctrl2BaseR PCSCtrl2 = 0x0

// DigCtrl1 is VR_XS_PCS_DIG_CTRL1.
type DigCtrl1 uint32

const (
	DigUSXGEnable  DigCtrl1 = 1 << 9  // USXGMII mode
	DigUSRAReset   DigCtrl1 = 1 << 10 // rate adapter reset, self-clearing
	DigCL37Bypass  DigCtrl1 = 1 << 12 // backplane clause 37 bypass
	DigVendorReset DigCtrl1 = 1 << 15 // self-clearing
)

// EEECtrl0 is VR_XS_PCS_EEE_MCTRL0.
type EEECtrl0 uint32

const (
	EEETxLPIEnable EEECtrl0 = 1 << 0
	EEERxLPIEnable EEECtrl0 = 1 << 1
)

// ANCtrl is SR_AN_CTRL (clause 73).
type ANCtrl uint32

const ANCtrlEnable ANCtrl = 1 << 12

// MIICtrl is SR_MII_CTRL.
//
// Speed select bits SS13 SS6 SS5 encode the USXGMII rate.
type MIICtrl uint32

const (
	MIISS5      MIICtrl = 1 << 5
	MIISS6      MIICtrl = 1 << 6
	MIIANEnable MIICtrl = 1 << 12
	MIISS13     MIICtrl = 1 << 13
)

// ANIntrStatus is VR_MII_AN_INTR_STS.
//
//	[0] clause 37 autoneg complete
//	[12:10] USXGMII negotiated speed
type ANIntrStatus uint32

const (
	ANComplete ANIntrStatus = 1 << 0

	ANSpeedMask ANIntrStatus = 0x1C00
	ANSpeed2500 ANIntrStatus = 0x0400
	ANSpeed5000 ANIntrStatus = 0x0800
	ANSpeed10G  ANIntrStatus = 0x0C00
)

func (s ANIntrStatus) Speed() Speed {
	switch s & ANSpeedMask {
	case 0:
		return SpeedNone
	case ANSpeed2500:
		return Speed2500
	case ANSpeed5000:
		return Speed5000
	}
	return Speed10G
}
