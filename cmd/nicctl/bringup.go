// cmd/nicctl/bringup.go
package main

import (
	"log"

	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/config"
	"github.com/tamzrod/nicplane/internal/dma"
	"github.com/tamzrod/nicplane/internal/fault"
	"github.com/tamzrod/nicplane/internal/mac"
	"github.com/tamzrod/nicplane/internal/monitor"
	"github.com/tamzrod/nicplane/internal/pcs"
	"github.com/tamzrod/nicplane/internal/regio"
)

type bringupOptions struct {
	reset bool
	pcs   bool
}

// device is a brought-up controller. core and xpcs are nil when skipped.
type device struct {
	dma  *dma.DMA
	core *mac.Core
	xpcs *pcs.XPCS
	link pcs.LinkStatus
}

// validators returns every shadowed register set, DMA first.
func (dev *device) validators() monitor.Chain {
	c := monitor.Chain{dev.dma}
	if dev.core != nil {
		c = append(c, dev.core)
	}
	return c
}

// backendErr prefers a latched transfer failure over err. Values read
// through a failed transport are master aborts, so any later verdict
// built on them is meaningless.
func backendErr(io regio.RegisterIO, err error) error {
	if terr := regio.Err(io); terr != nil {
		return errors.Wrap(terr, "register backend")
	}
	return err
}

// bringup runs the fixed sequence: optional DMA reset, MAC/MTL core,
// DMA channels with ring lengths and slot control, MAC start, then the
// PCS. It stops at the first error.
func bringup(d *config.DeviceConfig, io regio.RegisterIO, sink fault.Sink, opts bringupOptions) (*device, error) {
	dev := &device{
		dma: dma.New(io, uintptr(d.DMA.Base), dma.Options{
			AxiClockHz: d.DMA.AxiClockHz,
			Policy:     d.Policy(),
			Sink:       sink,
		}),
	}

	// ---- DMA reset ----
	if opts.reset {
		if err := dev.dma.PollSoftwareReset(d.DMA.PreSilicon); err != nil {
			return nil, backendErr(io, err)
		}
	}

	// ---- MAC/MTL core ----
	if d.MAC.Enabled {
		dev.core = mac.New(io, uintptr(d.DMA.Base), mac.Options{Policy: d.Policy(), Sink: sink})
		if err := coreInit(dev.core, d); err != nil {
			return nil, backendErr(io, err)
		}
	}

	// ---- DMA ----
	if _, err := dev.dma.Init(d.ChannelConfigs()); err != nil {
		return nil, backendErr(io, err)
	}

	for _, c := range d.DMA.Channels {
		if c.TxRingLen != 0 {
			if err := dev.dma.SetRingLength(c.ID, c.TxRingLen, c.RxRingLen); err != nil {
				return nil, backendErr(io, err)
			}
		}
		if c.SlotUsec != nil {
			if err := dev.dma.ConfigSlot(c.ID, true, *c.SlotUsec); err != nil {
				return nil, backendErr(io, err)
			}
		}
	}

	if dev.core != nil {
		if err := dev.core.Start(); err != nil {
			return nil, backendErr(io, err)
		}
	}
	if err := backendErr(io, nil); err != nil {
		return nil, err
	}
	log.Printf("dma ready (device=%s channels=%d mac=%t)", d.Name, len(d.DMA.Channels), dev.core != nil)

	// ---- PCS ----
	if !opts.pcs || !d.PCS.Enabled {
		return dev, nil
	}

	x := pcs.New(io, uintptr(d.PCS.Base), pcs.Options{Policy: d.Policy(), Sink: sink})
	if err := x.Init(); err != nil {
		return nil, backendErr(io, err)
	}
	link, err := x.Start()
	if err != nil {
		return nil, backendErr(io, err)
	}

	mode := pcs.EEEDisable
	if d.PCS.EEE {
		mode = pcs.EEEEnable
	}
	if err := x.EEE(mode); err != nil {
		return nil, backendErr(io, err)
	}
	if err := backendErr(io, nil); err != nil {
		return nil, err
	}

	dev.xpcs = x
	dev.link = link
	log.Printf("link %s (device=%s)", link, d.Name)
	return dev, nil
}

func coreInit(c *mac.Core, d *config.DeviceConfig) error {
	if _, err := c.Init(d.MACQueues()); err != nil {
		return err
	}
	for _, q := range d.MAC.Queues {
		if q.ForwardErrors {
			if err := c.SetForwardErrors(q.ID, true); err != nil {
				return err
			}
		}
	}
	if err := c.SetDuplex(d.Duplex()); err != nil {
		return err
	}
	return c.SetSpeed(d.MAC.SpeedMbps)
}
