// internal/config/validate.go
package config

import (
	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/dma"
	"github.com/tamzrod/nicplane/internal/mac"
	regmodbus "github.com/tamzrod/nicplane/internal/regio/modbus"
	"github.com/tamzrod/nicplane/internal/safety"
	"github.com/tamzrod/nicplane/internal/status"
)

// maxRingLen is the longest descriptor ring the length field holds.
const maxRingLen = uint32(dma.RingLenMask) + 1

// Byte spans of the register blocks, used to bound bases on the
// 16-bit Modbus register space.
const (
	dmaSpan = 0x1300
	pcsSpan = 0x400
)

// maxStatusSlot is the last status block that fits the 16-bit register
// space.
const maxStatusSlot = 0xFFFF/status.SlotsPerDevice - 1

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}
	d := &cfg.Device

	if d.Name == "" {
		return errors.New("config: device.name required")
	}

	// ------------------------------------------------------------
	// BACKEND
	// ------------------------------------------------------------

	switch d.Backend.Kind {
	case BackendModbus:
		if d.Backend.Endpoint == "" {
			return errors.Errorf("device %q: modbus backend requires endpoint", d.Name)
		}
	case BackendMMIO:
		if d.Backend.Resource == "" {
			return errors.Errorf("device %q: mmio backend requires resource", d.Name)
		}
		if d.Backend.Size <= 0 {
			return errors.Errorf("device %q: mmio backend requires size > 0", d.Name)
		}
	case BackendSim:
	default:
		return errors.Errorf("device %q: unknown backend kind %q", d.Name, d.Backend.Kind)
	}
	if d.Backend.TimeoutMs < 0 {
		return errors.Errorf("device %q: backend.timeout_ms must be >= 0", d.Name)
	}

	// ------------------------------------------------------------
	// DMA CHANNELS
	// ------------------------------------------------------------

	if len(d.DMA.Channels) == 0 {
		return errors.Errorf("device %q: at least one dma channel required", d.Name)
	}

	seen := make(map[uint32]bool)
	for _, c := range d.DMA.Channels {
		if c.ID >= safety.MaxChannels {
			return errors.Errorf("device %q: channel %d out of range (max %d)", d.Name, c.ID, safety.MaxChannels-1)
		}
		if seen[c.ID] {
			return errors.Errorf("device %q: channel %d defined twice", d.Name, c.ID)
		}
		seen[c.ID] = true

		if c.BufferLength == 0 || c.BufferLength > dma.MaxBufferLength {
			return errors.Errorf(
				"device %q: channel %d buffer_length %d out of range 1-%d",
				d.Name, c.ID, c.BufferLength, dma.MaxBufferLength,
			)
		}
		if c.TxRingLen > maxRingLen || c.RxRingLen > maxRingLen {
			return errors.Errorf("device %q: channel %d ring length exceeds %d", d.Name, c.ID, maxRingLen)
		}
		if (c.TxRingLen == 0) != (c.RxRingLen == 0) {
			return errors.Errorf("device %q: channel %d tx_ring_len and rx_ring_len must be set together", d.Name, c.ID)
		}
		if c.WatchdogUsec != nil && !c.Watchdog {
			return errors.Errorf("device %q: channel %d watchdog_usec set but watchdog disabled", d.Name, c.ID)
		}
	}

	// ------------------------------------------------------------
	// MAC
	// ------------------------------------------------------------

	if err := validateMAC(d); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// PCS
	// ------------------------------------------------------------

	if d.PCS.Enabled && d.PCS.Base == d.DMA.Base {
		return errors.Errorf("device %q: pcs.base must differ from dma.base", d.Name)
	}
	// the sim backend has no self-clearing reset bits
	if d.PCS.Enabled && d.Backend.Kind == BackendSim {
		return errors.Errorf("device %q: pcs requires a hardware backend", d.Name)
	}

	if d.Backend.Kind == BackendModbus {
		if d.DMA.Base+dmaSpan > regmodbus.MaxAddress {
			return errors.Errorf("device %q: dma.base 0x%x outside modbus register space", d.Name, d.DMA.Base)
		}
		if d.MAC.Enabled && d.DMA.Base+mac.Span > regmodbus.MaxAddress {
			return errors.Errorf("device %q: mac registers at dma.base 0x%x outside modbus register space", d.Name, d.DMA.Base)
		}
		if d.PCS.Enabled && d.PCS.Base+pcsSpan > regmodbus.MaxAddress {
			return errors.Errorf("device %q: pcs.base 0x%x outside modbus register space", d.Name, d.PCS.Base)
		}
	}

	// ------------------------------------------------------------
	// SCHEDULE
	// ------------------------------------------------------------

	if d.Safety.IntervalMs < 0 {
		return errors.Errorf("device %q: safety.interval_ms must be >= 0", d.Name)
	}

	// ------------------------------------------------------------
	// STATUS (OPT-IN)
	// ------------------------------------------------------------

	if d.Status == nil {
		return nil
	}
	s := d.Status

	for i := 0; i < len(s.DeviceName); i++ {
		if s.DeviceName[i] > 0x7F {
			return errors.Errorf("device %q: status.device_name must contain ASCII characters only", d.Name)
		}
	}
	if s.Slot > maxStatusSlot {
		return errors.Errorf("device %q: status.slot %d exceeds %d", d.Name, s.Slot, maxStatusSlot)
	}
	if s.Endpoint == "" && s.Redis == nil {
		return errors.Errorf("device %q: status requires endpoint or redis", d.Name)
	}
	if s.Redis != nil && s.Redis.Addr == "" {
		return errors.Errorf("device %q: status.redis.addr required", d.Name)
	}
	if s.Endpoint != "" && d.Backend.Kind == BackendModbus && s.Endpoint == d.Backend.Endpoint && s.UnitID == d.Backend.UnitID {
		return errors.Errorf(
			"status collision: endpoint=%s unit_id=%d is the register backend of device %q",
			s.Endpoint, s.UnitID, d.Name,
		)
	}

	return nil
}

func validateMAC(d *DeviceConfig) error {
	m := &d.MAC
	if !m.Enabled {
		return nil
	}
	// the sim backend has no self-clearing flush bits
	if d.Backend.Kind == BackendSim {
		return errors.Errorf("device %q: mac requires a hardware backend", d.Name)
	}

	switch m.SpeedMbps {
	case 0, 10, 100, 1000, 2500, 5000, 10000:
	default:
		return errors.Errorf("device %q: mac.speed_mbps %d unsupported", d.Name, m.SpeedMbps)
	}

	seen := map[uint32]bool{}
	for _, q := range m.Queues {
		if q.ID >= safety.MaxChannels {
			return errors.Errorf("device %q: mac queue %d out of range (max %d)", d.Name, q.ID, safety.MaxChannels-1)
		}
		if seen[q.ID] {
			return errors.Errorf("device %q: duplicate mac queue %d", d.Name, q.ID)
		}
		seen[q.ID] = true

		for _, n := range []uint32{q.TxFifo, q.RxFifo} {
			if n != 0 && (n%mac.FifoBlock != 0 || n > mac.MaxFifo) {
				return errors.Errorf("device %q: mac queue %d fifo %d must be a multiple of %d up to %d",
					d.Name, q.ID, n, mac.FifoBlock, mac.MaxFifo)
			}
		}
	}
	return nil
}
