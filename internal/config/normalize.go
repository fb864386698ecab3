// internal/config/normalize.go
package config

import (
	"github.com/tamzrod/nicplane/internal/dma"
	"github.com/tamzrod/nicplane/internal/mac"
	"github.com/tamzrod/nicplane/internal/poll"
)

// Defaults applied by Normalize.
const (
	DefaultTimeoutMs      = 1000
	DefaultSafetyInterval = 1000 // ms
	DefaultMACSpeed       = 1000 // Mb/s
	DefaultQueueFifo      = 2048 // bytes
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	d := &cfg.Device

	if d.Backend.TimeoutMs == 0 {
		d.Backend.TimeoutMs = DefaultTimeoutMs
	}
	if d.Retry.MaxAttempts == 0 {
		d.Retry.MaxAttempts = poll.Default.MaxAttempts
	}
	if d.Retry.DelayUsec == 0 {
		d.Retry.DelayUsec = poll.Default.DelayUsec
	}
	if d.DMA.AxiClockHz == 0 {
		d.DMA.AxiClockHz = dma.DefaultAxiClockHz
	}
	if d.Safety.IntervalMs == 0 {
		d.Safety.IntervalMs = DefaultSafetyInterval
	}

	for i := range d.DMA.Channels {
		c := &d.DMA.Channels[i]
		if c.WatchdogUsec == nil {
			c.WatchdogUsec = u32(dma.WatchdogUnlimited)
		}
		if c.TSO == nil {
			c.TSO = boolp(true)
		}
		if c.OSF == nil {
			c.OSF = boolp(true)
		}
	}

	if d.MAC.SpeedMbps == 0 {
		d.MAC.SpeedMbps = DefaultMACSpeed
	}
	for i := range d.MAC.Queues {
		q := &d.MAC.Queues[i]
		if q.TxFifo == 0 {
			q.TxFifo = DefaultQueueFifo
		}
		if q.RxFifo == 0 {
			q.RxFifo = DefaultQueueFifo
		}
	}

	// ------------------------------------------------------------
	// STATUS NORMALIZATION (OPT-IN)
	// ------------------------------------------------------------

	if d.Status == nil {
		return
	}
	s := d.Status

	if s.DeviceName == "" {
		s.DeviceName = d.Name
	}
	// ASCII already validated; truncate to max 16 characters
	if len(s.DeviceName) > 16 {
		s.DeviceName = s.DeviceName[:16]
	}
	if s.Redis != nil && s.Redis.Key == "" {
		s.Redis.Key = "nicplane." + d.Name
	}
}

// ChannelConfigs converts normalized channel settings to DMA bring-up input.
func (d *DeviceConfig) ChannelConfigs() []dma.Channel {
	out := make([]dma.Channel, 0, len(d.DMA.Channels))
	for _, c := range d.DMA.Channels {
		ch := dma.Channel{ID: c.ID, Config: dma.ChannelConfig{
			BufferLength: c.BufferLength,
			Watchdog:     c.Watchdog,
			WatchdogUsec: dma.WatchdogUnlimited,
			TSO:          true,
			OSF:          true,
		}}
		if c.WatchdogUsec != nil {
			ch.Config.WatchdogUsec = *c.WatchdogUsec
		}
		if c.TSO != nil {
			ch.Config.TSO = *c.TSO
		}
		if c.OSF != nil {
			ch.Config.OSF = *c.OSF
		}
		out = append(out, ch)
	}
	return out
}

// MACQueues converts normalized queue settings to core bring-up input.
func (d *DeviceConfig) MACQueues() []mac.Queue {
	out := make([]mac.Queue, 0, len(d.MAC.Queues))
	for _, q := range d.MAC.Queues {
		out = append(out, mac.Queue{ID: q.ID, TxFifo: q.TxFifo, RxFifo: q.RxFifo})
	}
	return out
}

// Duplex returns the configured MAC operating mode.
func (d *DeviceConfig) Duplex() mac.Duplex {
	if d.MAC.HalfDuplex {
		return mac.HalfDuplex
	}
	return mac.FullDuplex
}

// Policy returns the retry budget shared by every bring-up wait.
func (d *DeviceConfig) Policy() poll.Policy {
	return poll.Policy{MaxAttempts: d.Retry.MaxAttempts, DelayUsec: d.Retry.DelayUsec}
}

func u32(v uint32) *uint32 { return &v }
func boolp(v bool) *bool   { return &v }
