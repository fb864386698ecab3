// internal/config/normalize_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tamzrod/nicplane/internal/dma"
	"github.com/tamzrod/nicplane/internal/mac"
	"github.com/tamzrod/nicplane/internal/poll"
)

func TestNormalize_Defaults(t *testing.T) {
	c := device(0)
	c.Device.Status = &StatusConfig{Redis: &RedisConfig{Addr: "127.0.0.1:6379"}}
	Normalize(c)

	d := c.Device
	if d.Policy() != poll.Default {
		t.Fatalf("policy: got=%+v want=%+v", d.Policy(), poll.Default)
	}
	if d.DMA.AxiClockHz != dma.DefaultAxiClockHz {
		t.Fatalf("axi clock: got=%d", d.DMA.AxiClockHz)
	}
	if d.Safety.IntervalMs != DefaultSafetyInterval || d.Backend.TimeoutMs != DefaultTimeoutMs {
		t.Fatalf("intervals: got=%d/%d", d.Safety.IntervalMs, d.Backend.TimeoutMs)
	}

	ch := d.DMA.Channels[0]
	if ch.WatchdogUsec == nil || *ch.WatchdogUsec != dma.WatchdogUnlimited {
		t.Fatalf("watchdog sentinel not applied")
	}
	if ch.TSO == nil || !*ch.TSO || ch.OSF == nil || !*ch.OSF {
		t.Fatalf("tso/osf default not applied")
	}

	if d.Status.DeviceName != "eqos0" {
		t.Fatalf("device name: got=%q want=%q", d.Status.DeviceName, "eqos0")
	}
	if d.Status.Redis.Key != "nicplane.eqos0" {
		t.Fatalf("redis key: got=%q", d.Status.Redis.Key)
	}
}

func TestNormalize_MACDefaults(t *testing.T) {
	c := device(0)
	c.Device.MAC = MACConfig{
		Enabled: true,
		Queues:  []QueueConfig{{ID: 0}, {ID: 2, TxFifo: 4096}},
	}
	Normalize(c)

	d := c.Device
	if d.MAC.SpeedMbps != DefaultMACSpeed {
		t.Fatalf("speed: got=%d want=%d", d.MAC.SpeedMbps, DefaultMACSpeed)
	}
	want := []mac.Queue{
		{ID: 0, TxFifo: 2048, RxFifo: 2048},
		{ID: 2, TxFifo: 4096, RxFifo: 2048},
	}
	got := d.MACQueues()
	if len(got) != len(want) {
		t.Fatalf("queues: got=%+v want=%+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("queue %d: got=%+v want=%+v", i, got[i], want[i])
		}
	}
	if d.Duplex() != mac.FullDuplex {
		t.Fatalf("duplex: got=%v want=full", d.Duplex())
	}
}

func TestNormalize_TruncatesDeviceName(t *testing.T) {
	c := device(0)
	c.Device.Status = &StatusConfig{Endpoint: "st:502", DeviceName: "ethernet-controller-0"}
	Normalize(c)

	if got := c.Device.Status.DeviceName; got != "ethernet-control" {
		t.Fatalf("got=%q want=%q", got, "ethernet-control")
	}
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	c := device(1)
	off := false
	usec := uint32(250)
	c.Device.DMA.Channels[0].Watchdog = true
	c.Device.DMA.Channels[0].WatchdogUsec = &usec
	c.Device.DMA.Channels[0].TSO = &off
	c.Device.Retry = RetryConfig{MaxAttempts: 10, DelayUsec: 50}
	Normalize(c)

	chans := c.Device.ChannelConfigs()
	want := dma.Channel{ID: 1, Config: dma.ChannelConfig{
		BufferLength: 1536,
		Watchdog:     true,
		WatchdogUsec: 250,
		TSO:          false,
		OSF:          true,
	}}
	if len(chans) != 1 || chans[0] != want {
		t.Fatalf("channels: got=%+v want=%+v", chans, want)
	}
	if p := c.Device.Policy(); p.MaxAttempts != 10 || p.DelayUsec != 50 {
		t.Fatalf("policy: got=%+v", p)
	}
}

func TestLoad(t *testing.T) {
	doc := `
device:
  name: eqos0
  backend:
    kind: modbus
    endpoint: 10.0.0.5:502
    unit_id: 3
  dma:
    base: 0x0
    channels:
      - id: 0
        buffer_length: 2048
        watchdog: true
        watchdog_usec: 1000
        tx_ring_len: 256
        rx_ring_len: 256
      - id: 2
        buffer_length: 1536
        tso: false
  mac:
    enabled: true
    speed_mbps: 1000
    queues:
      - id: 0
        rx_fifo: 4096
        forward_errors: true
  pcs:
    enabled: true
    base: 0x10000
    eee: true
  status:
    endpoint: 10.0.0.9:502
    unit_id: 1
    slot: 2
`
	path := filepath.Join(t.TempDir(), "nicplane.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if err := Validate(c); err != nil {
		t.Fatalf("Validate err=%v", err)
	}

	d := c.Device
	if d.DMA.Base != 0 || d.PCS.Base != 0x10000 {
		t.Fatalf("bases: dma=0x%x pcs=0x%x", d.DMA.Base, d.PCS.Base)
	}
	if len(d.DMA.Channels) != 2 || d.DMA.Channels[1].ID != 2 {
		t.Fatalf("channels: got=%+v", d.DMA.Channels)
	}
	if w := d.DMA.Channels[0].WatchdogUsec; w == nil || *w != 1000 {
		t.Fatalf("watchdog_usec not decoded")
	}
	if tso := d.DMA.Channels[1].TSO; tso == nil || *tso {
		t.Fatalf("tso: expected explicit false")
	}
	if !d.MAC.Enabled || len(d.MAC.Queues) != 1 || d.MAC.Queues[0].RxFifo != 4096 || !d.MAC.Queues[0].ForwardErrors {
		t.Fatalf("mac: got=%+v", d.MAC)
	}
	if d.Status == nil || d.Status.Slot != 2 {
		t.Fatalf("status: got=%+v", d.Status)
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("device:\n  nmae: x\n")); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}
