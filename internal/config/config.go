// internal/config/config.go
package config

type Config struct {
	Device DeviceConfig `yaml:"device"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Name    string        `yaml:"name"`
	Backend BackendConfig `yaml:"backend"`
	DMA     DMAConfig     `yaml:"dma"`
	MAC     MACConfig     `yaml:"mac"`
	PCS     PCSConfig     `yaml:"pcs"`
	Retry   RetryConfig   `yaml:"retry"`
	Safety  SafetyConfig  `yaml:"safety"`

	// Status publishing (optional, opt-in)
	Status *StatusConfig `yaml:"status"`
}

// ---- BACKEND ----

const (
	BackendMMIO   = "mmio"
	BackendModbus = "modbus"
	BackendSim    = "sim"
)

type BackendConfig struct {
	Kind string `yaml:"kind"`

	// modbus
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// mmio
	Resource string `yaml:"resource"`
	Size     int    `yaml:"size"`
}

// ---- DMA ----

type DMAConfig struct {
	Base       uint64          `yaml:"base"`
	AxiClockHz uint32          `yaml:"axi_clock_hz"`
	PreSilicon bool            `yaml:"pre_silicon"` // software issues the DMA reset
	Channels   []ChannelConfig `yaml:"channels"`
}

type ChannelConfig struct {
	ID           uint32  `yaml:"id"`
	BufferLength uint32  `yaml:"buffer_length"`
	Watchdog     bool    `yaml:"watchdog"`
	WatchdogUsec *uint32 `yaml:"watchdog_usec"` // nil => unlimited
	TSO          *bool   `yaml:"tso"`           // nil => true
	OSF          *bool   `yaml:"osf"`           // nil => true
	TxRingLen    uint32  `yaml:"tx_ring_len"`   // 0 => leave as is
	RxRingLen    uint32  `yaml:"rx_ring_len"`
	SlotUsec     *uint32 `yaml:"slot_interval_usec"` // nil => slot checking untouched
}

// ---- MAC ----

// MACConfig drives the MAC and MTL core at dma.base.
type MACConfig struct {
	Enabled    bool          `yaml:"enabled"`
	SpeedMbps  uint32        `yaml:"speed_mbps"` // 0 => 1000
	HalfDuplex bool          `yaml:"half_duplex"`
	Queues     []QueueConfig `yaml:"queues"`
}

type QueueConfig struct {
	ID            uint32 `yaml:"id"`
	TxFifo        uint32 `yaml:"tx_fifo"` // bytes, 0 => 2048
	RxFifo        uint32 `yaml:"rx_fifo"`
	ForwardErrors bool   `yaml:"forward_errors"`
}

// ---- PCS ----

type PCSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Base    uint64 `yaml:"base"`
	EEE     bool   `yaml:"eee"`
}

// ---- RETRY ----

type RetryConfig struct {
	MaxAttempts uint32 `yaml:"max_attempts"`
	DelayUsec   uint32 `yaml:"delay_usec"`
}

// ---- SAFETY ----

type SafetyConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// ---- STATUS ----

type StatusConfig struct {
	Endpoint   string       `yaml:"endpoint"`
	UnitID     uint8        `yaml:"unit_id"`
	Slot       uint16       `yaml:"slot"`
	DeviceName string       `yaml:"device_name"`
	Redis      *RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	Key  string `yaml:"key"`
}
