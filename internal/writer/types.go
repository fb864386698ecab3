// internal/writer/types.go
package writer

import "github.com/tamzrod/nicplane/internal/status"

// StatusPlan is where one device's status block lives in Modbus memory.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
}

// RedisPlan is the hash a device's status is mirrored into.
type RedisPlan struct {
	Addr string
	Key  string
}

// Plan is the fully-built publishing plan for one device.
// A nil destination is disabled.
type Plan struct {
	DeviceName string
	Status     *StatusPlan
	Redis      *RedisPlan
}

// StatusWriter is the delivery-only contract for device status.
// It receives a snapshot and writes it verbatim.
// No logic, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// endpointClient is the register write contract of the Modbus status writer.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}
