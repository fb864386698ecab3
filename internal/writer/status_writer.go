// internal/writer/status_writer.go
package writer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/status"
)

// deviceStatusWriter writes the status block into Modbus holding registers.
type deviceStatusWriter struct {
	plan *StatusPlan
	cli  endpointClient

	needFull bool
	last     status.Snapshot
	nameRegs []uint16
}

// NewDeviceStatusWriter builds a status writer if Modbus status is enabled.
// If plan.Status is nil, status is disabled.
func NewDeviceStatusWriter(plan Plan, cli endpointClient) (*deviceStatusWriter, bool) {
	if plan.Status == nil {
		return nil, false
	}

	sp := plan.Status
	return &deviceStatusWriter{
		plan:     sp,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		last:     status.Initial(),
		nameRegs: status.EncodeName(sp.DeviceName),
	}, true
}

// WriteStatus delivers a device status snapshot into status memory.
// On any write failure, the next call re-asserts the full block.
func (sw *deviceStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.plan == nil {
		return errors.New("status writer: disabled")
	}
	if sw.cli == nil {
		return errors.Errorf("status writer: missing client for endpoint %s", sw.plan.Endpoint)
	}

	baseAddr := sw.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		regs := status.Encode(s, sw.nameRegs)

		if err := sw.cli.WriteRegisters(sw.plan.UnitID, baseAddr, regs); err != nil {
			return errors.Wrap(err, "status writer: full block write failed")
		}

		sw.needFull = false
		sw.last = s
		return nil
	}

	// ------------------------------------------------------------
	// Incremental: only slots that changed
	// ------------------------------------------------------------
	slots := []struct {
		slot int
		name string
		last *uint16
		next uint16
	}{
		{status.SlotHealthCode, "health", &sw.last.Health, s.Health},
		{status.SlotLastErrorCode, "last_error", &sw.last.LastErrorCode, s.LastErrorCode},
		{status.SlotSecondsInError, "seconds", &sw.last.SecondsInError, s.SecondsInError},
		{status.SlotLinkSpeed, "link_speed", &sw.last.LinkSpeed, s.LinkSpeed},
		{status.SlotCorruptIndex, "corrupt_index", &sw.last.CorruptIndex, s.CorruptIndex},
	}

	var errs []string
	for _, f := range slots {
		if *f.last == f.next {
			continue
		}
		if err := sw.cli.WriteRegisters(sw.plan.UnitID, baseAddr+uint16(f.slot), []uint16{f.next}); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d %s write failed: %v", f.slot, f.name, err))
			continue
		}
		*f.last = f.next
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt: re-assert on next call.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	return nil
}

func (sw *deviceStatusWriter) baseAddr() uint16 {
	// Each device owns a fixed SlotsPerDevice block.
	return sw.plan.BaseSlot * status.SlotsPerDevice
}
