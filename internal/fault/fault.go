// internal/fault/fault.go
package fault

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds raised by the control plane.
// Callers match them with errors.Is / errors.As.
var (
	// ErrTimeout is the generic hardware-timeout kind.
	// Every *TimeoutError matches it.
	ErrTimeout = errors.New("hardware timeout")

	// ErrZeroSpeed means autonegotiation completed but reported no usable speed.
	ErrZeroSpeed = errors.New("autonegotiation completed with zero speed")

	// ErrCorruption is matched by every *CorruptionError.
	ErrCorruption = errors.New("register corruption detected")

	// ErrInvalidArgument is returned before any register access.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Stage names a distinct wait point.
type Stage int

const (
	StageVendorReset Stage = iota
	StageAutonegComplete
	StageRateAdapterReset
	StageLinkUp
	StageSoftwareReset
	StageTxQueueFlush
)

func (s Stage) String() string {
	switch s {
	case StageVendorReset:
		return "vendor-reset"
	case StageAutonegComplete:
		return "autoneg-complete"
	case StageRateAdapterReset:
		return "rate-adapter-reset"
	case StageLinkUp:
		return "link-up"
	case StageSoftwareReset:
		return "software-reset"
	case StageTxQueueFlush:
		return "tx-queue-flush"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// TimeoutError reports an exhausted retry budget at one wait point.
type TimeoutError struct {
	Stage Stage
}

// Timeout builds a *TimeoutError for stage.
func Timeout(stage Stage) error { return &TimeoutError{Stage: stage} }

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("hardware timeout: %s", e.Stage)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Block identifies a shadowed register set.
type Block uint8

const (
	BlockDMA Block = iota
	BlockCore
)

func (b Block) String() string {
	switch b {
	case BlockDMA:
		return "dma"
	case BlockCore:
		return "core"
	}
	return fmt.Sprintf("block(%d)", int(b))
}

// CorruptionError reports the first shadowed register whose masked
// hardware value differs from the last intended value.
type CorruptionError struct {
	Block Block
	Index int
	Want  uint32
	Got   uint32
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("register corruption detected: %s index=%d want=0x%08x got=0x%08x",
		e.Block, e.Index, e.Want, e.Got)
}

// Slot packs block and index into the status block's corrupt index
// field: high byte block, low byte index.
func (e *CorruptionError) Slot() uint16 {
	return uint16(e.Block)<<8 | uint16(e.Index&0xFF)
}

func (e *CorruptionError) Is(target error) bool { return target == ErrCorruption }

// StatusCode returns the numeric code published in the status block.
// Codes follow the log-record codes plus distinct values per kind so that
// a remote reader can tell failures apart.
func StatusCode(err error) uint16 {
	if err == nil {
		return 0
	}

	var te *TimeoutError
	var ce *CorruptionError

	switch {
	case errors.As(err, &ce):
		return 0x100
	case errors.As(err, &te):
		return 0x200 | uint16(te.Stage)
	case errors.Is(err, ErrZeroSpeed):
		return 0x300
	case errors.Is(err, ErrInvalidArgument):
		return uint16(CodeInvalidArg)
	}
	return 1
}
