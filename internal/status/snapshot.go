// internal/status/snapshot.go
package status

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16
	LinkSpeed      uint16 // 10 Mb/s units
	CorruptIndex   uint16
}

// Initial is the snapshot published before the first result.
func Initial() Snapshot {
	return Snapshot{
		Health:       HealthUnknown,
		CorruptIndex: CorruptNone,
	}
}

// LinkSpeedSlot converts a line rate in Mb/s into the slot encoding,
// saturating at the slot width.
func LinkSpeedSlot(mbps uint32) uint16 {
	v := mbps / 10
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}
