// internal/status/constants.go
package status

// Device Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of logical slots per device.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the device health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the last error code (see fault.Code).
const SlotLastErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) the device has been in error.
const SlotSecondsInError = 2

// SlotLinkSpeed holds the negotiated line rate in units of 10 Mb/s.
const SlotLinkSpeed = 3

// SlotCorruptIndex holds the register found corrupted by the current
// error, or CorruptNone: high byte register set (0 DMA, 1 core), low
// byte safety index.
const SlotCorruptIndex = 4

// ---- RESERVED RANGE ----

// Slots 5-10 are reserved for future use.
const SlotReservedStart = 5
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// CorruptNone marks SlotCorruptIndex when no corruption was seen.
const CorruptNone uint16 = 0xFFFF

// ---- HEALTH CODES ----

// HealthUnknown represents the boot state, before bring-up completes.
const HealthUnknown uint16 = 0

// HealthOK represents a device whose last validation passed.
const HealthOK uint16 = 1

// HealthError represents a failed bring-up or validation.
const HealthError uint16 = 2

// HealthStale represents a device whose backend stopped answering.
const HealthStale uint16 = 3

// HealthDisabled represents a device with no channels under supervision.
const HealthDisabled uint16 = 4
