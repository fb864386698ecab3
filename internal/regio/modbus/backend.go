// internal/regio/modbus/backend.go
package modbus

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/fault"
)

// MasterAbort is returned for every read the bridge could not complete.
const MasterAbort = 0xFFFFFFFF

// MaxAddress is the first byte address past the holding register space.
const MaxAddress = 0x20000

// client abstracts the goburrow calls the backend needs.
type client interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
	Sink     fault.Sink
}

// Backend is a RegisterIO reached through a Modbus TCP register bridge.
// Byte address base+offset maps to holding register (base+offset)/2; a
// 32-bit register spans two holding registers, high word first.
//
// Transfers never return errors to the caller. A failed transfer reads
// as MasterAbort, latches Err and is reported to the sink; further
// transfers fail fast until the backoff delay has passed.
type Backend struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	cli     client
	sink    fault.Sink

	err     error
	b       *backoff.Backoff
	retryAt time.Time
	now     func() time.Time
}

// Dial connects to the bridge. The first connection must succeed.
func Dial(cfg Config) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("regio modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, errors.Wrapf(err, "regio modbus: connect %s", cfg.Endpoint)
	}

	b := newBackend(modbus.NewClient(h), cfg.Sink)
	b.handler = h
	return b, nil
}

func newBackend(cli client, sink fault.Sink) *Backend {
	return &Backend{
		cli:  cli,
		sink: fault.OrDiscard(sink),
		b: &backoff.Backoff{
			Min:    100 * time.Millisecond,
			Max:    10 * time.Second,
			Factor: 2,
			Jitter: false,
		},
		now: time.Now,
	}
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handler == nil {
		return nil
	}
	return b.handler.Close()
}

// Err returns the first transfer error since the last ClearErr.
func (b *Backend) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *Backend) ClearErr() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = nil
}

func register(base uintptr, offset uint32) (uint16, error) {
	a := uint64(base) + uint64(offset)
	if a%4 != 0 || a+4 > MaxAddress {
		return 0, errors.Wrapf(fault.ErrInvalidArgument, "regio modbus: address 0x%x not mappable", a)
	}
	return uint16(a / 2), nil
}

func (b *Backend) Read(base uintptr, offset uint32) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	reg, err := register(base, offset)
	if err != nil {
		b.fail(err, fault.CodeInvalidArg, uint64(base)+uint64(offset))
		return MasterAbort
	}
	if err := b.ready(); err != nil {
		return MasterAbort
	}

	data, err := b.cli.ReadHoldingRegisters(reg, 2)
	if err == nil && len(data) < 4 {
		err = errors.Errorf("short response: %d bytes", len(data))
	}
	if err != nil {
		b.fail(errors.Wrapf(err, "regio modbus: read 0x%x", reg), fault.CodeHWFail, uint64(reg))
		return MasterAbort
	}

	b.b.Reset()
	return binary.BigEndian.Uint32(data)
}

func (b *Backend) Write(base uintptr, offset uint32, v uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	reg, err := register(base, offset)
	if err != nil {
		b.fail(err, fault.CodeInvalidArg, uint64(base)+uint64(offset))
		return
	}
	if err := b.ready(); err != nil {
		return
	}

	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	if _, err := b.cli.WriteMultipleRegisters(reg, 2, buf[:]); err != nil {
		b.fail(errors.Wrapf(err, "regio modbus: write 0x%x", reg), fault.CodeHWFail, uint64(reg))
		return
	}

	b.b.Reset()
}

// ready reports whether the backoff window after a failure has passed.
func (b *Backend) ready() error {
	if b.retryAt.IsZero() || !b.now().Before(b.retryAt) {
		return nil
	}
	return errors.New("regio modbus: backing off")
}

func (b *Backend) fail(err error, code fault.Code, arg uint64) {
	if b.err == nil {
		b.err = err
	}
	b.sink.Report(fault.Record{
		Component: "regio",
		Level:     fault.LevelErr,
		Code:      code,
		Text:      err.Error(),
		Arg:       arg,
	})
	if code != fault.CodeHWFail {
		return
	}

	b.retryAt = b.now().Add(b.b.Duration())
	if b.handler != nil {
		// goburrow redials on the next request
		_ = b.handler.Close()
	}
}
