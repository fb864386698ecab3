// internal/regio/mmio/mmio.go
package mmio

import (
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Map is a RegisterIO over a memory-mapped device resource, such as a
// UIO map or a sysfs PCI resource file. base is a byte offset into the
// mapping. Out-of-range reads return all ones and writes are dropped.
type Map struct {
	mem []byte
}

// Open maps size bytes of path read/write shared.
func Open(path string, size int) (*Map, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, errors.Wrap(err, "mmio: open")
	}
	defer f.Close()

	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "mmio: mmap %s", path)
	}
	return &Map{mem: mem}, nil
}

func (m *Map) Close() error {
	if m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem = nil
	return errors.Wrap(err, "mmio: munmap")
}

func (m *Map) reg(base uintptr, offset uint32) *uint32 {
	a := uint64(base) + uint64(offset)
	if a%4 != 0 || a+4 > uint64(len(m.mem)) {
		return nil
	}
	return (*uint32)(unsafe.Pointer(&m.mem[a]))
}

func (m *Map) Read(base uintptr, offset uint32) uint32 {
	p := m.reg(base, offset)
	if p == nil {
		return 0xFFFFFFFF
	}
	return atomic.LoadUint32(p)
}

func (m *Map) Write(base uintptr, offset uint32, v uint32) {
	if p := m.reg(base, offset); p != nil {
		atomic.StoreUint32(p, v)
	}
}
