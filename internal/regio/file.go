// internal/regio/file.go
package regio

import "sync"

// Access is one logged register operation.
type Access struct {
	Write bool
	Addr  uint64
	Value uint32
}

// File is an in-memory register file.
// It backs the "sim" backend and every hardware-free test.
type File struct {
	mu   sync.Mutex
	regs map[uint64]uint32
	log  []Access

	// OnWrite, when set, returns the value actually stored for a write.
	// It runs with the file unlocked and may call Poke.
	OnWrite func(addr uint64, v uint32) uint32

	// OnRead, when set, is called before each read and may call Poke.
	OnRead func(addr uint64)
}

func NewFile() *File { return &File{regs: make(map[uint64]uint32)} }

func addrOf(base uintptr, offset uint32) uint64 { return uint64(base) + uint64(offset) }

func (f *File) Read(base uintptr, offset uint32) uint32 {
	addr := addrOf(base, offset)
	if f.OnRead != nil {
		f.OnRead(addr)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.regs[addr]
	f.log = append(f.log, Access{Addr: addr, Value: v})
	return v
}

func (f *File) Write(base uintptr, offset uint32, v uint32) {
	addr := addrOf(base, offset)
	if f.OnWrite != nil {
		v = f.OnWrite(addr, v)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[addr] = v
	f.log = append(f.log, Access{Write: true, Addr: addr, Value: v})
}

// Poke stores v without logging an access.
// Tests use it to model hardware-side changes.
func (f *File) Poke(addr uint64, v uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[addr] = v
}

// Peek returns the stored value without logging an access.
func (f *File) Peek(addr uint64) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[addr]
}

// Log returns a copy of the access log.
func (f *File) Log() []Access {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Access, len(f.log))
	copy(out, f.log)
	return out
}

// Writes returns the logged writes, optionally filtered to one address.
func (f *File) Writes(addr ...uint64) []Access {
	var out []Access
	for _, a := range f.Log() {
		if !a.Write {
			continue
		}
		if len(addr) > 0 && a.Addr != addr[0] {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ResetLog drops the access log.
func (f *File) ResetLog() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = nil
}
