// internal/regio/regio.go
package regio

// RegisterIO reads and writes 32-bit memory-mapped registers.
// base is an opaque handle chosen by the backend; offset is a byte offset.
type RegisterIO interface {
	Read(base uintptr, offset uint32) uint32
	Write(base uintptr, offset uint32, v uint32)
}

// Faulter is implemented by backends that can lose transfers. Err
// returns the latched failure, or nil while transfers succeed.
type Faulter interface {
	Err() error
}

// Err returns the latched transfer failure of io, if it has one.
func Err(io RegisterIO) error {
	if f, ok := io.(Faulter); ok {
		return f.Err()
	}
	return nil
}

// Bank binds a RegisterIO to one block base address.
type Bank struct {
	IO   RegisterIO
	Base uintptr
}

func NewBank(io RegisterIO, base uintptr) Bank { return Bank{IO: io, Base: base} }

func (b Bank) Get(offset uint32) uint32    { return b.IO.Read(b.Base, offset) }
func (b Bank) Set(offset uint32, v uint32) { b.IO.Write(b.Base, offset, v) }

// Or sets bits v and returns the value written.
func (b Bank) Or(offset uint32, v uint32) (x uint32) {
	x = b.Get(offset) | v
	b.Set(offset, x)
	return
}

// AndNot clears bits v and returns the value written.
func (b Bank) AndNot(offset uint32, v uint32) (x uint32) {
	x = b.Get(offset) &^ v
	b.Set(offset, x)
	return
}
