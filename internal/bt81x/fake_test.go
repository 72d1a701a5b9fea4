package bt81x

import (
	"time"

	"evepanel/internal/bt81x/bt81xtest"
)

// fakeChip adds register addressed helpers to the fake controller.
type fakeChip struct {
	*bt81xtest.Chip
}

// newTestDriver returns a driver on a fake chip that never sleeps.
func newTestDriver() (*Driver, *fakeChip) {
	f := &fakeChip{bt81xtest.NewChip()}
	d := New(f, f)
	d.sleep = func(time.Duration) {}
	return d, f
}

func (f *fakeChip) set8(r Register, v uint8) {
	f.Set8(r.Addr(), v)
}

func (f *fakeChip) set32(r Register, v uint32) {
	f.Set32(r.Addr(), v)
}

func (f *fakeChip) get16(r Register) uint16 {
	return f.Get16(r.Addr())
}

func (f *fakeChip) get32(r Register) uint32 {
	return f.Get32(r.Addr())
}
