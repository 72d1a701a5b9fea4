package bt81x

import "fmt"

// MaxBitmapHandles is the number of bitmap handles the chip provides.
const MaxBitmapHandles = 32

// handleArena tracks which bitmap handles are in use. Handle 0 is the
// default handle, 15 is scratch for coprocessor widgets and 16..31 hold the
// ROM fonts, so they are never handed out.
type handleArena struct {
	used [MaxBitmapHandles]bool
}

func newHandleArena() handleArena {
	var a handleArena
	a.used[0] = true
	a.used[15] = true
	for h := 16; h < MaxBitmapHandles; h++ {
		a.used[h] = true
	}
	return a
}

func (a *handleArena) alloc() (uint8, error) {
	for h := range a.used {
		if !a.used[h] {
			a.used[h] = true
			return uint8(h), nil
		}
	}
	return 0, fmt.Errorf("bt81x: no free bitmap handle: %w", ErrLimitReached)
}

func (a *handleArena) release(h uint8) {
	if h == 0 || h == 15 || h >= 16 {
		return
	}
	a.used[h] = false
}

// AllocHandle reserves a free bitmap handle.
func (d *Driver) AllocHandle() (uint8, error) {
	return d.handles.alloc()
}

// ReleaseHandle returns h to the arena. Reserved handles are ignored.
func (d *Driver) ReleaseHandle(h uint8) {
	d.handles.release(h)
}
