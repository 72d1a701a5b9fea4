package bt81x

// Region is a named block of the chip's address space.
type Region struct {
	Name string
	Base uint32
	Size uint32
}

// End returns the first address past the region.
func (r Region) End() uint32 {
	return r.Base + r.Size
}

// Contains reports whether addr lies inside the region.
func (r Region) Contains(addr uint32) bool {
	return addr >= r.Base && addr < r.End()
}

// ContainsRange reports whether [addr, addr+n) lies inside the region and
// stops strictly before its end.
func (r Region) ContainsRange(addr uint32, n uint64) bool {
	return addr >= r.Base && uint64(addr)+n < uint64(r.End())
}

// Memory map of the BT81x. Sizes in bytes.
var (
	RamG   = Region{Name: "RAM_G", Base: 0x000000, Size: 1 << 20}
	Rom    = Region{Name: "ROM", Base: 0x200000, Size: 1 << 20}
	RamDL  = Region{Name: "RAM_DL", Base: 0x300000, Size: 8 << 10}
	RamReg = Region{Name: "RAM_REG", Base: 0x302000, Size: 4 << 10}
	RamCmd = Region{Name: "RAM_CMD", Base: 0x308000, Size: 4 << 10}
	Flash  = Region{Name: "FLASH", Base: 0x800000, Size: 256 << 20}
)

// Regions lists every region in address order.
var Regions = []Region{RamG, Rom, RamDL, RamReg, RamCmd, Flash}

// chipIDAddress holds the chip identifier until the application overwrites
// RAM_G after a power-on.
const chipIDAddress = 0xC0000

// addressSize is the length of the address phase of a host memory access.
const addressSize = 3

// readHeader encodes the address frame of a host memory read: three address
// bytes with the top two bits cleared, then one dummy byte.
func readHeader(addr uint32) [addressSize + 1]byte {
	return [addressSize + 1]byte{byte(addr>>16) & 0x3F, byte(addr >> 8), byte(addr), 0}
}

// writeHeader encodes the address frame of a host memory write: the top two
// bits of the first byte are 10.
func writeHeader(addr uint32) [addressSize]byte {
	return [addressSize]byte{byte(addr>>16)&0x3F | 0x80, byte(addr >> 8), byte(addr)}
}
