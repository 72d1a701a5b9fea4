package bt81x

import (
	"encoding/binary"
	"fmt"
)

// CommandBufferSize is the capacity of the local staging buffer.
const CommandBufferSize = 512

type cmdBuffer struct {
	buf [CommandBufferSize]byte
	n   int
}

func (b *cmdBuffer) reset() {
	b.n = 0
}

// Append stages cmd and its parameter words. Nothing is staged if the whole
// command does not fit. With flush set, everything staged so far is written
// to REG_CMDB_WRITE in one transaction and the buffer is emptied.
func (d *Driver) Append(cmd Command, params []uint32, flush bool) error {
	need := 4 + 4*len(params)
	if d.cmd.n+need > CommandBufferSize {
		return fmt.Errorf("bt81x: command %#08x needs %d bytes, %d free: %w",
			uint32(cmd), need, CommandBufferSize-d.cmd.n, ErrLimitReached)
	}
	binary.LittleEndian.PutUint32(d.cmd.buf[d.cmd.n:], uint32(cmd))
	d.cmd.n += 4
	for _, p := range params {
		binary.LittleEndian.PutUint32(d.cmd.buf[d.cmd.n:], p)
		d.cmd.n += 4
	}
	if !flush {
		return nil
	}
	return d.Flush()
}

// DL stages a single display list word.
func (d *Driver) DL(word uint32) error {
	return d.Append(Command(word), nil, false)
}

// Flush writes the staged bytes to the FIFO. The buffer is emptied even if
// the write fails.
func (d *Driver) Flush() error {
	if d.cmd.n == 0 {
		return nil
	}
	err := d.write(RegCmdBWrite.Addr(), d.cmd.buf[:d.cmd.n], defaultTimeout, 0)
	d.cmd.reset()
	return err
}

// Discard drops the staged bytes without writing them.
func (d *Driver) Discard() {
	d.cmd.reset()
}

// Pending returns the number of staged bytes.
func (d *Driver) Pending() int {
	return d.cmd.n
}
