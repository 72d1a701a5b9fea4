package bt81x

import (
	"encoding/binary"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// read fetches n (1, 2 or 4) bytes from addr and returns them as a little
// endian value. Chip select is released on every path.
func (d *Driver) read(addr uint32, n int, timeout time.Duration) (uint32, error) {
	hdr := readHeader(addr)
	var v uint32

	err := d.cs.Out(gpio.Low)
	if err == nil {
		err = d.bus.Transmit(hdr[:], timeout)
	}
	// The chip drives MISO as soon as CS is low, so whatever arrived during
	// the address phase is noise.
	if ferr := d.bus.FlushReceiveBuffer(); err == nil {
		err = ferr
	}
	if err == nil {
		var b [1]byte
		for i := 0; i < n; i++ {
			b[0] = 0
			if err = d.bus.Transmit(b[:], timeout); err != nil {
				break
			}
			if err = d.bus.Receive(b[:], timeout); err != nil {
				break
			}
			v |= uint32(b[0]) << (8 * i)
		}
	}

	csErr := d.cs.Out(gpio.High)
	flushErr := d.bus.FlushReceiveBuffer()
	if err == nil {
		err = csErr
	}
	if err == nil {
		err = flushErr
	}
	if err != nil {
		return 0, fmt.Errorf("bt81x: read %#06x: %w", addr, err)
	}
	return v, nil
}

// write sends data to addr in one chip select bracket. Writes into the
// register file are read back and retried while maxRetries > 0; a read back
// passes when every bit written is set. Other regions are never verified.
func (d *Driver) write(addr uint32, data []byte, timeout time.Duration, maxRetries int) error {
	verify := maxRetries > 0 && RamReg.Contains(addr) && len(data) <= 4
	want := leValue(data)

	for attempt := 1; ; attempt++ {
		if err := d.transmitWrite(addr, data, timeout); err != nil {
			return err
		}
		if !verify {
			return nil
		}
		got, err := d.read(addr, len(data), timeout)
		if err != nil {
			return err
		}
		if got&want == want {
			return nil
		}
		if attempt >= maxRetries {
			return fmt.Errorf("bt81x: write %#06x: read back %#x after %d attempts, want %#x: %w",
				addr, got, attempt, want, ErrLimitReached)
		}
	}
}

func (d *Driver) transmitWrite(addr uint32, data []byte, timeout time.Duration) error {
	hdr := writeHeader(addr)

	err := d.cs.Out(gpio.Low)
	if err == nil {
		err = d.bus.Transmit(hdr[:], timeout)
	}
	if err == nil && len(data) > 0 {
		err = d.bus.Transmit(data, timeout)
	}
	if csErr := d.cs.Out(gpio.High); err == nil {
		err = csErr
	}
	if err != nil {
		return fmt.Errorf("bt81x: write %#06x: %w", addr, err)
	}
	return nil
}

// hostCommand sends a 3 byte host command frame.
func (d *Driver) hostCommand(cmd HostCommand, param uint8) error {
	frame := [3]byte{byte(cmd), param, 0}

	err := d.cs.Out(gpio.Low)
	if err == nil {
		err = d.bus.Transmit(frame[:], defaultTimeout)
	}
	if csErr := d.cs.Out(gpio.High); err == nil {
		err = csErr
	}
	if err != nil {
		return fmt.Errorf("bt81x: host command %#02x: %w", byte(cmd), err)
	}
	return nil
}

func (d *Driver) read8(r Register) (uint8, error) {
	v, err := d.read(r.Addr(), 1, defaultTimeout)
	return uint8(v), err
}

func (d *Driver) read16(r Register) (uint16, error) {
	v, err := d.read(r.Addr(), 2, defaultTimeout)
	return uint16(v), err
}

func (d *Driver) read32(r Register) (uint32, error) {
	return d.read(r.Addr(), 4, defaultTimeout)
}

func (d *Driver) write8(r Register, v uint8, maxRetries int) error {
	return d.write(r.Addr(), []byte{v}, defaultTimeout, maxRetries)
}

func (d *Driver) write16(r Register, v uint16, maxRetries int) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return d.write(r.Addr(), b[:], defaultTimeout, maxRetries)
}

func (d *Driver) write32(r Register, v uint32, maxRetries int) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return d.write(r.Addr(), b[:], defaultTimeout, maxRetries)
}

// leValue decodes up to four little endian bytes.
func leValue(p []byte) uint32 {
	var v uint32
	for i := 0; i < len(p) && i < 4; i++ {
		v |= uint32(p[i]) << (8 * i)
	}
	return v
}
