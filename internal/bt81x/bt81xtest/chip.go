// Package bt81xtest provides a fake BT81x for tests. Chip decodes the SPI
// wire protocol (read and write address frames, host commands, writes to
// REG_CMDB_WRITE) against a byte addressed memory and records every chip
// select bracket.
package bt81xtest

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// CmdBWrite is the address of REG_CMDB_WRITE. Bytes written there are
// collected in FIFO instead of memory.
const CmdBWrite = 0x302578

// Txn is one completed chip select bracket.
type Txn struct {
	Host  bool
	Write bool
	Addr  uint32
	// Data is the payload of a write or the bytes returned by a read.
	Data  []byte
	Cmd   uint8
	Param uint8
}

// Chip is both the bus and the chip select pin of a fake controller. The
// exported fields may be set up before use and inspected afterwards; use the
// methods while a driver is running concurrently.
type Chip struct {
	mu sync.Mutex

	Mem map[uint32]byte

	// ReadSeq values are consumed one per read transaction of that address
	// and stored little endian before the data phase.
	ReadSeq map[uint32][]uint32
	// Sticky addresses ignore writes.
	Sticky map[uint32]bool
	// FailRead makes the address phase of a read of that address fail.
	FailRead map[uint32]error

	Txns     []Txn
	Clocks   []physic.Frequency
	CSLow    bool
	CSEdges  int
	FIFO     []byte
	FIFOTxns int

	cur []byte
	rx  []byte
}

// NewChip returns a chip with zeroed memory and nothing selected.
func NewChip() *Chip {
	return &Chip{
		Mem:      map[uint32]byte{},
		ReadSeq:  map[uint32][]uint32{},
		Sticky:   map[uint32]bool{},
		FailRead: map[uint32]error{},
	}
}

// Set8 stores a byte at addr.
func (c *Chip) Set8(addr uint32, v uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Mem[addr] = v
}

// Set32 stores a little endian word at addr.
func (c *Chip) Set32(addr, v uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store32(addr, v)
}

func (c *Chip) store32(addr, v uint32) {
	for i := uint32(0); i < 4; i++ {
		c.Mem[addr+i] = byte(v >> (8 * i))
	}
}

// Get16 reads a little endian half word at addr.
func (c *Chip) Get16(addr uint32) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint16(c.Mem[addr]) | uint16(c.Mem[addr+1])<<8
}

// Get32 reads a little endian word at addr.
func (c *Chip) Get32(addr uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b [4]byte
	for i := range b {
		b[i] = c.Mem[addr+uint32(i)]
	}
	return binary.LittleEndian.Uint32(b[:])
}

// SetFailRead injects err into reads of addr; nil clears it.
func (c *Chip) SetFailRead(addr uint32, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.FailRead, addr)
		return
	}
	c.FailRead[addr] = err
}

// Out drives chip select. Rising edges end a transaction.
func (c *Chip) Out(l gpio.Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CSEdges++
	if l == gpio.Low {
		c.CSLow = true
		c.cur = c.cur[:0]
		return nil
	}
	if c.CSLow {
		c.finish()
	}
	c.CSLow = false
	return nil
}

// Configure records the bus clock.
func (c *Chip) Configure(f physic.Frequency) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Clocks = append(c.Clocks, f)
	return nil
}

// Transmit feeds bytes into the current transaction.
func (c *Chip) Transmit(p []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.CSLow {
		return errors.New("bt81xtest: transmit with chip select high")
	}
	if len(c.cur) == 0 && len(p) >= 4 && p[0]&0xC0 == 0 {
		if err := c.FailRead[headerAddr(p)]; err != nil {
			return err
		}
	}
	for _, b := range p {
		k := len(c.cur)
		c.cur = append(c.cur, b)
		resp := byte(0xEE)
		if c.cur[0]&0xC0 == 0 {
			switch {
			case k == 3:
				c.startRead(headerAddr(c.cur))
			case k > 3:
				resp = c.Mem[headerAddr(c.cur)+uint32(k-4)]
			}
		}
		c.rx = append(c.rx, resp)
	}
	return nil
}

func (c *Chip) Receive(p []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rx) < len(p) {
		return errors.New("bt81xtest: receive underrun")
	}
	copy(p, c.rx)
	c.rx = c.rx[len(p):]
	return nil
}

// FlushReceiveBuffer drops queued read bytes.
func (c *Chip) FlushReceiveBuffer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rx = c.rx[:0]
	return nil
}

func headerAddr(p []byte) uint32 {
	return uint32(p[0]&0x3F)<<16 | uint32(p[1])<<8 | uint32(p[2])
}

func (c *Chip) startRead(addr uint32) {
	seq := c.ReadSeq[addr]
	if len(seq) == 0 {
		return
	}
	c.store32(addr, seq[0])
	c.ReadSeq[addr] = seq[1:]
}

func (c *Chip) finish() {
	cur := append([]byte(nil), c.cur...)
	switch {
	case len(cur) == 3 && cur[0]&0xC0 != 0x80:
		c.Txns = append(c.Txns, Txn{Host: true, Cmd: cur[0], Param: cur[1]})
	case len(cur) >= 3 && cur[0]&0xC0 == 0x80:
		addr := headerAddr(cur)
		data := cur[3:]
		c.Txns = append(c.Txns, Txn{Write: true, Addr: addr, Data: data})
		switch {
		case addr == CmdBWrite:
			c.FIFO = append(c.FIFO, data...)
			c.FIFOTxns++
		case c.Sticky[addr]:
		default:
			for i, b := range data {
				c.Mem[addr+uint32(i)] = b
			}
		}
	case len(cur) >= 4:
		addr := headerAddr(cur)
		data := make([]byte, len(cur)-4)
		for i := range data {
			data[i] = c.Mem[addr+uint32(i)]
		}
		c.Txns = append(c.Txns, Txn{Addr: addr, Data: data})
	}
}

// WritesTo returns the write transactions addressed to addr.
func (c *Chip) WritesTo(addr uint32) []Txn {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Txn
	for _, t := range c.Txns {
		if t.Write && t.Addr == addr {
			out = append(out, t)
		}
	}
	return out
}

// ReadsOf counts read transactions of addr.
func (c *Chip) ReadsOf(addr uint32) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.Txns {
		if !t.Write && !t.Host && t.Addr == addr {
			n++
		}
	}
	return n
}

// HostCommands returns the host command transactions.
func (c *Chip) HostCommands() []Txn {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Txn
	for _, t := range c.Txns {
		if t.Host {
			out = append(out, t)
		}
	}
	return out
}

// FIFOWords decodes everything written to REG_CMDB_WRITE.
func (c *Chip) FIFOWords() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	words := make([]uint32, len(c.FIFO)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(c.FIFO[4*i:])
	}
	return words
}

// ResetFIFO forgets what was written to REG_CMDB_WRITE so far.
func (c *Chip) ResetFIFO() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FIFO = c.FIFO[:0]
	c.FIFOTxns = 0
}
