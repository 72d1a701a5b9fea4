// Package spibus carries bytes to the panel controller over a periph.io SPI
// port. Chip select is driven separately through a GPIO, so the port is
// opened with NoCS and every Transmit keeps whatever the bus clocked back
// for a later Receive.
package spibus

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	appLog "evepanel/internal/log"
)

// rxCapacity bounds the receive queue; the oldest bytes are dropped first.
const rxCapacity = 256

var (
	ErrNotConfigured = errors.New("spibus: port not configured")
	ErrShortRead     = errors.New("spibus: not enough received bytes")
)

// Bus implements bt81x.Bus on top of a periph SPI port. It is not safe for
// concurrent use.
type Bus struct {
	name string
	open func(name string) (spi.PortCloser, error)

	port  spi.PortCloser
	conn  spi.Conn
	maxTx int
	rx    []byte
}

// New returns a bus for the named SPI port ("" picks the first one
// registered). Nothing is opened until Configure.
func New(name string) *Bus {
	return &Bus{name: name, open: spireg.Open}
}

// Configure closes the port if open and reopens it at clock f in mode 0.
func (b *Bus) Configure(f physic.Frequency) error {
	if err := b.Close(); err != nil {
		appLog.Warn("spibus close before reconfigure failed", "port", b.name, "err", err)
	}

	port, err := b.open(b.name)
	if err != nil {
		return fmt.Errorf("spibus: open %q: %w", b.name, err)
	}
	c, err := port.Connect(f, spi.Mode0|spi.NoCS, 8)
	if err != nil {
		_ = port.Close()
		return fmt.Errorf("spibus: connect %q at %s: %w", b.name, f, err)
	}

	b.port, b.conn = port, c
	b.maxTx = 0
	if l, ok := c.(conn.Limits); ok {
		b.maxTx = l.MaxTxSize()
	}
	b.rx = b.rx[:0]
	appLog.Debug("spibus configured", "port", port.String(), "clock", f, "max_tx", b.maxTx)
	return nil
}

// Transmit clocks p out full duplex, split into transfers the port accepts.
// The timeout is ignored: spidev transfers complete synchronously.
func (b *Bus) Transmit(p []byte, _ time.Duration) error {
	if b.conn == nil {
		return ErrNotConfigured
	}
	for len(p) > 0 {
		n := len(p)
		if b.maxTx > 0 && n > b.maxTx {
			n = b.maxTx
		}
		r := make([]byte, n)
		if err := b.conn.Tx(p[:n], r); err != nil {
			return fmt.Errorf("spibus: tx %d bytes: %w", n, err)
		}
		b.queue(r)
		p = p[n:]
	}
	return nil
}

func (b *Bus) queue(r []byte) {
	b.rx = append(b.rx, r...)
	if over := len(b.rx) - rxCapacity; over > 0 {
		b.rx = append(b.rx[:0], b.rx[over:]...)
	}
}

// Receive fills p with the oldest queued bytes.
func (b *Bus) Receive(p []byte, _ time.Duration) error {
	if len(b.rx) < len(p) {
		return fmt.Errorf("spibus: want %d bytes, %d queued: %w", len(p), len(b.rx), ErrShortRead)
	}
	n := copy(p, b.rx)
	b.rx = append(b.rx[:0], b.rx[n:]...)
	return nil
}

// FlushReceiveBuffer drops bytes read but not yet received.
func (b *Bus) FlushReceiveBuffer() error {
	b.rx = b.rx[:0]
	return nil
}

// Close releases the port. It is safe to call on a bus that was never
// configured.
func (b *Bus) Close() error {
	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port, b.conn = nil, nil
	if err != nil {
		return fmt.Errorf("spibus: close %q: %w", b.name, err)
	}
	return nil
}

// OutputPin looks up a GPIO by name and drives it to initial.
func OutputPin(name string, initial gpio.Level) (gpio.PinOut, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("spibus: gpio %s not found", name)
	}
	if err := p.Out(initial); err != nil {
		return nil, fmt.Errorf("spibus: gpio %s out: %w", name, err)
	}
	return p, nil
}
