package bt81x

import (
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Bus is the byte transport the chip sits on. Transmit clocks bytes out;
// any bytes clocked in at the same time are queued and returned by Receive.
type Bus interface {
	// Configure (re)opens the transport at the given clock.
	Configure(f physic.Frequency) error
	Transmit(p []byte, timeout time.Duration) error
	Receive(p []byte, timeout time.Duration) error
	FlushReceiveBuffer() error
}

// OutputPin is a digital output such as the chip select or power down line.
// gpio.PinOut satisfies it.
type OutputPin interface {
	Out(l gpio.Level) error
}

const (
	defaultTimeout = 500 * time.Millisecond
	// verifyRetries bounds write-verify attempts on register writes.
	verifyRetries = 10
)

// Driver talks to one BT81x. It is not safe for concurrent use.
type Driver struct {
	bus Bus
	cs  OutputPin

	cmd     cmdBuffer
	handles handleArena
	// sketch is the bitmap handle held by a running freehand sketch, 0 if
	// none.
	sketch uint8
	// canvas is the number of RAM_G bytes the running sketch draws into.
	canvas uint32

	pclkDivisor uint8

	sleep func(time.Duration)
}

// New returns a driver for the chip behind bus. cs is asserted low for the
// length of every transaction.
func New(bus Bus, cs OutputPin) *Driver {
	return &Driver{
		bus:     bus,
		cs:      cs,
		handles: newHandleArena(),
		sleep:   time.Sleep,
	}
}

// PixelClockDivisor returns the divisor cached by Init.
func (d *Driver) PixelClockDivisor() uint8 {
	return d.pclkDivisor
}
