// Package bt81x drives a Bridgetek BT81x (EVE) graphics controller over SPI.
//
// The chip owns its own memory map: general purpose graphics RAM, ROM,
// display list RAM, a register file and a 4KiB command FIFO that feeds an
// onboard coprocessor. The host never writes display list RAM directly.
// Every drawing request is packed into 32-bit words, staged in a 512 byte
// local command buffer and flushed into the FIFO in one SPI transaction.
//
// A Driver is not safe for concurrent use. Exactly one caller may touch the
// device at a time; see package panel for a serializing wrapper.
//
// Typical bring-up:
//
//	d := bt81x.New(bus, cs)
//	if err := d.Reset(powerDown); err != nil {
//		return err
//	}
//	err := d.Init(bt81x.Opts{
//		BusClock:    20 * physic.MegaHertz,
//		SystemClock: 60 * physic.MegaHertz,
//		Screen:      bt81x.ScreenParameters{...},
//	})
//
// Errors returned by the transport are wrapped and passed through. Protocol
// level outcomes are reported with the sentinel errors in errors.go and
// should be tested with errors.Is.
package bt81x
