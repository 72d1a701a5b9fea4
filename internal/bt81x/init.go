package bt81x

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	appLog "evepanel/internal/log"
)

// ScreenParameters describes the panel timing. Sync values are derived from
// the front porch and pulse widths.
type ScreenParameters struct {
	Width  uint16 `yaml:"width" json:"width"`
	Height uint16 `yaml:"height" json:"height"`

	HOffset     uint16 `yaml:"h_offset" json:"h_offset"`
	VOffset     uint16 `yaml:"v_offset" json:"v_offset"`
	HCycle      uint16 `yaml:"h_cycle" json:"h_cycle"`
	VCycle      uint16 `yaml:"v_cycle" json:"v_cycle"`
	HFrontPorch uint16 `yaml:"h_front_porch" json:"h_front_porch"`
	VFrontPorch uint16 `yaml:"v_front_porch" json:"v_front_porch"`
	HPulseWidth uint16 `yaml:"h_pulse_width" json:"h_pulse_width"`
	VPulseWidth uint16 `yaml:"v_pulse_width" json:"v_pulse_width"`

	Swizzle      uint8 `yaml:"swizzle" json:"swizzle"`
	PclkDivisor  uint8 `yaml:"pclk_divisor" json:"pclk_divisor"`
	PclkPolarity uint8 `yaml:"pclk_polarity" json:"pclk_polarity"`
	Dither       uint8 `yaml:"dither" json:"dither"`
}

// Opts configures Init.
type Opts struct {
	// BusClock is the SPI clock used once the chip is up. At most 30MHz and
	// at most half of SystemClock.
	BusClock physic.Frequency
	// SystemClock is the chip's main clock. Zero means 60MHz.
	SystemClock physic.Frequency
	// ExternalClock selects the crystal input instead of the internal
	// oscillator.
	ExternalClock bool
	Screen        ScreenParameters
}

const (
	maxBusClock        = 30 * physic.MegaHertz
	bringUpBusClock    = 10 * physic.MegaHertz
	defaultSystemClock = 60 * physic.MegaHertz

	// wakeDelay is the time the chip may take after ACTIVE before registers
	// and RAM respond.
	wakeDelay = 300 * time.Millisecond
	// powerDownPulse holds PD low for at least 5ms.
	powerDownPulse = 6 * time.Millisecond

	regIDPolls       = 50000
	resetStatusPolls = 500
)

// Reset pulses the power down line.
func (d *Driver) Reset(powerDown OutputPin) error {
	if err := powerDown.Out(gpio.Low); err != nil {
		return fmt.Errorf("bt81x: power down low: %w", err)
	}
	d.sleep(powerDownPulse)
	if err := powerDown.Out(gpio.High); err != nil {
		return fmt.Errorf("bt81x: power down high: %w", err)
	}
	return nil
}

// Init brings the chip from reset to ready for drawing. A failure at any
// step aborts the sequence and leaves the chip as the last successful step
// left it; call Reset and Init again to retry.
func (d *Driver) Init(o Opts) error {
	sys := o.SystemClock
	if sys == 0 {
		sys = defaultSystemClock
	}
	if o.BusClock <= 0 || o.BusClock > maxBusClock || o.BusClock > sys/2 {
		return fmt.Errorf("bt81x: bus clock %s with system clock %s: %w", o.BusClock, sys, ErrInvalidParameter)
	}
	sysHz := uint64(sys / physic.Hertz)

	boot := bringUpBusClock
	if sys/2 < boot {
		boot = sys / 2
	}
	if err := d.bus.Configure(boot); err != nil {
		return fmt.Errorf("bt81x: configure bus at %s: %w", boot, err)
	}
	if err := d.cs.Out(gpio.High); err != nil {
		return fmt.Errorf("bt81x: chip select idle: %w", err)
	}

	if o.ExternalClock {
		sel, ok := clockSelect[sysHz]
		if !ok {
			return fmt.Errorf("bt81x: system clock %s not selectable: %w", sys, ErrInvalidParameter)
		}
		if err := d.hostCommand(HostClockExternal, 0); err != nil {
			return err
		}
		if err := d.hostCommand(HostClockSelect, sel); err != nil {
			return err
		}
	}
	if err := d.hostCommand(HostResetPulse, 0); err != nil {
		return err
	}
	if err := d.hostCommand(HostActive, 0); err != nil {
		return err
	}
	d.sleep(wakeDelay)

	if err := d.waitRegID(regIDPolls); err != nil {
		return err
	}
	id, err := d.read(chipIDAddress, 4, defaultTimeout)
	if err != nil {
		return err
	}
	if rev := (id >> 8) & 0xFF; rev < minChipRevision || rev > maxChipRevision {
		appLog.Error("bt81x incompatible chip", ErrNotSupported, "chip_id", fmt.Sprintf("%#08x", id))
		return fmt.Errorf("bt81x: chip id %#08x: %w", id, ErrNotSupported)
	}
	if err := d.waitResetStatus(resetStatusPolls); err != nil {
		return err
	}

	if err := d.write32(RegFrequency, uint32(sysHz), verifyRetries); err != nil {
		return err
	}
	if err := d.setScreenParameters(o.Screen); err != nil {
		return err
	}
	d.pclkDivisor = o.Screen.PclkDivisor

	if err := d.bus.Configure(o.BusClock); err != nil {
		return fmt.Errorf("bt81x: configure bus at %s: %w", o.BusClock, err)
	}
	appLog.Info("bt81x ready",
		"chip_id", fmt.Sprintf("%#08x", id),
		"system_clock", sys,
		"bus_clock", o.BusClock,
		"width", o.Screen.Width,
		"height", o.Screen.Height,
	)
	return nil
}

// waitRegID polls REG_ID until it reads 0x7C, at most polls times.
func (d *Driver) waitRegID(polls int) error {
	for i := 0; i < polls; i++ {
		id, err := d.read8(RegID)
		if err != nil {
			return err
		}
		if id == regIDValue {
			appLog.Debug("bt81x REG_ID ready", "polls", i+1)
			return nil
		}
	}
	return fmt.Errorf("bt81x: REG_ID not %#x after %d polls: %w", regIDValue, polls, ErrTimeout)
}

// waitResetStatus polls REG_CPURESET until every engine is out of reset,
// at most polls times.
func (d *Driver) waitResetStatus(polls int) error {
	for i := 0; i < polls; i++ {
		v, err := d.read8(RegCPUReset)
		if err != nil {
			return err
		}
		if v&resetAll == 0 {
			return nil
		}
	}
	return fmt.Errorf("bt81x: engines still in reset after %d polls: %w", polls, ErrTimeout)
}

func (d *Driver) setScreenParameters(s ScreenParameters) error {
	regs := []struct {
		reg  Register
		v    uint32
		size int
	}{
		{RegHSize, uint32(s.Width), 2},
		{RegHCycle, uint32(s.HCycle), 2},
		{RegHOffset, uint32(s.HOffset), 2},
		{RegHSync0, uint32(s.HFrontPorch), 2},
		{RegHSync1, uint32(s.HFrontPorch + s.HPulseWidth), 2},
		{RegVSize, uint32(s.Height), 2},
		{RegVCycle, uint32(s.VCycle), 2},
		{RegVOffset, uint32(s.VOffset), 2},
		{RegVSync0, uint32(s.VFrontPorch), 2},
		{RegVSync1, uint32(s.VFrontPorch + s.VPulseWidth), 2},
		{RegSwizzle, uint32(s.Swizzle), 1},
		{RegCSpread, 0, 1},
		{RegPclkPol, uint32(s.PclkPolarity), 1},
		{RegDither, uint32(s.Dither), 1},
	}
	for _, r := range regs {
		var err error
		if r.size == 1 {
			err = d.write8(r.reg, uint8(r.v), verifyRetries)
		} else {
			err = d.write16(r.reg, uint16(r.v), verifyRetries)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ResetEngines pulses the selected engine reset bits in REG_CPURESET.
func (d *Driver) ResetEngines(audio, touch, coprocessor bool) error {
	var bits uint8
	if coprocessor {
		bits |= resetCoprocessor
	}
	if touch {
		bits |= resetTouch
	}
	if audio {
		bits |= resetAudio
	}
	if err := d.write8(RegCPUReset, bits, verifyRetries); err != nil {
		return err
	}
	return d.write8(RegCPUReset, 0, verifyRetries)
}
