package bt81x

import (
	"fmt"
	"image"
	"time"

	appLog "evepanel/internal/log"
)

const (
	calibrationText   = "Tap the dots to calibrate"
	calibrationPoints = 3
	touchPollInterval = 10 * time.Millisecond
)

// Calibrate runs the chip's three point touch calibration. The dots are
// drawn by the coprocessor itself, so no swap follows CMD_CALIBRATE. It
// blocks until three separate touches have been seen; there is no timeout.
func (d *Driver) Calibrate(textAt image.Point) error {
	if err := d.StartDisplayList(); err != nil {
		return err
	}
	if err := d.DL(ClearColorRGB(0x000000)); err != nil {
		return err
	}
	if err := d.DL(Clear(true, true, true)); err != nil {
		return err
	}
	if err := d.DrawText(textAt, Font11, 0xFFFFFF, OptCenter, len(calibrationText)+1, calibrationText); err != nil {
		return err
	}
	if err := d.Append(CmdCalibrate, []uint32{0}, true); err != nil {
		return err
	}

	appLog.Info("bt81x touch calibration started")
	for seen := 0; seen < calibrationPoints; {
		touched, err := d.touching()
		if err != nil {
			return err
		}
		if !touched {
			d.sleep(touchPollInterval)
			continue
		}
		seen++
		appLog.Debug("bt81x calibration touch", "count", seen)
		// A held finger counts once.
		for touched {
			d.sleep(touchPollInterval)
			if touched, err = d.touching(); err != nil {
				return err
			}
		}
	}
	appLog.Info("bt81x touch calibration done")
	return nil
}

// touching reports whether the panel is pressed right now.
func (d *Driver) touching() (bool, error) {
	v, err := d.read32(RegTouchDirectXY)
	if err != nil {
		return false, err
	}
	return v&touchNotPressed == 0, nil
}

// calibrationRegs are the six touch transform registers, in order A to F.
var calibrationRegs = [6]Register{
	RegTouchTransformA, RegTouchTransformB, RegTouchTransformC,
	RegTouchTransformD, RegTouchTransformE, RegTouchTransformF,
}

// CalibrationMatrix reads the touch transform produced by Calibrate so it
// can be stored and restored on the next start.
func (d *Driver) CalibrationMatrix() ([6]uint32, error) {
	var m [6]uint32
	for i, r := range calibrationRegs {
		v, err := d.read32(r)
		if err != nil {
			return m, err
		}
		m[i] = v
	}
	return m, nil
}

// SetCalibrationMatrix restores a transform read by CalibrationMatrix.
func (d *Driver) SetCalibrationMatrix(m [6]uint32) error {
	for i, r := range calibrationRegs {
		if err := d.write32(r, m[i], verifyRetries); err != nil {
			return fmt.Errorf("bt81x: touch transform %c: %w", 'A'+i, err)
		}
	}
	return nil
}
