package bt81x

import (
	"fmt"

	appLog "evepanel/internal/log"
)

const (
	// FIFOFault is what REG_CMDB_SPACE reads after a coprocessor fault.
	FIFOFault = cmdbSpaceFault
	// FIFOEmpty is REG_CMDB_SPACE once the coprocessor has drained RAM_CMD.
	FIFOEmpty = cmdbSpaceEmpty
)

// FreeSpace returns the number of free bytes in the chip's command FIFO.
//
// If the register holds the fault sentinel, the coprocessor is reset and
// reattached to flash once before returning; the sentinel itself is
// returned so the caller can tell a recovery happened and poll again.
func (d *Driver) FreeSpace() (uint16, error) {
	space, err := d.read16(RegCmdBSpace)
	if err != nil {
		return 0, err
	}
	if space != FIFOFault {
		return space, nil
	}

	appLog.Warn("bt81x coprocessor fault, recovering", "cmdb_space", fmt.Sprintf("%#x", space))
	if err := d.recoverCoprocessor(); err != nil {
		appLog.Error("bt81x coprocessor recovery failed", err)
		return space, err
	}
	appLog.Info("bt81x coprocessor recovered")
	return space, nil
}

// recoverCoprocessor clears a coprocessor fault without a full re-init. The
// patch pointer is lost by the reset and has to be put back before the
// flash is reattached.
func (d *Driver) recoverCoprocessor() error {
	patch, err := d.read16(RegCoproPatchPtr)
	if err != nil {
		return err
	}
	if err := d.write8(RegCPUReset, resetCoprocessor, verifyRetries); err != nil {
		return err
	}
	if err := d.write32(RegCmdRead, 0, verifyRetries); err != nil {
		return err
	}
	if err := d.write32(RegCmdWrite, 0, verifyRetries); err != nil {
		return err
	}
	if _, err := d.read32(RegCmdDL); err != nil {
		return err
	}
	if err := d.write8(RegCPUReset, 0, verifyRetries); err != nil {
		return err
	}
	if err := d.write16(RegCoproPatchPtr, patch, verifyRetries); err != nil {
		return err
	}

	// Anything staged before the fault targets the old FIFO state.
	d.cmd.reset()
	if err := d.Append(CmdFlashAttach, nil, true); err != nil {
		return err
	}
	if err := d.Append(CmdFlashFast, nil, true); err != nil {
		return err
	}
	return d.write8(RegPclk, d.pclkDivisor, verifyRetries)
}

// WaitForIdle polls FreeSpace until the coprocessor has consumed the whole
// FIFO, giving up with ErrTimeout after maxPolls reads.
func (d *Driver) WaitForIdle(maxPolls int) error {
	for i := 0; i < maxPolls; i++ {
		space, err := d.FreeSpace()
		if err != nil {
			return err
		}
		if space == FIFOEmpty {
			return nil
		}
	}
	return fmt.Errorf("bt81x: command FIFO not drained after %d polls: %w", maxPolls, ErrTimeout)
}
