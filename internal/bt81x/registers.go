package bt81x

// Register is an offset into the register file (RAM_REG).
type Register uint32

// Addr returns the absolute chip address of the register.
func (r Register) Addr() uint32 {
	return RamReg.Base + uint32(r)
}

// Graphics engine registers.
const (
	RegHCycle          Register = 0x2C
	RegHOffset         Register = 0x30
	RegHSize           Register = 0x34
	RegHSync0          Register = 0x38
	RegHSync1          Register = 0x3C
	RegVCycle          Register = 0x40
	RegVOffset         Register = 0x44
	RegVSize           Register = 0x48
	RegVSync0          Register = 0x4C
	RegVSync1          Register = 0x50
	RegDLSwap          Register = 0x54
	RegRotate          Register = 0x58
	RegOutBits         Register = 0x5C
	RegDither          Register = 0x60
	RegSwizzle         Register = 0x64
	RegCSpread         Register = 0x68
	RegPclkPol         Register = 0x6C
	RegPclk            Register = 0x70
	RegTagX            Register = 0x74
	RegTagY            Register = 0x78
	RegTag             Register = 0x7C
	RegVolPb           Register = 0x80
	RegVolSound        Register = 0x84
	RegSound           Register = 0x88
	RegPlay            Register = 0x8C
	RegPlaybackStart   Register = 0xB4
	RegPlaybackLength  Register = 0xB8
	RegPlaybackReadPtr Register = 0xBC
	RegPlaybackFreq    Register = 0xC0
	RegPlaybackFormat  Register = 0xC4
	RegPlaybackLoop    Register = 0xC8
	RegPlaybackPlay    Register = 0xCC
	RegPwmDuty         Register = 0xD4
)

// Miscellaneous registers.
const (
	RegID                Register = 0x00
	RegFrames            Register = 0x04
	RegClock             Register = 0x08
	RegFrequency         Register = 0x0C
	RegCPUReset          Register = 0x20
	RegGPIODir           Register = 0x90
	RegGPIO              Register = 0x94
	RegGPIOXDir          Register = 0x98
	RegGPIOX             Register = 0x9C
	RegIntFlags          Register = 0xA8
	RegIntEn             Register = 0xAC
	RegIntMask           Register = 0xB0
	RegPwmHz             Register = 0xD0
	RegMacro0            Register = 0xD8
	RegMacro1            Register = 0xDC
	RegSPIWidth          Register = 0x188
	RegAdaptiveFramerate Register = 0x57C
	RegUnderrun          Register = 0x60C
	RegAhHCycleMax       Register = 0x610
	RegPclkFreq          Register = 0x614
	RegPclk2x            Register = 0x618
)

// Coprocessor engine registers.
const (
	RegCmdRead   Register = 0xF8  // coprocessor read offset into RAM_CMD
	RegCmdWrite  Register = 0xFC  // host write offset into RAM_CMD
	RegCmdDL     Register = 0x100 // coprocessor write offset into RAM_DL
	RegCmdBSpace Register = 0x574 // free bytes in RAM_CMD
	RegCmdBWrite Register = 0x578 // FIFO sink, bytes written here are appended to RAM_CMD
)

// Touch screen engine registers, shared by resistive and capacitive parts.
const (
	RegTouchTransformA Register = 0x150
	RegTouchTransformB Register = 0x154
	RegTouchTransformC Register = 0x158
	RegTouchTransformD Register = 0x15C
	RegTouchTransformE Register = 0x160
	RegTouchTransformF Register = 0x164
	RegTouchConfig     Register = 0x168
)

// Resistive touch engine registers.
const (
	RegTouchMode       Register = 0x104
	RegTouchADCMode    Register = 0x108
	RegTouchCharge     Register = 0x10C
	RegTouchSettle     Register = 0x110
	RegTouchOversample Register = 0x114
	RegTouchRzThresh   Register = 0x118
	RegTouchRawXY      Register = 0x11C
	RegTouchRz         Register = 0x120
	RegTouchScreenXY   Register = 0x124
	RegTouchTagXY      Register = 0x128
	RegTouchTag        Register = 0x12C
	RegTouchDirectXY   Register = 0x18C
	RegTouchDirectZ1Z2 Register = 0x190
)

// Capacitive touch engine registers. Several alias the resistive ones.
const (
	RegCTouchMode     Register = 0x104
	RegCTouchExtend   Register = 0x108
	RegCTouchRawXY    Register = 0x11C
	RegCTouchTouchXY  Register = 0x124
	RegCTouchTouch1XY Register = 0x11C
	RegCTouchTouch2XY Register = 0x18C
	RegCTouchTouch3XY Register = 0x190
	RegCTouchTouch4X  Register = 0x16C
	RegCTouchTouch4Y  Register = 0x120
	RegCTouchTag      Register = 0x12C
	RegCTouchTag1     Register = 0x134
	RegCTouchTag2     Register = 0x13C
	RegCTouchTag3     Register = 0x144
	RegCTouchTag4     Register = 0x14C
	RegCTouchTagXY    Register = 0x128
	RegCTouchTag1XY   Register = 0x130
	RegCTouchTag2XY   Register = 0x138
	RegCTouchTag3XY   Register = 0x140
	RegCTouchTag4XY   Register = 0x148
)

// Special registers living past the main register page.
const (
	RegTracker        Register = 0x7000
	RegTracker1       Register = 0x7004
	RegTracker2       Register = 0x7008
	RegTracker3       Register = 0x700C
	RegTracker4       Register = 0x7010
	RegMediaFIFORead  Register = 0x7020
	RegMediaFIFOWrite Register = 0x7024
	RegAnimActive     Register = 0x702C
	RegPlayControl    Register = 0x714E
	RegCoproPatchPtr  Register = 0x7162
)

// Constants read back from the chip.
const (
	regIDValue = 0x7C

	// cmdbSpaceFault is reported by REG_CMDB_SPACE after a coprocessor fault.
	cmdbSpaceFault = 0xFFF
	// cmdbSpaceEmpty is REG_CMDB_SPACE when the coprocessor has drained RAM_CMD.
	cmdbSpaceEmpty = 4096 - 4

	// touchNotPressed is set in the direct and raw XY registers while nothing
	// touches the panel.
	touchNotPressed = 1 << 31

	minChipRevision = 0x15
	maxChipRevision = 0x16
)

// Bits of REG_CPURESET.
const (
	resetCoprocessor = 1 << iota
	resetTouch
	resetAudio

	resetAll = resetCoprocessor | resetTouch | resetAudio
)
