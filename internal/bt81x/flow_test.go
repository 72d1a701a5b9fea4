package bt81x

import (
	"errors"
	"slices"
	"testing"
)

func TestFreeSpace(t *testing.T) {
	d, f := newTestDriver()
	f.set32(RegCmdBSpace, 2000)

	space, err := d.FreeSpace()
	if err != nil {
		t.Fatal(err)
	}
	if space != 2000 {
		t.Fatalf("FreeSpace = %d, want 2000", space)
	}
	if len(f.Txns) != 1 {
		t.Fatalf("transactions = %d, want 1", len(f.Txns))
	}
}

func TestFreeSpaceRecoversOnce(t *testing.T) {
	d, f := newTestDriver()
	d.pclkDivisor = 5
	f.set32(RegCmdBSpace, FIFOFault)
	f.set32(RegCoproPatchPtr, 0x1234)
	f.set32(RegCmdRead, 0x80)
	f.set32(RegCmdWrite, 0x80)
	// Stale work staged before the fault must not reach the chip.
	if err := d.DL(Nop()); err != nil {
		t.Fatal(err)
	}

	space, err := d.FreeSpace()
	if err != nil {
		t.Fatalf("FreeSpace: %v", err)
	}
	if space != FIFOFault {
		t.Fatalf("FreeSpace = %#x, want fault sentinel", space)
	}
	if n := f.ReadsOf(RegCmdBSpace.Addr()); n != 1 {
		t.Fatalf("REG_CMDB_SPACE reads = %d, want 1", n)
	}

	var order []uint32
	for _, tx := range f.Txns {
		if tx.Write {
			order = append(order, tx.Addr)
		}
	}
	want := []uint32{
		RegCPUReset.Addr(),
		RegCmdRead.Addr(),
		RegCmdWrite.Addr(),
		RegCPUReset.Addr(),
		RegCoproPatchPtr.Addr(),
		RegCmdBWrite.Addr(),
		RegCmdBWrite.Addr(),
		RegPclk.Addr(),
	}
	if !slices.Equal(order, want) {
		t.Fatalf("write order = %#x, want %#x", order, want)
	}
	if got := f.WritesTo(RegCPUReset.Addr()); got[0].Data[0] != 1 || got[1].Data[0] != 0 {
		t.Fatalf("REG_CPURESET writes = %+v, want 1 then 0", got)
	}
	if f.ReadsOf(RegCmdDL.Addr()) != 1 {
		t.Fatal("REG_CMD_DL not read during recovery")
	}
	if got := f.get16(RegCoproPatchPtr); got != 0x1234 {
		t.Fatalf("patch pointer = %#x, want 0x1234", got)
	}
	if got := f.get32(RegCmdRead); got != 0 {
		t.Fatalf("REG_CMD_READ = %#x, want 0", got)
	}
	wantFIFO := []uint32{uint32(CmdFlashAttach), uint32(CmdFlashFast)}
	if got := f.FIFOWords(); !slices.Equal(got, wantFIFO) {
		t.Fatalf("fifo = %#x, want %#x", got, wantFIFO)
	}
	if f.Mem[RegPclk.Addr()] != 5 {
		t.Fatalf("REG_PCLK = %d, want 5", f.Mem[RegPclk.Addr()])
	}
	if d.Pending() != 0 {
		t.Fatalf("Pending = %d after recovery", d.Pending())
	}
}

func TestFreeSpaceReadError(t *testing.T) {
	d, f := newTestDriver()
	boom := errors.New("spi gone")
	f.FailRead[RegCmdBSpace.Addr()] = boom

	if _, err := d.FreeSpace(); !errors.Is(err, boom) {
		t.Fatalf("FreeSpace error = %v, want %v", err, boom)
	}
}

func TestWaitForIdle(t *testing.T) {
	d, f := newTestDriver()
	f.ReadSeq[RegCmdBSpace.Addr()] = []uint32{100, 2000, FIFOEmpty}

	if err := d.WaitForIdle(10); err != nil {
		t.Fatal(err)
	}
	if n := f.ReadsOf(RegCmdBSpace.Addr()); n != 3 {
		t.Fatalf("polls = %d, want 3", n)
	}
}

func TestWaitForIdleTimeout(t *testing.T) {
	d, f := newTestDriver()
	f.set32(RegCmdBSpace, 100)

	if err := d.WaitForIdle(5); !errors.Is(err, ErrTimeout) {
		t.Fatalf("WaitForIdle error = %v, want ErrTimeout", err)
	}
	if n := f.ReadsOf(RegCmdBSpace.Addr()); n != 5 {
		t.Fatalf("polls = %d, want 5", n)
	}
}
