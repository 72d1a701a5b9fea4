package panel

import (
	"context"
	"encoding/binary"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"evepanel/internal/bt81x"
	"evepanel/internal/bt81x/bt81xtest"
)

var screen = bt81x.ScreenParameters{Width: 480, Height: 272, PclkDivisor: 5}

func newSession() (*Session, *bt81xtest.Chip) {
	chip := bt81xtest.NewChip()
	return NewSession(bt81x.New(chip, chip), screen), chip
}

func count(words []uint32, w uint32) int {
	n := 0
	for _, v := range words {
		if v == w {
			n++
		}
	}
	return n
}

func TestRenderAgenda(t *testing.T) {
	s, chip := newSession()
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = strings.Repeat("x", 80)
	}

	if err := s.RenderAgenda("Today", lines); err != nil {
		t.Fatalf("RenderAgenda: %v", err)
	}
	words := chip.FIFOWords()
	if got := count(words, uint32(bt81x.CmdText)); got != 1+7 {
		t.Fatalf("text commands = %d, want title plus 7 lines", got)
	}
	if count(words, uint32(bt81x.CmdButton)) != 1 || !slices.Contains(words, bt81x.Tag(RefreshTag)) {
		t.Fatal("refresh button not drawn with its tag")
	}
	if words[0] != uint32(bt81x.CmdDLStart) {
		t.Fatalf("display list starts with %#x", words[0])
	}
	tail := words[len(words)-2:]
	if tail[0] != bt81x.Display() || tail[1] != uint32(bt81x.CmdSwap) {
		t.Fatalf("display list ends with %#x", tail)
	}
	if chip.FIFOTxns != 9 {
		t.Fatalf("fifo writes = %d, want 9", chip.FIFOTxns)
	}
}

func TestRenderAgendaCutsLongLines(t *testing.T) {
	s, chip := newSession()
	if err := s.RenderAgenda("", []string{strings.Repeat("y", 200)}); err != nil {
		t.Fatal(err)
	}
	// Title text command, then the line (opcode, xy, font, text) and the
	// tagged button.
	words := chip.FIFOWords()
	i := slices.Index(words, uint32(bt81x.CmdText))
	j := i + 1 + slices.Index(words[i+1:], uint32(bt81x.CmdText))
	k := j + 1 + slices.Index(words[j+1:], bt81x.TagMask(true))
	if j <= i || k <= j {
		t.Fatalf("line text not found in %#x", words)
	}
	// 51 characters plus the terminator need 13 words.
	want := (s.maxChars() + 1 + 3) / 4
	if got := k - (j + 3); got != want {
		t.Fatalf("line carries %d text words, want %d", got, want)
	}
}

func TestRenderAgendaKeepsRunesWhole(t *testing.T) {
	s, chip := newSession()
	prefix := strings.Repeat("y", s.maxChars()-1)
	if err := s.RenderAgenda("", []string{prefix + "\ud68c\uc758"}); err != nil {
		t.Fatal(err)
	}
	words := chip.FIFOWords()
	i := slices.Index(words, uint32(bt81x.CmdText))
	j := i + 1 + slices.Index(words[i+1:], uint32(bt81x.CmdText))
	k := j + 1 + slices.Index(words[j+1:], bt81x.TagMask(true))
	if j <= i || k <= j {
		t.Fatalf("line text not found in %#x", words)
	}
	var b []byte
	for _, w := range words[j+3 : k] {
		b = binary.LittleEndian.AppendUint32(b, w)
	}
	if got := strings.TrimRight(string(b), "\x00"); got != prefix {
		t.Fatalf("line text = %q, want %q", got, prefix)
	}
}

func TestWatchTouches(t *testing.T) {
	s, chip := newSession()
	chip.Set32(bt81x.RegTouchTagXY.Addr(), 0x00200010)
	chip.Set8(bt81x.RegTouchTag.Addr(), RefreshTag)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan bt81x.TouchEvent, 8)
	done := make(chan struct{})
	go func() {
		s.WatchTouches(ctx, RefreshTag, time.Millisecond, func(ev bt81x.TouchEvent) { events <- ev })
		close(done)
	}()

	select {
	case ev := <-events:
		if ev.Tag != RefreshTag || ev.X != 0x20 || ev.Y != 0x10 {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no touch reported")
	}

	// Held finger: no repeat.
	select {
	case ev := <-events:
		t.Fatalf("repeat event while held: %+v", ev)
	case <-time.After(30 * time.Millisecond):
	}

	chip.Set8(bt81x.RegTouchTag.Addr(), 0)
	time.Sleep(30 * time.Millisecond)
	chip.Set8(bt81x.RegTouchTag.Addr(), RefreshTag)
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("second press not reported")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WatchTouches did not stop")
	}
}

func TestWatchTouchesSurvivesReadErrors(t *testing.T) {
	s, chip := newSession()
	chip.Set8(bt81x.RegTouchTag.Addr(), RefreshTag)
	chip.SetFailRead(bt81x.RegTouchTag.Addr(), errors.New("spi gone"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var hits atomic.Int32
	go s.WatchTouches(ctx, RefreshTag, time.Millisecond, func(bt81x.TouchEvent) { hits.Add(1) })

	time.Sleep(20 * time.Millisecond)
	if hits.Load() != 0 {
		t.Fatal("event reported while reads fail")
	}
	chip.SetFailRead(bt81x.RegTouchTag.Addr(), nil)
	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no event after reads recovered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDoSerializes(t *testing.T) {
	s, _ := newSession()
	var inside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(func(*bt81x.Driver) error {
				if inside.Add(1) != 1 {
					t.Error("two callers inside Do")
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
}

func TestDoDiscardsOnError(t *testing.T) {
	s, chip := newSession()
	boom := errors.New("boom")
	err := s.Do(func(d *bt81x.Driver) error {
		if err := d.StartDisplayList(); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Do = %v, want boom", err)
	}
	err = s.Do(func(d *bt81x.Driver) error {
		if d.Pending() != 0 {
			t.Errorf("Pending = %d after failed Do", d.Pending())
		}
		return d.Flush()
	})
	if err != nil {
		t.Fatal(err)
	}
	if chip.FIFOTxns != 0 {
		t.Fatal("words staged by a failed Do reached the FIFO")
	}
}
