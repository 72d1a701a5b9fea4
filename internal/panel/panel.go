// Package panel owns the display controller for the rest of the program.
// The driver is single threaded, so every caller goes through Session.Do.
package panel

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"evepanel/internal/bt81x"
	appLog "evepanel/internal/log"
)

// RefreshTag is the touch tag of the refresh button drawn by RenderAgenda.
const RefreshTag uint8 = 1

// Layout of the agenda screen, in pixels.
const (
	margin       = 8
	titleHeight  = 36
	lineHeight   = 24
	buttonWidth  = 120
	buttonHeight = 40
	// charWidth approximates the advance of the line font, used to cut
	// lines to the screen width.
	charWidth = 9
)

// Colours of the agenda screen.
const (
	background = 0x101820
	titleRGB   = 0xFFD166
	textRGB    = 0xFFFFFF
	buttonRGB  = 0x1B6CA8
)

const (
	titleFont = bt81x.Font12
	lineFont  = bt81x.Font10
)

// Session serializes access to one driver.
type Session struct {
	mu     sync.Mutex
	d      *bt81x.Driver
	screen bt81x.ScreenParameters
}

// NewSession wraps d for a panel of the given screen size.
func NewSession(d *bt81x.Driver, screen bt81x.ScreenParameters) *Session {
	return &Session{d: d, screen: screen}
}

// Do runs fn with exclusive use of the driver. If fn fails, whatever it
// left staged in the command buffer is dropped so the next caller starts
// clean.
func (s *Session) Do(fn func(d *bt81x.Driver) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.d); err != nil {
		s.d.Discard()
		return err
	}
	return nil
}

// Screen returns the panel size the session lays out for.
func (s *Session) Screen() bt81x.ScreenParameters {
	return s.screen
}

// RefreshButton is where RenderAgenda puts the refresh button.
func (s *Session) RefreshButton() bt81x.Area {
	return bt81x.Area{
		Origin: image.Pt(int(s.screen.Width)-buttonWidth-margin, int(s.screen.Height)-buttonHeight-margin),
		Width:  buttonWidth,
		Height: buttonHeight,
	}
}

// maxLines is how many agenda lines fit between the title and the button.
func (s *Session) maxLines() int {
	avail := int(s.screen.Height) - titleHeight - buttonHeight - 2*margin
	if avail <= 0 {
		return 0
	}
	return avail / lineHeight
}

func (s *Session) maxChars() int {
	return (int(s.screen.Width) - 2*margin) / charWidth
}

// RenderAgenda draws title, as many lines as fit and a refresh button
// tagged RefreshTag, then swaps the new display list in. Each text command
// is flushed on its own so long agendas never overflow the command buffer.
func (s *Session) RenderAgenda(title string, lines []string) error {
	if n := s.maxLines(); len(lines) > n {
		appLog.Debug("panel agenda cut", "lines", len(lines), "shown", n)
		lines = lines[:n]
	}
	chars := s.maxChars()

	return s.Do(func(d *bt81x.Driver) error {
		if err := d.StartDisplayList(); err != nil {
			return err
		}
		if err := d.DL(bt81x.ClearColorRGB(background)); err != nil {
			return err
		}
		if err := d.DL(bt81x.Clear(true, true, true)); err != nil {
			return err
		}
		if err := drawLine(d, image.Pt(margin, margin), titleFont, titleRGB, title, chars); err != nil {
			return err
		}
		for i, line := range lines {
			at := image.Pt(margin, titleHeight+margin+i*lineHeight)
			if err := drawLine(d, at, lineFont, textRGB, line, chars); err != nil {
				return err
			}
		}

		if err := d.EnableTouchTag(RefreshTag); err != nil {
			return err
		}
		if err := d.SetForegroundColour(buttonRGB); err != nil {
			return err
		}
		const label = "Refresh"
		if err := d.DrawButton(s.RefreshButton(), lineFont, bt81x.OptNone, len(label)+1, label); err != nil {
			return err
		}
		if err := d.DisableTouchTag(); err != nil {
			return err
		}
		return d.CommitDisplayList()
	})
}

func drawLine(d *bt81x.Driver, at image.Point, font bt81x.Font, rgb uint32, text string, chars int) error {
	if chars > 0 {
		text = bt81x.CutText(text, chars)
	}
	if err := d.DrawText(at, font, rgb, bt81x.OptNone, len(text)+1, text); err != nil {
		return err
	}
	return d.Flush()
}

// WatchTouches polls the touch tag registers every interval until ctx is
// done and calls fn once per press of the object tagged tag. fn runs
// without the session lock held.
func (s *Session) WatchTouches(ctx context.Context, tag uint8, interval time.Duration, fn func(bt81x.TouchEvent)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pressed := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var ev bt81x.TouchEvent
		err := s.Do(func(d *bt81x.Driver) error {
			var err error
			ev, err = d.CheckForScreenTouches(tag)
			return err
		})
		switch {
		case errors.Is(err, bt81x.ErrNegative):
			pressed = false
		case err != nil:
			appLog.Warn("panel touch poll failed", "tag", tag, "err", err)
		case !pressed:
			pressed = true
			fn(ev)
		}
	}
}
