package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"evepanel/internal/bt81x"
	"evepanel/internal/bt81x/bt81xtest"
	"evepanel/internal/config"
	"evepanel/internal/panel"
)

const oneEventICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//evepanel//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:review@test\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250106T100000Z\r\n" +
	"DTEND:20250106T110000Z\r\n" +
	"SUMMARY:Review\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

var testScreen = bt81x.ScreenParameters{Width: 480, Height: 272, PclkDivisor: 5}

func newTestRefresher(t *testing.T, handler http.HandlerFunc) (*refresher, *bt81xtest.Chip) {
	t.Helper()
	conf := config.AgendaConfig{HorizonHours: 48, MaxLines: 8}
	var client *http.Client
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		conf.Sources = []config.ICSConfig{{ID: "work", URL: srv.URL + "/cal.ics"}, {ID: "empty"}}
		client = srv.Client()
	}
	chip := bt81xtest.NewChip()
	s := panel.NewSession(bt81x.New(chip, chip), testScreen)
	r := newRefresher(s, conf, time.UTC, client)
	r.now = func() time.Time { return time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC) }
	return r, chip
}

func TestRefresherDrawsAgenda(t *testing.T) {
	r, chip := newTestRefresher(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(oneEventICS))
	})
	if len(r.sources) != 1 {
		t.Fatalf("sources = %d, want the one with a URL", len(r.sources))
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	fifo := string(chip.FIFO)
	for _, want := range []string{"Mon 06 Jan 08:00", "Mon 06 10:00 Review", "Refresh"} {
		if !strings.Contains(fifo, want) {
			t.Errorf("%q not drawn", want)
		}
	}
}

func TestRefresherSourcesDown(t *testing.T) {
	r, chip := newTestRefresher(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded with every source down")
	}
	if !strings.Contains(string(chip.FIFO), "Calendar unavailable") {
		t.Fatal("failure notice not drawn")
	}
}

func TestRefresherNothingScheduled(t *testing.T) {
	r, chip := newTestRefresher(t, nil)
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(chip.FIFO), "Nothing scheduled") {
		t.Fatal("empty agenda notice not drawn")
	}
}

func TestRefresherCancelled(t *testing.T) {
	r, chip := newTestRefresher(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); err != context.Canceled {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if chip.FIFOTxns != 0 {
		t.Fatal("cancelled refresh drew")
	}
}

func TestTriggerSkipsWhileRunning(t *testing.T) {
	r, chip := newTestRefresher(t, nil)
	r.mu.Lock()
	r.Trigger(context.Background())
	r.mu.Unlock()
	if chip.FIFOTxns != 0 {
		t.Fatal("trigger ran while a refresh held the lock")
	}
}
