package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"evepanel/internal/agenda"
	"evepanel/internal/config"
	appLog "evepanel/internal/log"
	"evepanel/internal/panel"
)

const titleLayout = "Mon 02 Jan 15:04"

// refresher redraws the agenda. Runs never overlap: Run waits for a
// running redraw, Trigger skips when one is already in progress.
type refresher struct {
	mu sync.Mutex

	session  *panel.Session
	fetcher  *agenda.Fetcher
	sources  []agenda.Source
	loc      *time.Location
	horizon  time.Duration
	maxLines int
	now      func() time.Time
}

func newRefresher(s *panel.Session, conf config.AgendaConfig, loc *time.Location, client *http.Client) *refresher {
	sources := make([]agenda.Source, 0, len(conf.Sources))
	for _, src := range conf.Sources {
		if src.URL == "" {
			continue
		}
		sources = append(sources, agenda.Source{ID: src.ID, URL: src.URL})
	}
	return &refresher{
		session:  s,
		fetcher:  agenda.NewFetcher(client, conf.CacheDir),
		sources:  sources,
		loc:      loc,
		horizon:  time.Duration(conf.HorizonHours) * time.Hour,
		maxLines: conf.MaxLines,
		now:      time.Now,
	}
}

// Run fetches every source and draws the result. If every source fails the
// screen still gets redrawn with a notice, and the error is returned.
func (r *refresher) Run(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redraw(ctx)
}

// Trigger starts a redraw in the background unless one is running.
func (r *refresher) Trigger(ctx context.Context) {
	if !r.mu.TryLock() {
		appLog.Debug("agenda refresh already running")
		return
	}
	go func() {
		defer r.mu.Unlock()
		if err := r.redraw(ctx); err != nil {
			appLog.Error("agenda refresh failed", err)
		}
	}()
}

func (r *refresher) redraw(ctx context.Context) error {
	now := r.now().In(r.loc)
	title, lines, fetchErr := r.lines(ctx, now)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := r.session.RenderAgenda(title, lines); err != nil {
		return err
	}
	appLog.Info("agenda drawn", "lines", len(lines), "sources", len(r.sources))
	return fetchErr
}

func (r *refresher) lines(ctx context.Context, now time.Time) (string, []string, error) {
	title := now.Format(titleLayout)
	entries, err := agenda.Collect(ctx, r.fetcher, r.sources, now, now.Add(r.horizon), r.loc)
	if err != nil {
		return title, []string{"Calendar unavailable"}, err
	}
	lines := agenda.Lines(entries, r.maxLines)
	if len(lines) == 0 {
		lines = []string{"Nothing scheduled"}
	}
	return title, lines, nil
}
