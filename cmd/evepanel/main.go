package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"evepanel/internal/bt81x"
	"evepanel/internal/config"
	appLog "evepanel/internal/log"
	"evepanel/internal/panel"
	"evepanel/internal/spibus"
	"evepanel/internal/web"
)

const (
	version = "0.1.0"
	// touchPoll is how often the refresh button is checked.
	touchPoll       = 50 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

type flagConfig struct {
	configPath string
	listen     string
	calibrate  bool
	once       bool
}

func main() {
	appLog.Info("evepanel starting", "version", version)

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	level, err := appLog.ParseLevel(conf.LogLevel)
	if err != nil {
		appLog.Warn("bad log level, using info", "log_level", conf.LogLevel)
	}
	appLog.SetLevel(level)

	appLog.Info("effective config",
		"listen", conf.Listen,
		"spi_port", conf.SPI.Port,
		"spi_clock_hz", conf.SPI.ClockHz,
		"screen", fmt.Sprintf("%dx%d", conf.Screen.Width, conf.Screen.Height),
		"timezone", conf.Agenda.Timezone,
		"refresh", conf.RefreshCron,
		"ics_count", len(conf.Agenda.Sources),
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("evepanel failed", err)
		os.Exit(1)
	}
	appLog.Info("evepanel exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/evepanel/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.calibrate, "calibrate", false, "Run touch calibration even if a matrix is stored")
	flag.BoolVar(&cfg.once, "once", false, "Bring the panel up, draw the agenda once and exit")

	flag.Parse()

	return cfg
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	if _, err := host.Init(); err != nil {
		return err
	}
	cs, err := spibus.OutputPin(conf.SPI.CSPin, gpio.High)
	if err != nil {
		return err
	}
	pd, err := spibus.OutputPin(conf.SPI.PDPin, gpio.High)
	if err != nil {
		return err
	}
	bus := spibus.New(conf.SPI.Port)
	defer func() {
		if err := bus.Close(); err != nil {
			appLog.Error("spi close failed", err)
		}
	}()

	drv := bt81x.New(bus, cs)
	if err := bringUp(drv, pd, conf, flags); err != nil {
		return err
	}
	session := panel.NewSession(drv, conf.Screen)

	loc := resolveLocationOrLocal(conf.Agenda.Timezone)
	ref := newRefresher(session, conf.Agenda, loc, nil)

	// With -once the agenda stays on screen after exit.
	if flags.once {
		return ref.Run(ctx)
	}
	defer powerOff(session)
	if err := ref.Run(ctx); err != nil {
		appLog.Error("initial agenda render failed", err)
	}

	c := cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{}))
	if _, err := c.AddFunc(conf.RefreshCron, func() { ref.Trigger(ctx) }); err != nil {
		return err
	}
	if _, err := c.AddFunc(conf.HealthCheckCron, func() { healthCheck(session) }); err != nil {
		return err
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	go session.WatchTouches(ctx, panel.RefreshTag, touchPoll, func(ev bt81x.TouchEvent) {
		appLog.Debug("refresh button touched", "x", ev.X, "y", ev.Y)
		ref.Trigger(ctx)
	})

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, session, ref.Run).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// bringUp resets and initialises the controller, restores or runs touch
// calibration and lights the panel.
func bringUp(d *bt81x.Driver, pd bt81x.OutputPin, conf *config.Config, flags flagConfig) error {
	if err := d.Reset(pd); err != nil {
		return err
	}
	opts := bt81x.Opts{
		BusClock:      physic.Frequency(conf.SPI.ClockHz) * physic.Hertz,
		SystemClock:   physic.Frequency(conf.Chip.SystemClockHz) * physic.Hertz,
		ExternalClock: conf.Chip.ExternalClock,
		Screen:        conf.Screen,
	}
	if err := d.Init(opts); err != nil {
		return err
	}
	if err := d.SetTouchThreshold(conf.Touch.Threshold); err != nil {
		return err
	}
	if err := d.ToggleBacklight(true, conf.Backlight.Brightness); err != nil {
		return err
	}
	if err := d.ToggleDisplay(true); err != nil {
		return err
	}

	if m, ok := conf.Touch.Calibration(); ok && !flags.calibrate {
		appLog.Info("restoring touch calibration")
		return d.SetCalibrationMatrix(m)
	}
	center := image.Pt(int(conf.Screen.Width)/2, int(conf.Screen.Height)/2)
	if err := d.Calibrate(center); err != nil {
		return err
	}
	m, err := d.CalibrationMatrix()
	if err != nil {
		return err
	}
	conf.Touch.SetCalibration(m)
	if err := conf.Save(flags.configPath); err != nil {
		// Without a stored matrix calibration runs again on the next start.
		appLog.Error("failed to store touch calibration", err, "config_path", flags.configPath)
	}
	return nil
}

// healthCheck reads the command FIFO state, which also recovers a faulted
// coprocessor.
func healthCheck(s *panel.Session) {
	var space uint16
	err := s.Do(func(d *bt81x.Driver) error {
		var err error
		space, err = d.FreeSpace()
		return err
	})
	switch {
	case err != nil:
		appLog.Error("health check failed", err)
	case space == bt81x.FIFOFault:
		appLog.Warn("health check found a coprocessor fault")
	default:
		appLog.Debug("health check", "free_space", space)
	}
}

func powerOff(s *panel.Session) {
	err := s.Do(func(d *bt81x.Driver) error {
		if err := d.ToggleDisplay(false); err != nil {
			return err
		}
		return d.ToggleBacklight(false, 0)
	})
	if err != nil {
		appLog.Error("panel power off failed", err)
	}
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

// cronLogger routes cron's own messages into the application log.
type cronLogger struct{}

var _ cron.Logger = cronLogger{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron "+msg, err, keysAndValues...)
}
