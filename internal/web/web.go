package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strconv"

	"evepanel/internal/bt81x"
	"evepanel/internal/config"
	"evepanel/internal/convert"
	appLog "evepanel/internal/log"
	"evepanel/internal/panel"
)

const (
	// maxBody bounds JSON request bodies.
	maxBody = 64 << 10
	// maxText is the longest string /api/text draws; longer text would not
	// fit the command buffer together with its display list.
	maxText = 256
	// snapshotPolls bounds the wait for the coprocessor to finish a
	// snapshot before it is read back.
	snapshotPolls = 1000
	defaultFont   = bt81x.Font10
)

// Server exposes the panel over HTTP. Every driver call goes through the
// session, so requests never interleave on the bus.
type Server struct {
	cfg     *config.Config
	session *panel.Session
	refresh func(ctx context.Context) error
	mux     *http.ServeMux
}

// NewServer constructs a new Server. refresh redraws the agenda; when nil
// /api/refresh is not registered.
func NewServer(cfg *config.Config, session *panel.Session, refresh func(ctx context.Context) error) *Server {
	s := &Server{
		cfg:     cfg,
		session: session,
		refresh: refresh,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="evepanel", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/touch", s.handleTouch)
	s.mux.HandleFunc("POST /api/clear", s.handleClear)
	s.mux.HandleFunc("POST /api/text", s.handleText)
	s.mux.HandleFunc("POST /api/sketch", s.handleSketchStart)
	s.mux.HandleFunc("DELETE /api/sketch", s.handleSketchStop)
	s.mux.HandleFunc("POST /api/backlight", s.handleBacklight)
	s.mux.HandleFunc("GET /api/snapshot.png", s.handleSnapshot)
	if s.refresh != nil {
		s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type statusResponse struct {
	FreeSpace   uint16 `json:"free_space"`
	Idle        bool   `json:"idle"`
	Fault       bool   `json:"fault"`
	PclkDivisor uint8  `json:"pclk_divisor"`
	Width       uint16 `json:"width"`
	Height      uint16 `json:"height"`
}

// handleStatus reports the command FIFO state. Reading it also recovers a
// faulted coprocessor, in which case fault is true once.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var resp statusResponse
	err := s.session.Do(func(d *bt81x.Driver) error {
		space, err := d.FreeSpace()
		if err != nil {
			return err
		}
		resp.FreeSpace = space
		resp.Idle = space == bt81x.FIFOEmpty
		resp.Fault = space == bt81x.FIFOFault
		resp.PclkDivisor = d.PixelClockDivisor()
		return nil
	})
	if err != nil {
		writeDriverError(w, "status", err)
		return
	}
	screen := s.session.Screen()
	resp.Width, resp.Height = screen.Width, screen.Height
	writeJSON(w, http.StatusOK, resp)
}

type touchResponse struct {
	Touched bool   `json:"touched"`
	Tag     uint8  `json:"tag,omitempty"`
	X       uint16 `json:"x,omitempty"`
	Y       uint16 `json:"y,omitempty"`
}

// handleTouch reports a touch of the object tagged ?tag=N, or without tag
// whichever tag is under the finger.
//
// GET /api/touch?tag=1
func (s *Server) handleTouch(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("tag")
	var resp touchResponse
	var err error
	if raw == "" {
		err = s.session.Do(func(d *bt81x.Driver) error {
			tag, err := d.TouchedTag()
			resp = touchResponse{Touched: err == nil, Tag: tag}
			return err
		})
	} else {
		tag, perr := strconv.ParseUint(raw, 10, 8)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "tag must be 0..255")
			return
		}
		err = s.session.Do(func(d *bt81x.Driver) error {
			ev, err := d.CheckForScreenTouches(uint8(tag))
			resp = touchResponse{Touched: err == nil, Tag: ev.Tag, X: ev.X, Y: ev.Y}
			return err
		})
	}
	if err != nil && !errors.Is(err, bt81x.ErrNegative) {
		writeDriverError(w, "touch", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type clearRequest struct {
	Colour string `json:"colour"`
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rgb, err := convert.ParseHexColour(req.Colour)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.session.Do(func(d *bt81x.Driver) error {
		return d.ClearScreen(rgb)
	})
	if err != nil {
		writeDriverError(w, "clear", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type textRequest struct {
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Font       uint8  `json:"font"`
	Colour     string `json:"colour"`
	Background string `json:"background"`
	Centered   bool   `json:"centered"`
	Text       string `json:"text"`
}

// handleText replaces the screen with a single string.
//
// POST /api/text {"x":10,"y":10,"font":26,"colour":"#FFFFFF","text":"hello"}
func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Text) > maxText {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("text longer than %d bytes", maxText))
		return
	}
	if req.X < 0 || req.Y < 0 {
		writeError(w, http.StatusBadRequest, "x and y must not be negative")
		return
	}
	font := bt81x.Font(req.Font)
	if req.Font == 0 {
		font = defaultFont
	}
	colour, bg, err := textColours(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := bt81x.OptNone
	if req.Centered {
		opts = bt81x.OptCenter
	}

	err = s.session.Do(func(d *bt81x.Driver) error {
		if err := d.StartDisplayList(); err != nil {
			return err
		}
		if err := d.DL(bt81x.ClearColorRGB(bg)); err != nil {
			return err
		}
		if err := d.DL(bt81x.Clear(true, true, true)); err != nil {
			return err
		}
		if err := d.DrawText(image.Pt(req.X, req.Y), font, colour, opts, len(req.Text)+1, req.Text); err != nil {
			return err
		}
		return d.CommitDisplayList()
	})
	if err != nil {
		writeDriverError(w, "text", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func textColours(req textRequest) (fg, bg uint32, err error) {
	fg = 0xFFFFFF
	if req.Colour != "" {
		if fg, err = convert.ParseHexColour(req.Colour); err != nil {
			return 0, 0, err
		}
	}
	if req.Background != "" {
		if bg, err = convert.ParseHexColour(req.Background); err != nil {
			return 0, 0, err
		}
	}
	return fg, bg, nil
}

type sketchRequest struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  uint16 `json:"w"`
	Height uint16 `json:"h"`
	Brush  string `json:"brush"`
	Paper  string `json:"paper"`
	// Format is "L1" (default) or "L8".
	Format string `json:"format"`
}

// handleSketchStart turns an area of the screen into a freehand canvas.
func (s *Server) handleSketchStart(w http.ResponseWriter, r *http.Request) {
	req := sketchRequest{Brush: "#FFFFFF", Paper: "#000000"}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Width == 0 || req.Height == 0 {
		writeError(w, http.StatusBadRequest, "w and h are required")
		return
	}
	if req.X < 0 || req.Y < 0 {
		writeError(w, http.StatusBadRequest, "x and y must not be negative")
		return
	}
	screen := s.session.Screen()
	if req.X+int(req.Width) > int(screen.Width) || req.Y+int(req.Height) > int(screen.Height) {
		writeError(w, http.StatusBadRequest, "sketch area must lie on the screen")
		return
	}
	brush, err := convert.ParseHexColour(req.Brush)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	paper, err := convert.ParseHexColour(req.Paper)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var format bt81x.PixelFormat
	switch req.Format {
	case "", "L1":
		format = bt81x.L1
	case "L8":
		format = bt81x.L8
	default:
		writeError(w, http.StatusBadRequest, "format must be L1 or L8")
		return
	}

	area := bt81x.Area{Origin: image.Pt(req.X, req.Y), Width: req.Width, Height: req.Height}
	err = s.session.Do(func(d *bt81x.Driver) error {
		if err := d.StartDisplayList(); err != nil {
			return err
		}
		if err := d.StartFreeHandSketch(area, brush, paper, format); err != nil {
			return err
		}
		return d.CommitDisplayList()
	})
	if err != nil {
		writeDriverError(w, "sketch", err)
		return
	}
	appLog.Info("sketch started", "x", req.X, "y", req.Y, "w", req.Width, "h", req.Height, "format", req.Format)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleSketchStop(w http.ResponseWriter, _ *http.Request) {
	err := s.session.Do(func(d *bt81x.Driver) error {
		return d.StopPeriodicOperation()
	})
	if err != nil {
		writeDriverError(w, "sketch stop", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type backlightRequest struct {
	On         bool  `json:"on"`
	Brightness uint8 `json:"brightness"`
}

func (s *Server) handleBacklight(w http.ResponseWriter, r *http.Request) {
	req := backlightRequest{On: true, Brightness: s.cfg.Backlight.Brightness}
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.session.Do(func(d *bt81x.Driver) error {
		return d.ToggleBacklight(req.On, req.Brightness)
	})
	if err != nil {
		writeDriverError(w, "backlight", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// handleSnapshot reads part of the current frame back as a PNG.
//
// GET /api/snapshot.png?x=0&y=0&w=480&h=272&scale=1&grey=0
//   - w, h:  default to the whole screen
//   - scale: integer upscale factor, 1..8
//   - grey:  1 returns an 8-bit greyscale image
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	screen := s.session.Screen()
	x := parseIntDefault(q.Get("x"), 0)
	y := parseIntDefault(q.Get("y"), 0)
	width := parseIntDefault(q.Get("w"), int(screen.Width))
	height := parseIntDefault(q.Get("h"), int(screen.Height))
	scale := parseIntDefault(q.Get("scale"), 1)
	grey := q.Get("grey") == "1"
	if x < 0 || y < 0 || width <= 0 || height <= 0 || width > 0xFFFF || height > 0xFFFF {
		writeError(w, http.StatusBadRequest, "bad snapshot area")
		return
	}
	if x+width > int(screen.Width) || y+height > int(screen.Height) {
		writeError(w, http.StatusBadRequest, "snapshot area must lie on the screen")
		return
	}
	if 2*width*height > int(bt81x.RamG.Size) {
		writeError(w, http.StatusBadRequest, "snapshot larger than RAM_G")
		return
	}
	if scale < 1 || scale > convert.MaxScale {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("scale must be 1..%d", convert.MaxScale))
		return
	}

	area := bt81x.Area{Origin: image.Pt(x, y), Width: uint16(width), Height: uint16(height)}
	var buf []byte
	err := s.session.Do(func(d *bt81x.Driver) error {
		// ARGB4 takes two bytes per pixel and must not overwrite a sketch
		// canvas.
		addr := d.FreeRamG()
		if !bt81x.RamG.ContainsRange(addr, 2*uint64(area.Size())) {
			return fmt.Errorf("web: snapshot of %d pixels at %#x leaves RAM_G: %w", area.Size(), addr, bt81x.ErrInvalidParameter)
		}
		if err := d.SaveScreenToRamG(addr, area); err != nil {
			return err
		}
		if err := d.WaitForIdle(snapshotPolls); err != nil {
			return err
		}
		format, n := bt81x.CopyARGB4, 2*int(area.Size())
		if grey {
			format, n = bt81x.CopyGreyscale, int(area.Size())
		}
		buf = make([]byte, n)
		_, err := d.MemoryCopy(format, addr, buf)
		return err
	})
	if err != nil {
		writeDriverError(w, "snapshot", err)
		return
	}

	var img image.Image
	if grey {
		img, err = convert.GreyToImage(buf, width, height)
	} else {
		img, err = convert.ARGB4ToNRGBA(buf, width, height)
	}
	if err == nil && scale > 1 {
		img, err = convert.Scale(img, scale)
	}
	if err != nil {
		appLog.Error("snapshot conversion failed", err)
		writeError(w, http.StatusInternalServerError, "failed to convert snapshot")
		return
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		appLog.Error("snapshot encode failed", err)
		writeError(w, http.StatusInternalServerError, "failed to encode snapshot")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Bytes())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.refresh(r.Context()); err != nil {
		appLog.Error("api refresh failed", err)
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type okResponse struct {
	OK bool `json:"ok"`
}

// statusFor maps driver outcomes to HTTP status codes. Anything else is a
// transport failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bt81x.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, bt81x.ErrLimitReached):
		return http.StatusConflict
	case errors.Is(err, bt81x.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, bt81x.ErrNotSupported):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func writeDriverError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		appLog.Error("api "+op+" failed", err)
	} else {
		appLog.Warn("api "+op+" rejected", "err", err)
	}
	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
