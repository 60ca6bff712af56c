package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/baro_fdr/internal/config"
	"github.com/relabs-tech/baro_fdr/internal/fdr"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the recorder is served on the local network only
	},
}

// Web is the HTTP control surface of the recorder.
type Web struct {
	ctrl *Controller
	cfg  *config.Config
	log  *zap.Logger
}

// NewWeb returns the HTTP surface for ctrl.
func NewWeb(ctrl *Controller, cfg *config.Config, log *zap.Logger) *Web {
	if log == nil {
		log = zap.NewNop()
	}
	return &Web{ctrl: ctrl, cfg: cfg, log: log.Named("web")}
}

// Handler returns the routes:
//
//	GET /api/barometer      latest reading, 503 while no sensor
//	GET /api/fdr/start      ?duration=<s>&frequency=<Hz>
//	GET /api/fdr/stop
//	GET /api/fdr/reset
//	GET /api/fdr/status
//	GET /api/fdr/download   CSV attachment
//	GET /ws/barometer       live status feed
func (s *Web) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/barometer", s.handleBarometer)
	mux.HandleFunc("/api/fdr/start", s.handleStart)
	mux.HandleFunc("/api/fdr/stop", s.handleStop)
	mux.HandleFunc("/api/fdr/reset", s.handleReset)
	mux.HandleFunc("/api/fdr/status", s.handleStatus)
	mux.HandleFunc("/api/fdr/download", s.handleDownload)
	mux.HandleFunc("/ws/barometer", s.handleLive)
	return mux
}

// Run serves until ctx is cancelled.
func (s *Web) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Web.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("web server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("web server shutdown: %w", err)
		}
		return nil
	}
}

func (s *Web) handleBarometer(w http.ResponseWriter, r *http.Request) {
	sample := s.ctrl.Status().Barometer
	if !sample.Ready {
		http.Error(w, "barometer not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, sample)
}

// maxDurationS is the longest session a time.Duration can express.
const maxDurationS = math.MaxInt64 / int64(time.Second)

type startResponse struct {
	Status     string `json:"status"`
	Session    string `json:"session"`
	Duration   int    `json:"duration"`
	Frequency  int    `json:"frequency"`
	IntervalMS int64  `json:"interval_ms"`
}

func (s *Web) handleStart(w http.ResponseWriter, r *http.Request) {
	duration, err := queryInt(r, "duration", s.cfg.Recorder.DefaultDurationS)
	if err != nil || duration < 0 || int64(duration) > maxDurationS {
		s.writeError(w, http.StatusBadRequest, "invalid duration")
		return
	}
	frequency, err := queryInt(r, "frequency", s.cfg.Recorder.DefaultFrequency)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid frequency")
		return
	}

	sess, err := s.ctrl.Start(r.Context(), time.Duration(duration)*time.Second, frequency)
	if err != nil {
		s.log.Error("start failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create log")
		return
	}
	s.writeJSON(w, http.StatusOK, startResponse{
		Status:     "recording",
		Session:    sess.ID.String(),
		Duration:   duration,
		Frequency:  sess.Rate,
		IntervalMS: sess.Interval.Milliseconds(),
	})
}

func (s *Web) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Web) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Reset(r.Context()); err != nil {
		s.log.Error("reset failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "reset failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Web) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Web) handleDownload(w http.ResponseWriter, r *http.Request) {
	exp, err := s.ctrl.OpenExport(r.Context())
	switch {
	case errors.Is(err, fdr.ErrNoData):
		s.writeError(w, http.StatusNotFound, "no data")
		return
	case err != nil:
		s.log.Error("export failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	defer exp.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(exp.Size, 10))
	if n, err := io.Copy(w, exp); err != nil {
		s.log.Warn("download interrupted", zap.Int64("sent", n), zap.Error(err))
	}
}

// handleLive pushes the status snapshot every ws_interval until the client
// goes away.
func (s *Web) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	// Reader loop only to notice the close frame.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := time.Duration(s.cfg.Web.WSIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(s.ctrl.Status()); err != nil {
			s.log.Debug("websocket write error", zap.Error(err))
			return
		}
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Web) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("json encode error", zap.Error(err))
	}
}

func (s *Web) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
