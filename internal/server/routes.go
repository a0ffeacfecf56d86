package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/muurk/lifxlab/internal/control"
	"github.com/muurk/lifxlab/internal/discovery"
	"github.com/muurk/lifxlab/internal/events"
	"github.com/muurk/lifxlab/internal/logging"
	"github.com/muurk/lifxlab/internal/protocol"
	"github.com/muurk/lifxlab/internal/version"
	"go.uber.org/zap"
)

// maxBodySize bounds invoke arguments
const maxBodySize = 64 << 10

// statusWriter captures status code and bytes written.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack is required by the websocket upgrader
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

// logRequests logs one line per HTTP request
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(ww, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, ww.status, ww.bytes, middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to write JSON response", zap.Error(err))
	}
}

type healthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Uptime  string                 `json:"uptime"`
	Devices int                    `json:"devices"`
	State   string                 `json:"discovery"`
	TLS     map[string]interface{} `json:"tls"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	var uptime time.Duration
	if !s.started.IsZero() {
		uptime = s.clock.Since(s.started).Truncate(time.Second)
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Short(),
		Uptime:  uptime.String(),
		Devices: s.ctrl.Registry().Len(),
		State:   s.ctrl.Coordinator().State().String(),
		TLS:     GetTLSInfo(s.tlsConfig),
	})
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, control.Commands())
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Invoke(r.Context(), control.CmdListDevices, nil))
}

// handleForgetDevice drops one device from the registry. It comes back on
// the next discovery cycle if it still answers.
func (s *Server) handleForgetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := protocol.ParseTarget(chi.URLParam(r, "identity"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, control.Result{Error: err.Error()})
		return
	}

	d, ok := s.ctrl.Registry().Remove(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, control.Result{Error: fmt.Sprintf("unknown device %s", id)})
		return
	}

	logging.Info("Device forgotten", zap.Stringer("identity", id), zap.Stringer("addr", d.Addr))
	s.hub.Emit(events.DeviceRemoved, d)
	writeJSON(w, http.StatusOK, control.Result{OK: true, Data: d})
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	command := chi.URLParam(r, "command")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, control.Result{Error: "request body too large"})
		return
	}

	res := s.ctrl.Invoke(r.Context(), command, body)

	status := http.StatusOK
	if !res.OK && !control.IsCommand(command) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, res)
}

// handleDiscoverStart runs a discovery cycle in the background. Devices are
// reported on the event stream as they reply.
func (s *Server) handleDiscoverStart(w http.ResponseWriter, r *http.Request) {
	coord := s.ctrl.Coordinator()

	if !s.track() {
		writeJSON(w, http.StatusServiceUnavailable, control.Result{Error: "discover_lights: server is shutting down"})
		return
	}

	// Not tied to the request; the cycle outlives the response
	out, err := coord.Start(context.Background())
	if err != nil {
		s.wg.Done()
		status := http.StatusInternalServerError
		if errors.Is(err, discovery.ErrDiscoveryInProgress) {
			status = http.StatusConflict
		}
		writeJSON(w, status, control.Result{Error: "discover_lights: " + err.Error()})
		return
	}

	go func() {
		defer s.wg.Done()
		outcome := <-out
		if outcome.Err != nil {
			logging.Warn("Background discovery ended with error", zap.Error(outcome.Err))
			return
		}
		logging.Info("Background discovery complete", zap.Int("devices", len(outcome.Result.Devices)))
	}()

	writeJSON(w, http.StatusAccepted, control.Result{OK: true, Data: map[string]string{
		"state":   coord.State().String(),
		"timeout": coord.Timeout().String(),
	}})
}

func (s *Server) handleDiscoverStop(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Coordinator().Stop()
	writeJSON(w, http.StatusOK, control.Result{OK: true})
}
