package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"

	"github.com/audiolibrelab/jamtrack/internal/config"
	"github.com/audiolibrelab/jamtrack/internal/service"
	"github.com/audiolibrelab/jamtrack/internal/session"
	"github.com/audiolibrelab/jamtrack/internal/track"
)

// Server exposes a JamTrack service over HTTP
type Server struct {
	service service.Service
	port    string
	router  *mux.Router
}

type EnableRequest struct {
	Enabled bool `json:"enabled"`
}

type ChoiceRequest struct {
	Choice string `json:"choice"`
}

type RollRequest struct {
	Record bool `json:"record"`
}

type LocateRequest struct {
	Position int64 `json:"position"`
}

type NameRequest struct {
	Name string `json:"name"`
}

type PlaylistRequest struct {
	Copy bool `json:"copy"`
}

type ValueRequest struct {
	Value string `json:"value"`
}

type ProfileRequest struct {
	Profile string `json:"profile"`
}

// PathRequest names a state file inside the output directory
type PathRequest struct {
	Path string `json:"path"`
}

type StopResponse struct {
	Success  bool                     `json:"success"`
	Message  string                   `json:"message"`
	Captures []service.CaptureSummary `json:"captures"`
	Error    string                   `json:"error,omitempty"`
}

// New creates a web server for svc
func New(svc service.Service, port string) *Server {
	s := &Server{service: svc, port: port}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	r.HandleFunc("/config/select", s.handleSelectProfile).Methods(http.MethodPost)
	r.HandleFunc("/parameters/{param}", s.handleSetParameter).Methods(http.MethodPost)

	r.HandleFunc("/tracks/{name}/regions", s.handleRegions).Methods(http.MethodGet)
	r.HandleFunc("/tracks/{name}/arm", s.handleArm).Methods(http.MethodPost)
	r.HandleFunc("/tracks/{name}/safe", s.handleSafe).Methods(http.MethodPost)
	r.HandleFunc("/tracks/{name}/align", s.handleAlign).Methods(http.MethodPost)
	r.HandleFunc("/tracks/{name}/monitoring", s.handleMonitoring).Methods(http.MethodPost)
	r.HandleFunc("/tracks/{name}/rename", s.handleRename).Methods(http.MethodPost)
	r.HandleFunc("/tracks/{name}/playlist", s.handleNewPlaylist).Methods(http.MethodPost)
	r.HandleFunc("/tracks/{name}/capture", s.handleCapture).Methods(http.MethodPost)

	r.HandleFunc("/transport/roll", s.handleRoll).Methods(http.MethodPost)
	r.HandleFunc("/transport/stop", s.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/transport/locate", s.handleLocate).Methods(http.MethodPost)

	r.HandleFunc("/state/save", s.handleSaveState).Methods(http.MethodPost)
	r.HandleFunc("/state/load", s.handleLoadState).Methods(http.MethodPost)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", "path", r.URL.Path, "method", r.Method)
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sendErrorResponse(w, http.StatusNotFound, "Not found", "path", r.URL.Path)
	})
	return r
}

// Handler returns the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the web server
func (s *Server) Start() error {
	localIP := getLocalIP()

	slog.Info("Starting JamTrack Web Server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	return http.ListenAndServe(":"+s.port, s.router)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.service.Status())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.service.GetConfig())
}

func (s *Server) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Profile == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Profile name is required", "operation", "select_profile")
		return
	}
	if err := s.service.LoadProfile(req.Profile); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("Failed to load profile '%s': %v", req.Profile, err),
			"profile", req.Profile, "operation", "select_profile")
		return
	}
	s.sendSuccess(w, fmt.Sprintf("Profile '%s' loaded", req.Profile), "profile", req.Profile)
}

func (s *Server) handleSetParameter(w http.ResponseWriter, r *http.Request) {
	param := config.Parameter(mux.Vars(r)["param"])
	var req ValueRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.SetParameter(param, req.Value); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "parameter", string(param), "operation", "set_parameter")
		return
	}
	s.sendSuccess(w, "Parameter updated", "parameter", string(param), "value", req.Value)
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	regions, err := s.service.Regions(name)
	if err != nil {
		s.sendTrackError(w, err, name, "regions")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"track":   name,
		"regions": regions,
	})
}

func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req EnableRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.Arm(name, req.Enabled); err != nil {
		s.sendTrackError(w, err, name, "arm")
		return
	}
	msg := "Track armed"
	if !req.Enabled {
		msg = "Track disarmed"
	}
	s.sendSuccess(w, msg, "track", name)
}

func (s *Server) handleSafe(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req EnableRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.SetRecordSafe(name, req.Enabled); err != nil {
		s.sendTrackError(w, err, name, "record_safe")
		return
	}
	s.sendSuccess(w, "Record safe updated", "track", name, "safe", req.Enabled)
}

func (s *Server) handleAlign(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req ChoiceRequest
	if !s.decode(w, r, &req) {
		return
	}
	choice, err := track.ParseAlignChoice(req.Choice)
	if err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "track", name, "operation", "align")
		return
	}
	if err := s.service.SetAlignChoice(name, choice); err != nil {
		s.sendTrackError(w, err, name, "align")
		return
	}
	s.sendSuccess(w, "Alignment choice updated", "track", name, "choice", choice.String())
}

func (s *Server) handleMonitoring(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req ChoiceRequest
	if !s.decode(w, r, &req) {
		return
	}
	choice, err := track.ParseMonitorChoice(req.Choice)
	if err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "track", name, "operation", "monitoring")
		return
	}
	if err := s.service.SetMonitoring(name, choice); err != nil {
		s.sendTrackError(w, err, name, "monitoring")
		return
	}
	s.sendSuccess(w, "Monitoring updated", "track", name, "choice", choice.String())
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req NameRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.RenameTrack(name, req.Name); err != nil {
		s.sendTrackError(w, err, name, "rename")
		return
	}
	s.sendSuccess(w, "Track renamed", "track", req.Name)
}

func (s *Server) handleNewPlaylist(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req PlaylistRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.NewPlaylist(name, req.Copy); err != nil {
		s.sendTrackError(w, err, name, "new_playlist")
		return
	}
	s.sendSuccess(w, "Playlist created", "track", name)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req service.CaptureRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Passes) == 0 {
		s.sendErrorResponse(w, http.StatusBadRequest, "At least one pass is required", "track", name, "operation", "capture")
		return
	}
	if err := s.service.Capture(name, req); err != nil {
		s.sendTrackError(w, err, name, "capture")
		return
	}
	s.sendSuccess(w, "Passes captured", "track", name, "passes", len(req.Passes))
}

func (s *Server) handleRoll(w http.ResponseWriter, r *http.Request) {
	var req RollRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.Roll(req.Record); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to roll transport: %v", err), "operation", "roll")
		return
	}
	s.sendSuccess(w, "Transport rolling", "record", req.Record)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	captures, err := s.service.Stop()

	response := StopResponse{
		Success:  err == nil,
		Message:  "Transport stopped",
		Captures: captures,
	}
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		slog.Error("Stop finished with errors", "error", err)
		response.Error = err.Error()
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	var req LocateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.Locate(req.Position); err != nil {
		s.sendErrorResponse(w, statusFor(err), err.Error(), "operation", "locate", "position", req.Position)
		return
	}
	s.sendSuccess(w, "Transport located", "position", req.Position)
}

// statePath resolves a requested state file name under the output
// directory. Remote callers cannot name paths outside of it.
func (s *Server) statePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req PathRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return "", false
	}
	if req.Path == "" {
		return "", true
	}
	if req.Path == "." || !filepath.IsLocal(req.Path) || filepath.Base(req.Path) != req.Path {
		s.sendErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid state file name '%s': expected a plain file name", req.Path),
			"path", req.Path)
		return "", false
	}
	return filepath.Join(s.service.GetConfig().Output.Directory, req.Path), true
}

func (s *Server) handleSaveState(w http.ResponseWriter, r *http.Request) {
	path, ok := s.statePath(w, r)
	if !ok {
		return
	}
	if err := s.service.SaveState(path); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to save state: %v", err), "operation", "save_state")
		return
	}
	s.sendSuccess(w, "Session saved")
}

func (s *Server) handleLoadState(w http.ResponseWriter, r *http.Request) {
	path, ok := s.statePath(w, r)
	if !ok {
		return
	}
	if err := s.service.LoadState(path); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to load state: %v", err), "operation", "load_state")
		return
	}
	s.sendSuccess(w, "Session loaded")
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Invalid JSON body", "path", r.URL.Path, "error", err)
		return false
	}
	return true
}

// statusFor maps service errors to a status code
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTrackNotFound), errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, track.ErrRejected), errors.Is(err, track.ErrRenameDeferred):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) sendTrackError(w http.ResponseWriter, err error, name, op string) {
	s.sendErrorResponse(w, statusFor(err), err.Error(), "track", name, "operation", op)
}

func (s *Server) sendSuccess(w http.ResponseWriter, message string, fields ...any) {
	response := map[string]interface{}{
		"success": true,
		"message": message,
	}
	for i := 0; i+1 < len(fields); i += 2 {
		if k, ok := fields[i].(string); ok {
			response[k] = fields[i+1]
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// sendErrorResponse sends a JSON error response and logs it
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logArgs := append([]interface{}{"status_code", statusCode, "error", errorMsg}, logContext...)
	slog.Error("HTTP error response", logArgs...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

// getLocalIP returns the local IP address
func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
