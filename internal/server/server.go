package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/Penitant/app-voice-recorder/internal/capture"
	"github.com/Penitant/app-voice-recorder/internal/config"
	"github.com/Penitant/app-voice-recorder/internal/permission"
	"github.com/Penitant/app-voice-recorder/internal/playback"
	"github.com/Penitant/app-voice-recorder/internal/registry"
	"github.com/Penitant/app-voice-recorder/internal/service"
)

// Server exposes the recorder over a small JSON API so a remote UI can
// drive the same service facade the CLI uses.
type Server struct {
	service service.Service
	cfg     *config.Config
	port    string
}

// StatusResponse represents the JSON response for the status endpoint
type StatusResponse struct {
	Recording string               `json:"recording"`
	Session   *capture.SessionInfo `json:"session,omitempty"`
	Playback  playback.Status      `json:"playback"`
	LastError string               `json:"last_error,omitempty"`
}

// ClipsResponse represents the JSON response for the clips endpoint
type ClipsResponse struct {
	Clips      []registry.Clip `json:"clips"`
	TotalCount int             `json:"total_count"`
	Directory  string          `json:"directory"`
}

// RecordStopResponse carries the committed clip back to the caller
type RecordStopResponse struct {
	Success bool            `json:"success"`
	Clip    *capture.Result `json:"clip,omitempty"`
}

// New creates a new web server instance
func New(cfg *config.Config, port string) *Server {
	return &Server{
		service: service.New(cfg),
		cfg:     cfg,
		port:    port,
	}
}

// NewWithService wires a server around an existing service instance.
func NewWithService(svc service.Service, cfg *config.Config, port string) *Server {
	return &Server{service: svc, cfg: cfg, port: port}
}

// Routes builds the API mux. Split out from Start so tests can drive the
// handlers without binding a socket.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/clips", s.handleClips)
	mux.HandleFunc("/api/clips/", s.handleClipByID)
	mux.HandleFunc("/api/record/start", s.handleRecordStart)
	mux.HandleFunc("/api/record/stop", s.handleRecordStop)
	mux.HandleFunc("/api/play/", s.handlePlay)
	mux.HandleFunc("/api/playback/pause", s.handlePause)
	mux.HandleFunc("/api/playback/resume", s.handleResume)
	mux.HandleFunc("/api/playback/stop", s.handlePlaybackStop)
	return mux
}

// Start starts the web server
func (s *Server) Start() error {
	localIP := getLocalIP()

	slog.Info("Starting voice recorder API server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	return http.ListenAndServe(":"+s.port, s.Routes())
}

// handleStatus returns the recorder state, active session and playback display
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	state, session := s.service.RecordingStatus()
	resp := StatusResponse{
		Recording: string(state),
		Session:   session,
		Playback:  s.service.PlaybackStatus(),
		LastError: s.service.GetLastError(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleClips rescans the recordings directory and returns the catalog
func (s *Server) handleClips(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.service.Refresh(); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to scan recordings: %v", err),
			"operation", "list_clips")
		return
	}

	clips := s.service.Clips()
	resp := ClipsResponse{
		Clips:      clips,
		TotalCount: len(clips),
		Directory:  s.cfg.Storage.Directory,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleClipByID deletes a single clip by id
func (s *Server) handleClipByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	clipID := strings.TrimPrefix(r.URL.Path, "/api/clips/")
	if clipID == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Clip id is required", "operation", "delete_clip")
		return
	}

	if err := s.service.Delete(clipID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registry.ErrNotFound) {
			status = http.StatusNotFound
		}
		s.sendErrorResponse(w, status,
			fmt.Sprintf("Failed to delete clip: %v", err),
			"clip_id", clipID, "operation", "delete_clip")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Clip deleted",
		"clip_id": clipID,
	})
}

// handleRecordStart begins a capture session
func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.service.StartRecording(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, permission.ErrDenied) {
			status = http.StatusForbidden
		}
		s.sendErrorResponse(w, status,
			fmt.Sprintf("Failed to start recording: %v", err),
			"operation", "record_start")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Recording started",
	})
}

// handleRecordStop commits the active session and returns the saved clip
func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	result, err := s.service.StopRecording()
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to stop recording: %v", err),
			"operation", "record_stop")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RecordStopResponse{Success: true, Clip: result})
}

// handlePlay starts playback of the clip named in the path
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	clipID := strings.TrimPrefix(r.URL.Path, "/api/play/")
	if clipID == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Clip id is required", "operation", "play")
		return
	}

	if err := s.service.Play(clipID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registry.ErrNotFound) {
			status = http.StatusNotFound
		}
		s.sendErrorResponse(w, status,
			fmt.Sprintf("Failed to play clip: %v", err),
			"clip_id", clipID, "operation", "play")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Playback started",
		"clip_id": clipID,
	})
}

// handlePause pauses the active playback session
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.service.Pause(); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to pause playback: %v", err),
			"operation", "pause")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Playback paused",
	})
}

// handleResume resumes a paused playback session
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.service.Resume(); err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to resume playback: %v", err),
			"operation", "resume")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Playback resumed",
	})
}

// handlePlaybackStop tears down the playback session
func (s *Server) handlePlaybackStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.service.StopPlayback()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Playback stopped",
	})
}

func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
