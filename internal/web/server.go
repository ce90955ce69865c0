package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"photo-resizer-go/internal/batch"
	"photo-resizer-go/internal/config"
	"photo-resizer-go/internal/resizer"
	"photo-resizer-go/internal/statistics"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	resizer    resizer.Resizer
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.Mutex

	// Current batch state
	operationMutex sync.RWMutex
	isRunning      bool
	cancel         context.CancelFunc
	currentStats   *statistics.Statistics
	lastResult     *batch.Result
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ResizeRequest starts a batch. Zero values fall back to the server config.
type ResizeRequest struct {
	SourceDirectory string `json:"source_directory"`
	OutputDirectory string `json:"output_directory"`
	Prefix          string `json:"prefix,omitempty"`
	MaxWidth        int    `json:"max_width,omitempty"`
	MaxSizeKB       int    `json:"max_size_kb,omitempty"`
}

type DirectoryInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	IsDirectory  bool   `json:"is_directory"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(cfg *config.Config, log *logrus.Logger, r resizer.Resizer) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		resizer:   r,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local use
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/resize", s.handleResize).Methods("POST")
	api.HandleFunc("/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/directories", s.handleListDirectories).Methods("GET")
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.operationMutex.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.operationMutex.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	running := s.isRunning
	stats := s.currentStats
	s.operationMutex.RUnlock()

	var statsData interface{}
	if stats != nil {
		statsData = stats.Snapshot()
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running":    running,
			"statistics": statsData,
		},
	})
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var body ResizeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req := s.batchRequest(body)
	if err := req.Validate(); err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.ContainsAny(req.Prefix, `/\`) {
		s.writeError(w, "Prefix must not contain path separators", http.StatusBadRequest)
		return
	}
	if info, err := os.Stat(req.SourceDir); err != nil || !info.IsDir() {
		s.writeError(w, "Source directory does not exist", http.StatusBadRequest)
		return
	}

	s.operationMutex.Lock()
	if s.isRunning {
		s.operationMutex.Unlock()
		s.writeError(w, "Operation already in progress", http.StatusConflict)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.isRunning = true
	s.cancel = cancel
	s.currentStats = statistics.NewStatistics()
	stats := s.currentStats
	s.operationMutex.Unlock()

	go s.runResizeAsync(ctx, req, stats)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Resize started",
	})
}

// batchRequest fills unset fields of body from the server config.
func (s *Server) batchRequest(body ResizeRequest) batch.Request {
	req := batch.Request{
		SourceDir:  body.SourceDirectory,
		OutputDir:  body.OutputDirectory,
		Prefix:     body.Prefix,
		MaxWidth:   body.MaxWidth,
		MaxSizeKB:  body.MaxSizeKB,
		Extensions: s.cfg.Resize.SupportedExtensions,
	}
	if req.Prefix == "" {
		req.Prefix = s.cfg.Resize.Prefix
	}
	if req.MaxWidth == 0 {
		req.MaxWidth = s.cfg.Resize.MaxWidth
	}
	if req.MaxSizeKB == 0 {
		req.MaxSizeKB = s.cfg.Resize.MaxSizeKB
	}
	return req
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.Lock()
	running := s.isRunning
	if s.cancel != nil {
		s.cancel()
	}
	s.operationMutex.Unlock()

	if !running {
		s.writeJSON(w, APIResponse{
			Success: true,
			Message: "No operation in progress",
		})
		return
	}

	s.broadcastWSMessage("operation_stopping", map[string]interface{}{
		"message": "Batch will stop after the current file",
	})

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Operation stopping",
	})
}

func (s *Server) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	path, err := s.resolveBrowsePath(r.URL.Query().Get("path"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errOutsideBrowseRoot) {
			status = http.StatusBadRequest
		}
		s.writeError(w, err.Error(), status)
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to read directory: %v", err), http.StatusInternalServerError)
		return
	}

	directories := make([]DirectoryInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		directories = append(directories, DirectoryInfo{
			Path:         filepath.Join(path, entry.Name()),
			Name:         entry.Name(),
			IsDirectory:  entry.IsDir(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format(time.RFC3339),
		})
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    directories,
	})
}

var errOutsideBrowseRoot = errors.New("path is outside the browse root")

// resolveBrowsePath maps a requested path onto the configured browse root.
// Relative paths are taken from the root; symlinks are resolved before the
// containment check.
func (s *Server) resolveBrowsePath(requested string) (string, error) {
	root := s.cfg.Web.BrowseRoot
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	target := requested
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		target = resolved
	}

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errOutsideBrowseRoot, requested)
	}
	return target, nil
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	stats := s.currentStats
	result := s.lastResult
	s.operationMutex.RUnlock()

	if stats == nil {
		s.writeJSON(w, APIResponse{
			Success: true,
			Data:    nil,
		})
		return
	}

	data := map[string]interface{}{
		"summary": stats.GetSummary(),
		"files":   stats.Snapshot(),
	}
	if result != nil {
		data["errors"] = fileErrors(result.Errors)
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    data,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) runResizeAsync(ctx context.Context, req batch.Request, stats *statistics.Statistics) {
	s.broadcastWSMessage("resize_started", map[string]interface{}{
		"source_directory": req.SourceDir,
		"output_directory": req.OutputDir,
		"prefix":           req.Prefix,
		"max_width":        req.MaxWidth,
		"max_size_kb":      req.MaxSizeKB,
	})

	driver := batch.NewDriverWithHook(s.resizer, s.log, stats, s.forwardEvent)
	result, err := driver.ProcessBatch(ctx, req)

	s.operationMutex.Lock()
	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = nil
	s.lastResult = result
	s.operationMutex.Unlock()

	if err != nil && result == nil {
		s.broadcastWSMessage("resize_error", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	data := map[string]interface{}{
		"statistics": stats.GetSummary(),
		"outputs":    len(result.Outputs),
		"skipped":    len(result.Skipped),
		"errors":     fileErrors(result.Errors),
	}
	if err != nil {
		data["interrupted"] = err.Error()
	}
	s.broadcastWSMessage("resize_completed", data)
}

// forwardEvent relays per-file driver events to WebSocket clients.
// The terminal event is sent by runResizeAsync with the full result.
func (s *Server) forwardEvent(e batch.Event) {
	switch e.Type {
	case batch.EventProcessed:
		data := map[string]interface{}{
			"file":     e.File,
			"sequence": e.Sequence,
			"message":  e.Message,
		}
		if e.Output != nil {
			data["output"] = e.Output.Path
			data["width"] = e.Output.Width
			data["height"] = e.Output.Height
			data["quality"] = e.Output.Quality
			data["size"] = e.Output.Size
			data["budget_met"] = e.Output.BudgetMet
		}
		s.broadcastWSMessage("file_processed", data)
	case batch.EventSkipped:
		s.broadcastWSMessage("file_skipped", map[string]interface{}{
			"file":   e.File,
			"reason": e.Message,
		})
	case batch.EventError:
		s.broadcastWSMessage("file_error", map[string]interface{}{
			"file":  e.File,
			"error": e.Message,
		})
	}
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	// gorilla connections allow one concurrent writer
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func (s *Server) clientCount() int {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()
	return len(s.wsClients)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}

func fileErrors(errs []batch.FileError) []map[string]string {
	out := make([]map[string]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, map[string]string{
			"file":      e.Path,
			"operation": e.Operation,
			"error":     e.Message,
		})
	}
	return out
}
