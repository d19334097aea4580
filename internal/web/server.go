package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/curveforge/poolsim/internal/logger"
	"github.com/curveforge/poolsim/internal/state"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer serves sweep results over HTTP for dashboards and notebooks.
type WebServer struct {
	router *mux.Router
	port   string
}

// NewWebServer creates a new web server instance
func NewWebServer(port string) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/runs", ws.handleGetRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", ws.handleGetRun).Methods("GET")
	api.HandleFunc("/runs/{id}/variants", ws.handleGetVariants).Methods("GET")
	api.HandleFunc("/runs/{id}/variants/{index}/ticks", ws.handleGetTicks).Methods("GET")

	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(ws.router)

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "poolsim-parameter-sweeper",
			"version": "1.0.0",
		},
		"database_healthy": dbHealthy,
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetRuns returns recent sweep runs
func (ws *WebServer) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	runs, err := state.GetRuns(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get sweep runs")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	response := map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
		"limit": limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetRun returns a specific sweep run by ID
func (ws *WebServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := ws.pathID(w, r, "id")
	if !ok {
		return
	}

	run, err := state.GetRun(id)
	if err != nil {
		webLogger.Error().Err(err).Int64("runId", id).Msg("Failed to get run")
		ws.writeErrorResponse(w, http.StatusNotFound, "Run not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, run)
}

// handleGetVariants returns a run's variant summaries
func (ws *WebServer) handleGetVariants(w http.ResponseWriter, r *http.Request) {
	id, ok := ws.pathID(w, r, "id")
	if !ok {
		return
	}

	variants, err := state.GetVariantResults(id)
	if err != nil {
		webLogger.Error().Err(err).Int64("runId", id).Msg("Failed to get variant results")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve variant results")
		return
	}

	response := map[string]interface{}{
		"run_id":   id,
		"variants": variants,
		"count":    len(variants),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetTicks returns one variant's tick log
func (ws *WebServer) handleGetTicks(w http.ResponseWriter, r *http.Request) {
	id, ok := ws.pathID(w, r, "id")
	if !ok {
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil || index < 0 {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid variant index")
		return
	}

	ticks, err := state.GetTickLogs(id, index)
	if err != nil {
		webLogger.Error().Err(err).Int64("runId", id).Int("variant", index).Msg("Failed to get tick logs")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve tick logs")
		return
	}

	response := map[string]interface{}{
		"run_id":        id,
		"variant_index": index,
		"ticks":         ticks,
		"count":         len(ticks),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// pathID parses the {id} path variable.
func (ws *WebServer) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid run ID")
		return 0, false
	}
	return id, true
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
