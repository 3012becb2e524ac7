package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/meridianfi/fvm/internal/logger"
	"github.com/meridianfi/fvm/internal/service"
	"github.com/meridianfi/fvm/internal/state"
	"github.com/meridianfi/fvm/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes engine state over HTTP: read endpoints for dashboards
// and off-chain indexers, and a mutating API that drives the service
// layer. Token movements are still the caller's job — mutating responses
// carry the TransferPlan to execute.
type WebServer struct {
	router  *mux.Router
	port    string
	service *service.Service
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, svc *service.Service) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:  mux.NewRouter(),
		port:    port,
		service: svc,
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
	api.HandleFunc("/pools", ws.handleGetPools).Methods("GET")
	api.HandleFunc("/pools/{id}", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pools/{id}/users/{owner}", ws.handleGetUser).Methods("GET")
	api.HandleFunc("/vaults/{id}", ws.handleGetVault).Methods("GET")
	api.HandleFunc("/lock-vaults/{id}", ws.handleGetLockVault).Methods("GET")
	api.HandleFunc("/events/{subject}", ws.handleGetEvents).Methods("GET")

	// Mutating API: each handler applies one engine operation through the
	// service and returns the transfers the caller must execute.
	api.HandleFunc("/pools", ws.handleCreatePool).Methods("POST")
	api.HandleFunc("/pools/{id}/users", ws.handleCreateUser).Methods("POST")
	api.HandleFunc("/pools/{id}/users/{owner}", ws.handleCloseUser).Methods("DELETE")
	api.HandleFunc("/pools/{id}/deposit", ws.handleDeposit).Methods("POST")
	api.HandleFunc("/pools/{id}/withdraw", ws.handleWithdraw).Methods("POST")
	api.HandleFunc("/pools/{id}/fund", ws.handleFund).Methods("POST")
	api.HandleFunc("/pools/{id}/claim", ws.handleClaim).Methods("POST")
	api.HandleFunc("/pools/{id}/pause", ws.handlePause).Methods("POST")
	api.HandleFunc("/pools/{id}/unpause", ws.handleUnpause).Methods("POST")
	api.HandleFunc("/pools/{id}/funders", ws.handleAuthorizeFunder).Methods("POST")
	api.HandleFunc("/pools/{id}/funders", ws.handleDeauthorizeFunder).Methods("DELETE")
	api.HandleFunc("/pools/{id}/withdraw-extra", ws.handleWithdrawExtra).Methods("POST")
	api.HandleFunc("/pools/{id}/close", ws.handleClosePool).Methods("POST")
	api.HandleFunc("/vaults", ws.handleCreateVault).Methods("POST")
	api.HandleFunc("/vaults/{id}/stake", ws.handleVaultStake).Methods("POST")
	api.HandleFunc("/vaults/{id}/unstake", ws.handleVaultUnstake).Methods("POST")
	api.HandleFunc("/vaults/{id}/reward", ws.handleVaultReward).Methods("POST")
	api.HandleFunc("/vaults/{id}/degradation", ws.handleVaultDegradation).Methods("POST")
	api.HandleFunc("/vaults/{id}/admin", ws.handleVaultAdmin).Methods("POST")
	api.HandleFunc("/lock-vaults", ws.handleCreateLockVault).Methods("POST")
	api.HandleFunc("/lock-vaults/{id}/release-date", ws.handleSetReleaseDate).Methods("POST")
	api.HandleFunc("/lock-vaults/{id}/lock", ws.handleLock).Methods("POST")
	api.HandleFunc("/lock-vaults/{id}/unlock", ws.handleUnlock).Methods("POST")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server and database health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if state.DB == nil || state.DB.Ping() != nil {
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
			"name":    "fvm-farming-vault-engine",
			"version": "1.0.0",
		},
		"database_healthy": dbHealthy,
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPools returns the ids of all known pools
func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	ids, err := state.ListPoolIDs()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to list pools")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve pools")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pools": ids,
		"count": len(ids),
	})
}

// handleGetPool returns a single pool record
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	id, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	pool, err := state.LoadPool(id)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, pool)
}

// handleGetUser returns a single user position
func (ws *WebServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	owner, ok := ws.principalParam(w, r, "owner")
	if !ok {
		return
	}
	user, err := state.LoadUser(poolID, owner)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "User position not found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, user)
}

// handleGetVault returns a single drip-vault record
func (ws *WebServer) handleGetVault(w http.ResponseWriter, r *http.Request) {
	id, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	vault, err := state.LoadVault(id)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Vault not found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, vault)
}

// handleGetLockVault returns a single release-date vault record
func (ws *WebServer) handleGetLockVault(w http.ResponseWriter, r *http.Request) {
	id, ok := ws.principalParam(w, r, "id")
	if !ok {
		return
	}
	vault, err := state.LoadLockVault(id)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Lock vault not found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, vault)
}

// handleGetEvents returns recent events for a pool or vault, newest first
func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	subject, ok := ws.principalParam(w, r, "subject")
	if !ok {
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 1000 {
			limit = parsedLimit
		}
	}

	events, err := state.ListEvents(subject, limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to list events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func (ws *WebServer) principalParam(w http.ResponseWriter, r *http.Request, name string) (types.Principal, bool) {
	raw := mux.Vars(r)[name]
	id, err := types.PrincipalFromString(raw)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid principal: must be 64 hex characters")
		return types.ZeroPrincipal, false
	}
	return id, true
}

// writeJSONResponse writes a JSON response with the given status code
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes a JSON error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	ws.writeJSONResponse(w, statusCode, map[string]string{
		"error":     message,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		webLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
