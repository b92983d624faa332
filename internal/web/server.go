package web

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nexbridge/swapd/internal/app"
	"github.com/nexbridge/swapd/internal/config"
	"github.com/nexbridge/swapd/internal/faucet"
	"github.com/nexbridge/swapd/internal/logger"
	"github.com/nexbridge/swapd/internal/registry"
	"github.com/nexbridge/swapd/internal/state"
	"github.com/nexbridge/swapd/internal/transfers"
	"github.com/nexbridge/swapd/internal/types"
	"github.com/nexbridge/swapd/internal/utils"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the swap session and pool data over HTTP
type WebServer struct {
	router    *mux.Router
	port      string
	session   *app.Session
	pools     *registry.Registry
	transfers *transfers.Watcher
	faucet    *faucet.Faucet
}

// NewWebServer creates a new web server instance. watcher and fct may be nil
// when those features are not configured.
func NewWebServer(port string, session *app.Session, pools *registry.Registry, watcher *transfers.Watcher, fct *faucet.Faucet) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:    mux.NewRouter(),
		port:      port,
		session:   session,
		pools:     pools,
		transfers: watcher,
		faucet:    fct,
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
	api.HandleFunc("/trades", ws.handleGetTrades).Methods("GET")
	api.HandleFunc("/transfers", ws.handleGetTransfers).Methods("GET")

	session := api.PathPrefix("/session").Subrouter()
	session.HandleFunc("", ws.handleGetSession).Methods("GET")
	session.HandleFunc("/pair", ws.handleSelectPair).Methods("POST")
	session.HandleFunc("/amount", ws.handleSetAmount).Methods("POST")
	session.HandleFunc("/direction", ws.handleSetDirection).Methods("POST")
	session.HandleFunc("/options", ws.handleSetOptions).Methods("POST")
	session.HandleFunc("/swap", ws.handleCommit).Methods("POST")
	session.HandleFunc("/reset", ws.handleReset).Methods("POST")

	if ws.faucet != nil {
		api.HandleFunc("/faucet/mint", ws.handleFaucet("mint")).Methods("POST")
		api.HandleFunc("/faucet/wrap", ws.handleFaucet("wrap")).Methods("POST")
		api.HandleFunc("/faucet/unwrap", ws.handleFaucet("unwrap")).Methods("POST")
	}

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

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
	}

	overallStatus := "OK"
	if !dbHealthy {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "swapd",
			"version": "1.0.0",
		},
		"swapd_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"pools_tracked":    ws.pools.Len(),
		},
	}

	statusCode := http.StatusOK
	if !dbHealthy {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPools returns every published pool pair snapshot
func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	pools := ws.pools.List()
	if len(pools) == 0 {
		// Nothing resolved yet this run; serve the last persisted snapshots so
		// a fresh process still has dashboard data.
		snapshots, err := state.LatestPairSnapshots(100)
		if err == nil && len(snapshots) > 0 {
			ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
				"pools": snapshots,
				"count": len(snapshots),
			})
			return
		}
	}

	response := map[string]interface{}{
		"pools": pools,
		"count": len(pools),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPool returns one pool pair snapshot by its pair ID
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	pool, ok := ws.pools.Get(vars["id"])
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, pool)
}

// handleGetTrades returns recent persisted trade attempts
func (ws *WebServer) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	trades, err := state.RecentTradeAttempts(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent trades")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve trades")
		return
	}

	response := map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetTransfers returns the latest transfer history entries
func (ws *WebServer) handleGetTransfers(w http.ResponseWriter, r *http.Request) {
	limit := 3
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	var latest []types.Transfer
	if ws.transfers != nil {
		latest = ws.transfers.Latest(limit)
	} else if user := r.URL.Query().Get("user"); common.IsHexAddress(user) {
		// No live watcher configured; serve what has been persisted.
		persisted, err := state.TransfersForUser(common.HexToAddress(user).Hex(), limit)
		if err != nil {
			webLogger.Error().Err(err).Msg("Failed to get persisted transfers")
			ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve transfers")
			return
		}
		latest = persisted
	}

	response := map[string]interface{}{
		"transfers": latest,
		"count":     len(latest),
		"limit":     limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSession returns the session's observable state
func (ws *WebServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.session.Snapshot())
}

// handleSelectPair points the session at a (chain, asset) pair
func (ws *WebServer) handleSelectPair(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChainID uint64 `json:"chain_id"`
		AssetID string `json:"asset_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ws.session.SelectPair(r.Context(), req.ChainID, req.AssetID); err != nil {
		ws.writeSessionError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, ws.session.Snapshot())
}

// handleSetAmount updates the draft amount
func (ws *WebServer) handleSetAmount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ws.session.SetAmount(r.Context(), req.Amount); err != nil {
		ws.writeSessionError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, ws.session.Snapshot())
}

// handleSetDirection flips the trade direction
func (ws *WebServer) handleSetDirection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction types.Direction `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Direction != types.DirectionXToY && req.Direction != types.DirectionYToX {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid direction")
		return
	}

	if err := ws.session.SetDirection(r.Context(), req.Direction); err != nil {
		ws.writeSessionError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, ws.session.Snapshot())
}

// handleSetOptions replaces the draft's execution options
func (ws *WebServer) handleSetOptions(w http.ResponseWriter, r *http.Request) {
	var req types.TradeOptions
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ws.session.SetOptions(r.Context(), req); err != nil {
		ws.writeSessionError(w, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, ws.session.Snapshot())
}

// handleCommit starts executing the draft. The commit runs in the background;
// clients poll the session for phase progress.
func (ws *WebServer) handleCommit(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if _, err := ws.session.Commit(ctx); err != nil {
			webLogger.Error().Err(err).Msg("Trade commit rejected")
		}
	}()

	ws.writeJSONResponse(w, http.StatusAccepted, ws.session.Snapshot())
}

// handleFaucet executes a faucet operation and returns its alert
func (ws *WebServer) handleFaucet(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ChainID  uint64 `json:"chain_id"`
			Token    string `json:"token"`
			Amount   string `json:"amount"`
			Decimals int    `json:"decimals"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if !common.IsHexAddress(req.Token) {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid token address")
			return
		}
		if req.Amount == "" {
			req.Amount = strconv.FormatFloat(config.FaucetAmount, 'f', -1, 64)
		}

		amount, err := utils.ParsePositive(req.Amount, req.Decimals)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
			return
		}
		token := common.HexToAddress(req.Token)

		var alert *types.Alert
		switch op {
		case "mint":
			alert, err = ws.faucet.Mint(r.Context(), req.ChainID, token, amount)
		case "wrap":
			alert, err = ws.faucet.Wrap(r.Context(), req.ChainID, token, amount)
		case "unwrap":
			alert, err = ws.faucet.Unwrap(r.Context(), req.ChainID, token, amount)
		}
		if err != nil {
			webLogger.Error().Err(err).Str("op", op).Msg("Faucet operation failed")
		}

		response := map[string]interface{}{
			"alert": alert,
		}
		ws.writeJSONResponse(w, http.StatusOK, response)
	}
}

// handleReset clears the attempt, alert, quote and amount
func (ws *WebServer) handleReset(w http.ResponseWriter, r *http.Request) {
	ws.session.Reset()
	ws.writeJSONResponse(w, http.StatusOK, ws.session.Snapshot())
}

func (ws *WebServer) writeSessionError(w http.ResponseWriter, err error) {
	if err == app.ErrTradeInFlight {
		ws.writeErrorResponse(w, http.StatusConflict, err.Error())
		return
	}
	webLogger.Error().Err(err).Msg("Session operation failed")
	ws.writeErrorResponse(w, http.StatusInternalServerError, err.Error())
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

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

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
