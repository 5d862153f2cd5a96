package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flexlev/flm/internal/engine"
	"github.com/flexlev/flm/internal/logger"
	"github.com/flexlev/flm/internal/state"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes read-only HTTP endpoints over the engine and trade log.
type WebServer struct {
	router *mux.Router
	port   string
	engine *engine.Engine
	start  time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, eng *engine.Engine) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		engine: eng,
		start:  time.Now(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// Prometheus scrape endpoint
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/leverage", ws.handleGetLeverage).Methods("GET")
	api.HandleFunc("/should-rebalance", ws.handleGetShouldRebalance).Methods("GET")
	api.HandleFunc("/chunks", ws.handleGetChunks).Methods("GET")
	api.HandleFunc("/incentive", ws.handleGetIncentive).Methods("GET")
	api.HandleFunc("/settings", ws.handleGetSettings).Methods("GET")
	api.HandleFunc("/trades", ws.handleGetTrades).Methods("GET")

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

// handleHealth returns server health status including runtime and database checks
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	engineHealthy := true
	if _, err := ws.engine.GetCurrentLeverageRatio(); err != nil {
		engineHealthy = false
		hasErrors = true
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
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
			"uptime_seconds":   int64(time.Since(ws.start).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "flm-leverage-manager",
			"version": "1.0.0",
		},
		"flm_status": map[string]interface{}{
			"database_healthy":  dbHealthy,
			"engine_responsive": engineHealthy,
			"enabled_exchanges": ws.engine.EnabledExchanges(),
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetLeverage returns the measured leverage ratio and TWAP state
func (ws *WebServer) handleGetLeverage(w http.ResponseWriter, r *http.Request) {
	current, err := ws.engine.GetCurrentLeverageRatio()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get current leverage ratio")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to compute leverage ratio")
		return
	}

	twap := ws.engine.TwapLeverageRatio()
	methodology, _, _ := ws.engine.Settings()

	response := map[string]interface{}{
		"current_leverage_ratio": current.String(),
		"twap_leverage_ratio":    twap.String(),
		"twap_active":            !twap.IsZero(),
		"target_leverage_ratio":  methodology.TargetLeverageRatio.String(),
		"min_leverage_ratio":     methodology.MinLeverageRatio.String(),
		"max_leverage_ratio":     methodology.MaxLeverageRatio.String(),
		"last_trade_timestamp":   ws.engine.GlobalLastTradeTimestamp().UTC(),
		"timestamp":              time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetShouldRebalance returns the pending action per enabled exchange
func (ws *WebServer) handleGetShouldRebalance(w http.ResponseWriter, r *http.Request) {
	actions, err := ws.engine.ShouldRebalance()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to query shouldRebalance")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to evaluate rebalance state")
		return
	}

	items := make([]map[string]interface{}, 0, len(actions))
	for _, a := range actions {
		items = append(items, map[string]interface{}{
			"exchange": a.ExchangeName,
			"action":   a.Action.String(),
		})
	}

	response := map[string]interface{}{
		"actions":   items,
		"count":     len(items),
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetChunks returns the next chunk size per requested exchange.
// Exchanges are selected via ?exchanges=a,b and default to all enabled ones.
func (ws *WebServer) handleGetChunks(w http.ResponseWriter, r *http.Request) {
	names := ws.engine.EnabledExchanges()
	if raw := r.URL.Query().Get("exchanges"); raw != "" {
		names = strings.Split(raw, ",")
	}

	chunks, err := ws.engine.GetChunkRebalanceNotional(names)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to compute chunk notionals")
		ws.writeErrorResponse(w, http.StatusBadRequest, "Failed to compute chunk notionals: "+err.Error())
		return
	}

	items := make([]map[string]interface{}, 0, len(chunks))
	for _, c := range chunks {
		items = append(items, map[string]interface{}{
			"exchange":   c.ExchangeName,
			"notional":   c.Notional.String(),
			"sell_asset": c.SellAsset,
			"buy_asset":  c.BuyAsset,
		})
	}

	response := map[string]interface{}{
		"chunks":    items,
		"count":     len(items),
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetIncentive returns the reward pool and the currently quoted ripcord reward
func (ws *WebServer) handleGetIncentive(w http.ResponseWriter, r *http.Request) {
	quoted, err := ws.engine.GetCurrentEtherIncentive()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to quote ripcord incentive")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to quote ripcord incentive")
		return
	}

	_, _, incentive := ws.engine.Settings()

	response := map[string]interface{}{
		"reward_pool_balance":         ws.engine.EtherBalance().String(),
		"current_incentive":           quoted.String(),
		"incentivized_leverage_ratio": incentive.IncentivizedLeverageRatio.String(),
		"ether_reward":                incentive.EtherReward.String(),
		"timestamp":                   time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSettings returns the active settings snapshot
func (ws *WebServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	methodology, execution, incentive := ws.engine.Settings()

	response := map[string]interface{}{
		"strategy":    ws.engine.Strategy(),
		"methodology": methodology,
		"execution":   execution,
		"incentive":   incentive,
		"exchanges":   ws.engine.EnabledExchanges(),
		"timestamp":   time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetTrades returns recent trade receipts from the trade log
func (ws *WebServer) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	trades, err := state.RecentTrades(limit)
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
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
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
