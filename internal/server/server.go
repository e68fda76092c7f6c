package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/oyerishi/smart-contract-auditor/internal/app"
	"github.com/oyerishi/smart-contract-auditor/internal/logging"
	"github.com/oyerishi/smart-contract-auditor/internal/mlclient"
	"github.com/oyerishi/smart-contract-auditor/internal/model"
	"github.com/oyerishi/smart-contract-auditor/internal/report"
	"github.com/oyerishi/smart-contract-auditor/internal/rules"
	"github.com/oyerishi/smart-contract-auditor/internal/store"

	_ "modernc.org/sqlite" // SQLite driver
)

// Server is the HTTP + WebSocket API surface for the auditor.
type Server struct {
	cfg          Config
	orchestrator *app.Orchestrator
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
	db           *sql.DB
}

// NewServer creates a new Server with its own Orchestrator.
func NewServer(cfg Config) (*Server, error) {
	if cfg.AppConfig == nil {
		cfg.AppConfig = app.DefaultConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	db, err := sql.Open("sqlite", cfg.AppConfig.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	st, err := store.New(db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	var mlLog hclog.Logger
	if hl, ok := logger.(*logging.HclogLogger); ok {
		mlLog = hl.Hclog().Named("mlclient")
	}
	ml, err := mlclient.New(cfg.AppConfig.MLCfg, mlLog)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ML client: %w", err)
	}

	orch := app.NewOrchestrator(cfg.AppConfig, st, rules.NewEngine(logger), ml, logger)

	r := chi.NewRouter()
	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		router:       r,
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: tighten for production
				return true
			},
		},
		db: db,
	}

	s.routes()
	return s, nil
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/contracts", s.optionsHandler("POST"))
	r.Options("/scans", s.optionsHandler("GET, POST"))
	r.Options("/scans/{scanID}", s.optionsHandler("GET, DELETE"))
	r.Options("/scans/{scanID}/result", s.optionsHandler("GET"))
	r.Options("/scans/{scanID}/sarif", s.optionsHandler("GET"))
	r.Options("/scans/{scanID}/retry", s.optionsHandler("POST"))
	r.Options("/ml/health", s.optionsHandler("GET"))
	r.Options("/ws/scans/{scanID}", s.optionsHandler("GET"))

	// Contracts
	r.Post("/contracts", s.handleUploadContract)

	// Scans
	r.Post("/scans", s.handleStartScan)
	r.Get("/scans", s.handleListScans)
	r.Get("/scans/{scanID}", s.handleGetScan)
	r.Get("/scans/{scanID}/result", s.handleGetScanResult)
	r.Get("/scans/{scanID}/sarif", s.handleGetScanSarif)
	r.Delete("/scans/{scanID}", s.handleCancelScan)
	r.Post("/scans/{scanID}/retry", s.handleRetryScan)

	// ML service
	r.Get("/ml/health", s.handleMLHealth)

	// WebSocket for scan progress
	r.Get("/ws/scans/{scanID}", s.handleScanWS)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Owner-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body_bytes", Value: len(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close shuts down the orchestrator and underlying resources.
func (s *Server) Close() {
	if s.orchestrator != nil {
		s.orchestrator.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ownerID resolves the calling principal. Authentication happens upstream;
// the gateway injects the owner id as a header.
func ownerID(r *http.Request) string {
	if owner := r.Header.Get("X-Owner-ID"); owner != "" {
		return owner
	}
	return "anonymous"
}

// statusFor maps application errors to HTTP status codes.
func statusFor(err error) int {
	var transition *model.ErrInvalidTransition
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &transition), errors.Is(err, app.ErrRetryNonFatal):
		return http.StatusConflict
	case errors.Is(err, app.ErrEmptySource), errors.Is(err, app.ErrSourceTooBig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// --- HTTP handlers ---

// Contracts

func (s *Server) handleUploadContract(w http.ResponseWriter, r *http.Request) {
	var body uploadContractRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	contract, err := s.orchestrator.UploadContract(r.Context(), ownerID(r), body.Name, body.SourceCode)
	if err != nil {
		s.logger.Warn("uploading contract", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.logger.Info("uploaded contract", logging.Field{Key: "contract_id", Value: contract.ID})
	writeJSON(w, http.StatusCreated, contract)
}

// Scans

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var body startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	contractID := body.ContractID
	if contractID == "" {
		contract, err := s.orchestrator.UploadContract(r.Context(), ownerID(r), body.Name, body.SourceCode)
		if err != nil {
			s.logger.Warn("uploading contract for scan", logging.Field{Key: "error", Value: err.Error()})
			writeError(w, statusFor(err), err.Error())
			return
		}
		contractID = contract.ID
	}

	scan, err := s.orchestrator.StartScan(r.Context(), contractID)
	if err != nil {
		s.logger.Warn("starting scan", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.logger.Info("started scan",
		logging.Field{Key: "scan_id", Value: scan.ID},
		logging.Field{Key: "contract_id", Value: contractID})
	writeJSON(w, http.StatusAccepted, scan)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = ownerID(r)
	}

	scans, err := s.orchestrator.ListScans(r.Context(), owner)
	if err != nil {
		s.logger.Warn("listing scans", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusFor(err), err.Error())
		return
	}
	if scans == nil {
		scans = []model.Scan{}
	}
	writeJSON(w, http.StatusOK, scans)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	scan, err := s.orchestrator.GetScan(r.Context(), scanID)
	if err != nil {
		s.logger.Warn("getting scan", logging.Field{Key: "scan_id", Value: scanID}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (s *Server) handleGetScanResult(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	result, err := s.orchestrator.GetScanResult(r.Context(), scanID)
	if err != nil {
		s.logger.Warn("getting scan result", logging.Field{Key: "scan_id", Value: scanID}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusFor(err), err.Error())
		return
	}
	if result.Findings == nil {
		result.Findings = []model.Finding{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetScanSarif(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	result, err := s.orchestrator.GetScanResult(r.Context(), scanID)
	if err != nil {
		s.logger.Warn("getting scan for SARIF export", logging.Field{Key: "scan_id", Value: scanID}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusFor(err), err.Error())
		return
	}
	if result.Scan.Status != model.ScanCompleted {
		writeError(w, http.StatusConflict, fmt.Sprintf("scan is %s, SARIF export requires COMPLETED", result.Scan.Status))
		return
	}

	w.Header().Set("Content-Type", "application/sarif+json")
	w.WriteHeader(http.StatusOK)
	if err := report.WriteSarif(w, result.Scan, result.Findings); err != nil {
		s.logger.Warn("writing SARIF report", logging.Field{Key: "scan_id", Value: scanID}, logging.Field{Key: "error", Value: err.Error()})
	}
}

func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	if err := s.orchestrator.CancelScan(r.Context(), scanID); err != nil {
		s.logger.Warn("cancelling scan", logging.Field{Key: "scan_id", Value: scanID}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.logger.Info("cancelled scan", logging.Field{Key: "scan_id", Value: scanID})
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleRetryScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	scan, err := s.orchestrator.RetryScan(r.Context(), scanID)
	if err != nil {
		s.logger.Warn("retrying scan", logging.Field{Key: "scan_id", Value: scanID}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.logger.Info("retried scan",
		logging.Field{Key: "failed_scan_id", Value: scanID},
		logging.Field{Key: "new_scan_id", Value: scan.ID})
	writeJSON(w, http.StatusAccepted, scan)
}

// ML service

func (s *Server) handleMLHealth(w http.ResponseWriter, r *http.Request) {
	status, err := s.orchestrator.MLHealth(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// WebSocket

// handleScanWS streams a running scan's events over a websocket. The
// orchestrator keeps one event channel per scan, so each scan supports a
// single live subscriber; a second concurrent socket for the same scan
// would steal events from the first. Pollers use GET /scans/{id} instead.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	events := s.orchestrator.Events(scanID)
	if events == nil {
		// Not running: report the stored state once so late subscribers still
		// get an answer.
		scan, err := s.orchestrator.GetScan(r.Context(), scanID)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(app.ScanEvent{ScanID: scanID, Type: app.ScanEventStatus, Status: scan.Status, Error: scan.ErrorMessage})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			// Client disconnected; the scan keeps running.
			return
		}
	}
}
