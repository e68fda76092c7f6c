package mldetector

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oyerishi/smart-contract-auditor/internal/mlclient"
)

const serviceVersion = "1.0.0"

// DetectorServer is a simple HTTP server exposing the analysis contract.
type DetectorServer struct {
	cfg Config
}

// NewDetectorServer creates a new detector server instance.
func NewDetectorServer(cfg Config) *DetectorServer {
	return &DetectorServer{cfg: cfg}
}

// Handler returns the routed handler, exposed separately so tests can drive
// it through httptest.
func (s *DetectorServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ml/analyze", s.analyzeHandler)
	mux.HandleFunc("/api/ml/health", s.healthHandler)
	mux.HandleFunc("/api/ml/patterns", s.patternsHandler)
	return mux
}

// Start starts the detector server.
func (s *DetectorServer) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	fmt.Printf("Detector service starting on http://localhost%s\n", addr)
	fmt.Printf("Loaded %d vulnerability patterns\n", len(patternTable))
	return http.ListenAndServe(addr, s.Handler())
}

func (s *DetectorServer) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.cfg.APIKey != "" && r.Header.Get("X-API-Key") != s.cfg.APIKey {
		writeJSON(w, http.StatusUnauthorized, mlclient.AnalysisResponse{
			Success: false,
			Message: "Invalid or missing API key",
		})
		return
	}

	started := time.Now()

	var req mlclient.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, mlclient.AnalysisResponse{
			Success:          false,
			Message:          "No JSON data provided",
			ProcessingTimeMs: 0,
		})
		return
	}
	if req.ContractCode == "" {
		writeJSON(w, http.StatusBadRequest, mlclient.AnalysisResponse{
			Success:          false,
			Message:          "Contract code is required",
			ProcessingTimeMs: 0,
		})
		return
	}

	name := req.ContractName
	if name == "" {
		name = "Unknown"
	}

	vulns := Detect(req.ContractCode, name)

	writeJSON(w, http.StatusOK, mlclient.AnalysisResponse{
		Success:          true,
		Message:          fmt.Sprintf("Analysis completed. Found %d potential vulnerabilities.", len(vulns)),
		Vulnerabilities:  vulns,
		Metrics:          BuildMetrics(vulns),
		ProcessingTimeMs: time.Since(started).Milliseconds(),
	})
}

func (s *DetectorServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mlclient.HealthStatus{
		Status:      "healthy",
		ModelLoaded: true,
		Version:     serviceVersion,
	})
}

func (s *DetectorServer) patternsHandler(w http.ResponseWriter, r *http.Request) {
	type patternInfo struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Severity    string `json:"severity"`
		Category    string `json:"category"`
		CweID       string `json:"cweId,omitempty"`
		SwcID       string `json:"swcId,omitempty"`
	}

	patterns := make([]patternInfo, 0, len(patternTable))
	for _, p := range patternTable {
		patterns = append(patterns, patternInfo{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Severity:    p.Severity,
			Category:    p.Category,
			CweID:       p.CweID,
			SwcID:       p.SwcID,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"totalPatterns": len(patterns),
		"patterns":      patterns,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
