package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oyerishi/smart-contract-auditor/internal/app"
	"github.com/oyerishi/smart-contract-auditor/internal/model"
	"github.com/oyerishi/smart-contract-auditor/internal/server"
	"github.com/oyerishi/smart-contract-auditor/internal/testutil"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	appCfg := app.DefaultConfig()
	appCfg.DatabasePath = filepath.Join(t.TempDir(), "auditor.db")

	s, err := server.NewServer(server.Config{
		ListenAddr: ":0",
		AppConfig:  appCfg,
		Logger:     &testutil.DummyLogger{},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

// startScan submits an inline source and returns the scan id.
func startScan(t *testing.T, s http.Handler, name, source string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"name": name, "source_code": source})
	rec := doJSON(t, s, "POST", "/scans", string(body))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var scan model.Scan
	decodeJSON(t, rec, &scan)
	if scan.ID == "" {
		t.Fatal("expected non-empty scan id")
	}
	return scan.ID
}

// waitForTerminal polls until the scan leaves PENDING/IN_PROGRESS.
func waitForTerminal(t *testing.T, s http.Handler, scanID string) model.Scan {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := doJSON(t, s, "GET", "/scans/"+scanID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 polling scan, got %d: %s", rec.Code, rec.Body.String())
		}
		var scan model.Scan
		decodeJSON(t, rec, &scan)
		if scan.Status.Terminal() {
			return scan
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scan did not reach a terminal state in time")
	return model.Scan{}
}

// ─── CORS ──────────────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/scans", "")

	origin := rec.Header().Get("Access-Control-Allow-Origin")
	if origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
}

// ─── Contracts ─────────────────────────────────────────────────────────

func TestServer_UploadContract(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"name": "Vault", "source_code": testutil.SafeVault})
	rec := doJSON(t, s, "POST", "/contracts", string(body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var contract map[string]any
	decodeJSON(t, rec, &contract)
	if contract["name"] != "Vault" {
		t.Errorf("expected name 'Vault', got %v", contract["name"])
	}
	if contract["solc_version"] != "^0.8.19" {
		t.Errorf("expected solc version from pragma, got %v", contract["solc_version"])
	}
}

func TestServer_UploadContract_InvalidJSON(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/contracts", `{invalid}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_UploadContract_EmptySource(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/contracts", `{"name":"X","source_code":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

// ─── Scans ─────────────────────────────────────────────────────────────

func TestServer_StartScan_InlineSourceCompletes(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	scanID := startScan(t, s, "VulnerableVault", testutil.VulnerableVault)
	scan := waitForTerminal(t, s, scanID)

	if scan.Status != model.ScanCompleted {
		t.Fatalf("expected COMPLETED, got %s (%s)", scan.Status, scan.ErrorMessage)
	}
	if scan.TotalFindings == 0 {
		t.Error("expected findings for the vulnerable contract")
	}
	if scan.RiskScore <= 0 {
		t.Errorf("expected positive risk score, got %v", scan.RiskScore)
	}
	if scan.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}

func TestServer_GetScan_CarriesProgress(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	scanID := startScan(t, s, "SafeVault", testutil.SafeVault)
	waitForTerminal(t, s, scanID)

	rec := doJSON(t, s, "GET", "/scans/"+scanID, "")
	var payload map[string]any
	decodeJSON(t, rec, &payload)
	if progress, ok := payload["progress"].(float64); !ok || progress != 100 {
		t.Errorf("expected progress 100 in status payload, got %v", payload["progress"])
	}
}

func TestServer_StartScan_UnknownContract(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/scans", `{"contract_id":"nope"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_GetScan_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/scans/does-not-exist", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_ListScans_FiltersByOwner(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	scanID := startScan(t, s, "Vault", testutil.SafeVault)
	waitForTerminal(t, s, scanID)

	rec := doJSON(t, s, "GET", "/scans?owner=anonymous", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var scans []model.Scan
	decodeJSON(t, rec, &scans)
	if len(scans) != 1 {
		t.Fatalf("expected 1 scan, got %d", len(scans))
	}

	rec = doJSON(t, s, "GET", "/scans?owner=someone-else", "")
	var other []model.Scan
	decodeJSON(t, rec, &other)
	if len(other) != 0 {
		t.Errorf("expected no scans for other owner, got %d", len(other))
	}
}

func TestServer_GetScanResult_IncludesFindings(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	scanID := startScan(t, s, "VulnerableVault", testutil.VulnerableVault)
	waitForTerminal(t, s, scanID)

	rec := doJSON(t, s, "GET", "/scans/"+scanID+"/result", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result app.ScanResult
	decodeJSON(t, rec, &result)
	if len(result.Findings) == 0 {
		t.Fatal("expected findings in result")
	}

	types := map[string]bool{}
	for _, f := range result.Findings {
		types[f.VulnerabilityType] = true
	}
	if !types["Reentrancy"] {
		t.Errorf("expected a reentrancy finding, got types %v", types)
	}
}

func TestServer_SarifExport(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	scanID := startScan(t, s, "VulnerableVault", testutil.VulnerableVault)
	waitForTerminal(t, s, scanID)

	rec := doJSON(t, s, "GET", "/scans/"+scanID+"/sarif", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/sarif+json" {
		t.Errorf("unexpected content type %q", ct)
	}

	var sarifDoc map[string]any
	decodeJSON(t, rec, &sarifDoc)
	if sarifDoc["version"] != "2.1.0" {
		t.Errorf("expected SARIF 2.1.0, got %v", sarifDoc["version"])
	}
}

func TestServer_CancelScan_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "DELETE", "/scans/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_CancelScan_CompletedConflicts(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	scanID := startScan(t, s, "Vault", testutil.SafeVault)
	waitForTerminal(t, s, scanID)

	rec := doJSON(t, s, "DELETE", "/scans/"+scanID, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 cancelling a completed scan, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_RetryScan_CompletedConflicts(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	scanID := startScan(t, s, "Vault", testutil.SafeVault)
	waitForTerminal(t, s, scanID)

	rec := doJSON(t, s, "POST", "/scans/"+scanID+"/retry", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 retrying a completed scan, got %d: %s", rec.Code, rec.Body.String())
	}
}

// ─── ML health ─────────────────────────────────────────────────────────

func TestServer_MLHealth_Disabled(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/ml/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status map[string]any
	decodeJSON(t, rec, &status)
	if status["status"] != "disabled" {
		t.Errorf("expected disabled, got %v", status["status"])
	}
}
