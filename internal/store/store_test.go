package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/oyerishi/smart-contract-auditor/internal/model"
	"github.com/oyerishi/smart-contract-auditor/internal/testutil"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "auditor.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := New(db, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func createScanFixture(t *testing.T, s *Store, ownerID string) (*Contract, *model.Scan) {
	t.Helper()
	ctx := context.Background()

	contract, err := s.SaveContract(ctx, ownerID, "Vault", "0.8.19", "contract Vault {}")
	if err != nil {
		t.Fatalf("SaveContract: %v", err)
	}

	scan := &model.Scan{
		ID:           uuid.New().String(),
		ContractID:   contract.ID,
		OwnerID:      ownerID,
		ContractName: contract.Name,
		Status:       model.ScanPending,
		StartedAt:    time.Now(),
	}
	if err := s.CreateScan(ctx, scan); err != nil {
		t.Fatalf("CreateScan: %v", err)
	}
	return contract, scan
}

// ─── Contracts ─────────────────────────────────────────────────────────

func TestSaveAndLoadContract_RoundTripsSource(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	source := "pragma solidity ^0.8.0;\ncontract Vault {\n}\n"
	saved, err := s.SaveContract(ctx, "alice", "Vault", "0.8.0", source)
	if err != nil {
		t.Fatalf("SaveContract: %v", err)
	}

	loaded, err := s.LoadContract(ctx, saved.ID)
	if err != nil {
		t.Fatalf("LoadContract: %v", err)
	}
	if loaded.Source != source {
		t.Errorf("source changed in storage:\n%q\n%q", source, loaded.Source)
	}
	if loaded.OwnerID != "alice" || loaded.Name != "Vault" || loaded.SolcVersion != "0.8.0" {
		t.Errorf("unexpected contract: %+v", loaded)
	}
}

func TestLoadContract_UnknownIsNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.LoadContract(context.Background(), "nope")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ─── Scan lifecycle ────────────────────────────────────────────────────

func TestCreateAndLoadScan(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, scan := createScanFixture(t, s, "alice")

	loaded, err := s.LoadScan(context.Background(), scan.ID)
	if err != nil {
		t.Fatalf("LoadScan: %v", err)
	}
	if loaded.Status != model.ScanPending {
		t.Errorf("expected PENDING, got %s", loaded.Status)
	}
	if loaded.CompletedAt != nil {
		t.Errorf("expected nil CompletedAt for pending scan")
	}
}

func TestUpdateScanStatus(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, scan := createScanFixture(t, s, "alice")
	ctx := context.Background()

	if err := s.UpdateScanStatus(ctx, scan.ID, model.ScanInProgress); err != nil {
		t.Fatalf("UpdateScanStatus: %v", err)
	}

	loaded, err := s.LoadScan(ctx, scan.ID)
	if err != nil {
		t.Fatalf("LoadScan: %v", err)
	}
	if loaded.Status != model.ScanInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", loaded.Status)
	}
}

func TestUpdateScanStatus_UnknownIsNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	err := s.UpdateScanStatus(context.Background(), "nope", model.ScanInProgress)
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteScan_PersistsResultAndFindingsAtomically(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, scan := createScanFixture(t, s, "alice")
	ctx := context.Background()

	now := time.Now()
	scan.Status = model.ScanCompleted
	scan.RiskScore = 17.5
	scan.RiskLevel = model.RiskLow
	scan.TotalFindings = 2
	scan.Counts = model.SeverityCounts{Critical: 1, High: 1}
	scan.CompletedAt = &now
	scan.DurationMs = 123

	findings := []model.Finding{
		{
			RuleID: "RE001", RuleName: "Reentrancy", VulnerabilityType: "Reentrancy",
			Severity: model.SeverityCritical, LineNumber: 12, ConfidenceScore: 0.85,
			CweID: "CWE-841", SwcID: "SWC-107", DetectionSource: model.SourceStatic,
		},
		{
			RuleID: "AC001", RuleName: "Access Control Issues", VulnerabilityType: "Access Control",
			Severity: model.SeverityHigh, LineNumber: 30, ConfidenceScore: 0.95,
			DetectionSource: model.SourceML,
		},
	}
	if err := s.CompleteScan(ctx, scan, findings); err != nil {
		t.Fatalf("CompleteScan: %v", err)
	}

	loaded, err := s.LoadScan(ctx, scan.ID)
	if err != nil {
		t.Fatalf("LoadScan: %v", err)
	}
	if loaded.Status != model.ScanCompleted {
		t.Errorf("expected COMPLETED, got %s", loaded.Status)
	}
	if loaded.RiskScore != 17.5 || loaded.RiskLevel != model.RiskLow {
		t.Errorf("unexpected risk: %v %s", loaded.RiskScore, loaded.RiskLevel)
	}
	if loaded.Counts.Critical != 1 || loaded.Counts.High != 1 {
		t.Errorf("unexpected counts: %+v", loaded.Counts)
	}
	if loaded.CompletedAt == nil {
		t.Fatal("expected CompletedAt to be set")
	}
	if loaded.DurationMs != 123 {
		t.Errorf("expected duration 123ms, got %d", loaded.DurationMs)
	}

	got, err := s.LoadFindings(ctx, scan.ID)
	if err != nil {
		t.Fatalf("LoadFindings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(got))
	}
	// Order preserved.
	if got[0].RuleID != "RE001" || got[1].RuleID != "AC001" {
		t.Errorf("findings out of order: %s, %s", got[0].RuleID, got[1].RuleID)
	}
	if got[0].Severity != model.SeverityCritical || got[0].DetectionSource != model.SourceStatic {
		t.Errorf("finding round-trip mismatch: %+v", got[0])
	}
	if got[1].DetectionSource != model.SourceML {
		t.Errorf("expected ML source, got %s", got[1].DetectionSource)
	}
}

func TestTerminateScan_PersistsVerbatimMessage(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, scan := createScanFixture(t, s, "alice")
	ctx := context.Background()

	msg := "ML analysis failed: connection refused"
	if err := s.TerminateScan(ctx, scan.ID, model.ScanFailed, msg, time.Now(), 45); err != nil {
		t.Fatalf("TerminateScan: %v", err)
	}

	loaded, err := s.LoadScan(ctx, scan.ID)
	if err != nil {
		t.Fatalf("LoadScan: %v", err)
	}
	if loaded.Status != model.ScanFailed {
		t.Errorf("expected FAILED, got %s", loaded.Status)
	}
	if loaded.ErrorMessage != msg {
		t.Errorf("error message not verbatim: %q", loaded.ErrorMessage)
	}
}

func TestTerminateScan_RejectsNonTerminalStatus(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, scan := createScanFixture(t, s, "alice")

	err := s.TerminateScan(context.Background(), scan.ID, model.ScanCompleted, "", time.Now(), 0)
	if err == nil {
		t.Fatal("expected error for COMPLETED via TerminateScan")
	}
}

func TestListScansByOwner_FiltersAndOrders(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	createScanFixture(t, s, "alice")
	time.Sleep(5 * time.Millisecond) // distinct started_at
	_, second := createScanFixture(t, s, "alice")
	createScanFixture(t, s, "bob")

	scans, err := s.ListScansByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("ListScansByOwner: %v", err)
	}
	if len(scans) != 2 {
		t.Fatalf("expected 2 scans for alice, got %d", len(scans))
	}
	if scans[0].ID != second.ID {
		t.Errorf("expected most recent scan first")
	}
}

func TestLoadFindings_EmptyForScanWithoutFindings(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, scan := createScanFixture(t, s, "alice")

	got, err := s.LoadFindings(context.Background(), scan.ID)
	if err != nil {
		t.Fatalf("LoadFindings: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no findings, got %d", len(got))
	}
}
