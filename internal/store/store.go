// Package store persists contracts, scans, and findings in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oyerishi/smart-contract-auditor/internal/logging"
	"github.com/oyerishi/smart-contract-auditor/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrNotFound is returned when a contract or scan does not exist.
var ErrNotFound = errors.New("not found")

// Contract is a stored contract source. The source bytes are immutable once
// saved; retries re-read them as submitted.
type Contract struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	SolcVersion string `json:"solc_version,omitempty"`
	Source      string `json:"-"`
	CreatedAt   int64  `json:"created_at"`
}

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// New runs migrations from schema.sql and returns a Store.
func New(db *sql.DB, logger logging.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// SaveContract stores the uploaded source and returns the new contract.
func (s *Store) SaveContract(ctx context.Context, ownerID, name, solcVersion, source string) (*Contract, error) {
	c := &Contract{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        name,
		SolcVersion: solcVersion,
		Source:      source,
		CreatedAt:   time.Now().UnixMilli(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contracts (id, owner_id, name, solc_version, source, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, c.SolcVersion, c.Source, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert contract: %w", err)
	}
	return c, nil
}

// LoadContract fetches a contract including its source bytes.
func (s *Store) LoadContract(ctx context.Context, id string) (*Contract, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, solc_version, source, created_at
         FROM contracts WHERE id = ? LIMIT 1`, id)

	var c Contract
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.SolcVersion, &c.Source, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateScan inserts a new PENDING scan row for a stored contract.
func (s *Store) CreateScan(ctx context.Context, scan *model.Scan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, contract_id, owner_id, contract_name, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		scan.ID, scan.ContractID, scan.OwnerID, scan.ContractName, string(scan.Status), scan.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

// UpdateScanStatus moves a scan to a non-terminal status (IN_PROGRESS).
// Terminal transitions go through CompleteScan or TerminateScan so the
// terminal fields land in the same write.
func (s *Store) UpdateScanStatus(ctx context.Context, scanID string, status model.ScanStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = ? WHERE id = ?`, string(status), scanID)
	if err != nil {
		return fmt.Errorf("update scan status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteScan persists the terminal COMPLETED state and all findings in a
// single transaction, so a crash can never leave a completed scan without
// its findings or vice versa.
func (s *Store) CompleteScan(ctx context.Context, scan *model.Scan, findings []model.Finding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Error("rollback failed", logging.Field{Key: "error", Value: rbErr.Error()})
		}
	}()

	var completedAt interface{}
	if scan.CompletedAt != nil {
		completedAt = scan.CompletedAt.UnixMilli()
	}
	res, err := tx.ExecContext(ctx, `
        UPDATE scans SET
            status = ?, risk_score = ?, risk_level = ?, total_findings = ?,
            critical_count = ?, high_count = ?, medium_count = ?, low_count = ?,
            completed_at = ?, duration_ms = ?
        WHERE id = ?`,
		string(model.ScanCompleted), scan.RiskScore, string(scan.RiskLevel), scan.TotalFindings,
		scan.Counts.Critical, scan.Counts.High, scan.Counts.Medium, scan.Counts.Low,
		completedAt, scan.DurationMs, scan.ID,
	)
	if err != nil {
		return fmt.Errorf("update scan: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	for i, f := range findings {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO findings (scan_id, ordinal, rule_id, rule_name, vulnerability_type,
                severity, category, title, description, location, line_number,
                code_snippet, recommendation, confidence, cwe_id, swc_id, source)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			scan.ID, i, f.RuleID, f.RuleName, f.VulnerabilityType,
			string(f.Severity), f.Category, f.Title, f.Description, f.Location, f.LineNumber,
			f.CodeSnippet, f.Recommendation, f.ConfidenceScore, f.CweID, f.SwcID, string(f.DetectionSource),
		)
		if err != nil {
			return fmt.Errorf("insert finding %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// TerminateScan persists a FAILED or CANCELLED terminal state with the
// verbatim message (failure cause or cancellation reason).
func (s *Store) TerminateScan(ctx context.Context, scanID string, status model.ScanStatus, message string, completedAt time.Time, durationMs int64) error {
	if status != model.ScanFailed && status != model.ScanCancelled {
		return fmt.Errorf("terminate scan: status %s is not a failure state", status)
	}
	res, err := s.db.ExecContext(ctx, `
        UPDATE scans SET status = ?, error_message = ?, completed_at = ?, duration_ms = ?
        WHERE id = ?`,
		string(status), message, completedAt.UnixMilli(), durationMs, scanID,
	)
	if err != nil {
		return fmt.Errorf("terminate scan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadScan fetches one scan by id.
func (s *Store) LoadScan(ctx context.Context, scanID string) (*model.Scan, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, contract_id, owner_id, contract_name, status, risk_score, risk_level,
               total_findings, critical_count, high_count, medium_count, low_count,
               error_message, started_at, completed_at, duration_ms
        FROM scans WHERE id = ? LIMIT 1`, scanID)

	scan, err := scanRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return scan, nil
}

// ListScansByOwner returns the owner's scans, most recent first.
func (s *Store) ListScansByOwner(ctx context.Context, ownerID string) ([]model.Scan, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, contract_id, owner_id, contract_name, status, risk_score, risk_level,
               total_findings, critical_count, high_count, medium_count, low_count,
               error_message, started_at, completed_at, duration_ms
        FROM scans WHERE owner_id = ? ORDER BY started_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Scan
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *scan)
	}
	return out, rows.Err()
}

// LoadFindings returns a scan's findings in their stored order.
func (s *Store) LoadFindings(ctx context.Context, scanID string) ([]model.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT rule_id, rule_name, vulnerability_type, severity, category, title,
               description, location, line_number, code_snippet, recommendation,
               confidence, cwe_id, swc_id, source
        FROM findings WHERE scan_id = ? ORDER BY ordinal`, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Finding
	for rows.Next() {
		var f model.Finding
		var severity, source string
		if err := rows.Scan(&f.RuleID, &f.RuleName, &f.VulnerabilityType, &severity, &f.Category,
			&f.Title, &f.Description, &f.Location, &f.LineNumber, &f.CodeSnippet,
			&f.Recommendation, &f.ConfidenceScore, &f.CweID, &f.SwcID, &source); err != nil {
			return nil, err
		}
		f.Severity = model.Severity(severity)
		f.DetectionSource = model.DetectionSource(source)
		out = append(out, f)
	}
	return out, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(row rowScanner) (*model.Scan, error) {
	var scan model.Scan
	var status, riskLevel string
	var startedAt int64
	var completedAt sql.NullInt64

	err := row.Scan(&scan.ID, &scan.ContractID, &scan.OwnerID, &scan.ContractName,
		&status, &scan.RiskScore, &riskLevel, &scan.TotalFindings,
		&scan.Counts.Critical, &scan.Counts.High, &scan.Counts.Medium, &scan.Counts.Low,
		&scan.ErrorMessage, &startedAt, &completedAt, &scan.DurationMs)
	if err != nil {
		return nil, err
	}

	scan.Status = model.ScanStatus(status)
	scan.RiskLevel = model.RiskLevel(riskLevel)
	scan.StartedAt = time.UnixMilli(startedAt)
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64)
		scan.CompletedAt = &t
	}
	return &scan, nil
}
