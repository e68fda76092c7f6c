package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oyerishi/smart-contract-auditor/internal/aggregate"
	"github.com/oyerishi/smart-contract-auditor/internal/logging"
	"github.com/oyerishi/smart-contract-auditor/internal/mlclient"
	"github.com/oyerishi/smart-contract-auditor/internal/model"
	"github.com/oyerishi/smart-contract-auditor/internal/parser"
	"github.com/oyerishi/smart-contract-auditor/internal/rules"
	"github.com/oyerishi/smart-contract-auditor/internal/store"
)

// CancelReason is persisted as the error message of cancelled scans.
const CancelReason = "Scan cancelled by user"

var (
	ErrClosed        = errors.New("orchestrator is closed")
	ErrEmptySource   = errors.New("contract source is empty")
	ErrSourceTooBig  = errors.New("contract source exceeds size limit")
	ErrRetryNonFatal = errors.New("only failed scans can be retried")
)

type ScanEventType string

const (
	ScanEventStatus   ScanEventType = "status"
	ScanEventProgress ScanEventType = "progress"
	ScanEventResult   ScanEventType = "result"
)

// ScanEvent is streamed to watchers of a running scan.
type ScanEvent struct {
	ScanID string        `json:"scan_id"`
	Type   ScanEventType `json:"type"`

	Status model.ScanStatus `json:"status,omitempty"`
	Error  string           `json:"error,omitempty"`

	// Progress is a coarse stage estimate in percent.
	Progress int `json:"progress,omitempty"`
}

// Stage progress estimates. The pipeline reports stage completion, not
// fine-grained work units.
const (
	progressStarted    = 20
	progressParsed     = 40
	progressRulesDone  = 60
	progressMLDone     = 80
	progressPersisting = 90
)

// ScanResult is a finished scan plus its findings.
type ScanResult struct {
	Scan     *model.Scan     `json:"scan"`
	Findings []model.Finding `json:"findings"`
}

// Orchestrator drives the scan pipeline: parse, rule engine, ML analysis,
// aggregation, persistence. Scan state lives in the store; the orchestrator
// only holds per-scan cancel functions and event channels for the scans it
// is currently running.
type Orchestrator struct {
	cfg    *Config
	store  *store.Store
	engine *rules.Engine
	ml     *mlclient.Client
	logger logging.Logger

	jobsMu   sync.Mutex
	events   map[string]chan ScanEvent
	cancels  map[string]context.CancelFunc
	progress map[string]int
	closed   bool

	wg sync.WaitGroup
}

// NewOrchestrator ties together config, store, rule engine, and ML client.
func NewOrchestrator(cfg *Config, st *store.Store, engine *rules.Engine, ml *mlclient.Client, logger logging.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Orchestrator{
		cfg:     cfg,
		store:   st,
		engine:  engine,
		ml:      ml,
		logger:  logger,
		events:   make(map[string]chan ScanEvent),
		cancels:  make(map[string]context.CancelFunc),
		progress: make(map[string]int),
	}
}

// UploadContract validates and stores a contract source for later scanning.
// Validation is advisory beyond the size bound: sources that do not look
// like Solidity are accepted with a warning, since the structural parser
// never fails and the rules simply find nothing.
func (o *Orchestrator) UploadContract(ctx context.Context, ownerID, name, source string) (*store.Contract, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptySource
	}
	if o.cfg.MaxSourceBytes > 0 && int64(len(source)) > o.cfg.MaxSourceBytes {
		return nil, fmt.Errorf("%w (%d bytes, limit %d)", ErrSourceTooBig, len(source), o.cfg.MaxSourceBytes)
	}

	parsed := parser.Parse(source)
	if name == "" {
		name = parsed.ContractName
	}
	if !parser.LooksLikeSolidity(source) {
		o.logger.Warn("Uploaded source does not look like Solidity",
			logging.Field{Key: "owner_id", Value: ownerID},
			logging.Field{Key: "name", Value: name})
	}

	contract, err := o.store.SaveContract(ctx, ownerID, name, parsed.SolcVersion, source)
	if err != nil {
		return nil, fmt.Errorf("save contract: %w", err)
	}
	o.logger.Info("Contract uploaded",
		logging.Field{Key: "contract_id", Value: contract.ID},
		logging.Field{Key: "owner_id", Value: ownerID},
		logging.Field{Key: "name", Value: contract.Name})
	return contract, nil
}

// StartScan creates a PENDING scan for a stored contract and launches the
// pipeline in a goroutine. The returned scan reflects the PENDING state.
func (o *Orchestrator) StartScan(ctx context.Context, contractID string) (*model.Scan, error) {
	o.jobsMu.Lock()
	if o.closed {
		o.jobsMu.Unlock()
		return nil, ErrClosed
	}
	o.jobsMu.Unlock()

	contract, err := o.store.LoadContract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	scan := &model.Scan{
		ID:           uuid.New().String(),
		ContractID:   contract.ID,
		OwnerID:      contract.OwnerID,
		ContractName: contract.Name,
		Status:       model.ScanPending,
		StartedAt:    time.Now().UTC(),
	}
	if err := o.store.CreateScan(ctx, scan); err != nil {
		return nil, err
	}

	// Detach from the caller's context: the scan outlives the request that
	// started it. Cancellation happens through CancelScan.
	jobCtx, cancel := context.WithCancel(context.Background())

	o.jobsMu.Lock()
	if o.closed {
		o.jobsMu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	o.events[scan.ID] = make(chan ScanEvent, 16)
	o.cancels[scan.ID] = cancel
	o.progress[scan.ID] = 0
	o.wg.Add(1)
	o.jobsMu.Unlock()

	o.emit(scan.ID, ScanEvent{ScanID: scan.ID, Type: ScanEventStatus, Status: model.ScanPending})

	// The pipeline works on its own copy so the scan handed back to the
	// caller stays a stable PENDING snapshot.
	jobScan := *scan
	go o.runScan(jobCtx, &jobScan, contract)

	return scan, nil
}

// runScan executes the pipeline stages for one scan. It owns the scan's
// terminal persistence: exactly one of COMPLETED, FAILED, or CANCELLED is
// written before the events channel closes.
func (o *Orchestrator) runScan(ctx context.Context, scan *model.Scan, contract *store.Contract) {
	defer o.wg.Done()
	defer func() {
		o.jobsMu.Lock()
		ch := o.events[scan.ID]
		delete(o.events, scan.ID)
		delete(o.cancels, scan.ID)
		delete(o.progress, scan.ID)
		o.jobsMu.Unlock()
		if ch != nil {
			close(ch)
		}
	}()

	started := time.Now()

	if o.cancelledAt(ctx, scan, started) {
		return
	}

	// Persistence calls use the background context: once a stage boundary is
	// passed, its writes should land even if cancellation arrives mid-write.
	if err := o.store.UpdateScanStatus(context.Background(), scan.ID, model.ScanInProgress); err != nil {
		o.fail(scan, started, fmt.Errorf("mark scan in progress: %w", err))
		return
	}
	o.emit(scan.ID, ScanEvent{ScanID: scan.ID, Type: ScanEventStatus, Status: model.ScanInProgress})
	o.emitProgress(scan.ID, progressStarted)

	parsed := parser.Parse(contract.Source)
	o.emitProgress(scan.ID, progressParsed)
	if o.cancelledAt(ctx, scan, started) {
		return
	}

	staticFindings := o.engine.Run(parsed)
	o.emitProgress(scan.ID, progressRulesDone)
	if o.cancelledAt(ctx, scan, started) {
		return
	}

	mlFindings, err := o.runMLStage(ctx, contract, parsed)
	if err != nil {
		if o.cancelledAt(ctx, scan, started) {
			return
		}
		o.fail(scan, started, err)
		return
	}
	o.emitProgress(scan.ID, progressMLDone)
	if o.cancelledAt(ctx, scan, started) {
		return
	}

	result := aggregate.Merge(staticFindings, mlFindings)
	o.emitProgress(scan.ID, progressPersisting)

	completedAt := time.Now().UTC()
	scan.Status = model.ScanCompleted
	scan.RiskScore = result.RiskScore
	scan.RiskLevel = result.RiskLevel
	scan.TotalFindings = len(result.Findings)
	scan.Counts = result.Counts
	scan.CompletedAt = &completedAt
	scan.DurationMs = time.Since(started).Milliseconds()

	if err := o.store.CompleteScan(context.Background(), scan, result.Findings); err != nil {
		o.fail(scan, started, fmt.Errorf("persist scan result: %w", err))
		return
	}

	o.logger.Info("Scan completed",
		logging.Field{Key: "scan_id", Value: scan.ID},
		logging.Field{Key: "findings", Value: scan.TotalFindings},
		logging.Field{Key: "risk_score", Value: scan.RiskScore},
		logging.Field{Key: "duration_ms", Value: scan.DurationMs})
	o.emit(scan.ID, ScanEvent{ScanID: scan.ID, Type: ScanEventResult, Status: model.ScanCompleted, Progress: 100})
}

// runMLStage calls the ML service and converts its vulnerabilities. A failed
// analysis degrades to static-only results unless FailOnMLError is set.
func (o *Orchestrator) runMLStage(ctx context.Context, contract *store.Contract, parsed *model.ParsedContract) ([]model.Finding, error) {
	resp, err := o.ml.Analyze(ctx, &mlclient.AnalysisRequest{
		ContractCode:   contract.Source,
		ContractName:   contract.Name,
		SolcVersion:    contract.SolcVersion,
		ParsedContract: parsed,
	})
	if err != nil {
		return nil, fmt.Errorf("ML analysis: %w", err)
	}
	if !resp.Success {
		if o.cfg.FailOnMLError {
			return nil, fmt.Errorf("ML analysis failed: %s", resp.Message)
		}
		o.logger.Warn("ML analysis unavailable, continuing with static findings only",
			logging.Field{Key: "contract", Value: contract.Name},
			logging.Field{Key: "reason", Value: resp.Message})
		return nil, nil
	}
	return resp.ToFindings(), nil
}

// cancelledAt checks for cancellation at a stage boundary and, if cancelled,
// persists the CANCELLED terminal state.
func (o *Orchestrator) cancelledAt(ctx context.Context, scan *model.Scan, started time.Time) bool {
	select {
	case <-ctx.Done():
	default:
		return false
	}

	now := time.Now().UTC()
	if err := o.store.TerminateScan(context.Background(), scan.ID, model.ScanCancelled,
		CancelReason, now, time.Since(started).Milliseconds()); err != nil {
		o.logger.Error("Failed to persist scan cancellation",
			logging.Field{Key: "scan_id", Value: scan.ID},
			logging.Field{Key: "error", Value: err.Error()})
	}
	scan.Status = model.ScanCancelled

	o.logger.Info("Scan cancelled", logging.Field{Key: "scan_id", Value: scan.ID})
	o.emit(scan.ID, ScanEvent{ScanID: scan.ID, Type: ScanEventStatus, Status: model.ScanCancelled, Error: CancelReason})
	return true
}

// fail persists the FAILED terminal state with the verbatim error message.
func (o *Orchestrator) fail(scan *model.Scan, started time.Time, cause error) {
	now := time.Now().UTC()
	if err := o.store.TerminateScan(context.Background(), scan.ID, model.ScanFailed,
		cause.Error(), now, time.Since(started).Milliseconds()); err != nil {
		o.logger.Error("Failed to persist scan failure",
			logging.Field{Key: "scan_id", Value: scan.ID},
			logging.Field{Key: "error", Value: err.Error()})
	}
	scan.Status = model.ScanFailed
	scan.ErrorMessage = cause.Error()

	o.logger.Error("Scan failed",
		logging.Field{Key: "scan_id", Value: scan.ID},
		logging.Field{Key: "error", Value: cause.Error()})
	o.emit(scan.ID, ScanEvent{ScanID: scan.ID, Type: ScanEventStatus, Status: model.ScanFailed, Error: cause.Error()})
}

// CancelScan requests cancellation of a PENDING or IN_PROGRESS scan. The
// running goroutine persists the terminal state at its next stage boundary;
// if no goroutine is running (e.g. after a restart), the terminal state is
// written directly.
func (o *Orchestrator) CancelScan(ctx context.Context, scanID string) error {
	scan, err := o.store.LoadScan(ctx, scanID)
	if err != nil {
		return err
	}
	if !scan.Status.CanTransition(model.ScanCancelled) {
		return &model.ErrInvalidTransition{From: scan.Status, To: model.ScanCancelled}
	}

	o.jobsMu.Lock()
	cancel := o.cancels[scanID]
	o.jobsMu.Unlock()

	if cancel != nil {
		cancel()
		return nil
	}
	return o.store.TerminateScan(ctx, scanID, model.ScanCancelled, CancelReason,
		time.Now().UTC(), time.Since(scan.StartedAt).Milliseconds())
}

// RetryScan creates a new scan over the same stored contract bytes. Only
// FAILED scans can be retried; the failed scan's record is left untouched.
func (o *Orchestrator) RetryScan(ctx context.Context, scanID string) (*model.Scan, error) {
	scan, err := o.store.LoadScan(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if scan.Status != model.ScanFailed {
		return nil, fmt.Errorf("%w: scan %s is %s", ErrRetryNonFatal, scanID, scan.Status)
	}
	return o.StartScan(ctx, scan.ContractID)
}

// GetScan returns the current state of a scan, including the stage-based
// progress estimate.
func (o *Orchestrator) GetScan(ctx context.Context, scanID string) (*model.Scan, error) {
	scan, err := o.store.LoadScan(ctx, scanID)
	if err != nil {
		return nil, err
	}
	scan.Progress = o.progressFor(scan)
	return scan, nil
}

// progressFor resolves the progress estimate for a scan: 100 once terminal,
// the last completed stage while running, otherwise 0. An IN_PROGRESS scan
// with no running goroutine (orphaned by a restart) also reports 0.
func (o *Orchestrator) progressFor(scan *model.Scan) int {
	if scan.Status.Terminal() {
		return 100
	}
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	return o.progress[scan.ID]
}

// GetScanResult returns a scan with its findings. Findings exist only for
// COMPLETED scans; other states return the scan with an empty findings list.
func (o *Orchestrator) GetScanResult(ctx context.Context, scanID string) (*ScanResult, error) {
	scan, err := o.store.LoadScan(ctx, scanID)
	if err != nil {
		return nil, err
	}
	findings, err := o.store.LoadFindings(ctx, scanID)
	if err != nil {
		return nil, err
	}
	scan.Progress = o.progressFor(scan)
	return &ScanResult{Scan: scan, Findings: findings}, nil
}

// ListScans returns the owner's scans, most recent first.
func (o *Orchestrator) ListScans(ctx context.Context, ownerID string) ([]model.Scan, error) {
	scans, err := o.store.ListScansByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range scans {
		scans[i].Progress = o.progressFor(&scans[i])
	}
	return scans, nil
}

// LoadContract exposes stored contracts to the transport layer.
func (o *Orchestrator) LoadContract(ctx context.Context, contractID string) (*store.Contract, error) {
	return o.store.LoadContract(ctx, contractID)
}

// MLHealth probes the configured ML service.
func (o *Orchestrator) MLHealth(ctx context.Context) (*mlclient.HealthStatus, error) {
	return o.ml.Healthy(ctx)
}

// Events returns the event channel for a running scan, or nil if the scan
// is not currently running. The channel closes when the scan reaches a
// terminal state. Each scan has one channel and events are consumed
// destructively, so the channel supports a single subscriber; concurrent
// readers would each see an arbitrary subset.
func (o *Orchestrator) Events(scanID string) <-chan ScanEvent {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	ch, ok := o.events[scanID]
	if !ok {
		return nil
	}
	return ch
}

func (o *Orchestrator) emit(scanID string, ev ScanEvent) {
	o.jobsMu.Lock()
	ch := o.events[scanID]
	o.jobsMu.Unlock()
	if ch == nil {
		return
	}

	// Non-blocking send; drop if buffer is full.
	select {
	case ch <- ev:
	default:
	}
}

func (o *Orchestrator) emitProgress(scanID string, progress int) {
	o.jobsMu.Lock()
	if _, running := o.progress[scanID]; running {
		o.progress[scanID] = progress
	}
	o.jobsMu.Unlock()
	o.emit(scanID, ScanEvent{ScanID: scanID, Type: ScanEventProgress, Progress: progress})
}

// Close cancels all running scans and waits for their goroutines to finish.
// Idempotent.
func (o *Orchestrator) Close() {
	o.jobsMu.Lock()
	if o.closed {
		o.jobsMu.Unlock()
		return
	}
	o.closed = true
	cancels := make([]context.CancelFunc, 0, len(o.cancels))
	for _, cancel := range o.cancels {
		cancels = append(cancels, cancel)
	}
	o.jobsMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	o.wg.Wait()
}
