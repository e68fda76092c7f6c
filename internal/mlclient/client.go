// Package mlclient talks to the external ML analysis service over HTTP.
//
// The client is deliberately forgiving: the ML stage is a best-effort
// enrichment of the static analysis, so a disabled or unreachable service
// degrades to an empty (or failed-but-well-formed) response instead of an
// error. Callers decide whether a failed analysis aborts the scan.
package mlclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
)

const (
	analyzePath = "/api/ml/analyze"
	healthPath  = "/api/ml/health"

	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
	defaultTimeout    = 30 * time.Second
)

// Config controls the ML client. A zero BaseURL with Enabled=true is a
// configuration error surfaced by New.
type Config struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxRetries <= 0 {
		out.MaxRetries = defaultMaxRetries
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = defaultRetryDelay
	}
	if out.Timeout <= 0 {
		out.Timeout = defaultTimeout
	}
	return out
}

// hclogAdapter forwards resty's internal logging to hclog.
type hclogAdapter struct {
	logger hclog.Logger
}

func (a *hclogAdapter) Errorf(format string, v ...interface{}) {
	a.logger.Error(fmt.Sprintf(format, v...))
}

func (a *hclogAdapter) Warnf(format string, v ...interface{}) {
	a.logger.Warn(fmt.Sprintf(format, v...))
}

func (a *hclogAdapter) Debugf(format string, v ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, v...))
}

// Client calls the ML analysis service.
type Client struct {
	cfg    Config
	httpc  *resty.Client
	logger hclog.Logger
}

// New builds a client from cfg. Retries apply to transport-level failures
// only; an HTTP error status is a definitive answer and is not retried.
func New(cfg Config, logger hclog.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Enabled && cfg.BaseURL == "" {
		return nil, fmt.Errorf("mlclient: enabled but no base URL configured")
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	httpc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries - 1).
		SetRetryWaitTime(cfg.RetryDelay).
		SetRetryMaxWaitTime(cfg.RetryDelay).
		SetLogger(&hclogAdapter{logger: logger})
	if cfg.APIKey != "" {
		httpc.SetHeader("X-API-Key", cfg.APIKey)
	}

	return &Client{cfg: cfg, httpc: httpc, logger: logger}, nil
}

// Enabled reports whether the client will actually call out.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled
}

// Analyze submits the contract for ML analysis. The returned response is
// always non-nil and well formed:
//   - client disabled: Success=true with no vulnerabilities
//   - transport failure after retries: Success=false with a message
//   - non-2xx status: Success=false with the status in the message
//
// The error return is reserved for request construction problems and is nil
// in all of the above cases.
func (c *Client) Analyze(ctx context.Context, req *AnalysisRequest) (*AnalysisResponse, error) {
	if !c.cfg.Enabled {
		return &AnalysisResponse{Success: true, Message: "ML analysis disabled"}, nil
	}

	start := time.Now()
	var result AnalysisResponse
	resp, err := c.httpc.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post(analyzePath)
	if err != nil {
		c.logger.Warn("ML analysis request failed", "contract", req.ContractName, "error", err)
		return &AnalysisResponse{
			Success:          false,
			Message:          fmt.Sprintf("ML service unreachable: %v", err),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}
	if resp.StatusCode() != http.StatusOK {
		c.logger.Warn("ML analysis rejected", "contract", req.ContractName, "status", resp.StatusCode())
		return &AnalysisResponse{
			Success:          false,
			Message:          fmt.Sprintf("ML service returned status %d", resp.StatusCode()),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	c.logger.Debug("ML analysis done",
		"contract", req.ContractName,
		"vulnerabilities", len(result.Vulnerabilities),
		"elapsed_ms", time.Since(start).Milliseconds())
	return &result, nil
}

// Healthy probes the service's health endpoint. Disabled clients report
// healthy so that readiness checks do not depend on an opted-out service.
func (c *Client) Healthy(ctx context.Context) (*HealthStatus, error) {
	if !c.cfg.Enabled {
		return &HealthStatus{Status: "disabled"}, nil
	}

	var status HealthStatus
	resp, err := c.httpc.R().
		SetContext(ctx).
		SetResult(&status).
		Get(healthPath)
	if err != nil {
		return nil, fmt.Errorf("mlclient: health probe failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("mlclient: health probe returned status %d", resp.StatusCode())
	}
	return &status, nil
}
