package server

import (
	"github.com/oyerishi/smart-contract-auditor/internal/app"
	"github.com/oyerishi/smart-contract-auditor/internal/logging"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server (the CLI uses
	// the orchestrator in-process and does not require the network).
	ListenAddr string

	// AppConfig configures the orchestrator the server constructs.
	AppConfig *app.Config

	// Logger defaults to a stdout JSON logger when nil.
	Logger logging.Logger
}
