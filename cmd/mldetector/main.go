// Command mldetector starts the pattern-based detector service that backs
// the auditor's ML analysis stage.
// Usage: go run ./cmd/mldetector [port]
// Default port: 5000
package main

import (
	"log"
	"os"
	"strconv"

	"github.com/oyerishi/smart-contract-auditor/internal/mldetector"
)

func main() {
	cfg := mldetector.DefaultConfig()
	cfg.APIKey = os.Getenv("ML_API_KEY")

	// Optional: custom port from command line
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	server := mldetector.NewDetectorServer(cfg)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
