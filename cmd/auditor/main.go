// Command auditor is the smart contract security auditor CLI and API server.
package main

import (
	"github.com/oyerishi/smart-contract-auditor/internal/commands"
)

func main() {
	commands.Execute()
}
