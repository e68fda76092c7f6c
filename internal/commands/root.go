// Package commands wires the auditor's command line interface.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/oyerishi/smart-contract-auditor/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "auditor",
	Short: "Static and ML-assisted security analysis for Solidity contracts",
	Long: `auditor scans Solidity smart contracts for common vulnerability classes
(reentrancy, unchecked calls, access control, arithmetic, weak randomness),
optionally enriched by a remote ML detection service, and reports merged,
deduplicated findings with an aggregate risk score.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to YAML config file")
}

// loadConfig resolves the --config flag, falling back to defaults when the
// flag is unset.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.NewConfig(path)
}
