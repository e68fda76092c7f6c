package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/oyerishi/smart-contract-auditor/internal/aggregate"
	"github.com/oyerishi/smart-contract-auditor/internal/logging"
	"github.com/oyerishi/smart-contract-auditor/internal/mlclient"
	"github.com/oyerishi/smart-contract-auditor/internal/model"
	"github.com/oyerishi/smart-contract-auditor/internal/parser"
	"github.com/oyerishi/smart-contract-auditor/internal/report"
	"github.com/oyerishi/smart-contract-auditor/internal/rules"
	"github.com/oyerishi/smart-contract-auditor/internal/ui"
)

var scanCmd = &cobra.Command{
	Use:   "scan <contract.sol>",
	Short: "Scan a Solidity source file",
	Long: `Runs the full analysis pipeline against a local .sol file: structural
parsing, the static rule set, optional ML enrichment, and merged scoring.
Results print as a table; --sarif additionally writes a SARIF report.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		source, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Printf("Error reading contract: %v\n", err)
			os.Exit(1)
		}

		logger := logging.NewHclogLogger("auditor", cfg.Logger.Level)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		spinner := ui.StartSpinner("Parsing contract")
		parsed := parser.Parse(string(source))
		if !parser.LooksLikeSolidity(string(source)) {
			logger.Warn("input does not look like Solidity", logging.Field{Key: "path", Value: args[0]})
		}

		spinner.UpdateText("Running static rules")
		static := rules.NewEngine(logger).Run(parsed)

		var mlFindings []model.Finding
		if cfg.App.MLCfg.Enabled {
			spinner.UpdateText("Running ML analysis")
			client, err := mlclient.New(cfg.App.MLCfg, logger.Hclog().Named("mlclient"))
			if err != nil {
				spinner.Fail(fmt.Sprintf("ML client: %v", err))
				os.Exit(1)
			}
			resp, err := client.Analyze(ctx, &mlclient.AnalysisRequest{
				ContractCode:   string(source),
				ContractName:   parsed.ContractName,
				SolcVersion:    parsed.SolcVersion,
				ParsedContract: parsed,
			})
			if err != nil {
				spinner.Fail(fmt.Sprintf("ML analysis: %v", err))
				os.Exit(1)
			}
			if !resp.Success {
				logger.Warn("ML analysis failed, continuing with static findings",
					logging.Field{Key: "message", Value: resp.Message})
			}
			mlFindings = resp.ToFindings()
		}

		result := aggregate.Merge(static, mlFindings)
		spinner.Success(fmt.Sprintf("Analyzed %s", parsed.ContractName))

		ui.PrintFindings(result.Findings)
		ui.PrintRiskSummary(result.RiskScore, result.RiskLevel, result.Counts)

		sarifPath, _ := cmd.Flags().GetString("sarif")
		if sarifPath != "" {
			if err := writeSarifFile(sarifPath, parsed.ContractName, result); err != nil {
				fmt.Printf("Error writing SARIF report: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("SARIF report written to %s\n", sarifPath)
		}

		if result.RiskLevel == model.RiskCritical || result.RiskLevel == model.RiskHigh {
			os.Exit(2)
		}
	},
}

// writeSarifFile renders a one-shot scan record for the SARIF exporter.
func writeSarifFile(path, contractName string, result aggregate.Result) error {
	now := time.Now()
	scan := &model.Scan{
		ID:            uuid.NewString(),
		ContractName:  contractName,
		Status:        model.ScanCompleted,
		RiskScore:     result.RiskScore,
		RiskLevel:     result.RiskLevel,
		TotalFindings: len(result.Findings),
		Counts:        result.Counts,
		StartedAt:     now,
		CompletedAt:   &now,
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return report.WriteSarif(f, scan, result.Findings)
}

func init() {
	scanCmd.Flags().String("sarif", "", "Write a SARIF 2.1.0 report to this path")
	rootCmd.AddCommand(scanCmd)
}
