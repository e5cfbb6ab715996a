package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hacker-sp/RTOps-Management-Platform/cmd/rtops/internal"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/attack"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import techniques into the catalog",
	Long: `Import ATT&CK techniques from external artifacts. Imports are
idempotent; re-running an import updates only what changed, and
configured provenance precedence protects higher-authority edits.`,
}

var importSTIXCmd = &cobra.Command{
	Use:   "stix FILE",
	Short: "Import a STIX 2.1 bundle",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportSTIX,
}

var importNavigatorCmd = &cobra.Command{
	Use:   "navigator FILE",
	Short: "Import an ATT&CK Navigator layer",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportNavigator,
}

var importXLSXCmd = &cobra.Command{
	Use:   "xlsx FILE",
	Short: "Enrich the catalog from an ATT&CK reference spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportXLSX,
}

func init() {
	importCmd.AddCommand(importSTIXCmd)
	importCmd.AddCommand(importNavigatorCmd)
	importCmd.AddCommand(importXLSXCmd)
}

func runImportSTIX(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	p.logger.Info(ctx, "importing STIX bundle", "file", args[0])

	summary, err := attack.NewImporter(p.catalog).ImportSTIX(ctx, data)
	if err != nil {
		return err
	}

	return printImportSummary(cmd, "STIX bundle", summary)
}

func runImportNavigator(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	p.logger.Info(ctx, "importing Navigator layer", "file", args[0])

	summary, err := attack.NewImporter(p.catalog).ImportNavigatorLayer(ctx, data)
	if err != nil {
		return err
	}

	return printImportSummary(cmd, "Navigator layer", summary)
}

func runImportXLSX(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	p.logger.Info(ctx, "enriching from spreadsheet", "file", args[0])

	rows, err := attack.LoadWorkbook(file)
	if err != nil {
		return err
	}

	summary, err := attack.NewEnricher(p.catalog).Enrich(ctx, rows)
	if err != nil {
		return err
	}

	return printImportSummary(cmd, "spreadsheet", summary)
}

func printImportSummary(cmd *cobra.Command, source string, summary *attack.ImportSummary) error {
	if globalFlags.GetOutputFormat() == FormatJSON {
		return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(summary)
	}

	cmd.Printf("Imported %s: %d created, %d updated, %d unchanged, %d skipped\n",
		source, summary.Created, summary.Updated, summary.Unchanged, summary.Skipped)

	if len(summary.Warnings) > 0 && !globalFlags.IsQuiet() {
		cmd.Println("Warnings:")
		for _, warning := range summary.Warnings {
			cmd.Printf("  - %s\n", warning)
		}
	}

	return nil
}
