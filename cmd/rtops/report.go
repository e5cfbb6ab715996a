package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hacker-sp/RTOps-Management-Platform/cmd/rtops/internal"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/attack"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/database"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/finding"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export exercise reports",
}

var reportExportCmd = &cobra.Command{
	Use:   "export EXERCISE",
	Short: "Export an exercise report",
	Long: `Assemble an exercise report from its findings, latest kill chain
version, and the referenced catalog techniques, and render it as
JSON or Markdown. Writes to stdout unless --output is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runReportExport,
}

var (
	reportFormat      string
	reportOutput      string
	reportMinSeverity string
	reportResolved    bool
	reportNoKillChain bool
)

func init() {
	reportExportCmd.Flags().StringVarP(&reportFormat, "format", "f", "", "Output format: json or markdown (default: configured format)")
	reportExportCmd.Flags().StringVar(&reportOutput, "out", "", "Write to a file instead of stdout")
	reportExportCmd.Flags().StringVar(&reportMinSeverity, "min-severity", "", "Only include findings at or above a severity")
	reportExportCmd.Flags().BoolVar(&reportResolved, "resolved", false, "Include resolved and false positive findings")
	reportExportCmd.Flags().BoolVar(&reportNoKillChain, "no-killchain", false, "Omit the kill chain section")

	reportCmd.AddCommand(reportExportCmd)
}

func runReportExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	format := reportFormat
	if format == "" {
		format = p.cfg.Report.DefaultFormat
	}
	if format == "" {
		format = "markdown"
	}

	var exporter report.Exporter
	switch format {
	case "json":
		exporter = report.NewJSONExporter(true)
	case "markdown", "md":
		md := report.NewMarkdownExporter()
		if p.cfg.Report.Title != "" {
			md.WithTitle(p.cfg.Report.Title)
		}
		exporter = md
	default:
		return internal.NewCLIError(internal.ExitConfigError,
			fmt.Sprintf("unknown report format %q (expected json or markdown)", format))
	}

	opts := report.DefaultOptions()
	opts.IncludeResolved = reportResolved || p.cfg.Report.IncludeResolved
	opts.IncludeKillChain = !reportNoKillChain
	if reportMinSeverity != "" {
		severity := finding.Severity(reportMinSeverity)
		if !severity.IsValid() {
			return fmt.Errorf("invalid severity %q", reportMinSeverity)
		}
		opts.MinSeverity = &severity
	}

	exercises := database.NewExerciseDAO(p.db)
	exercise, err := resolveExercise(ctx, exercises, args[0])
	if err != nil {
		return err
	}

	builder := report.NewBuilder(
		exercises,
		finding.NewDBStore(p.db),
		p.catalog,
		attack.NewKillChainBuilder(p.db, p.catalog),
	)

	doc, err := builder.Build(ctx, exercise.ID)
	if err != nil {
		return err
	}

	rendered, err := exporter.Export(ctx, doc, opts)
	if err != nil {
		return err
	}

	if reportOutput == "" {
		_, err = cmd.OutOrStdout().Write(rendered)
		return err
	}

	if err := os.WriteFile(reportOutput, rendered, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	p.logger.Info(ctx, "report exported",
		"exercise", exercise.Name, "format", exporter.Format(), "path", reportOutput)

	if !globalFlags.IsQuiet() {
		cmd.Printf("Wrote %s report to %s\n", exporter.Format(), reportOutput)
	}
	return nil
}
