package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hacker-sp/RTOps-Management-Platform/cmd/rtops/internal"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/database"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/finding"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/types"
)

var findingCmd = &cobra.Command{
	Use:   "finding",
	Short: "Record and triage exercise findings",
	Long: `Record findings observed during an exercise, link them to catalog
techniques, and track their triage state through to resolution.`,
}

var findingAddCmd = &cobra.Command{
	Use:   "add EXERCISE TITLE",
	Short: "Record a new finding",
	Args:  cobra.ExactArgs(2),
	RunE:  runFindingAdd,
}

var findingListCmd = &cobra.Command{
	Use:   "list EXERCISE",
	Short: "List findings for an exercise",
	Args:  cobra.ExactArgs(1),
	RunE:  runFindingList,
}

var findingShowCmd = &cobra.Command{
	Use:   "show FINDING_ID",
	Short: "Show a finding in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runFindingShow,
}

var findingStatusCmd = &cobra.Command{
	Use:   "status FINDING_ID STATUS",
	Short: "Transition a finding to a new triage state",
	Long: `Transition a finding between the triage states open, confirmed,
resolved, and false_positive.`,
	Args: cobra.ExactArgs(2),
	RunE: runFindingStatus,
}

var findingDeleteCmd = &cobra.Command{
	Use:   "delete FINDING_ID",
	Short: "Delete a finding",
	Args:  cobra.ExactArgs(1),
	RunE:  runFindingDelete,
}

var (
	findingSeverity    string
	findingDesc        string
	findingRemediation string
	findingTechniques  []string
	findingFilterSev   string
	findingFilterStat  string
	findingMinSev      string
	findingTechnique   string
)

func init() {
	findingAddCmd.Flags().StringVarP(&findingSeverity, "severity", "s", "info", "Severity (critical, high, medium, low, info)")
	findingAddCmd.Flags().StringVarP(&findingDesc, "description", "d", "", "What was observed")
	findingAddCmd.Flags().StringVarP(&findingRemediation, "remediation", "r", "", "Suggested remediation")
	findingAddCmd.Flags().StringArrayVarP(&findingTechniques, "technique", "t", nil, "Related technique identifier (repeatable)")

	findingListCmd.Flags().StringVar(&findingFilterSev, "severity", "", "Filter by exact severity")
	findingListCmd.Flags().StringVar(&findingFilterStat, "status", "", "Filter by triage status")
	findingListCmd.Flags().StringVar(&findingMinSev, "min-severity", "", "Filter to findings at or above a severity")
	findingListCmd.Flags().StringVar(&findingTechnique, "technique", "", "Filter to findings referencing a technique")

	findingCmd.AddCommand(findingAddCmd)
	findingCmd.AddCommand(findingListCmd)
	findingCmd.AddCommand(findingShowCmd)
	findingCmd.AddCommand(findingStatusCmd)
	findingCmd.AddCommand(findingDeleteCmd)
}

func runFindingAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	exercise, err := resolveExercise(ctx, database.NewExerciseDAO(p.db), args[0])
	if err != nil {
		return err
	}

	f := &finding.Finding{
		ExerciseID:   exercise.ID,
		Title:        args[1],
		Severity:     finding.Severity(findingSeverity),
		Description:  findingDesc,
		Remediation:  findingRemediation,
		TechniqueIDs: findingTechniques,
	}

	store := finding.NewDBStore(p.db)
	if err := store.Save(ctx, f); err != nil {
		return err
	}

	p.logger.Info(ctx, "finding recorded",
		"finding_id", f.ID.String(), "exercise", exercise.Name, "severity", string(f.Severity))

	cmd.Printf("Recorded finding %s: %s [%s]\n", f.ID.Short(), f.Title, f.Severity)
	return nil
}

func runFindingList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	filter, err := buildFindingFilter()
	if err != nil {
		return err
	}

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	exercise, err := resolveExercise(ctx, database.NewExerciseDAO(p.db), args[0])
	if err != nil {
		return err
	}

	findings, err := finding.NewDBStore(p.db).List(ctx, exercise.ID, filter)
	if err != nil {
		return err
	}

	if globalFlags.GetOutputFormat() == FormatJSON {
		return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(findings)
	}

	if len(findings) == 0 {
		cmd.Printf("No findings for %q.\n", exercise.Name)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSEVERITY\tSTATUS\tTITLE\tTECHNIQUES")
	fmt.Fprintln(w, "--\t--------\t------\t-----\t----------")
	for _, f := range findings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			f.ID.Short(),
			severityLabel(f.Severity),
			f.Status,
			truncate(f.Title, 48),
			joinLimited(f.TechniqueIDs, 3),
		)
	}
	return w.Flush()
}

func runFindingShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := types.ParseID(args[0])
	if err != nil {
		return fmt.Errorf("invalid finding ID: %w", err)
	}

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	f, err := finding.NewDBStore(p.db).Get(ctx, id)
	if err != nil {
		return err
	}

	if globalFlags.GetOutputFormat() == FormatJSON {
		return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(f)
	}

	bold := color.New(color.Bold)
	bold.Fprintf(cmd.OutOrStdout(), "%s\n", f.Title)
	cmd.Printf("ID:          %s\n", f.ID)
	cmd.Printf("Severity:    %s\n", severityLabel(f.Severity))
	cmd.Printf("Status:      %s\n", f.Status)
	cmd.Printf("Recorded:    %s\n", f.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("Updated:     %s\n", f.UpdatedAt.Format("2006-01-02 15:04:05"))
	if len(f.TechniqueIDs) > 0 {
		cmd.Printf("Techniques:  %s\n", joinLimited(f.TechniqueIDs, len(f.TechniqueIDs)))
	}
	if f.Description != "" {
		cmd.Printf("\n%s\n", f.Description)
	}
	if f.Remediation != "" {
		cmd.Printf("\nRemediation: %s\n", f.Remediation)
	}
	return nil
}

func runFindingStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := types.ParseID(args[0])
	if err != nil {
		return fmt.Errorf("invalid finding ID: %w", err)
	}

	status := finding.Status(args[1])
	if !status.IsValid() {
		return fmt.Errorf("invalid status %q (expected open, confirmed, resolved, or false_positive)", args[1])
	}

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := finding.NewDBStore(p.db).UpdateStatus(ctx, id, status); err != nil {
		return err
	}

	cmd.Printf("Finding %s is now %s\n", id.Short(), status)
	return nil
}

func runFindingDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := types.ParseID(args[0])
	if err != nil {
		return fmt.Errorf("invalid finding ID: %w", err)
	}

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := finding.NewDBStore(p.db).Delete(ctx, id); err != nil {
		return err
	}

	cmd.Printf("Deleted finding %s\n", id.Short())
	return nil
}

func buildFindingFilter() (*finding.Filter, error) {
	filter := finding.NewFilter()
	used := false

	if findingFilterSev != "" {
		severity := finding.Severity(findingFilterSev)
		if !severity.IsValid() {
			return nil, fmt.Errorf("invalid severity %q", findingFilterSev)
		}
		filter.WithSeverity(severity)
		used = true
	}
	if findingMinSev != "" {
		severity := finding.Severity(findingMinSev)
		if !severity.IsValid() {
			return nil, fmt.Errorf("invalid severity %q", findingMinSev)
		}
		filter.WithMinSeverity(severity)
		used = true
	}
	if findingFilterStat != "" {
		status := finding.Status(findingFilterStat)
		if !status.IsValid() {
			return nil, fmt.Errorf("invalid status %q", findingFilterStat)
		}
		filter.WithStatus(status)
		used = true
	}
	if findingTechnique != "" {
		filter.WithTechnique(findingTechnique)
		used = true
	}

	if !used {
		return nil, nil
	}
	return filter, nil
}

func severityLabel(s finding.Severity) string {
	switch s {
	case finding.SeverityCritical:
		return color.New(color.FgRed, color.Bold).Sprint("CRITICAL")
	case finding.SeverityHigh:
		return color.New(color.FgRed).Sprint("HIGH")
	case finding.SeverityMedium:
		return color.New(color.FgYellow).Sprint("MEDIUM")
	case finding.SeverityLow:
		return color.New(color.FgCyan).Sprint("LOW")
	default:
		return "INFO"
	}
}

func joinLimited(ids []string, max int) string {
	if len(ids) == 0 {
		return "-"
	}
	if len(ids) <= max {
		out := ids[0]
		for _, id := range ids[1:] {
			out += ", " + id
		}
		return out
	}
	out := ids[0]
	for _, id := range ids[1:max] {
		out += ", " + id
	}
	return fmt.Sprintf("%s +%d more", out, len(ids)-max)
}
