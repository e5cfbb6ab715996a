package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hacker-sp/RTOps-Management-Platform/cmd/rtops/internal"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/attack"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the ATT&CK technique catalog",
	Long:  `Add, inspect, search, and retire techniques in the catalog`,
}

var catalogAddCmd = &cobra.Command{
	Use:   "add TECHNIQUE_ID NAME",
	Short: "Add or update a technique (manual provenance)",
	Args:  cobra.ExactArgs(2),
	RunE:  runCatalogAdd,
}

var catalogShowCmd = &cobra.Command{
	Use:   "show TECHNIQUE_ID",
	Short: "Show full technique detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogShow,
}

var catalogListCmd = &cobra.Command{
	Use:   "list TACTIC",
	Short: "List techniques under a tactic",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogList,
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search techniques by identifier, name, or description",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogSearch,
}

var catalogDeactivateCmd = &cobra.Command{
	Use:   "deactivate TECHNIQUE_ID",
	Short: "Mark a technique inactive (records keep their references)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogDeactivate,
}

var catalogTacticsCmd = &cobra.Command{
	Use:   "tactics",
	Short: "Group the whole catalog by tactic",
	RunE:  runCatalogTactics,
}

var (
	catalogAddTactics     []string
	catalogAddDescription string
	catalogAddRefs        string
)

func init() {
	catalogAddCmd.Flags().StringSliceVar(&catalogAddTactics, "tactic", nil, "Tactic label (repeatable, e.g. execution)")
	catalogAddCmd.Flags().StringVar(&catalogAddDescription, "description", "", "Technique description")
	catalogAddCmd.Flags().StringVar(&catalogAddRefs, "refs", "", "Reference URL")

	catalogCmd.AddCommand(catalogAddCmd)
	catalogCmd.AddCommand(catalogShowCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogDeactivateCmd)
	catalogCmd.AddCommand(catalogTacticsCmd)
}

func runCatalogAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	tactics := make([]attack.Tactic, 0, len(catalogAddTactics))
	for _, label := range catalogAddTactics {
		tactic, ok := attack.ParseTactic(label)
		if !ok {
			return fmt.Errorf("unknown tactic %q", label)
		}
		tactics = append(tactics, tactic)
	}

	result, err := p.catalog.Upsert(ctx, attack.Technique{
		ID:          args[0],
		Name:        args[1],
		Tactics:     tactics,
		Description: catalogAddDescription,
		Refs:        catalogAddRefs,
		Provenance:  attack.ProvenanceManual,
	})
	if err != nil {
		return err
	}

	cmd.Printf("Technique %s %s\n", result.Technique.ID, result.Kind)
	return nil
}

func runCatalogShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	technique, err := p.catalog.Get(ctx, args[0])
	if err != nil {
		return err
	}

	if globalFlags.GetOutputFormat() == FormatJSON {
		return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(technique)
	}

	displayTechnique(cmd, technique)
	return nil
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	tactic, ok := attack.ParseTactic(args[0])
	if !ok {
		return fmt.Errorf("unknown tactic %q", args[0])
	}

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	techniques, err := p.catalog.ListByTactic(ctx, tactic)
	if err != nil {
		return err
	}

	return printTechniqueTable(cmd, techniques)
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	techniques, err := p.catalog.Search(ctx, args[0])
	if err != nil {
		return err
	}

	return printTechniqueTable(cmd, techniques)
}

func runCatalogDeactivate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.catalog.Deactivate(ctx, args[0]); err != nil {
		return err
	}

	cmd.Printf("Technique %s deactivated\n", args[0])
	return nil
}

func runCatalogTactics(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	grouper := attack.NewGrouper(p.catalog)
	grouped, err := grouper.GroupByTactic(ctx)
	if err != nil {
		return err
	}

	if globalFlags.GetOutputFormat() == FormatJSON {
		return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(grouped)
	}

	for _, tactic := range attack.Tactics() {
		techniques := grouped[tactic]
		cmd.Printf("%s (%d)\n", tactic.Title(), len(techniques))
		for _, technique := range techniques {
			cmd.Printf("  %s  %s\n", technique.ID, truncate(technique.Name, 60))
		}
		cmd.Println()
	}
	return nil
}

func displayTechnique(cmd *cobra.Command, technique *attack.Technique) {
	bold := color.New(color.Bold)

	cmd.Printf("%s  %s\n\n", bold.Sprint(technique.ID), technique.Name)
	cmd.Printf("Tactics:       %s\n", joinTactics(technique.Tactics))
	cmd.Printf("Provenance:    %s\n", technique.Provenance)
	cmd.Printf("Active:        %v\n", technique.Active)
	if technique.Refs != "" {
		cmd.Printf("Refs:          %s\n", technique.Refs)
	}
	cmd.Printf("Created:       %s\n", technique.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("Last modified: %s\n", technique.LastModified.Format("2006-01-02 15:04:05"))
	if technique.Description != "" {
		cmd.Printf("\n%s\n", technique.Description)
	}
}

func printTechniqueTable(cmd *cobra.Command, techniques []attack.Technique) error {
	if globalFlags.GetOutputFormat() == FormatJSON {
		return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(techniques)
	}

	if len(techniques) == 0 {
		cmd.Println("No techniques found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTACTICS\tPROVENANCE\tACTIVE")
	fmt.Fprintln(w, "--\t----\t-------\t----------\t------")
	for _, technique := range techniques {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n",
			technique.ID,
			truncate(technique.Name, 45),
			truncate(joinTactics(technique.Tactics), 40),
			technique.Provenance,
			technique.Active,
		)
	}
	return w.Flush()
}
