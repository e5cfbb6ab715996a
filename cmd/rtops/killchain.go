package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hacker-sp/RTOps-Management-Platform/cmd/rtops/internal"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/attack"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/database"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/types"
)

var killchainCmd = &cobra.Command{
	Use:   "killchain",
	Short: "Manage kill chain plans",
	Long: `Project catalog techniques onto the seven kill chain stages per
exercise. Saves are append-only versions; earlier versions stay intact.`,
}

var killchainProposeCmd = &cobra.Command{
	Use:   "propose EXERCISE",
	Short: "Show the latest version, or an empty scaffold, as a draft",
	Args:  cobra.ExactArgs(1),
	RunE:  runKillchainPropose,
}

var killchainSaveCmd = &cobra.Command{
	Use:   "save EXERCISE",
	Short: "Validate and save a new kill chain version",
	Long: `Save a new kill chain version from --stage assignments, e.g.:

  rtops killchain save op-glasshouse \
      --stage "Delivery=T1566" \
      --stage "Exploitation=T1059,T1203"

Every referenced technique must exist in the catalog; validation
failures name every offending stage and identifier and nothing is
written.`,
	Args: cobra.ExactArgs(1),
	RunE: runKillchainSave,
}

var killchainHistoryCmd = &cobra.Command{
	Use:   "history EXERCISE",
	Short: "List all saved versions for an exercise, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runKillchainHistory,
}

var killchainShowCmd = &cobra.Command{
	Use:   "show VERSION_ID",
	Short: "Show one saved version",
	Args:  cobra.ExactArgs(1),
	RunE:  runKillchainShow,
}

var (
	killchainStages []string
	killchainAuthor string
)

func init() {
	killchainSaveCmd.Flags().StringArrayVar(&killchainStages, "stage", nil, `Stage assignment "STAGE=T1,T2" (repeatable)`)
	killchainSaveCmd.Flags().StringVar(&killchainAuthor, "author", "", "Version author (default: current operator)")

	killchainCmd.AddCommand(killchainProposeCmd)
	killchainCmd.AddCommand(killchainSaveCmd)
	killchainCmd.AddCommand(killchainHistoryCmd)
	killchainCmd.AddCommand(killchainShowCmd)
}

func runKillchainPropose(cmd *cobra.Command, args []string) error {
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

	version, err := attack.NewKillChainBuilder(p.db, p.catalog).Propose(ctx, exercise.ID)
	if err != nil {
		return err
	}

	if globalFlags.GetOutputFormat() == FormatJSON {
		return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(version)
	}

	if version.ID.IsZero() {
		cmd.Printf("No saved versions for %q; empty scaffold:\n\n", exercise.Name)
	} else {
		cmd.Printf("Latest version %s for %q:\n\n", version.ID.Short(), exercise.Name)
	}
	displayKillChainVersion(cmd, version)
	return nil
}

func runKillchainSave(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	mappings, err := parseStageFlags(killchainStages)
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

	author := killchainAuthor
	if author == "" {
		author = currentOperator()
	}

	version, err := attack.NewKillChainBuilder(p.db, p.catalog).Save(ctx, exercise.ID, mappings, author)
	if err != nil {
		return err
	}

	p.logger.Info(ctx, "kill chain version saved",
		"version_id", version.ID.String(), "exercise", exercise.Name, "author", author)

	cmd.Printf("Saved version %s for %q\n", version.ID.Short(), exercise.Name)
	return nil
}

func runKillchainHistory(cmd *cobra.Command, args []string) error {
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

	history, err := attack.NewKillChainBuilder(p.db, p.catalog).History(ctx, exercise.ID)
	if err != nil {
		return err
	}

	if globalFlags.GetOutputFormat() == FormatJSON {
		return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(history)
	}

	if len(history) == 0 {
		cmd.Printf("No saved versions for %q.\n", exercise.Name)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tAUTHOR\tTECHNIQUES\tCREATED")
	fmt.Fprintln(w, "-------\t------\t----------\t-------")
	for _, version := range history {
		total := 0
		for _, stage := range version.Stages {
			total += len(stage.TechniqueIDs)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			version.ID.Short(),
			version.Author,
			total,
			version.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	return w.Flush()
}

func runKillchainShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	versionID, err := types.ParseID(args[0])
	if err != nil {
		return fmt.Errorf("invalid version ID: %w", err)
	}

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	version, err := attack.NewKillChainBuilder(p.db, p.catalog).Get(ctx, versionID)
	if err != nil {
		return err
	}

	if globalFlags.GetOutputFormat() == FormatJSON {
		return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(version)
	}

	cmd.Printf("Version %s by %s (%s)\n\n",
		version.ID.Short(), version.Author, version.CreatedAt.Format("2006-01-02 15:04:05"))
	displayKillChainVersion(cmd, version)
	return nil
}

// parseStageFlags parses repeated "STAGE=T1,T2" assignments. Stage labels
// and technique existence are validated by the builder, not here.
func parseStageFlags(flags []string) ([]attack.StageMapping, error) {
	mappings := make([]attack.StageMapping, 0, len(flags))

	for _, raw := range flags {
		stage, ids, found := strings.Cut(raw, "=")
		if !found {
			return nil, fmt.Errorf("invalid --stage %q (expected STAGE=T1,T2)", raw)
		}

		var techniqueIDs []string
		for _, id := range strings.Split(ids, ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				techniqueIDs = append(techniqueIDs, trimmed)
			}
		}

		mappings = append(mappings, attack.StageMapping{
			Stage:        attack.KillChainStage(strings.TrimSpace(stage)),
			TechniqueIDs: techniqueIDs,
		})
	}

	return mappings, nil
}

func displayKillChainVersion(cmd *cobra.Command, version *attack.KillChainVersion) {
	for _, stage := range version.Stages {
		cmd.Printf("%s:\n", stage.Stage)
		if len(stage.TechniqueIDs) == 0 {
			cmd.Println("  (none)")
			continue
		}
		for _, id := range stage.TechniqueIDs {
			cmd.Printf("  %s\n", id)
		}
	}
}
