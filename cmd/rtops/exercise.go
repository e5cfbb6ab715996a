package main

import (
	"github.com/spf13/cobra"

	"github.com/hacker-sp/RTOps-Management-Platform/cmd/rtops/internal"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/database"
)

var exerciseCmd = &cobra.Command{
	Use:   "exercise",
	Short: "Manage red team exercises",
	Long:  `Create, list, and transition the exercises that findings and kill chains attach to`,
}

var exerciseCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new exercise",
	Args:  cobra.ExactArgs(1),
	RunE:  runExerciseCreate,
}

var exerciseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List exercises",
	RunE:  runExerciseList,
}

var exerciseShowCmd = &cobra.Command{
	Use:   "show EXERCISE",
	Short: "Show exercise details (by ID or name)",
	Args:  cobra.ExactArgs(1),
	RunE:  runExerciseShow,
}

var exerciseStatusCmd = &cobra.Command{
	Use:   "status EXERCISE STATUS",
	Short: "Transition an exercise (planned, active, completed, archived)",
	Args:  cobra.ExactArgs(2),
	RunE:  runExerciseStatus,
}

var (
	exerciseDescription string
	exerciseScope       string
	exerciseListStatus  string
)

func init() {
	exerciseCreateCmd.Flags().StringVar(&exerciseDescription, "description", "", "Exercise description")
	exerciseCreateCmd.Flags().StringVar(&exerciseScope, "scope", "", "Engagement scope notes")
	exerciseListCmd.Flags().StringVar(&exerciseListStatus, "status", "", "Filter by status")

	exerciseCmd.AddCommand(exerciseCreateCmd)
	exerciseCmd.AddCommand(exerciseListCmd)
	exerciseCmd.AddCommand(exerciseShowCmd)
	exerciseCmd.AddCommand(exerciseStatusCmd)
}

func runExerciseCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	exercise := &database.Exercise{
		Name:        args[0],
		Description: exerciseDescription,
		Scope:       exerciseScope,
		Status:      database.ExerciseStatusPlanned,
	}

	if err := database.NewExerciseDAO(p.db).Create(ctx, exercise); err != nil {
		return err
	}

	cmd.Printf("Exercise %q created (%s)\n", exercise.Name, exercise.ID.Short())
	return nil
}

func runExerciseList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	exercises, err := database.NewExerciseDAO(p.db).List(ctx, database.ExerciseStatus(exerciseListStatus))
	if err != nil {
		return err
	}

	if globalFlags.GetOutputFormat() == FormatJSON {
		return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(exercises)
	}

	if len(exercises) == 0 {
		cmd.Println("No exercises found.")
		return nil
	}

	rows := make([][]string, 0, len(exercises))
	for _, exercise := range exercises {
		rows = append(rows, []string{
			exercise.ID.Short(),
			truncate(exercise.Name, 40),
			string(exercise.Status),
			exercise.CreatedAt.Format("2006-01-02"),
		})
	}
	return internal.NewTextFormatter(cmd.OutOrStdout()).PrintTable(
		[]string{"id", "name", "status", "created"}, rows)
}

func runExerciseShow(cmd *cobra.Command, args []string) error {
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

	if globalFlags.GetOutputFormat() == FormatJSON {
		return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(exercise)
	}

	cmd.Printf("ID:          %s\n", exercise.ID)
	cmd.Printf("Name:        %s\n", exercise.Name)
	cmd.Printf("Status:      %s\n", exercise.Status)
	if exercise.Scope != "" {
		cmd.Printf("Scope:       %s\n", exercise.Scope)
	}
	if exercise.Description != "" {
		cmd.Printf("Description: %s\n", exercise.Description)
	}
	cmd.Printf("Created:     %s\n", exercise.CreatedAt.Format("2006-01-02 15:04:05"))
	if exercise.StartedAt != nil {
		cmd.Printf("Started:     %s\n", exercise.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if exercise.CompletedAt != nil {
		cmd.Printf("Completed:   %s\n", exercise.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runExerciseStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := openPlatform()
	if err != nil {
		return err
	}
	defer p.Close()

	dao := database.NewExerciseDAO(p.db)
	exercise, err := resolveExercise(ctx, dao, args[0])
	if err != nil {
		return err
	}

	status := database.ExerciseStatus(args[1])
	if err := dao.UpdateStatus(ctx, exercise.ID, status); err != nil {
		return err
	}

	cmd.Printf("Exercise %q is now %s\n", exercise.Name, status)
	return nil
}
