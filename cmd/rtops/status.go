package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hacker-sp/RTOps-Management-Platform/cmd/rtops/internal"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/database"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display platform health and record counts",
	Long: `Display overall platform status including:
  - Database connectivity and size
  - Technique catalog counts by activity
  - Exercise, finding, and kill chain version counts`,
	RunE: runStatus,
}

// SystemStatus represents the complete platform status
type SystemStatus struct {
	Healthy   bool           `json:"healthy"`
	Database  DatabaseStatus `json:"database"`
	Records   RecordCounts   `json:"records"`
	CheckedAt time.Time      `json:"checked_at"`
}

// DatabaseStatus represents database health information
type DatabaseStatus struct {
	Connected bool   `json:"connected"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Error     string `json:"error,omitempty"`
}

// RecordCounts summarizes stored platform records
type RecordCounts struct {
	Techniques        int `json:"techniques"`
	ActiveTechniques  int `json:"active_techniques"`
	Exercises         int `json:"exercises"`
	Findings          int `json:"findings"`
	KillChainVersions int `json:"kill_chain_versions"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}

	status := collectSystemStatus(ctx, rtopsHome())

	formatter := internal.NewFormatter(flags.GetOutputFormat(), cmd.OutOrStdout())
	if flags.GetOutputFormat() == FormatJSON {
		return formatter.PrintJSON(status)
	}

	return printTextStatus(cmd, status)
}

// collectSystemStatus collects status from the database
func collectSystemStatus(ctx context.Context, homeDir string) SystemStatus {
	status := SystemStatus{
		CheckedAt: time.Now(),
	}

	status.Database = checkDatabaseStatus(ctx, homeDir)
	status.Healthy = status.Database.Connected

	if status.Database.Connected {
		status.Records = countRecords(ctx, status.Database.Path)
	}

	return status
}

// checkDatabaseStatus checks database connectivity and status
func checkDatabaseStatus(ctx context.Context, homeDir string) DatabaseStatus {
	dbStatus := DatabaseStatus{
		Connected: false,
		Path:      filepath.Join(homeDir, "rtops.db"),
	}

	info, err := os.Stat(dbStatus.Path)
	if err != nil {
		if os.IsNotExist(err) {
			dbStatus.Error = "database file not found (run 'rtops init' to initialize)"
		} else {
			dbStatus.Error = fmt.Sprintf("failed to stat database: %v", err)
		}
		return dbStatus
	}

	dbStatus.Size = info.Size()

	db, err := database.Open(dbStatus.Path)
	if err != nil {
		dbStatus.Error = fmt.Sprintf("failed to open database: %v", err)
		return dbStatus
	}
	defer db.Close()

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.Health(healthCtx); err != nil {
		dbStatus.Error = fmt.Sprintf("health check failed: %v", err)
		return dbStatus
	}

	dbStatus.Connected = true
	return dbStatus
}

// countRecords queries row counts for the status summary. Count failures
// leave the field at zero rather than failing the whole status.
func countRecords(ctx context.Context, dbPath string) RecordCounts {
	var counts RecordCounts

	db, err := database.Open(dbPath)
	if err != nil {
		return counts
	}
	defer db.Close()

	countInto := func(dest *int, query string) {
		row := db.QueryRowContext(ctx, query)
		_ = row.Scan(dest)
	}

	countInto(&counts.Techniques, "SELECT COUNT(*) FROM techniques")
	countInto(&counts.ActiveTechniques, "SELECT COUNT(*) FROM techniques WHERE active = 1")
	countInto(&counts.Exercises, "SELECT COUNT(*) FROM exercises")
	countInto(&counts.Findings, "SELECT COUNT(*) FROM findings")
	countInto(&counts.KillChainVersions, "SELECT COUNT(*) FROM kill_chain_versions")

	return counts
}

// printTextStatus prints status in human-readable text format
func printTextStatus(cmd *cobra.Command, status SystemStatus) error {
	healthSymbol := "✓"
	summary := "platform operational"
	if !status.Healthy {
		healthSymbol = "✗"
		summary = "platform unavailable"
	}

	cmd.Printf("\n%s Overall Status: %s\n\n", healthSymbol, summary)

	cmd.Println("Database:")
	if status.Database.Connected {
		cmd.Printf("  ✓ Connected: %s\n", status.Database.Path)
		cmd.Printf("    Size: %d bytes\n", status.Database.Size)
	} else {
		cmd.Println("  ✗ Not connected")
		if status.Database.Error != "" {
			cmd.Printf("    Error: %s\n", status.Database.Error)
		}
	}
	cmd.Println()

	if status.Database.Connected {
		cmd.Println("Records:")
		cmd.Printf("  Techniques:          %d (%d active)\n", status.Records.Techniques, status.Records.ActiveTechniques)
		cmd.Printf("  Exercises:           %d\n", status.Records.Exercises)
		cmd.Printf("  Findings:            %d\n", status.Records.Findings)
		cmd.Printf("  Kill chain versions: %d\n", status.Records.KillChainVersions)
		cmd.Println()
	}

	return nil
}
