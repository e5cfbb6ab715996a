package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/config"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/database"
)

var (
	initForce   bool
	initHomeDir string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize RTOps configuration and database",
	Long: `Initialize the RTOps platform by creating:
- Configuration directory structure
- Default configuration file
- SQLite database with schema`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
	initCmd.Flags().StringVar(&initHomeDir, "home", "", "Custom home directory (default: ~/.rtops)")
}

func runInit(cmd *cobra.Command, args []string) error {
	homeDir := initHomeDir
	if homeDir == "" {
		homeDir = rtopsHome()
	}

	cmd.Printf("Initializing RTOps in %s...\n", homeDir)

	dirsCreated := 0
	for _, dir := range []string{homeDir, filepath.Join(homeDir, "data"), filepath.Join(homeDir, "cache")} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
			dirsCreated++
		}
	}

	configCreated, err := writeDefaultConfig(homeDir)
	if err != nil {
		return err
	}

	dbCreated, err := initDatabase(homeDir)
	if err != nil {
		return err
	}

	cmd.Println("\nRTOps initialized successfully!")
	cmd.Printf("  Home directory: %s\n", homeDir)
	cmd.Printf("  Directories created: %d\n", dirsCreated)
	cmd.Printf("  Config created: %v\n", configCreated)
	cmd.Printf("  Database created: %v\n", dbCreated)

	return nil
}

// writeDefaultConfig writes config.yaml with defaults rooted at homeDir.
// Existing config is left alone unless --force is set.
func writeDefaultConfig(homeDir string) (bool, error) {
	configPath := config.DefaultConfigPath(homeDir)

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return false, nil
	}

	cfg := config.DefaultConfig()
	cfg.Core.HomeDir = homeDir
	cfg.Core.DataDir = filepath.Join(homeDir, "data")
	cfg.Core.CacheDir = filepath.Join(homeDir, "cache")
	cfg.Database.Path = filepath.Join(homeDir, "rtops.db")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("failed to render default config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write config: %w", err)
	}

	return true, nil
}

// initDatabase opens (creating if needed) the database and applies migrations
func initDatabase(homeDir string) (bool, error) {
	dbPath := filepath.Join(homeDir, "rtops.db")

	_, statErr := os.Stat(dbPath)
	created := os.IsNotExist(statErr)

	db, err := database.Open(dbPath)
	if err != nil {
		return false, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		return false, fmt.Errorf("failed to apply schema migrations: %w", err)
	}

	return created, nil
}
