package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alfredjeanlab/quadrant/internal/config"
	"github.com/alfredjeanlab/quadrant/internal/ui"
	"github.com/spf13/cobra"
)

var (
	profileName string
	jsonOutput  bool
	seedFile    string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "qd <command>",
	Short:         "Eisenhower-matrix planner with live sync",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		c, err := config.Load(profileName)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		cfg = c
		logger = newLogger(c.Debug)
		return nil
	},
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "profile to use (default: the active profile)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&seedFile, "seed", "", "JSONL export to preload into the memory backend")

	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Tasks:"},
		&cobra.Group{ID: "sections", Title: "Sections:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(helpFunc())

	// Tasks
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(undoneCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(showCmd)

	// Sections
	rootCmd.AddCommand(sectionCmd)

	// Views
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(profileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
