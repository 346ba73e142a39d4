package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/alfredjeanlab/quadrant/internal/model"
	"github.com/alfredjeanlab/quadrant/internal/session"
	"github.com/spf13/cobra"
)

var sectionCmd = &cobra.Command{
	Use:     "section",
	Short:   "Manage sections",
	GroupID: "sections",
}

var sectionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List sections in display order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(false, func(ctx context.Context, s *session.Session) error {
			snap := s.Store().Snapshot()
			if jsonOutput {
				return printJSON(os.Stdout, snap.Sections)
			}
			counts := make(map[string]int)
			for _, t := range snap.Tasks {
				counts[t.SectionID]++
			}
			printSections(os.Stdout, snap.Sections, counts)
			return nil
		})
	},
}

var sectionAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a section after the existing ones",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(true, func(ctx context.Context, s *session.Session) error {
			sec, err := s.Gateway().CreateSection(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, sec)
			}
			fmt.Printf("Added section %s %s\n", sec.ID, sec.Name)
			return nil
		})
	},
}

var sectionRenameCmd = &cobra.Command{
	Use:   "rename <section> <name>",
	Short: "Rename a section",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateSection(args[0], model.SectionPatch{Name: &args[1]})
	},
}

var sectionReorderCmd = &cobra.Command{
	Use:   "reorder <section> <order>",
	Short: "Set a section's display order",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		order, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid order %q: %w", args[1], err)
		}
		return updateSection(args[0], model.SectionPatch{Order: &order})
	},
}

func updateSection(ref string, p model.SectionPatch) error {
	return withSession(true, func(ctx context.Context, s *session.Session) error {
		sec, err := resolveSection(s.Store().Sections.List(), ref)
		if err != nil {
			return err
		}
		if err := s.Gateway().UpdateSection(ctx, sec.ID, p); err != nil {
			return err
		}
		sec, _ = s.Store().Sections.Get(sec.ID)
		if jsonOutput {
			return printJSON(os.Stdout, sec)
		}
		fmt.Printf("Updated section %s %s (order %d)\n", sec.ID, sec.Name, sec.Order)
		return nil
	})
}

var sectionRmCmd = &cobra.Command{
	Use:   "rm <section>",
	Short: "Delete a section; its tasks become unsectioned",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(true, func(ctx context.Context, s *session.Session) error {
			sec, err := resolveSection(s.Store().Sections.List(), args[0])
			if err != nil {
				return err
			}
			if err := s.Gateway().DeleteSection(ctx, sec.ID); err != nil {
				return err
			}
			fmt.Printf("Deleted section %s %s\n", sec.ID, sec.Name)
			return nil
		})
	},
}

func init() {
	sectionCmd.AddCommand(sectionLsCmd)
	sectionCmd.AddCommand(sectionAddCmd)
	sectionCmd.AddCommand(sectionRenameCmd)
	sectionCmd.AddCommand(sectionReorderCmd)
	sectionCmd.AddCommand(sectionRmCmd)
}
