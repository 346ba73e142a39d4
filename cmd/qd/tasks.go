package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/model"
	"github.com/alfredjeanlab/quadrant/internal/session"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:         "add <title>",
	Short:       "Add a task",
	GroupID:     "tasks",
	Annotations: map[string]string{annotQuadrants: "true"},
	Args:        cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		qFlag, _ := cmd.Flags().GetString("quadrant")
		desc, _ := cmd.Flags().GetString("description")
		dueFlag, _ := cmd.Flags().GetString("due")
		sectionRef, _ := cmd.Flags().GetString("section")

		q, err := parseQuadrant(qFlag)
		if err != nil {
			return err
		}
		draft := model.Task{Title: args[0], Description: desc, Quadrant: q}
		if dueFlag != "" {
			due, err := parseDue(dueFlag, time.Now())
			if err != nil {
				return err
			}
			draft.DueAt = &due
		}

		return withSession(true, func(ctx context.Context, s *session.Session) error {
			snap := s.Store().Snapshot()
			if sectionRef != "" {
				sec, err := resolveSection(snap.Sections, sectionRef)
				if err != nil {
					return err
				}
				draft.SectionID = sec.ID
			}
			t, err := s.Gateway().CreateTask(ctx, draft)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, t)
			}
			fmt.Printf("Added %s %s\n", t.ID, t.Title)
			return nil
		})
	},
}

var editCmd = &cobra.Command{
	Use:         "edit <id>",
	Short:       "Edit a task's title, description, due date or section",
	GroupID:     "tasks",
	Annotations: map[string]string{annotQuadrants: "true"},
	Args:        cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p model.TaskPatch
		if cmd.Flags().Changed("title") {
			v, _ := cmd.Flags().GetString("title")
			p.Title = &v
		}
		if cmd.Flags().Changed("description") {
			v, _ := cmd.Flags().GetString("description")
			p.Description = &v
		}
		if cmd.Flags().Changed("quadrant") {
			v, _ := cmd.Flags().GetString("quadrant")
			q, err := parseQuadrant(v)
			if err != nil {
				return err
			}
			p.Quadrant = &q
		}
		clearDue, _ := cmd.Flags().GetBool("clear-due")
		switch {
		case clearDue && cmd.Flags().Changed("due"):
			return errors.New("--due and --clear-due are mutually exclusive")
		case clearDue:
			p.DueAt = model.Ptr(time.Time{})
		case cmd.Flags().Changed("due"):
			v, _ := cmd.Flags().GetString("due")
			due, err := parseDue(v, time.Now())
			if err != nil {
				return err
			}
			p.DueAt = &due
		}
		sectionRef, _ := cmd.Flags().GetString("section")
		if p.IsEmpty() && sectionRef == "" {
			return errors.New("nothing to change")
		}

		return withSession(true, func(ctx context.Context, s *session.Session) error {
			snap := s.Store().Snapshot()
			t, err := resolveTask(snap.Tasks, args[0])
			if err != nil {
				return err
			}
			if sectionRef != "" {
				sec, err := resolveSection(snap.Sections, sectionRef)
				if err != nil {
					return err
				}
				p.SectionID = &sec.ID
			}
			if err := s.Gateway().UpdateTask(ctx, t.ID, p); err != nil {
				return err
			}
			return showTask(s, t.ID)
		})
	},
}

// setCompleteCmd builds the done and undone commands.
func setCompleteCmd(use, short string, completed bool) *cobra.Command {
	return &cobra.Command{
		Use:     use + " <id>...",
		Short:   short,
		GroupID: "tasks",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(true, func(ctx context.Context, s *session.Session) error {
				tasks := s.Store().Tasks.List()
				var errs []error
				for _, ref := range args {
					t, err := resolveTask(tasks, ref)
					if err == nil {
						err = s.Gateway().ToggleComplete(ctx, t.ID, completed)
					}
					if err != nil {
						errs = append(errs, err)
						continue
					}
					fmt.Printf("%s %s %s\n", checkbox(completed), t.ID, t.Title)
				}
				return errors.Join(errs...)
			})
		},
	}
}

var (
	doneCmd   = setCompleteCmd("done", "Mark tasks complete", true)
	undoneCmd = setCompleteCmd("undone", "Mark tasks incomplete", false)
)

var moveCmd = &cobra.Command{
	Use:         "move <id> <quadrant>",
	Short:       "Move a task to another quadrant",
	GroupID:     "tasks",
	Annotations: map[string]string{annotQuadrants: "true"},
	Args:        cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := parseQuadrant(args[1])
		if err != nil {
			return err
		}
		return withSession(true, func(ctx context.Context, s *session.Session) error {
			t, err := resolveTask(s.Store().Tasks.List(), args[0])
			if err != nil {
				return err
			}
			if err := s.Gateway().MoveTask(ctx, t.ID, q); err != nil {
				return err
			}
			fmt.Printf("Moved %s to %s\n", t.ID, q.Name())
			return nil
		})
	},
}

var assignCmd = &cobra.Command{
	Use:     "assign <id> [section]",
	Short:   "Put a task in a section, or take it out with --none",
	GroupID: "tasks",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		none, _ := cmd.Flags().GetBool("none")
		if none == (len(args) == 2) {
			return errors.New("give either a section or --none")
		}
		return withSession(true, func(ctx context.Context, s *session.Session) error {
			snap := s.Store().Snapshot()
			t, err := resolveTask(snap.Tasks, args[0])
			if err != nil {
				return err
			}
			sectionID, name := "", "Unsectioned"
			if !none {
				sec, err := resolveSection(snap.Sections, args[1])
				if err != nil {
					return err
				}
				sectionID, name = sec.ID, sec.Name
			}
			if err := s.Gateway().SetTaskSection(ctx, t.ID, sectionID); err != nil {
				return err
			}
			fmt.Printf("Moved %s to %s\n", t.ID, name)
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>...",
	Short:   "Delete tasks",
	GroupID: "tasks",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(true, func(ctx context.Context, s *session.Session) error {
			tasks := s.Store().Tasks.List()
			var errs []error
			for _, ref := range args {
				t, err := resolveTask(tasks, ref)
				if err == nil {
					err = s.Gateway().DeleteTask(ctx, t.ID)
				}
				if err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Printf("Deleted %s %s\n", t.ID, t.Title)
			}
			return errors.Join(errs...)
		})
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show a task",
	GroupID: "tasks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(false, func(ctx context.Context, s *session.Session) error {
			t, err := resolveTask(s.Store().Tasks.List(), args[0])
			if err != nil {
				return err
			}
			return showTask(s, t.ID)
		})
	},
}

func showTask(s *session.Session, id string) error {
	t, ok := s.Store().Tasks.Get(id)
	if !ok {
		return fmt.Errorf("task %s is gone", id)
	}
	if jsonOutput {
		return printJSON(os.Stdout, t)
	}
	printTask(os.Stdout, t, sectionNames(s.Store().Sections.List()), time.Now())
	return nil
}

func init() {
	addCmd.Flags().StringP("quadrant", "q", "1", "quadrant: 1-4 or do-first, schedule, delegate, dont-do")
	addCmd.Flags().StringP("description", "d", "", "task description")
	addCmd.Flags().String("due", "", "due date (YYYY-MM-DD, \"YYYY-MM-DD HH:MM\", RFC 3339 or +duration)")
	addCmd.Flags().String("section", "", "section id or name")

	editCmd.Flags().String("title", "", "new title")
	editCmd.Flags().StringP("description", "d", "", "new description (empty clears it)")
	editCmd.Flags().StringP("quadrant", "q", "", "new quadrant")
	editCmd.Flags().String("due", "", "new due date")
	editCmd.Flags().Bool("clear-due", false, "remove the due date")
	editCmd.Flags().String("section", "", "move to section id or name")

	assignCmd.Flags().Bool("none", false, "take the task out of its section")
}
