package main

import (
	"context"
	"os"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/session"
	"github.com/alfredjeanlab/quadrant/internal/views"
	"github.com/spf13/cobra"
)

var listOpts viewOpts

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks grouped by quadrant, section or due date",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(false, func(ctx context.Context, s *session.Session) error {
			snap := s.Store().Snapshot()
			if jsonOutput {
				tasks := views.Filter(snap.Tasks, listOpts.Search)
				if !listOpts.All {
					tasks = views.Incomplete(tasks)
				}
				return printJSON(os.Stdout, tasks)
			}
			return renderView(os.Stdout, snap, listOpts, time.Now())
		})
	},
}

func init() {
	listCmd.Flags().StringVar(&listOpts.View, "view", viewQuadrant, "grouping: quadrant, section or due")
	listCmd.Flags().StringVarP(&listOpts.Search, "search", "s", "", "only tasks whose title contains this text")
	listCmd.Flags().BoolVarP(&listOpts.All, "all", "a", false, "include completed tasks")
}
