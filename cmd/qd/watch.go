package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/changefeed"
	"github.com/alfredjeanlab/quadrant/internal/config"
	"github.com/alfredjeanlab/quadrant/internal/reminder"
	"github.com/alfredjeanlab/quadrant/internal/session"
	"github.com/alfredjeanlab/quadrant/internal/ui"
	"github.com/spf13/cobra"
)

var (
	watchOpts     viewOpts
	watchBell     bool
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live view and raise due-date reminders",
	Long: `Keeps a session open: remote changes are applied as they arrive, the
view is redrawn on every change and reminders are printed as tasks come due.

Send SIGHUP to reload the configuration; a changed user id switches the
session to the new identity.`,
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchInterval <= 0 {
			return fmt.Errorf("--refresh must be positive, got %s", watchInterval)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)

		var notifier reminder.Notifier = reminder.NewTerminalNotifier(os.Stderr, watchBell)
		if cfg.ReminderCommand != "" {
			notifier = reminder.NewMulti(notifier, reminder.CommandNotifier{Command: cfg.ReminderCommand})
		}
		// Opened sessions read the configuration current at open time.
		active := cfg
		mgr := session.NewManager(func(ctx context.Context, userID string) (*session.Session, error) {
			c := *active
			c.UserID = userID
			return openSession(ctx, &c, sessionMode{feed: true, reminders: notifier})
		}, logger)
		defer mgr.Close()

		if err := mgr.SetIdentity(ctx, active.UserID); err != nil {
			return err
		}

		tick := time.NewTicker(watchInterval)
		defer tick.Stop()
		for {
			s := mgr.Current()
			var changes <-chan struct{}
			if s != nil {
				changes = s.Store().Changes()
			}
			if err := drawWatch(os.Stdout, s, time.Now()); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return nil
			case <-changes:
			case <-tick.C:
			case <-hup:
				c, err := config.Load(profileName)
				if err != nil {
					logger.Error("reload config", "err", err)
					continue
				}
				active = c
				if err := mgr.SetIdentity(ctx, c.UserID); err != nil {
					logger.Error("switch identity", "user", c.UserID, "err", err)
				}
			}
		}
	},
}

// drawWatch renders one frame of the live view.
func drawWatch(w io.Writer, s *session.Session, now time.Time) error {
	ui.ClearScreen(w)
	if s == nil {
		fmt.Fprintln(w, ui.RenderMuted("Signed out. Set QUADRANT_USER_ID and send SIGHUP to sign in."))
		return nil
	}
	fmt.Fprintf(w, "%s  %s\n\n",
		ui.RenderAccent(s.UserID()),
		ui.RenderMuted(fmt.Sprintf("tasks: %s  sections: %s  %s",
			s.SubscriptionState(changefeed.ChannelTasks),
			s.SubscriptionState(changefeed.ChannelSections),
			now.Format("15:04:05"))),
	)
	return renderView(w, s.Store().Snapshot(), watchOpts, now)
}

func init() {
	watchCmd.Flags().StringVar(&watchOpts.View, "view", viewQuadrant, "grouping: quadrant, section or due")
	watchCmd.Flags().StringVarP(&watchOpts.Search, "search", "s", "", "only tasks whose title contains this text")
	watchCmd.Flags().BoolVarP(&watchOpts.All, "all", "a", false, "include completed tasks")
	watchCmd.Flags().BoolVar(&watchBell, "bell", true, "ring the terminal bell with each reminder")
	watchCmd.Flags().DurationVar(&watchInterval, "refresh", 30*time.Second, "redraw at least this often")
}
