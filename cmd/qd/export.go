package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alfredjeanlab/quadrant/internal/config"
	"github.com/alfredjeanlab/quadrant/internal/sync"
	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tasks and sections as JSONL",
	Long: `Writes a JSONL snapshot of the signed-in user's sections and tasks.

The snapshot goes to S3 when QUADRANT_EXPORT_S3_BUCKET is set, to --out when
given, and to stdout otherwise. With a positive QUADRANT_EXPORT_INTERVAL the
command keeps a live session open and re-exports on that interval until
interrupted.`,
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dests, err := exportDestinations(ctx, cfg, exportOut)
		if err != nil {
			return err
		}

		if cfg.ExportInterval <= 0 {
			s, err := openSession(ctx, cfg, oneShot)
			if err != nil {
				return err
			}
			defer s.Close()
			return sync.NewScheduler(s.Store(), s.UserID(), dests, 0, logger).ExportOnce(ctx)
		}

		s, err := openSession(ctx, cfg, sessionMode{feed: true})
		if err != nil {
			return err
		}
		defer s.Close()
		sched := sync.NewScheduler(s.Store(), s.UserID(), dests, cfg.ExportInterval, logger)
		sched.Start()
		<-ctx.Done()
		sched.Stop()
		return nil
	},
}

// exportDestinations builds the export targets from the configuration and
// the --out flag, falling back to stdout.
func exportDestinations(ctx context.Context, c *config.Config, out string) ([]sync.Destination, error) {
	var dests []sync.Destination
	if c.ExportS3Bucket != "" {
		d, err := sync.NewS3Destination(ctx, c.ExportS3Bucket, c.ExportS3Key, c.ExportS3Region, c.ExportS3Endpoint)
		if err != nil {
			return nil, err
		}
		dests = append(dests, d)
	}
	if out != "" {
		dests = append(dests, sync.NewFileDestination(out))
	}
	if len(dests) == 0 {
		dests = append(dests, sync.WriterDestination{W: os.Stdout})
	}
	return dests, nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write the snapshot to this file")
}
