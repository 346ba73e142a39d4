package main

import (
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/alfredjeanlab/quadrant/internal/config"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	Short:   "Manage connection profiles",
	GroupID: "system",
	// Profiles are managed before any of them can be loaded.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(false)
		return nil
	},
}

var profileLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, pf, err := loadProfiles()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(os.Stdout, pf)
		}
		if len(pf.Profiles) == 0 {
			fmt.Printf("No profiles in %s\n", path)
			return nil
		}
		names := make([]string, 0, len(pf.Profiles))
		for name := range pf.Profiles {
			names = append(names, name)
		}
		slices.Sort(names)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tNAME\tUSER\tBACKEND\tFEED")
		for _, name := range names {
			p := pf.Profiles[name]
			marker := ""
			if name == pf.Active {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", marker, name, p.UserID, p.Backend, p.Feed)
		}
		return w.Flush()
	},
}

var profileAdd config.Profile

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, pf, err := loadProfiles()
		if err != nil {
			return err
		}
		use, _ := cmd.Flags().GetBool("use")
		pf.Profiles[args[0]] = profileAdd
		if use || pf.Active == "" {
			pf.Active = args[0]
		}
		if err := config.SaveProfiles(path, pf); err != nil {
			return err
		}
		fmt.Printf("Saved profile %s\n", args[0])
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a profile the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, pf, err := loadProfiles()
		if err != nil {
			return err
		}
		if _, ok := pf.Profiles[args[0]]; !ok {
			return fmt.Errorf("no profile named %q", args[0])
		}
		pf.Active = args[0]
		if err := config.SaveProfiles(path, pf); err != nil {
			return err
		}
		fmt.Printf("Using profile %s\n", args[0])
		return nil
	},
}

var profileRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Remove a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, pf, err := loadProfiles()
		if err != nil {
			return err
		}
		if _, ok := pf.Profiles[args[0]]; !ok {
			return fmt.Errorf("no profile named %q", args[0])
		}
		delete(pf.Profiles, args[0])
		if pf.Active == args[0] {
			pf.Active = ""
		}
		if err := config.SaveProfiles(path, pf); err != nil {
			return err
		}
		fmt.Printf("Removed profile %s\n", args[0])
		return nil
	},
}

func loadProfiles() (string, config.ProfilesFile, error) {
	path, err := config.ProfilesPath()
	if err != nil {
		return "", config.ProfilesFile{}, err
	}
	pf, err := config.LoadProfiles(path)
	if err != nil {
		return "", config.ProfilesFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	return path, pf, nil
}

func init() {
	f := profileAddCmd.Flags()
	f.StringVar(&profileAdd.UserID, "user", "", "user id")
	f.StringVar(&profileAdd.Backend, "backend", "", "backend: postgres, rest or memory")
	f.StringVar(&profileAdd.DatabaseURL, "database-url", "", "Postgres connection URL")
	f.StringVar(&profileAdd.RESTURL, "rest-url", "", "REST endpoint")
	f.StringVar(&profileAdd.APIKey, "api-key", "", "REST API key")
	f.StringVar(&profileAdd.Token, "token", "", "REST bearer token")
	f.StringVar(&profileAdd.Feed, "feed", "", "change feed: backend, postgres, nats, redis, memory or none")
	f.StringVar(&profileAdd.NATSURL, "nats-url", "", "NATS URL")
	f.StringVar(&profileAdd.RedisURL, "redis-url", "", "Redis URL")
	f.StringVar(&profileAdd.ReminderInterval, "reminder-interval", "", "reminder check interval")
	f.StringVar(&profileAdd.ReminderCommand, "reminder-command", "", "command run for each reminder")
	f.StringVar(&profileAdd.ExportS3Bucket, "export-s3-bucket", "", "S3 bucket for exports")
	f.StringVar(&profileAdd.ExportS3Key, "export-s3-key", "", "S3 object key for exports")
	f.StringVar(&profileAdd.ExportS3Region, "export-s3-region", "", "S3 region")
	f.StringVar(&profileAdd.ExportS3Endpoint, "export-s3-endpoint", "", "custom S3 endpoint")
	f.StringVar(&profileAdd.ExportInterval, "export-interval", "", "export interval")
	f.Bool("use", false, "make it the active profile")

	profileCmd.AddCommand(profileLsCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileRmCmd)
}
