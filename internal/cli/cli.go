// Package cli defines the zippicks command tree.
package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"ZipPicks/internal/app"
	"ZipPicks/internal/config"
	"ZipPicks/internal/domain"
	"ZipPicks/internal/prompt"
)

// NewRootCmd builds the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "zippicks",
		Short:         "Generate, validate, and publish Top 10 restaurant lists",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newBatchCmd(),
		newSingleCmd(),
		newStatusCmd(),
		newValidatePendingCmd(),
		newPublishAllCmd(),
		newResetFailedCmd(),
		newVersionsCmd(),
	)
	return rootCmd
}

// withApp loads config, wires the application, and tears it down after
// the command body runs.
func withApp(cmd *cobra.Command, run func(*app.Application) error) error {
	cfg := config.Load()
	application, err := app.New(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = application.Close() }()
	return run(application)
}

func newBatchCmd() *cobra.Command {
	var (
		dateFlag string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Create tasks for every city and vibe, then process pending ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := parseDate(dateFlag)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.Application) error {
				if !cmd.Flags().Changed("limit") {
					limit = a.Config().Pipeline.BatchSize
				}
				summary, err := a.Pipeline().RunBatch(cmd.Context(), date, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"created %d, processed %d: %d validated, %d failed, %d skipped\n",
					summary.Created, summary.Processed, summary.Validated, summary.Failed, summary.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "Generation date as YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum pending tasks to process (0 = all, default from config)")
	return cmd
}

func newSingleCmd() *cobra.Command {
	var dateFlag string

	cmd := &cobra.Command{
		Use:   "single <city-slug> <vibe-slug>",
		Short: "Process one city and vibe pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(dateFlag)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.Application) error {
				return a.Pipeline().RunSingle(cmd.Context(), args[0], args[1], date)
			})
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "Generation date as YYYY-MM-DD (default today)")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show task counts by state, city, and vibe",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.Application) error {
				summary, err := a.Tracker().Summary(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "tasks: %d\n", summary.Total)

				fmt.Fprintln(out, "\nby state:")
				for _, state := range []domain.TaskState{
					domain.StatePending, domain.StateDrafted, domain.StateValidated,
					domain.StatePublishFailed, domain.StatePublished,
				} {
					if n := summary.ByState[state]; n > 0 {
						fmt.Fprintf(out, "  %-15s %d\n", state, n)
					}
				}

				printCounts(out, "by city:", summary.ByCity)
				printCounts(out, "by vibe:", summary.ByVibe)

				if len(summary.Recent) > 0 {
					fmt.Fprintln(out, "\nrecent:")
					for _, task := range summary.Recent {
						fmt.Fprintf(out, "  %s  %s  %s\n",
							task.UpdatedAt.Format("2006-01-02 15:04"), task.Key, task.State)
					}
				}
				return nil
			})
		},
	}
}

func newValidatePendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-pending",
		Short: "Re-validate archived responses for drafted tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.Application) error {
				summary, err := a.Pipeline().ValidatePending(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "processed %d: %d validated, %d failed, %d skipped\n",
					summary.Processed, summary.Validated, summary.Failed, summary.Skipped)
				return nil
			})
		},
	}
}

func newPublishAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish-all",
		Short: "Publish every validated draft still awaiting publication",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.Application) error {
				summary, err := a.Pipeline().PublishValidated(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published %d, failed %d, skipped %d\n",
					summary.Published, summary.Failed, summary.Skipped)
				return nil
			})
		},
	}
}

func newResetFailedCmd() *cobra.Command {
	var city, vibe string

	cmd := &cobra.Command{
		Use:   "reset-failed",
		Short: "Clear the retry counter on exhausted tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.Application) error {
				reset, err := a.Tracker().ResetFailed(cmd.Context(), city, vibe)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset %d tasks\n", reset)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "Only reset tasks for this city slug")
	cmd.Flags().StringVar(&vibe, "vibe", "", "Only reset tasks for this vibe slug")
	return cmd
}

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List available prompt template versions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			versions, err := prompt.ListVersions(cfg.Prompts.Dir)
			if err != nil {
				return err
			}
			for _, v := range versions {
				marker := " "
				if v == cfg.Prompts.Version {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", marker, v)
			}
			return nil
		},
	}
}

func parseDate(flag string) (time.Time, error) {
	if flag == "" {
		return time.Now(), nil
	}
	date, err := time.Parse("2006-01-02", flag)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", flag)
	}
	return date, nil
}

func printCounts(out io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(out, "\n%s\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-20s %d\n", k, counts[k])
	}
}
