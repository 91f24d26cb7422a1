package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cuemby/modelctl/pkg/config"
	"github.com/cuemby/modelctl/pkg/storage"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past deployment runs",
	Long: `History lists the most recent deployment runs recorded in the state
directory, newest first. Dry runs are included; only real runs update the
release ledger shown by 'modelctl history releases'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stateDir, _ := cmd.Flags().GetString("state-dir")
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := storage.NewBoltStore(stateDir)
		if err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		defer store.Close()

		runs, err := store.ListRuns(limit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded")
			return nil
		}
		return writeRuns(os.Stdout, runs)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "Print the full report of a past run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stateDir, _ := cmd.Flags().GetString("state-dir")

		store, err := storage.NewBoltStore(stateDir)
		if err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		defer store.Close()

		run, err := store.GetRun(args[0])
		if err != nil {
			return fmt.Errorf("failed to get run %s: %w", args[0], err)
		}

		var report any = run
		if len(run.Report) > 0 {
			report = run.Report
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

var historyReleasesCmd = &cobra.Command{
	Use:   "releases [NAME]",
	Short: "List releases submitted by modelctl, or show one by name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stateDir, _ := cmd.Flags().GetString("state-dir")
		namespace, _ := cmd.Flags().GetString("namespace")

		store, err := storage.NewBoltStore(stateDir)
		if err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		defer store.Close()

		if len(args) == 1 {
			return showRelease(os.Stdout, store, namespace, args[0])
		}

		releases, err := store.ListReleases()
		if err != nil {
			return fmt.Errorf("failed to list releases: %w", err)
		}
		if len(releases) == 0 {
			fmt.Println("No releases recorded")
			return nil
		}
		return writeReleases(os.Stdout, releases)
	},
}

func init() {
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyReleasesCmd)

	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 for all)")
	historyReleasesCmd.Flags().String("namespace", config.String(config.EnvNamespace, config.DefaultNamespace), "Namespace of the named release")
}

func runResult(run *storage.RunRecord) string {
	switch {
	case !run.Succeeded:
		return "failed at " + run.FailedStage
	case run.Warnings > 0:
		return fmt.Sprintf("succeeded (%d warning(s))", run.Warnings)
	default:
		return "succeeded"
	}
}

func writeRuns(w io.Writer, runs []*storage.RunRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tMODEL\tENVIRONMENT\tNAMESPACE\tDRY RUN\tRESULT")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.ModelType,
			run.Environment,
			run.Namespace,
			run.DryRun,
			runResult(run),
		)
	}
	return tw.Flush()
}

func writeReleases(w io.Writer, releases []*storage.ReleaseRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tNAMESPACE\tMODEL\tENVIRONMENT\tREVISION\tUPDATED\tLAST RUN")
	for _, rel := range releases {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			rel.Name,
			rel.Namespace,
			rel.ModelType,
			rel.Environment,
			rel.Revision,
			rel.UpdatedAt.Local().Format(time.DateTime),
			rel.LastRunID,
		)
	}
	return tw.Flush()
}

func showRelease(w io.Writer, store storage.Store, namespace, name string) error {
	rel, err := store.GetRelease(namespace, name)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("release %s not recorded in namespace %s", name, namespace)
	}
	if err != nil {
		return fmt.Errorf("failed to get release %s: %w", name, err)
	}
	return writeRelease(w, rel)
}

func writeRelease(w io.Writer, rel *storage.ReleaseRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", rel.Name)
	fmt.Fprintf(tw, "Namespace:\t%s\n", rel.Namespace)
	fmt.Fprintf(tw, "Model:\t%s\n", rel.ModelType)
	fmt.Fprintf(tw, "Environment:\t%s\n", rel.Environment)
	fmt.Fprintf(tw, "Chart:\t%s\n", rel.Chart)
	fmt.Fprintf(tw, "Revision:\t%d\n", rel.Revision)
	fmt.Fprintf(tw, "Fingerprint:\t%s\n", rel.Fingerprint)
	fmt.Fprintf(tw, "Created:\t%s\n", rel.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(tw, "Updated:\t%s\n", rel.UpdatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(tw, "Last run:\t%s\n", rel.LastRunID)
	return tw.Flush()
}
