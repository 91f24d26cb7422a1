package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cuemby/modelctl/pkg/config"
	"github.com/cuemby/modelctl/pkg/types"
	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the supported model profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		profiles := config.DefaultCatalog().Profiles()
		switch output {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(profiles)
		case "text":
			return writeProfiles(os.Stdout, profiles)
		default:
			return fmt.Errorf("--output must be 'text' or 'json', got %q", output)
		}
	},
}

func init() {
	profilesCmd.Flags().String("output", "text", "Output format (text, json)")
}

func writeProfiles(w io.Writer, profiles []types.ModelProfile) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tCHART\tMEMORY\tACCELERATORS\tFEATURES\tVARIANT\tWORKLOAD\tROUTE")
	for _, p := range profiles {
		variant := p.Variant
		if variant == "" {
			variant = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			p.ModelType,
			p.Chart,
			p.Resources.Memory,
			p.Resources.Accelerators,
			strings.Join(p.Features, ","),
			variant,
			p.Workload,
			p.Route,
		)
	}
	return tw.Flush()
}
