package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/tactset/internal/store"
	"github.com/andresmejia3/tactset/internal/types"
	"github.com/andresmejia3/tactset/internal/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run_id]",
	Short: "List dataset builds recorded in the catalog, or the samples of one build",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 {
			id, err := uuid.Parse(args[0])
			if err != nil {
				utils.Die("Invalid run ID", err)
			}
			runSamples(cmd, id)
			return
		}
		runRuns(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command) {
	if err := requireDB(); err != nil {
		utils.Die("Catalog unavailable", err)
	}
	runs, err := DB.ListRuns(cmd.Context())
	if err != nil {
		utils.Die("Failed to list runs", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found in database.")
		return
	}
	writeRuns(os.Stdout, runs)
}

func runSamples(cmd *cobra.Command, id uuid.UUID) {
	if err := requireDB(); err != nil {
		utils.Die("Catalog unavailable", err)
	}
	recs, err := DB.RunSamples(cmd.Context(), id)
	if err != nil {
		utils.Die("Failed to list run samples", err)
	}

	if len(recs) == 0 {
		fmt.Printf("No samples recorded for run %s.\n", id)
		return
	}
	writeSamples(os.Stdout, recs)
}

// runStatus is "running", "failed" or the finish time.
func runStatus(r store.Run) string {
	switch {
	case r.Error != "":
		return "failed"
	case r.FinishedAt == nil:
		return "running"
	default:
		return r.FinishedAt.Local().Format("2006-01-02 15:04")
	}
}

func writeRuns(out io.Writer, runs []store.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tBASE PATH\tWRITTEN\tSKIPPED\tSTARTED\tFINISHED")
	fmt.Fprintln(w, "--\t---------\t-------\t-------\t-------\t--------")

	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", r.ID, r.BasePath, r.Written, r.Skipped,
			r.StartedAt.Local().Format("2006-01-02 15:04"), runStatus(r))
	}
	w.Flush()

	for _, r := range runs {
		if r.Error != "" {
			fmt.Fprintf(out, "\n⚠️  Run %s failed: %s\n", r.ID, r.Error)
		}
	}
}

func writeSamples(out io.Writer, recs []types.SampleRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "INDEX\tSOURCE\tCIRCLE (X,Y,R)\tCOLOR\tNORMAL")
	fmt.Fprintln(w, "-----\t------\t--------------\t-----\t------")

	for _, r := range recs {
		fmt.Fprintf(w, "%04d\t%s\t%d,%d,%d\t%s\t%s\n", r.Index, r.SourcePath,
			r.Circle.CenterX, r.Circle.CenterY, r.Circle.Radius, r.ColorPath, r.NormalPath)
	}
	w.Flush()
}
