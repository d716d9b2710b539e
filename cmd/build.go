package cmd

import (
	"fmt"
	"os"

	"github.com/andresmejia3/tactset/internal/builder"
	"github.com/andresmejia3/tactset/internal/dataset"
	"github.com/andresmejia3/tactset/internal/utils"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [key=value ...]",
	Short: "Build the color/normal dataset from annotated sensor images",
	Long: `Reads {base_path}/images and the annotation file, synthesizes a normal map
for every annotated contact, and writes {base_path}/datasets/{A,B}/imgs
plus their CSV manifests. Trailing key=value arguments override the config,
e.g. dataset.save_dataset=false.`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runBuild(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

// runBuild wires config, data source, catalog and builder, then prints the report.
func runBuild(cmd *cobra.Command, overrides []string) {
	cfg, err := loadConfig(overrides)
	if err != nil {
		utils.Die("Failed to load configuration", err)
	}

	src, err := dataset.OpenDirectory(dataset.Options{
		ImagesDir:      cfg.ImagesDir(),
		ImgType:        cfg.Dataloader.ImgType,
		AnnotFlag:      cfg.Dataloader.AnnotFlag,
		AnnotationPath: cfg.AnnotationPath(),
	})
	if err != nil {
		utils.Die("Failed to open image source", err)
	}
	fmt.Fprintf(os.Stderr, "📂 Found %d images in %s\n", src.Len(), cfg.ImagesDir())

	opts := builder.Options{Progress: os.Stderr}
	if DB != nil {
		opts.Recorder = DB
	}
	b, err := builder.New(cfg, src, Log, opts)
	if err != nil {
		utils.Die("Invalid build configuration", err)
	}

	report, err := b.Run(cmd.Context())
	if err != nil {
		utils.Die("Dataset build failed", err)
	}
	printReport(report, cfg.Dataset.SaveDataset)
}

func printReport(r builder.Report, saved bool) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "📊 BUILD SUMMARY\n")
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🖼️  Samples:               %d\n", r.Samples)
	fmt.Fprintf(os.Stderr, "✅ Converted:             %d\n", r.Converted)
	if saved {
		fmt.Fprintf(os.Stderr, "💾 Written:               %d\n", r.Written)
	} else {
		fmt.Fprintf(os.Stderr, "💾 Written:               0 (save_dataset=false)\n")
	}
	fmt.Fprintf(os.Stderr, "⏭️  Skipped (no contact):  %d\n", r.Skipped)
	fmt.Fprintf(os.Stderr, "⚠️  Skipped (empty mask):  %d\n", r.Empty)
	if r.Converted > 0 {
		fmt.Fprintf(os.Stderr, "🎨 Color mean (RGB):      %.4f %.4f %.4f\n", r.Color.Mean[0], r.Color.Mean[1], r.Color.Mean[2])
		fmt.Fprintf(os.Stderr, "🎨 Color std  (RGB):      %.4f %.4f %.4f\n", r.Color.Std[0], r.Color.Std[1], r.Color.Std[2])
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}
