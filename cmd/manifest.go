package cmd

import (
	"fmt"

	"github.com/andresmejia3/tactset/internal/manifest"
	"github.com/andresmejia3/tactset/internal/types"
	"github.com/andresmejia3/tactset/internal/utils"
	"github.com/spf13/cobra"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest [key=value ...]",
	Short: "Regenerate the CSV manifests of an existing dataset",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runManifest(args)
	},
}

func init() {
	rootCmd.AddCommand(manifestCmd)
}

func runManifest(overrides []string) {
	cfg, err := loadConfig(overrides)
	if err != nil {
		utils.Die("Failed to load configuration", err)
	}
	layout := types.NewLayout(cfg.BasePath)
	if err := utils.EnsureDirs(layout.ColorCSV, layout.NormalCSV); err != nil {
		utils.Die("Failed to create manifest directories", err)
	}

	colorCSV, err := manifest.WriteColor(layout.ColorCSV, layout.ColorImages)
	if err != nil {
		utils.Die("Failed to write color manifest", err)
	}
	normalCSV, err := manifest.WriteNormal(layout.NormalCSV, layout.NormalImages)
	if err != nil {
		utils.Die("Failed to write normal manifest", err)
	}
	fmt.Printf("✅ Wrote %s\n✅ Wrote %s\n", colorCSV, normalCSV)
}
