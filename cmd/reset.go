package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/tactset/internal/types"
	"github.com/andresmejia3/tactset/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetCatalog bool
	resetFiles   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset [key=value ...]",
	Short: "Reset system state (catalog tables, generated datasets)",
	Long:  "Clears generated data. By default, it resets everything. Use flags to clear specific components.",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		// If no flags are set, default to clearing EVERYTHING
		if !resetCatalog && !resetFiles {
			resetCatalog = DB != nil
			resetFiles = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetCatalog {
			if err := requireDB(); err != nil {
				utils.Die("Catalog unavailable", err)
			}
			if confirm(reader, os.Stdout, "⚠️  Are you sure you want to DROP all catalog tables?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset database", err)
				}
			}
		}

		if resetFiles {
			cfg, err := loadConfig(args)
			if err != nil {
				utils.Die("Failed to load configuration", err)
			}
			root := types.NewLayout(cfg.BasePath).Root
			if confirm(reader, os.Stdout, fmt.Sprintf("⚠️  Are you sure you want to delete %s?", root)) {
				fmt.Println("🗑️  Clearing generated datasets...")
				removeDir(root)
			}
		}

		fmt.Println("✨ System Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetCatalog, "catalog", false, "Clear PostgreSQL catalog tables (connection comes from --db)")
	resetCmd.Flags().BoolVar(&resetFiles, "files", false, "Clear generated datasets ({base_path}/datasets)")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
