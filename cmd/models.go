package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/upres/internal/hasher"
	"github.com/AnyUserName/upres/internal/model"
)

var modelsCmd = &cobra.Command{
	Use:   "models [model_dir]",
	Short: "Inspect the weight files in a model directory",
	Long: `Lists every weight file in a model directory, parses it, and shows
layer count, parameter count, content fingerprint and whether a binary
cache is present.  Parsing a file as a side effect warms its cache.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(_ *cobra.Command, args []string) error {
	dir := "models"
	if len(args) == 1 {
		dir = args[0]
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read model dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, "_model.json") || strings.HasSuffix(name, "_model.json.gz") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("no weight files in %s", dir)
	}
	sort.Strings(names)

	fmt.Println()
	fmt.Printf("  %-28s %7s %12s %-10s %s\n", "model", "layers", "params", "hash", "cached")
	for _, name := range names {
		path := filepath.Join(dir, name)
		m, err := model.LoadFile(path)
		if err != nil {
			fmt.Printf("  %-28s ✗ %v\n", name, err)
			continue
		}
		fp, err := hasher.FingerprintFile(path, 8)
		if err != nil {
			fp = "?"
		}
		cached := "no"
		if model.Cached(path) {
			cached = "yes"
		}
		fmt.Printf("  %-28s %7d %12d %-10s %s\n", name, len(m.Layers), m.Params(), fp, cached)
	}
	fmt.Println()
	return nil
}
