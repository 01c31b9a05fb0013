package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AnyUserName/upres/internal/pipeline"
	"github.com/AnyUserName/upres/internal/preset"
	"github.com/AnyUserName/upres/internal/report"
)

var (
	procOut        string
	procPreset     string
	procMode       string
	procNoiseLevel int
	procScaleRatio float64
	procModelDir   string
	procEngine     string
	procCropSize   int
	procBatchSize  int
)

var processCmd = &cobra.Command{
	Use:   "process <input_file_or_dir>",
	Short: "Upscale and/or denoise an image (or every image in a directory)",
	Long: `Processes a single image, or scans a directory and processes every
image in it with one shared pipeline instance.  Directory runs write
an upres.report.json next to the outputs.

Modes:
  noise        apply the denoise network only
  scale        apply the 2x scale network until the ratio is reached
  noise_scale  denoise, then scale
  auto_scale   denoise only lossy (JPEG) sources, then scale`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	f := processCmd.Flags()
	f.StringVarP(&procOut, "out", "o", "", "output file (single input) or directory (default: alongside input)")
	f.StringVarP(&procPreset, "preset", "p", "default", fmt.Sprintf("tile/batch preset (%s)", strings.Join(preset.Names(), ", ")))
	f.StringVarP(&procMode, "mode", "m", "noise_scale", "processing mode")
	f.IntVarP(&procNoiseLevel, "noise-level", "n", 1, "denoise strength 0-3")
	f.Float64VarP(&procScaleRatio, "scale-ratio", "s", 2.0, "target scale ratio (> 0)")
	f.StringVar(&procModelDir, "model-dir", "models", "directory holding the trained weights")
	f.StringVar(&procEngine, "engine", "", "inference backend (auto, serial, parallel)")
	f.IntVar(&procCropSize, "crop-size", 0, "valid output square per tile (0 = preset)")
	f.IntVar(&procBatchSize, "batch-size", 0, "tiles per inference call (0 = preset)")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	input := args[0]
	runID := uuid.NewString()
	log := slog.Default().With("run_id", runID)

	mode, err := pipeline.ParseMode(procMode)
	if err != nil {
		return err
	}

	// Preset first, explicit flags override.
	pre := preset.Get(procPreset)
	cfg := pipeline.Config{
		Mode:       mode,
		NoiseLevel: procNoiseLevel,
		ScaleRatio: procScaleRatio,
		ModelDir:   procModelDir,
		Engine:     pre.Engine,
		CropSize:   pre.CropSize,
		BatchSize:  pre.BatchSize,
	}
	if procEngine != "" {
		cfg.Engine = procEngine
	}
	if procCropSize > 0 {
		cfg.CropSize = procCropSize
	}
	if procBatchSize > 0 {
		cfg.BatchSize = procBatchSize
	}

	log.Debug("configuration",
		"mode", cfg.Mode, "scale_ratio", cfg.ScaleRatio, "noise_level", cfg.NoiseLevel,
		"engine", cfg.Engine, "crop_size", cfg.CropSize, "batch_size", cfg.BatchSize)

	start := time.Now()
	p, err := pipeline.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize pipeline: %w", err)
	}
	log.Debug("pipeline ready", "elapsed", time.Since(start).Round(time.Millisecond).String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("stat %s: %w", input, err)
	}
	if info.IsDir() {
		return processDir(ctx, log, p, runID, input)
	}
	return processFile(ctx, log, p, input)
}

func processFile(ctx context.Context, log *slog.Logger, p *pipeline.Pipeline, input string) error {
	out := procOut
	if out == "" {
		ext := filepath.Ext(input)
		out = strings.TrimSuffix(input, ext) + "_up.png"
	}

	start := time.Now()
	res, err := p.ProcessFile(ctx, input, out)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	inSize := fileSize(input)
	outSize := fileSize(out)
	log.Info("processed", "input", input, "output", out,
		"size", fmt.Sprintf("%dx%d", res.OutWidth, res.OutHeight),
		"elapsed", elapsed.Round(time.Millisecond).String())

	fmt.Printf("  %s (%dx%d) → %s (%dx%d)\n",
		input, res.InWidth, res.InHeight, out, res.OutWidth, res.OutHeight)
	fmt.Printf("  %s → %s in %s\n", formatBytes(inSize), formatBytes(outSize), elapsed.Round(time.Millisecond))
	return nil
}

func processDir(ctx context.Context, log *slog.Logger, p *pipeline.Pipeline, runID, inputDir string) error {
	outDir := procOut
	if outDir == "" {
		outDir = inputDir + "_up"
	}

	sources, err := pipeline.ScanImages(inputDir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", inputDir, err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no images found in %s", inputDir)
	}
	log.Info("batch start", "dir", inputDir, "images", len(sources))

	cfg := p.Config()
	rep := report.New(runID, string(cfg.Mode), cfg.Engine, cfg.ScaleRatio, cfg.NoiseLevel)

	// One pipeline instance, strictly sequential: the scratch buffers
	// and network handles are shared across files.
	failed := 0
	start := time.Now()
	for _, src := range sources {
		relOut := strings.TrimSuffix(src.RelPath, filepath.Ext(src.RelPath)) + ".png"
		outPath := filepath.Join(outDir, filepath.FromSlash(relOut))
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}

		fileStart := time.Now()
		entry := report.Entry{Input: src.RelPath, InBytes: src.Size}
		res, err := p.ProcessFile(ctx, src.AbsPath, outPath)
		entry.ElapsedMS = time.Since(fileStart).Milliseconds()
		entry.InWidth, entry.InHeight = res.InWidth, res.InHeight

		if err != nil {
			if ctx.Err() != nil {
				log.Warn("batch cancelled", "after", src.RelPath)
				return err
			}
			failed++
			entry.Error = err.Error()
			log.Error("failed", "input", src.RelPath, "error", err)
		} else {
			entry.Output = relOut
			entry.OutWidth, entry.OutHeight = res.OutWidth, res.OutHeight
			entry.OutBytes = fileSize(outPath)
			log.Debug("processed", "input", src.RelPath, "elapsed_ms", entry.ElapsedMS)
		}
		rep.Entries[src.RelPath] = entry
	}
	elapsed := time.Since(start)

	reportPath := filepath.Join(outDir, "upres.report.json")
	if err := report.WriteJSON(rep, reportPath); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Images:      %d (%d failed)\n", len(sources), failed)
	fmt.Printf("  Input size:  %s\n", formatBytes(rep.Stats.TotalInputBytes))
	fmt.Printf("  Output size: %s\n", formatBytes(rep.Stats.TotalOutputBytes))
	fmt.Printf("  Time:        %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Report:      %s\n", reportPath)
	fmt.Println()

	if failed == len(sources) {
		return fmt.Errorf("all %d images failed to process", failed)
	}
	return nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
