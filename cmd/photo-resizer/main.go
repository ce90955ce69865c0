package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photo-resizer-go/internal/batch"
	"photo-resizer-go/internal/config"
	"photo-resizer-go/internal/logger"
	"photo-resizer-go/internal/metadata"
	"photo-resizer-go/internal/resizer"
	"photo-resizer-go/internal/statistics"
	"photo-resizer-go/internal/web"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	sourceDir string
	outputDir string
	prefix    string
	maxWidth  int
	maxSizeKB int
	verbose   bool
	quiet     bool
	showAll   bool
	port      int
)

// newInspector opens the metadata reader used by the inspect command.
var newInspector = func() (metadata.Inspector, error) {
	return metadata.NewExiftoolInspector()
}

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "photo-resizer",
	Short: "Shrink a folder of photos to a width and file-size budget",
	Long: `PhotoResizer scans a directory of JPEG and HEIC photos and writes a
JPEG copy of every photo that is too wide or too large.

Each output is scaled to the maximum width and re-encoded at decreasing
JPEG quality (85, 80, ... 10) until it fits the size budget. Outputs are
named {prefix}-{n}.jpg in the order the sources are processed; photos
already within both limits are left alone.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResize(cmd.OutOrStdout(), args)
	},
}

// scanCmd shows the plan for a directory without writing anything.
var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "Show which photos would be resized without writing files",
	Long: `Probe every photo in the directory and print whether it would be
resized or skipped, together with the output name it would receive.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd.OutOrStdout(), args)
	},
}

// inspectCmd prints probe data and metadata for one file.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show dimensions and metadata of a single photo",
	Long: `Print the dimensions used by the skip check and the metadata reported
by exiftool. exiftool is optional; without it only probe data is shown.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd.OutOrStdout(), args[0])
	},
}

// serveCmd starts the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts a web server exposing the resizer over HTTP:
- POST /api/resize starts a batch
- GET /api/status and /api/statistics report progress
- GET /api/directories browses folders
- GET /ws streams per-file progress events`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.PersistentFlags().StringVar(&sourceDir, "source", "", "source directory containing photos")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output", "", "directory for resized photos")
	rootCmd.PersistentFlags().StringVar(&prefix, "prefix", "", "output name prefix")
	rootCmd.PersistentFlags().IntVar(&maxWidth, "max-width", 0, "maximum output width in pixels")
	rootCmd.PersistentFlags().IntVar(&maxSizeKB, "max-size-kb", 0, "maximum output size in KB")

	inspectCmd.Flags().BoolVar(&showAll, "all", false, "print every metadata tag")
	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run web server on")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
}

// runResize executes one batch and prints its statistics.
func runResize(out io.Writer, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	stats := statistics.NewStatistics()
	driver := batch.NewDriver(newResizer(cfg, log), log, stats)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := driver.ProcessBatch(ctx, batchRequest(cfg))
	if result == nil {
		return fmt.Errorf("resize failed: %w", err)
	}

	if !quiet {
		fmt.Fprintln(out, "\n"+stats.GetSummary())
		fmt.Fprintln(out, stats.GetFileTypeBreakdown())
		if stats.GetFilesWithErrors() > 0 {
			fmt.Fprintln(out, "\n"+stats.GetErrorSummary())
		}
	}

	if err != nil {
		return fmt.Errorf("resize interrupted: %w", err)
	}
	return nil
}

// runScan prints the skip decision and output name for each photo.
func runScan(out io.Writer, args []string) error {
	if len(args) > 0 {
		sourceDir = args[0]
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	driver := batch.NewDriver(newResizer(cfg, log), log, nil)

	req := batchRequest(cfg)
	plan, err := driver.Plan(req)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Fprintln(out, "==================================================")
	fmt.Fprintf(out, "SCAN RESULTS: %s\n", cfg.SourceDirectory)
	fmt.Fprintln(out, "==================================================")

	var resize, skip, failed int
	for _, p := range plan {
		switch {
		case p.Err != nil:
			failed++
			fmt.Fprintf(out, "ERROR   %s: %v\n", p.Path, p.Err)
		case p.Sequence == 0:
			skip++
			fmt.Fprintf(out, "SKIP    %s (%dx%d, %s)\n", p.Path, p.Source.Width, p.Source.Height, humanize.IBytes(uint64(p.Source.Size)))
		default:
			resize++
			spec := resizer.ResizeSpec{Prefix: req.Prefix, Sequence: p.Sequence, OutputDir: req.OutputDir}
			fmt.Fprintf(out, "RESIZE  %s -> %s (%s)\n", p.Path, spec.OutputPath(), p.Reason)
		}
	}

	fmt.Fprintf(out, "\nFiles: %d  Resize: %d  Skip: %d  Errors: %d\n", len(plan), resize, skip, failed)
	return nil
}

// runInspect prints probe data and exiftool metadata for a file.
func runInspect(out io.Writer, filePath string) error {
	if !fileExists(filePath) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	autoOrient := false
	if cfg, err := config.LoadConfig(cfgFile); err == nil {
		autoOrient = cfg.Resize.AutoOrient
	}
	r := resizer.NewDefaultResizer(resizer.DefaultQualitySearch(), logger.Discard()).WithAutoOrient(autoOrient)

	fmt.Fprintf(out, "Inspecting: %s\n", filePath)

	src, err := r.Probe(filePath)
	if err != nil {
		fmt.Fprintf(out, "Probe failed: %v\n", err)
	} else {
		fmt.Fprintf(out, "Dimensions: %dx%d\n", src.Width, src.Height)
		fmt.Fprintf(out, "Size:       %s\n", humanize.IBytes(uint64(src.Size)))
	}

	inspector, err := newInspector()
	if err != nil {
		fmt.Fprintf(out, "Metadata unavailable: %v\n", err)
		return nil
	}
	defer inspector.Close()

	md, err := inspector.Inspect(filePath)
	if err != nil {
		fmt.Fprintf(out, "Metadata unavailable: %v\n", err)
		return nil
	}

	fields := md.Select(metadata.DisplayKeys)
	if showAll {
		fields = md.All()
	}
	for _, f := range fields {
		fmt.Fprintf(out, "%-18s %s\n", f.Key+":", f.Value)
	}
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe(out io.Writer) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CONFIG LOAD ERROR: %v\n", err)
		cfg = config.DefaultConfig()
	}
	applyOverrides(cfg)
	if err := cfg.ValidateResize(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := setupLogger(cfg)
	server := web.NewServer(cfg, log, newResizer(cfg, log))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Fprintf(out, "PhotoResizer API listening on http://localhost:%d\n", port)
	fmt.Fprintf(out, "Press Ctrl+C to stop the server\n\n")

	<-sigChan
	fmt.Fprintln(out, "\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Fprintln(out, "Server stopped gracefully")
	return nil
}

// loadConfig loads configuration, applies CLI overrides and validates.
func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	applyOverrides(cfg)

	if cfg.SourceDirectory == "" && len(args) > 0 {
		cfg.SourceDirectory = args[0]
	}
	if cfg.SourceDirectory == "" {
		cfg.SourceDirectory = "."
	}

	if !dirExists(cfg.SourceDirectory) {
		return nil, fmt.Errorf("source directory does not exist: %s", cfg.SourceDirectory)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies explicitly set flags onto cfg.
func applyOverrides(cfg *config.Config) {
	if sourceDir != "" {
		cfg.SourceDirectory = sourceDir
	}
	if outputDir != "" {
		cfg.OutputDirectory = outputDir
	}
	if prefix != "" {
		cfg.Resize.Prefix = prefix
	}
	if maxWidth != 0 {
		cfg.Resize.MaxWidth = maxWidth
	}
	if maxSizeKB != 0 {
		cfg.Resize.MaxSizeKB = maxSizeKB
	}
}

func batchRequest(cfg *config.Config) batch.Request {
	return batch.Request{
		SourceDir:  cfg.SourceDirectory,
		OutputDir:  cfg.OutputDirectory,
		Prefix:     cfg.Resize.Prefix,
		MaxWidth:   cfg.Resize.MaxWidth,
		MaxSizeKB:  cfg.Resize.MaxSizeKB,
		Extensions: cfg.Resize.SupportedExtensions,
	}
}

func newResizer(cfg *config.Config, log *logrus.Logger) *resizer.DefaultResizer {
	search := resizer.QualitySearch{
		Start: cfg.Quality.Start,
		Floor: cfg.Quality.Floor,
		Step:  cfg.Quality.Step,
	}
	return resizer.NewDefaultResizer(search, log).WithAutoOrient(cfg.Resize.AutoOrient)
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	logCfg := logger.Config{
		Level:    cfg.Logging.Level,
		FilePath: cfg.Logging.FilePath,
		Rotation: logger.Rotation{
			MaxSizeMB:  cfg.Logging.MaxSize,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAge,
			Compress:   cfg.Logging.Compress,
		},
	}
	if !quiet {
		logCfg.Console = os.Stderr
	}

	if verbose {
		logCfg.Level = "debug"
	}
	if quiet {
		logCfg.Level = "error"
	}

	log, err := logger.New(logCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists returns true if the given path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
