// Command pruneriq scores dataset crops in a folder and prints a quality table.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/pixelpruner/pruneriq/internal/analyzer"
	"github.com/pixelpruner/pruneriq/internal/config"
	"github.com/pixelpruner/pruneriq/internal/logger"
	"github.com/pixelpruner/pruneriq/internal/repository"
	"github.com/pixelpruner/pruneriq/internal/service"
	"github.com/pixelpruner/pruneriq/internal/storage"
	"github.com/pixelpruner/pruneriq/pkg/models"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	dir            string
	cropsOnly      bool
	workers        int
	jsonOut        bool
	sortKey        string
	desc           bool
	rating         string
	bounds         map[string]*string
	thresholds     [3]float64
	thresholdsFile string
	deleteFiltered bool
	safeMode       bool
	logLevel       string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("pruneriq", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{bounds: make(map[string]*string)}
	fs.StringVar(&o.dir, "dir", "", "Folder to scan: a local path or az://container/prefix")
	fs.BoolVar(&o.cropsOnly, "crops-only", true, "Only analyse files named cropped_*")
	fs.IntVar(&o.workers, "workers", 0, "Images analysed concurrently (0 = SCAN_WORKERS)")
	fs.BoolVar(&o.jsonOut, "json", false, "Print the report as JSON")
	fs.StringVar(&o.sortKey, "sort", "", "Sort by filename, contrast, clarity, noise or rating")
	fs.BoolVar(&o.desc, "desc", false, "Sort descending")
	fs.StringVar(&o.rating, "rating", "All", "Keep only this rating (Excellent, Good, Fair, Poor, All)")
	for _, metric := range []string{"contrast", "clarity", "noise"} {
		o.bounds["min-"+metric] = fs.String("min-"+metric, "", "Minimum raw "+metric)
		o.bounds["max-"+metric] = fs.String("max-"+metric, "", "Maximum raw "+metric)
	}
	fs.Float64Var(&o.thresholds[0], "contrast-threshold", 0, "Contrast threshold (0 = config)")
	fs.Float64Var(&o.thresholds[1], "clarity-threshold", 0, "Clarity threshold (0 = config)")
	fs.Float64Var(&o.thresholds[2], "noise-threshold", 0, "Noise threshold (0 = config)")
	fs.StringVar(&o.thresholdsFile, "thresholds-file", "", "YAML thresholds file (overrides THRESHOLDS_FILE)")
	fs.BoolVar(&o.deleteFiltered, "delete-filtered", false, "Delete every image left after filtering")
	fs.BoolVar(&o.safeMode, "safe-mode", true, "Refuse to delete anything")
	fs.StringVar(&o.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.dir == "" && fs.NArg() > 0 {
		o.dir = fs.Arg(0)
	}
	if o.dir == "" {
		fmt.Fprintf(stderr, "Usage: pruneriq [options] -dir <folder>\n")
		fs.PrintDefaults()
		return nil, flag.ErrHelp
	}
	return o, nil
}

// filterCriteria builds the result filter. Bounds that do not parse are
// reported and ignored.
func (o *options) filterCriteria(stderr io.Writer) (models.FilterCriteria, error) {
	var criteria models.FilterCriteria
	targets := map[string]*models.Bounds{
		"contrast": &criteria.Contrast,
		"clarity":  &criteria.Clarity,
		"noise":    &criteria.Noise,
	}
	for name, raw := range o.bounds {
		s := strings.TrimSpace(*raw)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			fmt.Fprintf(stderr, "WARNING: ignoring -%s=%q: not a number\n", name, s)
			continue
		}
		kind, metric, _ := strings.Cut(name, "-")
		if kind == "min" {
			targets[metric].Min = &v
		} else {
			targets[metric].Max = &v
		}
	}

	if r := strings.TrimSpace(o.rating); r != "" && !strings.EqualFold(r, "all") {
		rating, err := models.ParseRating(r)
		if err != nil {
			return criteria, err
		}
		criteria.Rating = rating
	}
	return criteria, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	logger.UseConsole(stderr)
	logger.SetLevel(o.logLevel)

	cfg, err := config.LoadScannerFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	if o.thresholdsFile != "" {
		if cfg.Thresholds, err = config.LoadThresholds(o.thresholdsFile, cfg.BaseThresholds); err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			return 1
		}
	}
	for i, v := range o.thresholds {
		if v == 0 {
			continue
		}
		switch i {
		case 0:
			cfg.Thresholds.Contrast = v
		case 1:
			cfg.Thresholds.Clarity = v
		case 2:
			cfg.Thresholds.Noise = v
		}
	}
	if o.workers > 0 {
		cfg.ScanWorkers = o.workers
	}
	if err := cfg.ValidateScanner(); err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 2
	}

	criteria, err := o.filterCriteria(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 2
	}

	svc, err := newService(cfg, o.safeMode)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	cropsOnly := o.cropsOnly
	req := models.ScanRequest{
		Folder:    o.dir,
		CropsOnly: &cropsOnly,
		Filter:    &criteria,
		Sort:      o.sortKey,
		Desc:      o.desc,
	}

	resp, err := svc.ScanFolder(ctx, req, progressPrinter(stderr))
	if err != nil && resp == nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "WARNING: scan interrupted, showing partial results: %v\n", err)
	}

	for _, skipped := range resp.Skipped {
		fmt.Fprintf(stderr, "WARNING: skipped %s: %s\n", skipped.Filename, skipped.Error)
	}

	if o.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(resp); encErr != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", encErr)
			return 1
		}
	} else {
		writeTable(stdout, resp.Results)
		writeSummary(stdout, resp.Summary, cfg.Thresholds)
	}

	if o.deleteFiltered {
		if code := deleteResults(ctx, svc, o.dir, resp.Results, stdout, stderr); code != 0 {
			return code
		}
	}

	if err != nil {
		return 1
	}
	return 0
}

func newService(cfg *config.Config, safeMode bool) (service.ImageAnalysisService, error) {
	var blobs storage.ImageSource
	if cfg.AzureEnabled() {
		azure, err := storage.NewAzureStorage(cfg.AzureAccount, cfg.AzureKey)
		if err != nil {
			return nil, err
		}
		blobs = azure
	}

	repo := repository.NewImageRepository(storage.NewLocalStorage(), blobs, nil, nil)
	a, err := analyzer.NewImageAnalyzer(nil)
	if err != nil {
		return nil, err
	}
	return service.NewImageAnalysisService(repo, a, nil, service.Options{
		Thresholds: cfg.Thresholds,
		Workers:    cfg.ScanWorkers,
		SafeMode:   safeMode,
	})
}

func progressPrinter(w io.Writer) analyzer.ProgressFunc {
	return func(i, n int) {
		fmt.Fprintf(w, "\rAnalysing %d/%d", i, n)
		if i == n {
			fmt.Fprintln(w)
		}
	}
}

func deleteResults(ctx context.Context, svc service.ImageAnalysisService, dir string, results []models.ImageResult, stdout, stderr io.Writer) int {
	if len(results) == 0 {
		fmt.Fprintln(stdout, "Nothing to delete.")
		return 0
	}
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Filename
	}

	resp, err := svc.DeleteImages(ctx, dir, names)
	if resp != nil {
		for _, name := range resp.Deleted {
			fmt.Fprintf(stdout, "deleted %s\n", name)
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	return 0
}
