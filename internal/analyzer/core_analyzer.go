package analyzer

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	apperrors "github.com/pixelpruner/pruneriq/internal/errors"
	"github.com/pixelpruner/pruneriq/internal/logger"
	"github.com/pixelpruner/pruneriq/internal/observer"
	"github.com/pixelpruner/pruneriq/internal/storage"
	"github.com/pixelpruner/pruneriq/pkg/models"
	"github.com/pixelpruner/pruneriq/pkg/validation"
	"github.com/sirupsen/logrus"
)

// coreAnalyzer implements ImageAnalyzer interface and orchestrates all components
type coreAnalyzer struct {
	metricsCalculator MetricsCalculator
	publisher         observer.Subject
}

// scanOutcome is the per-candidate slot filled by sequential or pooled scans
type scanOutcome struct {
	done   bool
	result ImageResult
	err    error
}

// NewImageAnalyzer creates a new image analyzer. publisher may be nil.
func NewImageAnalyzer(publisher observer.Subject) (ImageAnalyzer, error) {
	return &coreAnalyzer{
		metricsCalculator: NewMetricsCalculator(),
		publisher:         publisher,
	}, nil
}

// Analyze scores an image against the default thresholds
func (ca *coreAnalyzer) Analyze(img image.Image, filename string) ImageResult {
	return ca.AnalyzeWithOptions(img, filename, DefaultOptions())
}

// AnalyzeWithOptions computes the raw metrics, normalises them and rates the image
func (ca *coreAnalyzer) AnalyzeWithOptions(img image.Image, filename string, options AnalysisOptions) ImageResult {
	m := ca.metricsCalculator.CalculateMetrics(img)
	metrics := validation.ImageQualityMetrics{
		Contrast: m.Contrast,
		Clarity:  m.Clarity,
		Noise:    m.Noise,
	}

	qv := validation.NewQualityValidatorWithThresholds(options.Thresholds)
	scores := qv.Score(metrics)
	rating, reason := qv.Rate(metrics)

	return ImageResult{
		Filename:    filename,
		Contrast:    m.Contrast,
		ContrastPct: scores.ContrastPct,
		Clarity:     m.Clarity,
		ClarityPct:  scores.ClarityPct,
		Noise:       m.Noise,
		NoisePct:    scores.NoisePct,
		Rating:      rating,
		Reason:      reason,
	}
}

// ScanFolder lists dir, keeps the candidates and scores each one in listing
// order. Files that fail to open or decode are logged and recorded as skipped.
// progress is called once per analysed candidate with a running count. If ctx
// is cancelled the partial report is returned together with ctx.Err().
func (ca *coreAnalyzer) ScanFolder(ctx context.Context, source storage.ImageSource, dir string, options AnalysisOptions, progress ProgressFunc) (*models.ScanReport, error) {
	start := time.Now()

	names, err := source.List(ctx, dir)
	if err != nil {
		return nil, err
	}

	candidates := make([]string, 0, len(names))
	for _, name := range names {
		if validation.IsCandidate(name, options.CropsOnly) {
			candidates = append(candidates, name)
		}
	}

	ca.publish(ctx, observer.AnalysisEvent{
		EventType: observer.ScanStarted,
		Source:    dir,
		Success:   true,
		Metadata: map[string]interface{}{
			"listed":     len(names),
			"candidates": len(candidates),
			"crops_only": options.CropsOnly,
			"workers":    options.Workers,
		},
	})

	if progress == nil {
		progress = func(int, int) {}
	}

	var outcomes []scanOutcome
	if options.Workers > 1 && len(candidates) > 1 {
		outcomes = ca.scanPooled(ctx, source, dir, candidates, options, progress)
	} else {
		outcomes = ca.scanSequential(ctx, source, dir, candidates, options, progress)
	}

	report := &models.ScanReport{
		Folder:  dir,
		Results: make([]ImageResult, 0, len(candidates)),
	}
	for i, outcome := range outcomes {
		if !outcome.done {
			continue
		}
		if outcome.err != nil {
			report.Skipped = append(report.Skipped, models.SkippedFile{
				Filename: candidates[i],
				Error:    outcome.err.Error(),
			})
			continue
		}
		report.Results = append(report.Results, outcome.result)
	}

	scanErr := ctx.Err()
	completed := observer.AnalysisEvent{
		EventType:      observer.ScanCompleted,
		Source:         dir,
		ProcessingTime: time.Since(start),
		Success:        scanErr == nil,
		Metadata: map[string]interface{}{
			"analyzed": len(report.Results),
			"skipped":  len(report.Skipped),
		},
	}
	if scanErr != nil {
		completed.ErrorMessage = scanErr.Error()
	}
	ca.publish(ctx, completed)

	return report, scanErr
}

func (ca *coreAnalyzer) scanSequential(ctx context.Context, source storage.ImageSource, dir string, candidates []string, options AnalysisOptions, progress ProgressFunc) []scanOutcome {
	outcomes := make([]scanOutcome, len(candidates))
	processed := 0
	for i, name := range candidates {
		if ctx.Err() != nil {
			break
		}
		outcomes[i] = ca.analyzeFile(ctx, source, dir, name, options)
		if outcomes[i].done {
			processed++
			progress(processed, len(candidates))
		}
	}
	return outcomes
}

// scanPooled fans candidates out to a WorkerPool. Progress is reported from
// this goroutine only, so the callback sees a strictly increasing count.
func (ca *coreAnalyzer) scanPooled(ctx context.Context, source storage.ImageSource, dir string, candidates []string, options AnalysisOptions, progress ProgressFunc) []scanOutcome {
	total := len(candidates)
	outcomes := make([]scanOutcome, total)
	finished := make(chan int, total)

	pool := NewWorkerPool(poolSize(options.Workers, total))
	pool.Start()
	defer pool.Close()

	go func() {
		for i := range candidates {
			i := i
			submitted := pool.Submit(func() {
				defer func() { finished <- i }()
				if ctx.Err() != nil {
					return
				}
				outcomes[i] = ca.analyzeFile(ctx, source, dir, candidates[i], options)
			})
			if !submitted {
				finished <- i
			}
		}
	}()

	processed := 0
	for received := 0; received < total; received++ {
		i := <-finished
		if outcomes[i].done {
			processed++
			progress(processed, total)
		}
	}

	pool.Wait()
	stats := pool.GetStats()
	logger.WithFields(logrus.Fields{
		"folder":    dir,
		"jobs":      stats.TotalJobs,
		"completed": stats.CompletedJobs,
	}).Debug("Worker pool drained")
	return outcomes
}

// poolSize never starts more workers than there are files to analyse
func poolSize(workers, candidates int) int {
	if workers > candidates {
		return candidates
	}
	return workers
}

func (ca *coreAnalyzer) analyzeFile(ctx context.Context, source storage.ImageSource, dir, name string, options AnalysisOptions) (outcome scanOutcome) {
	start := time.Now()

	// A malformed file must not take the whole scan down with it.
	defer func() {
		if r := recover(); r != nil {
			err := apperrors.NewInternalError(fmt.Sprintf("analysis panicked: %v", r), nil)
			outcome = ca.skip(ctx, dir, name, start, err)
		}
	}()

	img, err := source.Open(ctx, dir, name)
	if err != nil {
		if ctx.Err() != nil {
			// Interrupted, not unreadable.
			return scanOutcome{}
		}
		return ca.skip(ctx, dir, name, start, err)
	}

	result := ca.AnalyzeWithOptions(img, filepath.Base(name), options)

	ca.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.ImageAnalyzed,
		Source:         name,
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata: map[string]interface{}{
			"rating": result.Rating,
		},
	})
	return scanOutcome{done: true, result: result}
}

func (ca *coreAnalyzer) skip(ctx context.Context, dir, name string, start time.Time, err error) scanOutcome {
	logger.WithFields(logrus.Fields{
		"folder":   dir,
		"filename": name,
	}).WithError(err).Warn("Skipping unreadable image")

	ca.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.ImageSkipped,
		Source:         name,
		ProcessingTime: time.Since(start),
		ErrorMessage:   err.Error(),
	})
	return scanOutcome{done: true, err: err}
}

func (ca *coreAnalyzer) publish(ctx context.Context, event observer.AnalysisEvent) {
	if ca.publisher == nil {
		return
	}
	ca.publisher.NotifyObservers(ctx, event)
}

// Close releases analyzer resources
func (ca *coreAnalyzer) Close() error {
	return nil
}
