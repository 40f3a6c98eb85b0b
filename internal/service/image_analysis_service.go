package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pixelpruner/pruneriq/internal/analyzer"
	apperrors "github.com/pixelpruner/pruneriq/internal/errors"
	"github.com/pixelpruner/pruneriq/internal/logger"
	"github.com/pixelpruner/pruneriq/internal/observer"
	"github.com/pixelpruner/pruneriq/internal/repository"
	"github.com/pixelpruner/pruneriq/pkg/models"
	"github.com/pixelpruner/pruneriq/pkg/validation"
)

const timestampFormat = "2006-01-02T15:04:05Z07:00"

// ImageAnalysisService scores single images and folders and manages results
type ImageAnalysisService interface {
	// AnalyzeImage scores one image given as a local path, az:// blob or URL
	AnalyzeImage(ctx context.Context, ref string) (*models.ImageAnalysisResponse, error)

	// ScanFolder scores every candidate in a folder, then filters and sorts.
	// A cancelled scan returns the partial response along with the error.
	ScanFolder(ctx context.Context, req models.ScanRequest, progress analyzer.ProgressFunc) (*models.ScanResponse, error)

	// Filter and Summarize operate on an existing result set
	Filter(results []models.ImageResult, criteria models.FilterCriteria) []models.ImageResult
	Summarize(results []models.ImageResult) models.Summary

	// DeleteImages removes files from a folder; refused in safe mode
	DeleteImages(ctx context.Context, folder string, names []string) (*models.DeleteResponse, error)

	// Thresholds in effect for new analyses
	Thresholds() validation.Thresholds
	SetThresholds(thresholds validation.Thresholds) error

	SafeMode() bool
}

// Options tunes the service
type Options struct {
	Thresholds      validation.Thresholds
	Workers         int
	SafeMode        bool
	AnalysisTimeout time.Duration
}

type imageAnalysisService struct {
	imageRepo repository.ImageRepository
	analyzer  analyzer.ImageAnalyzer
	publisher observer.Subject

	workers         int
	safeMode        bool
	analysisTimeout time.Duration

	mu         sync.RWMutex
	thresholds validation.Thresholds
}

// NewImageAnalysisService creates a new image analysis service. publisher may be nil.
func NewImageAnalysisService(
	imageRepository repository.ImageRepository,
	imageAnalyzer analyzer.ImageAnalyzer,
	publisher observer.Subject,
	opts Options,
) (ImageAnalysisService, error) {
	if err := opts.Thresholds.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid thresholds", err)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &imageAnalysisService{
		imageRepo:       imageRepository,
		analyzer:        imageAnalyzer,
		publisher:       publisher,
		workers:         opts.Workers,
		safeMode:        opts.SafeMode,
		analysisTimeout: opts.AnalysisTimeout,
		thresholds:      opts.Thresholds,
	}, nil
}

// AnalyzeImage fetches and scores a single image
func (s *imageAnalysisService) AnalyzeImage(ctx context.Context, ref string) (*models.ImageAnalysisResponse, error) {
	start := time.Now()
	if s.analysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.analysisTimeout)
		defer cancel()
	}

	img, name, err := s.imageRepo.FetchImage(ctx, ref)
	if err != nil {
		return nil, wrapContextError(err)
	}

	thresholds := s.Thresholds()
	result := s.analyzer.AnalyzeWithOptions(img, name, analyzer.DefaultOptions().WithThresholds(thresholds))
	issues := validation.NewQualityValidatorWithThresholds(thresholds).Validate(validation.ImageQualityMetrics{
		Contrast: result.Contrast,
		Clarity:  result.Clarity,
		Noise:    result.Noise,
	})
	elapsed := time.Since(start)

	if s.publisher != nil {
		s.publisher.NotifyObservers(ctx, observer.AnalysisEvent{
			EventType:      observer.ImageAnalyzed,
			Source:         ref,
			ProcessingTime: elapsed,
			Success:        true,
			Metadata:       map[string]interface{}{"rating": result.Rating},
		})
	}

	return &models.ImageAnalysisResponse{
		Source:            ref,
		Timestamp:         start.Format(timestampFormat),
		ProcessingTimeSec: elapsed.Seconds(),
		Result:            result,
		Issues:            issues,
	}, nil
}

// ScanFolder runs a folder scan and shapes the report for callers
func (s *imageAnalysisService) ScanFolder(ctx context.Context, req models.ScanRequest, progress analyzer.ProgressFunc) (*models.ScanResponse, error) {
	start := time.Now()

	var sortKey models.SortKey
	if req.Sort != "" {
		key, err := models.ParseSortKey(req.Sort)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid sort key", err)
		}
		sortKey = key
	}
	if req.Filter != nil && req.Filter.Rating != "" && !isAllRatings(req.Filter.Rating) {
		rating, err := models.ParseRating(string(req.Filter.Rating))
		if err != nil {
			return nil, apperrors.NewValidationError("invalid rating filter", err)
		}
		criteria := *req.Filter
		criteria.Rating = rating
		req.Filter = &criteria
	}

	source, err := s.imageRepo.Source(req.Folder)
	if err != nil {
		return nil, err
	}

	report, scanErr := s.analyzer.ScanFolder(ctx, source, req.Folder, s.scanOptions(req), progress)
	if report == nil {
		return nil, scanErr
	}

	results := report.Results
	if req.Filter != nil {
		results = s.Filter(results, *req.Filter)
	}
	if sortKey != "" {
		models.SortResults(results, sortKey, req.Desc)
	}
	report.Results = results

	response := &models.ScanResponse{
		ScanReport:        *report,
		Summary:           s.Summarize(results),
		Timestamp:         start.Format(timestampFormat),
		ProcessingTimeSec: time.Since(start).Seconds(),
	}

	logger.WithFields(logrus.Fields{
		"folder":   req.Folder,
		"analyzed": len(report.Results),
		"skipped":  len(report.Skipped),
		"elapsed":  time.Since(start).String(),
	}).Info("Folder scan finished")

	if scanErr != nil {
		return response, wrapContextError(scanErr)
	}
	return response, nil
}

// scanOptions applies per-request settings. A request may lower the worker
// count but never raise it above the configured limit.
func (s *imageAnalysisService) scanOptions(req models.ScanRequest) analyzer.AnalysisOptions {
	options := analyzer.DefaultOptions().
		WithThresholds(s.Thresholds()).
		WithWorkers(s.workers)
	if req.Workers > 0 && req.Workers < s.workers {
		options = options.WithWorkers(req.Workers)
	}
	if req.CropsOnly != nil {
		options = options.WithCropsOnly(*req.CropsOnly)
	}
	return options
}

// Filter applies criteria to results, preserving order
func (s *imageAnalysisService) Filter(results []models.ImageResult, criteria models.FilterCriteria) []models.ImageResult {
	return models.Filter(results, criteria)
}

// Summarize aggregates results
func (s *imageAnalysisService) Summarize(results []models.ImageResult) models.Summary {
	return models.Summarize(results)
}

// DeleteImages removes the named image files. Names must be plain image file
// names inside folder. On failure the files removed so far are still reported.
func (s *imageAnalysisService) DeleteImages(ctx context.Context, folder string, names []string) (*models.DeleteResponse, error) {
	if s.safeMode {
		return nil, apperrors.NewForbiddenError("deletion is disabled in safe mode", nil)
	}
	if len(names) == 0 {
		return nil, apperrors.NewValidationError("no files selected", nil)
	}
	for _, name := range names {
		if !validation.HasSupportedExtension(name) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("refusing to delete non-image file %q", name), nil)
		}
	}

	resp := &models.DeleteResponse{Deleted: make([]string, 0, len(names))}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return resp, wrapContextError(err)
		}
		if err := s.imageRepo.Remove(ctx, folder, name); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"folder":   folder,
				"filename": name,
			}).Error("Failed to delete image")
			return resp, err
		}
		resp.Deleted = append(resp.Deleted, name)
	}

	logger.WithFields(logrus.Fields{
		"folder":  folder,
		"deleted": len(resp.Deleted),
	}).Info("Deleted images")
	return resp, nil
}

// Thresholds returns the thresholds in effect
func (s *imageAnalysisService) Thresholds() validation.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds
}

// SetThresholds swaps the thresholds used by subsequent analyses
func (s *imageAnalysisService) SetThresholds(thresholds validation.Thresholds) error {
	if err := thresholds.Validate(); err != nil {
		return apperrors.NewValidationError("invalid thresholds", err)
	}
	s.mu.Lock()
	s.thresholds = thresholds
	s.mu.Unlock()
	return nil
}

// SafeMode reports whether deletion is disabled
func (s *imageAnalysisService) SafeMode() bool {
	return s.safeMode
}

func isAllRatings(r models.Rating) bool {
	return strings.EqualFold(strings.TrimSpace(string(r)), "all")
}

func wrapContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !apperrors.IsType(err, apperrors.ErrorTypeTimeout) {
		return apperrors.NewTimeoutError("analysis timed out", err)
	}
	return err
}
