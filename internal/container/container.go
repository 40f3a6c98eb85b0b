package container

import (
	"fmt"
	"net/http"

	"github.com/pixelpruner/pruneriq/internal/analyzer"
	"github.com/pixelpruner/pruneriq/internal/config"
	"github.com/pixelpruner/pruneriq/internal/logger"
	"github.com/pixelpruner/pruneriq/internal/observer"
	"github.com/pixelpruner/pruneriq/internal/repository"
	"github.com/pixelpruner/pruneriq/internal/service"
	"github.com/pixelpruner/pruneriq/internal/storage"
	"github.com/pixelpruner/pruneriq/internal/transport"
	"github.com/pixelpruner/pruneriq/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config               *config.Config
	publisher            *observer.EventPublisher
	metrics              *observer.MetricsObserver
	imageAnalyzer        analyzer.ImageAnalyzer
	imageRepository      repository.ImageRepository
	imageAnalysisService service.ImageAnalysisService
	handler              http.Handler
}

// NewContainer wires storage, analyzer, service and the HTTP handler
func NewContainer(cfg *config.Config) (*Container, error) {
	publisher := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	var blobs storage.ImageSource
	if cfg.AzureEnabled() {
		azure, err := storage.NewAzureStorage(cfg.AzureAccount, cfg.AzureKey)
		if err != nil {
			return nil, fmt.Errorf("failed to configure blob storage: %w", err)
		}
		blobs = azure
	}

	imageRepository := repository.NewImageRepository(
		storage.NewLocalStorage(),
		blobs,
		storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout),
		validation.NewSourceValidatorWithHosts(cfg.AllowedImageHosts),
	)

	imageAnalyzer, err := analyzer.NewImageAnalyzer(publisher)
	if err != nil {
		return nil, err
	}

	imageAnalysisService, err := service.NewImageAnalysisService(imageRepository, imageAnalyzer, publisher, service.Options{
		Thresholds:      cfg.Thresholds,
		Workers:         cfg.ScanWorkers,
		SafeMode:        cfg.SafeMode,
		AnalysisTimeout: cfg.AnalysisTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &Container{
		config:               cfg,
		publisher:            publisher,
		metrics:              metrics,
		imageAnalyzer:        imageAnalyzer,
		imageRepository:      imageRepository,
		imageAnalysisService: imageAnalysisService,
		handler:              transport.NewHandler(imageAnalysisService, metrics, cfg),
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the analysis service
func (c *Container) Service() service.ImageAnalysisService {
	return c.imageAnalysisService
}

// Close releases analyzer resources
func (c *Container) Close() error {
	return c.imageAnalyzer.Close()
}
