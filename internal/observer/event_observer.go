package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AnalysisEvent represents an analysis event
type AnalysisEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	Source         string                 `json:"source"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of analysis event
type EventType string

const (
	// ScanStarted when a folder scan begins
	ScanStarted EventType = "scan_started"
	// ScanCompleted when a folder scan finishes, cancelled or not
	ScanCompleted EventType = "scan_completed"
	// ImageAnalyzed when one image has been scored
	ImageAnalyzed EventType = "image_analyzed"
	// ImageSkipped when one image could not be opened or decoded
	ImageSkipped EventType = "image_skipped"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver logs analysis events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles analysis events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"source":          event.Source,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}

	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}

	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case ScanStarted:
		entry.Info("Folder scan started")
	case ScanCompleted:
		entry.Info("Folder scan completed")
	case ImageAnalyzed:
		entry.Debug("Image analyzed")
	case ImageSkipped:
		entry.Warn("Image skipped")
	default:
		entry.Info("Analysis event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Stats is a snapshot of MetricsObserver counters
type Stats struct {
	Scans             int64         `json:"scans"`
	ImagesAnalyzed    int64         `json:"images_analyzed"`
	ImagesSkipped     int64         `json:"images_skipped"`
	TotalImageTime    time.Duration `json:"total_image_time_ns"`
	AvgImageTime      time.Duration `json:"avg_image_time_ns"`
	LastScanCompleted time.Time     `json:"last_scan_completed,omitempty"`
}

// MetricsObserver collects counters from analysis events
type MetricsObserver struct {
	mu                sync.RWMutex
	scans             int64
	imagesAnalyzed    int64
	imagesSkipped     int64
	totalImageTime    time.Duration
	lastScanCompleted time.Time
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles analysis events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case ScanStarted:
		o.scans++
	case ScanCompleted:
		o.lastScanCompleted = event.Timestamp
	case ImageAnalyzed:
		o.imagesAnalyzed++
		o.totalImageTime += event.ProcessingTime
	case ImageSkipped:
		o.imagesSkipped++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetStats returns current counters
func (o *MetricsObserver) GetStats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := Stats{
		Scans:             o.scans,
		ImagesAnalyzed:    o.imagesAnalyzed,
		ImagesSkipped:     o.imagesSkipped,
		TotalImageTime:    o.totalImageTime,
		LastScanCompleted: o.lastScanCompleted,
	}
	if o.imagesAnalyzed > 0 {
		s.AvgImageTime = o.totalImageTime / time.Duration(o.imagesAnalyzed)
	}
	return s
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer in subscription order.
// Delivery is synchronous so counters are current when a scan returns; a
// panicking observer is logged and does not stop the others.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, obs := range observers {
		notify(ctx, obs, event)
	}
}

func notify(ctx context.Context, obs Observer, event AnalysisEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
