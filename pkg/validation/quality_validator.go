package validation

import (
	"fmt"
	"math"
	"strings"

	"github.com/pixelpruner/pruneriq/pkg/models"
)

// Default thresholds for a "good" dataset crop.
const (
	// Typical high-quality crops have an intensity standard deviation of 60-80.
	DefaultContrastThreshold = 70.0
	// Laplacian variance of sharp images easily exceeds 200.
	DefaultClarityThreshold = 200.0
	// Wrapped 8-bit blur residual variance; clean images stay under ~15000.
	DefaultNoiseThreshold = 15000.0
)

// Direction tells ScaleScore which side of the threshold is desirable
type Direction int

const (
	HigherIsBetter Direction = iota
	LowerIsBetter
)

// Thresholds holds the pass/fail boundary for each metric
type Thresholds struct {
	Contrast float64 `json:"contrast" yaml:"contrast"`
	Clarity  float64 `json:"clarity" yaml:"clarity"`
	Noise    float64 `json:"noise" yaml:"noise"`
}

// DefaultThresholds returns the default quality thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		Contrast: DefaultContrastThreshold,
		Clarity:  DefaultClarityThreshold,
		Noise:    DefaultNoiseThreshold,
	}
}

// Validate rejects thresholds that cannot act as a ratio denominator
func (t Thresholds) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"contrast", t.Contrast},
		{"clarity", t.Clarity},
		{"noise", t.Noise},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) || c.value <= 0 {
			return fmt.Errorf("%s threshold must be a positive number (got %v)", c.name, c.value)
		}
	}
	return nil
}

// ScaleScore maps a raw metric onto 0-100 relative to its threshold.
// The score saturates at 100 once a higher-is-better value reaches the
// threshold, and at 0 once a lower-is-better value reaches it.
func ScaleScore(value, threshold float64, direction Direction) float64 {
	ratio := value / threshold
	if math.IsNaN(ratio) {
		ratio = 0
	}
	ratio = math.Max(0, math.Min(ratio, 1))
	if direction == LowerIsBetter {
		return (1 - ratio) * 100
	}
	return ratio * 100
}

// QualityIssue represents a single failed threshold
type QualityIssue = models.QualityIssue

// ImageQualityMetrics are the raw values the validator rates
type ImageQualityMetrics struct {
	Contrast float64
	Clarity  float64
	Noise    float64
}

// Scores holds the normalised 0-100 view of ImageQualityMetrics
type Scores struct {
	ContrastPct float64
	ClarityPct  float64
	NoisePct    float64
}

const reasonAllPass = "meets all thresholds"

var ratingByPoints = [...]models.Rating{
	0: models.RatingPoor,
	1: models.RatingFair,
	2: models.RatingGood,
	3: models.RatingExcellent,
}

// QualityValidator handles rating and scoring against a threshold set
type QualityValidator struct {
	thresholds Thresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds Thresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// Thresholds returns the thresholds the validator was built with
func (qv *QualityValidator) Thresholds() Thresholds {
	return qv.thresholds
}

// Score normalises all three metrics
func (qv *QualityValidator) Score(metrics ImageQualityMetrics) Scores {
	return Scores{
		ContrastPct: ScaleScore(metrics.Contrast, qv.thresholds.Contrast, HigherIsBetter),
		ClarityPct:  ScaleScore(metrics.Clarity, qv.thresholds.Clarity, HigherIsBetter),
		NoisePct:    ScaleScore(metrics.Noise, qv.thresholds.Noise, LowerIsBetter),
	}
}

// Validate returns one issue per metric that misses its threshold, in
// contrast, clarity, noise order.
func (qv *QualityValidator) Validate(metrics ImageQualityMetrics) []QualityIssue {
	var issues []QualityIssue

	if metrics.Contrast < qv.thresholds.Contrast {
		issues = append(issues, QualityIssue{
			Type:        "low_contrast",
			Message:     "low contrast",
			ActualValue: metrics.Contrast,
			Threshold:   qv.thresholds.Contrast,
		})
	}
	if metrics.Clarity < qv.thresholds.Clarity {
		issues = append(issues, QualityIssue{
			Type:        "low_clarity",
			Message:     "low clarity",
			ActualValue: metrics.Clarity,
			Threshold:   qv.thresholds.Clarity,
		})
	}
	if metrics.Noise > qv.thresholds.Noise {
		issues = append(issues, QualityIssue{
			Type:        "high_noise",
			Message:     "high noise",
			ActualValue: metrics.Noise,
			Threshold:   qv.thresholds.Noise,
		})
	}

	return issues
}

// Rate awards a point per passing metric and maps the total onto a rating.
// The reason lists the failing metrics, or says that all thresholds are met.
func (qv *QualityValidator) Rate(metrics ImageQualityMetrics) (models.Rating, string) {
	issues := qv.Validate(metrics)
	rating := ratingByPoints[3-len(issues)]
	if len(issues) == 0 {
		return rating, reasonAllPass
	}
	return rating, strings.Join(qv.ConvertIssuesToMessages(issues), ", ")
}

// ConvertIssuesToMessages flattens issues to their short messages
func (qv *QualityValidator) ConvertIssuesToMessages(issues []QualityIssue) []string {
	messages := make([]string, 0, len(issues))
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}
