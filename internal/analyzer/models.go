package analyzer

import (
	"github.com/pixelpruner/pruneriq/pkg/models"
)

// ImageResult is an alias to the shared models.ImageResult
type ImageResult = models.ImageResult

// Metrics holds the three raw signals for one image
type Metrics struct {
	Contrast float64
	Clarity  float64
	Noise    float64
}
