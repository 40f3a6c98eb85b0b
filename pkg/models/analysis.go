package models

import (
	"fmt"
	"strings"
)

// Rating is the ordinal quality bucket derived from threshold pass counts
type Rating string

const (
	RatingPoor      Rating = "Poor"
	RatingFair      Rating = "Fair"
	RatingGood      Rating = "Good"
	RatingExcellent Rating = "Excellent"
)

// Ratings lists every rating from worst to best
var Ratings = []Rating{RatingPoor, RatingFair, RatingGood, RatingExcellent}

// Rank orders ratings from 0 (Poor) to 3 (Excellent); unknown ratings rank -1
func (r Rating) Rank() int {
	for i, known := range Ratings {
		if r == known {
			return i
		}
	}
	return -1
}

// ParseRating accepts any casing of a rating name
func ParseRating(s string) (Rating, error) {
	for _, r := range Ratings {
		if strings.EqualFold(strings.TrimSpace(s), string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown rating %q", s)
}

// ImageResult is the analysis record for one image
type ImageResult struct {
	Filename    string  `json:"filename"`
	Contrast    float64 `json:"contrast"`
	ContrastPct float64 `json:"contrast_pct"`
	Clarity     float64 `json:"clarity"`
	ClarityPct  float64 `json:"clarity_pct"`
	Noise       float64 `json:"noise"`
	NoisePct    float64 `json:"noise_pct"`
	Rating      Rating  `json:"rating"`
	Reason      string  `json:"reason"`
}

// QualityIssue describes one metric that missed its threshold
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	ActualValue float64 `json:"actual_value"`
	Threshold   float64 `json:"threshold"`
}

// SkippedFile records a candidate that could not be analysed
type SkippedFile struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// ScanReport is the outcome of one folder scan, in listing order
type ScanReport struct {
	Folder  string        `json:"folder"`
	Results []ImageResult `json:"results"`
	Skipped []SkippedFile `json:"skipped,omitempty"`
}
