package models

import (
	"fmt"
	"sort"
	"strings"
)

// Bounds is an optional inclusive range on a raw metric
type Bounds struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (b Bounds) contains(v float64) bool {
	if b.Min != nil && v < *b.Min {
		return false
	}
	if b.Max != nil && v > *b.Max {
		return false
	}
	return true
}

// FilterCriteria narrows a result set; zero value keeps everything
type FilterCriteria struct {
	Contrast Bounds `json:"contrast"`
	Clarity  Bounds `json:"clarity"`
	Noise    Bounds `json:"noise"`
	// Rating keeps only results with this rating; empty or "All" disables it
	Rating Rating `json:"rating,omitempty"`
}

// Filter returns the results matching all criteria, preserving order
func Filter(results []ImageResult, criteria FilterCriteria) []ImageResult {
	filtered := make([]ImageResult, 0, len(results))
	for _, r := range results {
		if !criteria.Contrast.contains(r.Contrast) ||
			!criteria.Clarity.contains(r.Clarity) ||
			!criteria.Noise.contains(r.Noise) {
			continue
		}
		if criteria.Rating != "" && !strings.EqualFold(string(criteria.Rating), "all") && r.Rating != criteria.Rating {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// Summary aggregates a result set
type Summary struct {
	Images         int            `json:"images"`
	AvgContrast    float64        `json:"avg_contrast"`
	AvgClarity     float64        `json:"avg_clarity"`
	AvgNoise       float64        `json:"avg_noise"`
	AvgContrastPct float64        `json:"avg_contrast_pct"`
	AvgClarityPct  float64        `json:"avg_clarity_pct"`
	AvgNoisePct    float64        `json:"avg_noise_pct"`
	RatingCounts   map[Rating]int `json:"rating_counts"`
}

// Summarize computes averages and rating counts; an empty set gives a zero summary
func Summarize(results []ImageResult) Summary {
	s := Summary{
		Images:       len(results),
		RatingCounts: make(map[Rating]int, len(Ratings)),
	}
	if len(results) == 0 {
		return s
	}
	for _, r := range results {
		s.AvgContrast += r.Contrast
		s.AvgClarity += r.Clarity
		s.AvgNoise += r.Noise
		s.AvgContrastPct += r.ContrastPct
		s.AvgClarityPct += r.ClarityPct
		s.AvgNoisePct += r.NoisePct
		s.RatingCounts[r.Rating]++
	}
	n := float64(len(results))
	s.AvgContrast /= n
	s.AvgClarity /= n
	s.AvgNoise /= n
	s.AvgContrastPct /= n
	s.AvgClarityPct /= n
	s.AvgNoisePct /= n
	return s
}

// SortKey names a sortable column
type SortKey string

const (
	SortByFilename SortKey = "filename"
	SortByContrast SortKey = "contrast"
	SortByClarity  SortKey = "clarity"
	SortByNoise    SortKey = "noise"
	SortByRating   SortKey = "rating"
)

// ParseSortKey validates a column name
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortByFilename, SortByContrast, SortByClarity, SortByNoise, SortByRating:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// SortResults sorts in place and stably, so equal keys keep listing order.
// Ratings sort by rank rather than by name.
func SortResults(results []ImageResult, key SortKey, descending bool) {
	less := func(a, b ImageResult) bool {
		switch key {
		case SortByContrast:
			return a.Contrast < b.Contrast
		case SortByClarity:
			return a.Clarity < b.Clarity
		case SortByNoise:
			return a.Noise < b.Noise
		case SortByRating:
			return a.Rating.Rank() < b.Rating.Rank()
		default:
			return a.Filename < b.Filename
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if descending {
			return less(results[j], results[i])
		}
		return less(results[i], results[j])
	})
}
