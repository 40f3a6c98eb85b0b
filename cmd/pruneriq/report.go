package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pixelpruner/pruneriq/pkg/models"
	"github.com/pixelpruner/pruneriq/pkg/validation"
)

func metricCell(value, pct float64) string {
	return fmt.Sprintf("%.2f (%.0f%%)", value, pct)
}

func writeTable(w io.Writer, results []models.ImageResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No images matched.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILENAME\tCONTRAST\tCLARITY\tNOISE\tRATING\tREASON")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Filename,
			metricCell(r.Contrast, r.ContrastPct),
			metricCell(r.Clarity, r.ClarityPct),
			metricCell(r.Noise, r.NoisePct),
			r.Rating,
			r.Reason,
		)
	}
	tw.Flush()
}

func writeSummary(w io.Writer, s models.Summary, thresholds validation.Thresholds) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Images:   %d\n", s.Images)
	if s.Images == 0 {
		return
	}
	fmt.Fprintf(w, "Contrast: %s  threshold %.2f\n", metricCell(s.AvgContrast, s.AvgContrastPct), thresholds.Contrast)
	fmt.Fprintf(w, "Clarity:  %s  threshold %.2f\n", metricCell(s.AvgClarity, s.AvgClarityPct), thresholds.Clarity)
	fmt.Fprintf(w, "Noise:    %s  threshold %.2f\n", metricCell(s.AvgNoise, s.AvgNoisePct), thresholds.Noise)

	// Best first.
	for i := len(models.Ratings) - 1; i >= 0; i-- {
		r := models.Ratings[i]
		fmt.Fprintf(w, "%-10s%d\n", string(r)+":", s.RatingCounts[r])
	}
}
