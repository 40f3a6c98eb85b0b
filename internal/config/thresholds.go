package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pixelpruner/pruneriq/pkg/validation"
)

// thresholdsFile mirrors the YAML layout:
//
//	thresholds:
//	  contrast: 70
//	  clarity: 200
//	  noise: 15000
//
// Keys left out keep the base value.
type thresholdsFile struct {
	Thresholds struct {
		Contrast *float64 `yaml:"contrast"`
		Clarity  *float64 `yaml:"clarity"`
		Noise    *float64 `yaml:"noise"`
	} `yaml:"thresholds"`
}

// LoadThresholds reads path and overlays it on base
func LoadThresholds(path string, base validation.Thresholds) (validation.Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read thresholds file %s: %w", path, err)
	}

	var file thresholdsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("parse thresholds file %s: %w", path, err)
	}

	out := base
	if v := file.Thresholds.Contrast; v != nil {
		out.Contrast = *v
	}
	if v := file.Thresholds.Clarity; v != nil {
		out.Clarity = *v
	}
	if v := file.Thresholds.Noise; v != nil {
		out.Noise = *v
	}

	if err := out.Validate(); err != nil {
		return base, fmt.Errorf("thresholds file %s: %w", path, err)
	}
	return out, nil
}
