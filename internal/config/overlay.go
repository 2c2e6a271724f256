package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

// Overlay is an optional YAML file that supplements the environment:
// a longer symbol universe and composite weight overrides.
type Overlay struct {
	Symbols []string           `yaml:"symbols"`
	Weights map[string]float64 `yaml:"weights"`
}

// ApplyOverlay merges a YAML overlay file into cfg. A missing file is not
// an error; a present but malformed file is.
func ApplyOverlay(cfg *Config, path string) (map[string]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read overlay %s: %w", path, err)
	}

	var ov Overlay
	if err := yaml.Unmarshal(raw, &ov); err != nil {
		return nil, fmt.Errorf("parse overlay %s: %w", path, err)
	}

	if len(ov.Symbols) > 0 {
		syms := make([]model.Symbol, 0, len(ov.Symbols))
		for _, s := range ov.Symbols {
			sym, err := model.ParseSymbol(s)
			if err != nil {
				return nil, fmt.Errorf("overlay %s: %w", path, err)
			}
			syms = append(syms, sym)
		}
		cfg.Symbols = syms
	}
	return ov.Weights, nil
}
