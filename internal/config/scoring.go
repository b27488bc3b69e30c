package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/couchcryptid/district-analytics-service/internal/domain"
)

// LoadScoring returns the scoring table. An empty path yields the defaults;
// otherwise keys present in the TOML file override them. The result is validated.
func LoadScoring(path string) (domain.ScoringConfig, error) {
	cfg := domain.DefaultScoringConfig()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.ScoringConfig{}, fmt.Errorf("open SCORING_CONFIG_FILE: %w", err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&cfg); err != nil {
		return domain.ScoringConfig{}, fmt.Errorf("decode SCORING_CONFIG_FILE: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return domain.ScoringConfig{}, fmt.Errorf("SCORING_CONFIG_FILE: %w", err)
	}
	return cfg, nil
}
