package factory

import (
	"github.com/rs/zerolog"

	"github.com/kafadas/kinjo/internal/config"
	"github.com/kafadas/kinjo/internal/narrative"
	"github.com/kafadas/kinjo/internal/narrative/ollama"
)

// NewNarrative returns the configured AI narrative generator, or a nil
// interface when narrative generation is turned off.
func NewNarrative(cfg *config.Config, log zerolog.Logger) narrative.Generator {
	switch cfg.NarrativeProvider {
	case "ollama":
		log.Info().Str("url", cfg.NarrativeURL).Str("model", cfg.NarrativeModel).Int("rate_per_minute", cfg.NarrativeRatePerMinute).Msg("narrative provider enabled")
		return ollama.New(cfg.NarrativeURL, cfg.NarrativeModel, cfg.NarrativeRatePerMinute)
	default:
		log.Info().Msg("narrative provider disabled; regeneration unavailable")
		return nil
	}
}
