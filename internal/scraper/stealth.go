package scraper

import (
	"context"

	"go.uber.org/zap"
)

// StealthInjector masks browser automation signals. Navigation resets
// injected state, so it is applied again after every full page load.
type StealthInjector struct {
	script string
	logger *zap.Logger
}

// NewStealthInjector builds an injector advertising the given
// navigator.languages. Empty languages keep the built-in list.
func NewStealthInjector(languages []string, logger *zap.Logger) *StealthInjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StealthInjector{script: GetStealthScript(languages), logger: logger}
}

// ApplyStealth patches the current document. It is idempotent and
// best-effort: failures are logged and swallowed.
func (s *StealthInjector) ApplyStealth(ctx context.Context, p Page) {
	if err := p.Evaluate(ctx, s.script, nil); err != nil {
		s.logger.Debug("Stealth injection failed", zap.Error(err))
	}
}
