package scorer

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

// Mode selects how the scorer is resolved.
type Mode string

// Modes.
const (
	ModeDisabled Mode = "disabled" // always cosine
	ModeLearned  Mode = "learned"  // learned scorer from Path, cosine if the artifact is absent
)

// Artifact formats.
const (
	FormatNative = "native"
	FormatONNX   = "onnx"
)

// Config describes the configured scorer.
type Config struct {
	Mode       Mode
	Path       string
	Format     string // native (default) or onnx
	Dimensions int
}

// Provider resolves the configured scorer once and hands the same instance to every caller.
// A failed learned load is not remembered, so a later Get retries it.
type Provider struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	scorer Scorer
}

// NewProvider creates a provider. Nothing is loaded until the first Get.
func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Mode == "" {
		cfg.Mode = ModeDisabled
	}
	if cfg.Format == "" {
		cfg.Format = FormatNative
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, logger: logger}
}

// Get returns the resolved scorer. It fails only with a domain.ErrScorerLoad for a
// corrupt learned artifact; a missing artifact resolves to cosine.
func (p *Provider) Get() (Scorer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.scorer != nil {
		return p.scorer, nil
	}

	s, err := p.resolve()
	if err != nil {
		return nil, err
	}
	p.scorer = s
	p.logger.Info("Scorer resolved",
		zap.String("variant", s.Variant()),
		zap.String("version", s.Version()),
	)
	return s, nil
}

// Close releases a loaded learned model.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.scorer.(*Learned); ok {
		p.scorer = nil
		if err := l.Close(); err != nil {
			return fmt.Errorf("close scorer: %w", err)
		}
	}
	return nil
}

func (p *Provider) resolve() (Scorer, error) {
	switch p.cfg.Mode {
	case ModeDisabled:
		return NewCosine(p.cfg.Dimensions), nil
	case ModeLearned:
	default:
		return nil, fmt.Errorf("%w: unknown scorer mode %q", domain.ErrScorerLoad, p.cfg.Mode)
	}

	var (
		l   *Learned
		err error
	)
	switch p.cfg.Format {
	case FormatNative:
		l, err = loadNative(p.cfg.Path, p.cfg.Dimensions)
	case FormatONNX:
		l, err = loadONNX(p.cfg.Path, p.cfg.Dimensions)
	default:
		return nil, fmt.Errorf("%w: unknown artifact format %q", domain.ErrScorerLoad, p.cfg.Format)
	}

	if errors.Is(err, errArtifactMissing) {
		p.logger.Warn("Learned scorer artifact not found, falling back to cosine",
			zap.String("path", p.cfg.Path))
		return NewCosine(p.cfg.Dimensions), nil
	}
	if err != nil {
		p.logger.Error("Learned scorer failed to load",
			zap.String("path", p.cfg.Path),
			zap.String("format", p.cfg.Format),
			zap.Error(err))
		return nil, err
	}
	return l, nil
}
