// Package embedding holds the embedder decorators that enforce the deployment's vector contract.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neuromatch/internal/domain"
)

// DefaultBatchSize is the largest number of texts sent in one provider call.
const DefaultBatchSize = 64

// NormalizingEmbedder guarantees that every vector it returns has the configured
// dimension and unit L2 norm (zero vectors pass through unchanged).
// Provider failures come back wrapped with domain.ErrEmbeddingProviderError.
type NormalizingEmbedder struct {
	inner      domain.Embedder
	dimensions int
	batchSize  int
	model      string
	logger     *zap.Logger
}

// Config configures a NormalizingEmbedder.
type Config struct {
	Dimensions int // required vector length D
	BatchSize  int // 0 means DefaultBatchSize
	Model      string
	Logger     *zap.Logger
}

// NewNormalizingEmbedder wraps inner with normalization, chunking and dimension checks.
func NewNormalizingEmbedder(inner domain.Embedder, cfg Config) *NormalizingEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &NormalizingEmbedder{
		inner:      inner,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
		model:      cfg.Model,
		logger:     cfg.Logger,
	}
}

// Dimensions returns D.
func (n *NormalizingEmbedder) Dimensions() int { return n.dimensions }

// Embed embeds one text and normalizes the result.
func (n *NormalizingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()

	result, err := n.inner.Embed(ctx, text)
	if err != nil {
		n.logger.Error("Embedding request failed",
			zap.String("model", n.model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, providerError(err)
	}

	if err := n.check(result.Embedding); err != nil {
		return domain.EmbeddingResult{}, err
	}
	result.Embedding = domain.Normalize(result.Embedding)

	n.logger.Debug("Embedding request completed",
		zap.String("model", n.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// BatchEmbed embeds texts in chunks of at most batchSize, preserving input order.
func (n *NormalizingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}

	for offset := 0; offset < len(texts); offset += n.batchSize {
		end := min(offset+n.batchSize, len(texts))
		chunk := texts[offset:end]

		res, err := domain.EmbedBatch(ctx, n.inner, chunk)
		if err != nil {
			n.logger.Error("Batch embedding request failed",
				zap.String("model", n.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, providerError(err)
		}
		if len(res.Embeddings) != len(chunk) {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("chunk at %d: expected %d embeddings, got %d: %w",
				offset, len(chunk), len(res.Embeddings), domain.ErrEmbeddingProviderError)
		}

		for _, v := range res.Embeddings {
			if err := n.check(v); err != nil {
				return domain.BatchEmbeddingResult{}, err
			}
			out.Embeddings = append(out.Embeddings, domain.Normalize(v))
		}
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	n.logger.Debug("Batch embedding completed",
		zap.String("model", n.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck delegates to the inner provider when it supports health checks.
func (n *NormalizingEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := n.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding provider health: %w", err)
	}
	return nil
}

func (n *NormalizingEmbedder) check(v []float32) error {
	if n.dimensions <= 0 {
		return nil
	}
	if err := domain.CheckDimension(v, n.dimensions); err != nil {
		n.logger.Error("Embedding provider returned unexpected dimension",
			zap.String("model", n.model),
			zap.Int("expected", n.dimensions),
			zap.Int("got", len(v)),
		)
		return fmt.Errorf("provider output: %w", err)
	}
	return nil
}

// providerError tags err as a provider failure unless it already is one.
func providerError(err error) error {
	if errors.Is(err, domain.ErrEmbeddingProviderError) {
		return fmt.Errorf("embed: %w", err)
	}
	return fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingProviderError, err)
}
