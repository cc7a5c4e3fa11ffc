// Package corpus computes term statistics over an ordered set of documents.
//
// A computation is a single batch pass in two explicit stages: the
// vocabulary is collected from every document and frozen in lexicographic
// order, then each document is counted against it. From the counts come the
// document frequencies, the smoothed IDF vector and the TF-IDF matrix.
//
// Empty corpora and documents without terms are normal inputs: they produce
// empty vocabularies and all-zero rows, never errors.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidCorpus is returned when an input entry is not a string.
var ErrInvalidCorpus = errors.New("invalid corpus")

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the goroutines used for per-document work. n <= 1
// runs sequentially.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithLogger sets the debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine computes Statistics. It keeps no state between calls, so one
// Engine may serve concurrent computations.
type Engine struct {
	workers int
	logger  *slog.Logger
}

// NewEngine creates an engine using GOMAXPROCS workers by default.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Workers reports the goroutine bound for per-document work.
func (e *Engine) Workers() int {
	return e.workers
}

// ComputeNullable computes statistics over documents that may be absent.
// A nil entry is rejected with ErrInvalidCorpus naming its index.
func (e *Engine) ComputeNullable(ctx context.Context, docs []*string) (*Statistics, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		if d == nil {
			return nil, fmt.Errorf("%w: document %d is nil", ErrInvalidCorpus, i)
		}
		texts[i] = *d
	}
	return e.Compute(ctx, texts)
}

// ComputeValues validates untyped entries, as decoded from JSON or a
// spreadsheet, and computes their statistics. Entries must be strings;
// missing text has to be normalized to "" by the producer.
func (e *Engine) ComputeValues(ctx context.Context, values []any) (*Statistics, error) {
	docs := make([]string, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: document %d has type %T, want string", ErrInvalidCorpus, i, v)
		}
		docs[i] = s
	}
	return e.Compute(ctx, docs)
}

// Compute runs the full pipeline over docs. The only error is context
// cancellation.
func (e *Engine) Compute(ctx context.Context, docs []string) (*Statistics, error) {
	ctx, span := otel.Tracer("corpus").Start(ctx, "corpus.compute")
	defer span.End()

	n := len(docs)
	counts := make([]TermCounts, n)
	if err := e.forEach(ctx, n, func(d int) {
		counts[d] = CountTerms(docs[d])
	}); err != nil {
		return nil, fmt.Errorf("tokenizing corpus: %w", err)
	}

	// barrier: every document has been tokenized
	vocab := BuildVocabulary(counts)

	tf := make([][]int, n)
	if err := e.forEach(ctx, n, func(d int) {
		tf[d] = CountRow(counts[d], vocab)
	}); err != nil {
		return nil, fmt.Errorf("counting corpus: %w", err)
	}

	df := DocumentFrequency(tf, vocab.Len())
	idf := SmoothedIDF(df, n)
	occurrence := make([]int, len(df))
	copy(occurrence, df)

	stats := &Statistics{
		Vocabulary:    vocab,
		TF:            tf,
		IDF:           idf,
		TFIDF:         WeightMatrix(tf, idf),
		DocOccurrence: occurrence,
	}

	span.SetAttributes(
		attribute.Int("corpus.documents", n),
		attribute.Int("corpus.vocabulary", vocab.Len()),
	)
	e.logger.Debug("corpus statistics computed", "documents", n, "vocabulary", vocab.Len())
	return stats, nil
}

// forEach calls fn for 0..n-1. Each index is written by exactly one call,
// so fn needs no locking.
func (e *Engine) forEach(ctx context.Context, n int, fn func(int)) error {
	if e.workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < n; i++ {
		i := i
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
