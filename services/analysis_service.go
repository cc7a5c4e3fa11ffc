package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pdf-term-stats/internal/config"
	"pdf-term-stats/internal/corpus"
	"pdf-term-stats/internal/logger"
	"pdf-term-stats/internal/pdftext"
	"pdf-term-stats/internal/telemetry"
	"pdf-term-stats/models"
)

// Artifact file names inside an analysis directory.
const (
	PageTableFile = "pages.csv"
	WorkbookFile  = "statistics.xlsx"
)

// TopTermsPerPage is how many ranked terms a report keeps per page.
const TopTermsPerPage = 5

// AnalysisService runs extraction, page table persistence, statistics and
// workbook export.
type AnalysisService struct {
	extractor *pdftext.Extractor
	engine    *corpus.Engine
	cache     *ResultCache
	metrics   *telemetry.Metrics
}

func NewAnalysisService(cfg *config.Config, cache *ResultCache, metrics *telemetry.Metrics) *AnalysisService {
	var engineOpts []corpus.Option
	if cfg.StatsWorkers > 0 {
		engineOpts = append(engineOpts, corpus.WithWorkers(cfg.StatsWorkers))
	}

	return &AnalysisService{
		extractor: pdftext.NewExtractor(
			pdftext.WithStrictPages(cfg.StrictPages),
			pdftext.WithMaxBytes(cfg.MaxFileSize),
		),
		engine:  corpus.NewEngine(engineOpts...),
		cache:   cache,
		metrics: metrics,
	}
}

// Extract returns the page records of a PDF, consulting the result cache first.
func (s *AnalysisService) Extract(ctx context.Context, content []byte) (*pdftext.Result, error) {
	hash := ContentHash(content)
	if res, ok := s.cache.Get(ctx, hash); ok {
		// a degraded entry cannot answer a strict extraction
		if !s.extractor.Strict() || len(res.FailedPages) == 0 {
			logger.Debug("Page cache hit", "hash", hash, "pages", len(res.Pages))
			return res, nil
		}
		logger.Debug("Skipping degraded page cache entry in strict mode", "hash", hash)
	}

	res, err := s.extractor.ExtractBytes(ctx, content)
	if err != nil {
		s.metrics.RecordExtraction(ctx, 0, 0, "failed")
		return nil, err
	}
	s.metrics.RecordExtraction(ctx, len(res.Pages), res.Duration.Seconds(), "completed")

	if err := s.cache.Put(ctx, hash, res); err != nil {
		logger.Warn("Failed to cache extracted pages", "hash", hash, "error", err)
	}
	return res, nil
}

// Statistics computes term statistics over the text column of pages.
func (s *AnalysisService) Statistics(ctx context.Context, pages []pdftext.PageRecord) (*corpus.Statistics, error) {
	start := time.Now()
	stats, err := s.engine.Compute(ctx, PageTexts(pages))
	if err != nil {
		return nil, err
	}
	s.metrics.RecordStatistics(ctx, stats.Vocabulary.Len(), time.Since(start).Seconds())
	return stats, nil
}

// StatisticsValues computes statistics over untyped documents, such as a
// decoded JSON array. Every entry must be a string.
func (s *AnalysisService) StatisticsValues(ctx context.Context, values []any) (*corpus.Statistics, error) {
	start := time.Now()
	stats, err := s.engine.ComputeValues(ctx, values)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordStatistics(ctx, stats.Vocabulary.Len(), time.Since(start).Seconds())
	return stats, nil
}

// Process extracts content, persists the page table, computes statistics from
// the persisted table and writes the workbook. Artifacts are built in a
// scratch directory under outDir and moved into place only on success.
func (s *AnalysisService) Process(ctx context.Context, content []byte, outDir string) (*models.AnalysisReport, error) {
	ctx, span := otel.Tracer("analysis").Start(ctx, "analysis.process")
	defer span.End()
	start := time.Now()

	report, err := s.process(ctx, content, outDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	report.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("analysis.pages", report.Pages),
		attribute.Int("analysis.vocabulary_size", report.VocabularySize),
	)
	return report, nil
}

func (s *AnalysisService) process(ctx context.Context, content []byte, outDir string) (*models.AnalysisReport, error) {
	res, err := s.Extract(ctx, content)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	scratch, err := os.MkdirTemp(outDir, ".work-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	tablePath := filepath.Join(scratch, PageTableFile)
	if err := SavePageTable(tablePath, res.Pages); err != nil {
		return nil, err
	}
	pages, err := LoadPageTable(tablePath)
	if err != nil {
		return nil, err
	}

	stats, err := s.Statistics(ctx, pages)
	if err != nil {
		return nil, err
	}
	workbookPath := filepath.Join(scratch, WorkbookFile)
	if err := SaveWorkbook(workbookPath, stats); err != nil {
		if errors.Is(err, ErrWorkbookTooWide) {
			// publish the page table without a workbook
			if perr := os.Rename(tablePath, filepath.Join(outDir, PageTableFile)); perr != nil {
				return nil, fmt.Errorf("publish page table: %w", perr)
			}
		}
		return nil, err
	}

	report := &models.AnalysisReport{
		Pages:          len(pages),
		FailedPages:    res.FailedPages,
		VocabularySize: stats.Vocabulary.Len(),
		PageTablePath:  filepath.Join(outDir, PageTableFile),
		WorkbookPath:   filepath.Join(outDir, WorkbookFile),
		TopTerms:       PageTopTerms(pages, stats, TopTermsPerPage),
	}
	if err := os.Rename(tablePath, report.PageTablePath); err != nil {
		return nil, fmt.Errorf("publish page table: %w", err)
	}
	if err := os.Rename(workbookPath, report.WorkbookPath); err != nil {
		return nil, fmt.Errorf("publish workbook: %w", err)
	}
	return report, nil
}

// ProcessFile runs Process on the PDF stored at path.
func (s *AnalysisService) ProcessFile(ctx context.Context, path, outDir string) (*models.AnalysisReport, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return s.Process(ctx, content, outDir)
}

// PageTopTerms ranks the terms of every page that has any.
func PageTopTerms(pages []pdftext.PageRecord, stats *corpus.Statistics, k int) []models.PageTopTerms {
	var out []models.PageTopTerms
	for i, p := range pages {
		terms := stats.TopTerms(i, k)
		if len(terms) == 0 {
			continue
		}
		out = append(out, models.PageTopTerms{Page: p.PageNumber, Terms: terms})
	}
	return out
}
