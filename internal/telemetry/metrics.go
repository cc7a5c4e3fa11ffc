package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter     metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	PagesExtracted     metric.Int64Counter
	ExtractionDuration metric.Float64Histogram
	StatisticsDuration metric.Float64Histogram
	VocabularySize     metric.Int64Histogram
	DownloadFailures   metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("pdf-term-stats")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	pagesExtracted, err := meter.Int64Counter(
		"pdf.pages.extracted",
		metric.WithDescription("Total PDF pages extracted"),
	)
	if err != nil {
		return nil, err
	}

	extractionDuration, err := meter.Float64Histogram(
		"pdf.extraction.duration",
		metric.WithDescription("PDF text extraction duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	statisticsDuration, err := meter.Float64Histogram(
		"corpus.statistics.duration",
		metric.WithDescription("TF-IDF computation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	vocabularySize, err := meter.Int64Histogram(
		"corpus.vocabulary.size",
		metric.WithDescription("Distinct terms per computed corpus"),
	)
	if err != nil {
		return nil, err
	}

	downloadFailures, err := meter.Int64Counter(
		"pdf.download.failures",
		metric.WithDescription("Failed PDF downloads"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:     requestCounter,
		RequestDuration:    requestDuration,
		PagesExtracted:     pagesExtracted,
		ExtractionDuration: extractionDuration,
		StatisticsDuration: statisticsDuration,
		VocabularySize:     vocabularySize,
		DownloadFailures:   downloadFailures,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordExtraction records a finished PDF extraction
func (m *Metrics) RecordExtraction(ctx context.Context, pages int, duration float64, status string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("pdf.status", status))
	m.PagesExtracted.Add(ctx, int64(pages), attrs)
	m.ExtractionDuration.Record(ctx, duration, attrs)
}

// RecordStatistics records a finished corpus computation
func (m *Metrics) RecordStatistics(ctx context.Context, vocabulary int, duration float64) {
	if m == nil {
		return
	}
	m.StatisticsDuration.Record(ctx, duration)
	m.VocabularySize.Record(ctx, int64(vocabulary))
}

// RecordDownloadFailure counts a failed download by reason
func (m *Metrics) RecordDownloadFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.DownloadFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
