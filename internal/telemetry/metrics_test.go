package telemetry

import (
	"context"
	"testing"

	"pdf-term-stats/internal/config"
)

func TestInitMetrics_NoopProvider(t *testing.T) {
	m, err := InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}

	// the global meter provider is a no-op in tests; recording must not panic
	m.RecordRequest("GET", "/health", "success", 0.01)
	m.RecordExtraction(context.Background(), 3, 0.2, "completed")
	m.RecordStatistics(context.Background(), 12, 0.001)
	m.RecordDownloadFailure(context.Background(), "status")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("GET", "/", "success", 0)
	m.RecordExtraction(context.Background(), 1, 0, "completed")
	m.RecordStatistics(context.Background(), 1, 0)
	m.RecordDownloadFailure(context.Background(), "x")
}

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(&config.Config{OTelEnabled: false})
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	shutdown()
}
