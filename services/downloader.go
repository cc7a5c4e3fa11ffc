package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"pdf-term-stats/internal/config"
	"pdf-term-stats/internal/logger"
	"pdf-term-stats/internal/telemetry"
)

var (
	// ErrDownload wraps every failure to fetch a document from a URL.
	ErrDownload = errors.New("download failed")
	// ErrFileTooLarge is returned when a document exceeds the configured size.
	ErrFileTooLarge = errors.New("file too large")
)

// statusError marks a non-200 response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// Downloader fetches PDF documents over HTTP(S) behind a rate limiter and a
// circuit breaker.
type Downloader struct {
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	maxBytes int64
	metrics  *telemetry.Metrics
}

func NewDownloader(cfg *config.Config, metrics *telemetry.Metrics) *Downloader {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "PDFDownload",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// Remote 4xx answers say nothing about the health of the origin.
		IsSuccessful: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.code < 500
			}
			return err == nil || errors.Is(err, ErrFileTooLarge)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	burst := cfg.DownloadBurst
	if burst < 1 {
		burst = 1
	}

	return &Downloader{
		client:   &http.Client{Timeout: cfg.DownloadTimeout},
		breaker:  breaker,
		limiter:  rate.NewLimiter(rate.Limit(cfg.DownloadRatePerSec), burst),
		maxBytes: cfg.MaxFileSize,
		metrics:  metrics,
	}
}

// Fetch downloads rawURL into memory. The body is decoded when the server
// answers with gzip or brotli content encoding.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, span := otel.Tracer("downloader").Start(ctx, "pdf.download")
	defer span.End()

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		d.metrics.RecordDownloadFailure(ctx, "invalid_url")
		return nil, fmt.Errorf("%w: unsupported URL %q", ErrDownload, rawURL)
	}
	span.SetAttributes(attribute.String("download.host", u.Host))

	if err := d.limiter.Wait(ctx); err != nil {
		d.metrics.RecordDownloadFailure(ctx, "rate_limited")
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}

	result, err := d.breaker.Execute(func() (interface{}, error) {
		return d.get(ctx, u.String())
	})
	if err != nil {
		reason := "request"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			reason = "circuit_open"
			span.SetAttributes(attribute.Bool("download.circuit_breaker_open", true))
		}
		d.metrics.RecordDownloadFailure(ctx, reason)
		if errors.Is(err, ErrDownload) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}

	body := result.([]byte)
	span.SetAttributes(attribute.Int("download.bytes", len(body)))
	return body, nil
}

func (d *Downloader) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/pdf")
	req.Header.Set("Accept-Encoding", "br, gzip")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}
	if resp.ContentLength > d.maxBytes {
		return nil, fmt.Errorf("%w: %w: content length %d exceeds %d", ErrDownload, ErrFileTooLarge, resp.ContentLength, d.maxBytes)
	}

	var body io.Reader = resp.Body
	switch enc := strings.ToLower(resp.Header.Get("Content-Encoding")); {
	case strings.Contains(enc, "br"):
		body = brotli.NewReader(body)
	case strings.Contains(enc, "gzip"):
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer gz.Close()
		body = gz
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if n > d.maxBytes {
		return nil, fmt.Errorf("%w: %w: body exceeds %d bytes", ErrDownload, ErrFileTooLarge, d.maxBytes)
	}
	return buf.Bytes(), nil
}
