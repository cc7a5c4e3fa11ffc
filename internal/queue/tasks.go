package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"pdf-term-stats/internal/logger"
	"pdf-term-stats/internal/pdftext"
	"pdf-term-stats/models"
	"pdf-term-stats/services"
)

const (
	TaskRunAnalysis = "analysis:run"
	QueueAnalyses   = "analyses"
)

type AnalysisPayload struct {
	AnalysisID string `json:"analysis_id"`
	FilePath   string `json:"file_path"`
}

// Task creators
func NewAnalysisTask(analysisID, filePath string) (*asynq.Task, error) {
	if analysisID == "" || filePath == "" {
		return nil, errors.New("analysis id and file path are required")
	}
	payload, err := json.Marshal(AnalysisPayload{
		AnalysisID: analysisID,
		FilePath:   filePath,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskRunAnalysis,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueAnalyses),
		asynq.Retention(24*time.Hour),
	), nil
}

// AnalysisRecorder tracks the lifecycle of an analysis record.
type AnalysisRecorder interface {
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, report *models.AnalysisReport) error
	Fail(ctx context.Context, id string, cause error) error
}

// Task handlers
type TaskProcessor struct {
	service    *services.AnalysisService
	recorder   AnalysisRecorder
	storageDir string
}

func NewTaskProcessor(service *services.AnalysisService, recorder AnalysisRecorder, storageDir string) *TaskProcessor {
	return &TaskProcessor{
		service:    service,
		recorder:   recorder,
		storageDir: storageDir,
	}
}

// Register installs the processor's handlers on mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskRunAnalysis, p.RunAnalysis)
}

func (p *TaskProcessor) RunAnalysis(ctx context.Context, t *asynq.Task) error {
	var payload AnalysisPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	if payload.AnalysisID == "" {
		return fmt.Errorf("missing analysis id: %w", asynq.SkipRetry)
	}

	logger.Info("Processing analysis", "id", payload.AnalysisID, "file", payload.FilePath)

	if err := p.recorder.MarkProcessing(ctx, payload.AnalysisID); err != nil {
		if errors.Is(err, services.ErrAnalysisNotFound) {
			return fmt.Errorf("analysis %s: %w", payload.AnalysisID, asynq.SkipRetry)
		}
		return err
	}

	outDir := services.AnalysisDir(p.storageDir, payload.AnalysisID)
	report, err := p.service.ProcessFile(ctx, payload.FilePath, outDir)
	if err != nil {
		if permanent(err) || lastAttempt(ctx) {
			if ferr := p.recorder.Fail(ctx, payload.AnalysisID, err); ferr != nil {
				logger.Error("Failed to record analysis failure", "id", payload.AnalysisID, "error", ferr)
			}
		}
		if permanent(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err // Will retry
	}

	if err := p.recorder.Complete(ctx, payload.AnalysisID, report); err != nil {
		return err
	}

	logger.Info("Analysis completed",
		"id", payload.AnalysisID,
		"pages", report.Pages,
		"vocabulary_size", report.VocabularySize,
		"duration", report.Duration.String(),
	)
	return nil
}

// permanent reports errors that a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, pdftext.ErrMalformedDocument) ||
		errors.Is(err, pdftext.ErrPageExtraction) ||
		errors.Is(err, pdftext.ErrDocumentTooLarge) ||
		errors.Is(err, services.ErrWorkbookTooWide) ||
		errors.Is(err, os.ErrNotExist)
}

func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}
