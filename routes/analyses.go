package routes

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"pdf-term-stats/internal/config"
	"pdf-term-stats/internal/logger"
	"pdf-term-stats/internal/queue"
	"pdf-term-stats/models"
	"pdf-term-stats/services"
	"pdf-term-stats/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const sourceFile = "source.pdf"

// AnalysisRepository is the subset of the analysis store used by the handlers
type AnalysisRepository interface {
	Create(ctx context.Context, a *models.Analysis) error
	Get(ctx context.Context, id string) (*models.Analysis, error)
	SetTaskID(ctx context.Context, id, taskID string) error
	Delete(ctx context.Context, id string) error
}

// TaskEnqueuer submits background tasks
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// SetupAnalysisRoutes registers the asynchronous analysis endpoints. When the
// store or queue is missing every endpoint answers 503.
func SetupAnalysisRoutes(api *gin.RouterGroup, cfg *config.Config, store AnalysisRepository, enqueuer TaskEnqueuer) {
	analyses := api.Group("/analyses")
	if store == nil || enqueuer == nil {
		analyses.Use(func(c *gin.Context) {
			utils.RespondWithError(c, http.StatusServiceUnavailable, utils.CodeUnavailable,
				"Asynchronous analysis requires Redis and MongoDB", nil)
			c.Abort()
		})
	}

	analyses.POST("", HandleCreateAnalysis(cfg, store, enqueuer))
	analyses.GET("/:id", HandleGetAnalysis(store))
	analyses.GET("/:id/workbook", HandleAnalysisArtifact(store, artifactWorkbook))
	analyses.GET("/:id/pages", HandleAnalysisArtifact(store, artifactPageTable))
	analyses.GET("/:id/statistics", HandleAnalysisStatistics(store))
}

// HandleCreateAnalysis stores an uploaded PDF and queues its analysis
func HandleCreateAnalysis(cfg *config.Config, store AnalysisRepository, enqueuer TaskEnqueuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, filename, ok := readPDFUpload(c, cfg.MaxFileSize)
		if !ok {
			return
		}

		id := uuid.NewString()
		dir := services.AnalysisDir(cfg.FileStorageDir, id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create analysis directory", nil)
			return
		}
		cleanup := func() { os.RemoveAll(dir) }

		src := filepath.Join(dir, sourceFile)
		if err := os.WriteFile(src, data, 0o600); err != nil {
			cleanup()
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		record := &models.Analysis{
			ID:          id,
			Filename:    filename,
			ContentHash: services.ContentHash(data),
			Size:        int64(len(data)),
			SourcePath:  src,
			Status:      models.StatusPending,
		}
		if err := store.Create(ctx, record); err != nil {
			cleanup()
			logger.Error("Failed to create analysis record", "id", id, "error", err)
			utils.RespondWithInternalError(c, "Failed to create analysis record", nil)
			return
		}

		task, err := queue.NewAnalysisTask(id, src)
		if err == nil {
			var info *asynq.TaskInfo
			if info, err = enqueuer.EnqueueContext(ctx, task); err == nil {
				if err := store.SetTaskID(ctx, id, info.ID); err != nil {
					logger.Warn("Failed to record task id", "id", id, "error", err)
				}
				c.JSON(http.StatusAccepted, models.AnalysisAccepted{
					ID:      id,
					TaskID:  info.ID,
					Status:  models.StatusPending,
					Message: "PDF accepted for analysis",
				})
				return
			}
		}

		logger.Error("Failed to enqueue analysis", "id", id, "error", err)
		store.Delete(ctx, id)
		cleanup()
		utils.RespondWithError(c, http.StatusServiceUnavailable, utils.CodeUnavailable,
			"Failed to enqueue analysis task", nil)
	}
}

// HandleGetAnalysis returns the analysis record
func HandleGetAnalysis(store AnalysisRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a, ok := lookupAnalysis(c, store); ok {
			c.JSON(http.StatusOK, a)
		}
	}
}

type artifactKind int

const (
	artifactWorkbook artifactKind = iota
	artifactPageTable
)

// HandleAnalysisArtifact serves a finished analysis file as a download
func HandleAnalysisArtifact(store AnalysisRepository, kind artifactKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := completedAnalysis(c, store)
		if !ok {
			return
		}

		path, name := a.WorkbookPath, services.WorkbookFile
		if kind == artifactPageTable {
			path, name = a.PageTablePath, services.PageTableFile
		}
		if _, err := os.Stat(path); err != nil {
			utils.RespondWithNotFound(c, "Artifact is no longer available")
			return
		}
		c.FileAttachment(path, name)
	}
}

// HandleAnalysisStatistics returns the statistics of a finished analysis as JSON
func HandleAnalysisStatistics(store AnalysisRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := completedAnalysis(c, store)
		if !ok {
			return
		}

		stats, err := services.LoadWorkbook(a.WorkbookPath)
		if errors.Is(err, os.ErrNotExist) {
			utils.RespondWithNotFound(c, "Artifact is no longer available")
			return
		}
		if err != nil {
			logger.Error("Failed to read workbook", "id", a.ID, "error", err)
			utils.RespondWithInternalError(c, "Failed to read statistics", nil)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func lookupAnalysis(c *gin.Context, store AnalysisRepository) (*models.Analysis, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	a, err := store.Get(ctx, c.Param("id"))
	if errors.Is(err, services.ErrAnalysisNotFound) {
		utils.RespondWithNotFound(c, "Analysis not found")
		return nil, false
	}
	if err != nil {
		logger.Error("Failed to load analysis", "id", c.Param("id"), "error", err)
		utils.RespondWithInternalError(c, "Failed to load analysis", nil)
		return nil, false
	}
	return a, true
}

func completedAnalysis(c *gin.Context, store AnalysisRepository) (*models.Analysis, bool) {
	a, ok := lookupAnalysis(c, store)
	if !ok {
		return nil, false
	}
	if a.Status != models.StatusCompleted {
		utils.RespondWithError(c, http.StatusConflict, utils.CodeNotReady,
			"Analysis has not completed", gin.H{"status": a.Status})
		return nil, false
	}
	return a, true
}
