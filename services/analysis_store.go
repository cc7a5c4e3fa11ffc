package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pdf-term-stats/models"
)

var ErrAnalysisNotFound = errors.New("analysis not found")

// AnalysisStore persists analysis records in MongoDB.
type AnalysisStore struct {
	col *mongo.Collection
}

func NewAnalysisStore(col *mongo.Collection) *AnalysisStore {
	return &AnalysisStore{col: col}
}

func (s *AnalysisStore) Create(ctx context.Context, a *models.Analysis) error {
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = models.StatusPending
	}
	if _, err := s.col.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

func (s *AnalysisStore) Get(ctx context.Context, id string) (*models.Analysis, error) {
	var a models.Analysis
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find analysis %s: %w", id, err)
	}
	return &a, nil
}

// SetTaskID records the queue task that will process the analysis.
func (s *AnalysisStore) SetTaskID(ctx context.Context, id, taskID string) error {
	return s.update(ctx, id, bson.M{"task_id": taskID})
}

func (s *AnalysisStore) MarkProcessing(ctx context.Context, id string) error {
	return s.update(ctx, id, bson.M{"status": models.StatusProcessing, "error_message": ""})
}

// Complete stores the outcome of a successful run.
func (s *AnalysisStore) Complete(ctx context.Context, id string, report *models.AnalysisReport) error {
	now := time.Now()
	return s.update(ctx, id, bson.M{
		"status":          models.StatusCompleted,
		"pages":           report.Pages,
		"failed_pages":    report.FailedPages,
		"vocabulary_size": report.VocabularySize,
		"top_terms":       report.TopTerms,
		"page_table_path": report.PageTablePath,
		"workbook_path":   report.WorkbookPath,
		"completed_at":    now,
	})
}

func (s *AnalysisStore) Fail(ctx context.Context, id string, cause error) error {
	return s.update(ctx, id, bson.M{
		"status":        models.StatusFailed,
		"error_message": cause.Error(),
	})
}

// ListExpired returns analyses created before cutoff, oldest first.
func (s *AnalysisStore) ListExpired(ctx context.Context, cutoff time.Time, limit int64) ([]models.Analysis, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(limit)
	cursor, err := s.col.Find(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find expired analyses: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Analysis
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode expired analyses: %w", err)
	}
	return out, nil
}

func (s *AnalysisStore) Delete(ctx context.Context, id string) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete analysis %s: %w", id, err)
	}
	return nil
}

func (s *AnalysisStore) update(ctx context.Context, id string, set bson.M) error {
	set["updated_at"] = time.Now()
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update analysis %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrAnalysisNotFound
	}
	return nil
}
