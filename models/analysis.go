package models

import (
	"time"

	"pdf-term-stats/internal/corpus"
)

// Analysis is the record of one asynchronous document analysis
type Analysis struct {
	ID             string         `bson:"_id" json:"id"`
	Filename       string         `bson:"filename" json:"filename"`
	ContentHash    string         `bson:"content_hash" json:"content_hash"` // SHA-256 of the uploaded PDF
	Size           int64          `bson:"size" json:"size"`
	SourcePath     string         `bson:"source_path" json:"-"`
	PageTablePath  string         `bson:"page_table_path,omitempty" json:"-"`
	WorkbookPath   string         `bson:"workbook_path,omitempty" json:"-"`
	Status         string         `bson:"status" json:"status"` // pending, processing, completed, failed
	TaskID         string         `bson:"task_id,omitempty" json:"task_id,omitempty"`
	Pages          int            `bson:"pages" json:"pages"`
	FailedPages    []int          `bson:"failed_pages,omitempty" json:"failed_pages,omitempty"`
	VocabularySize int            `bson:"vocabulary_size" json:"vocabulary_size"`
	TopTerms       []PageTopTerms `bson:"top_terms,omitempty" json:"top_terms,omitempty"`
	ErrorMessage   string         `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt      time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `bson:"updated_at" json:"updated_at"`
	CompletedAt    *time.Time     `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// PageTopTerms lists the highest weighted terms of one page
type PageTopTerms struct {
	Page  int                `bson:"page" json:"page"`
	Terms []corpus.TermScore `bson:"terms" json:"terms"`
}

// AnalysisReport summarizes a finished analysis run
type AnalysisReport struct {
	Pages          int            `json:"pages"`
	FailedPages    []int          `json:"failed_pages,omitempty"`
	VocabularySize int            `json:"vocabulary_size"`
	PageTablePath  string         `json:"page_table_path"`
	WorkbookPath   string         `json:"workbook_path"`
	TopTerms       []PageTopTerms `json:"top_terms,omitempty"`
	Duration       time.Duration  `json:"duration"`
}

// AnalysisAccepted is returned when an analysis is queued
type AnalysisAccepted struct {
	ID      string `json:"id"`
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Analysis status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
