package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes returned in ErrorResponse.ErrorCode
const (
	CodeBadRequest        = "bad_request"
	CodeNoFile            = "no_file"
	CodeInvalidPDF        = "invalid_pdf"
	CodeFileTooLarge      = "file_too_large"
	CodeMalformedDocument = "malformed_document"
	CodePageExtraction    = "page_extraction_failed"
	CodeInvalidPageTable  = "invalid_page_table"
	CodeInvalidCorpus     = "invalid_corpus"
	CodeWorkbookTooWide   = "workbook_too_wide"
	CodeDownloadFailed    = "download_failed"
	CodeNotFound          = "not_found"
	CodeNotReady          = "not_ready"
	CodeUnavailable       = "service_unavailable"
	CodeInternal          = "internal_error"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, CodeBadRequest, message, details)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, CodeNotFound, message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, CodeInternal, message, details)
}
