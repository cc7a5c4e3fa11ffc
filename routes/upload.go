package routes

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"pdf-term-stats/internal/corpus"
	"pdf-term-stats/internal/logger"
	"pdf-term-stats/internal/pdftext"
	"pdf-term-stats/middleware"
	"pdf-term-stats/services"
	"pdf-term-stats/utils"

	"github.com/gin-gonic/gin"
)

const (
	pdfField       = "pdf"
	pageTableField = "csv"

	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var pdfMagic = []byte("%PDF")

// readUpload reads a multipart file field fully into memory. It writes the
// error response and returns ok=false when the upload is unusable.
func readUpload(c *gin.Context, field string, maxSize int64) (data []byte, filename string, ok bool) {
	header, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge, utils.CodeFileTooLarge,
				"File size exceeds maximum limit", gin.H{"max_size": maxSize})
			return nil, "", false
		}
		utils.RespondWithError(c, http.StatusBadRequest, utils.CodeNoFile,
			"No file provided in field "+field, nil)
		return nil, "", false
	}

	if header.Size > maxSize {
		utils.RespondWithError(c, http.StatusRequestEntityTooLarge, utils.CodeFileTooLarge,
			"File size exceeds maximum limit", gin.H{"max_size": maxSize, "received": header.Size})
		return nil, "", false
	}

	file, err := header.Open()
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to open uploaded file", nil)
		return nil, "", false
	}
	defer file.Close()

	data, err = io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to read uploaded file", nil)
		return nil, "", false
	}
	if int64(len(data)) > maxSize {
		utils.RespondWithError(c, http.StatusRequestEntityTooLarge, utils.CodeFileTooLarge,
			"File size exceeds maximum limit", gin.H{"max_size": maxSize})
		return nil, "", false
	}
	return data, header.Filename, true
}

// readPDFUpload is readUpload plus a PDF header check.
func readPDFUpload(c *gin.Context, maxSize int64) ([]byte, string, bool) {
	data, filename, ok := readUpload(c, pdfField, maxSize)
	if !ok {
		return nil, "", false
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		utils.RespondWithError(c, http.StatusBadRequest, utils.CodeInvalidPDF,
			"File does not appear to be a valid PDF", nil)
		return nil, "", false
	}
	return data, filename, true
}

// respondProcessingError translates pipeline errors into HTTP responses.
func respondProcessingError(c *gin.Context, err error) {
	var pageErr *pdftext.PageExtractionError

	switch {
	case errors.As(err, &pageErr):
		utils.RespondWithError(c, http.StatusUnprocessableEntity, utils.CodePageExtraction,
			"Text extraction failed for a page", gin.H{"page": pageErr.Page})
	case errors.Is(err, pdftext.ErrMalformedDocument):
		utils.RespondWithError(c, http.StatusUnprocessableEntity, utils.CodeMalformedDocument,
			"The document could not be parsed as a PDF", nil)
	case errors.Is(err, services.ErrFileTooLarge), errors.Is(err, pdftext.ErrDocumentTooLarge):
		utils.RespondWithError(c, http.StatusRequestEntityTooLarge, utils.CodeFileTooLarge,
			"File size exceeds maximum limit", nil)
	case errors.Is(err, services.ErrDownload):
		utils.RespondWithError(c, http.StatusBadGateway, utils.CodeDownloadFailed,
			"Failed to download the document", gin.H{"reason": err.Error()})
	case errors.Is(err, services.ErrInvalidPageTable):
		utils.RespondWithError(c, http.StatusUnprocessableEntity, utils.CodeInvalidPageTable,
			"The page table could not be read", gin.H{"reason": err.Error()})
	case errors.Is(err, corpus.ErrInvalidCorpus):
		utils.RespondWithError(c, http.StatusUnprocessableEntity, utils.CodeInvalidCorpus,
			"Documents must be strings", gin.H{"reason": err.Error()})
	case errors.Is(err, services.ErrWorkbookTooWide):
		utils.RespondWithError(c, http.StatusUnprocessableEntity, utils.CodeWorkbookTooWide,
			"The vocabulary has more terms than a workbook sheet has columns", gin.H{"reason": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		utils.RespondWithError(c, http.StatusServiceUnavailable, utils.CodeUnavailable,
			"The request was cancelled before processing finished", nil)
	default:
		logger.Error("Request processing failed", "request_id", middleware.GetRequestID(c), "error", err)
		utils.RespondWithInternalError(c, "Processing failed", nil)
	}
}

func attachment(c *gin.Context, contentType, filename string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}
