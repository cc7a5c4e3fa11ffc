package routes

import (
	"bytes"
	"net/http"
	"time"

	"pdf-term-stats/internal/config"
	"pdf-term-stats/internal/pdftext"
	"pdf-term-stats/services"
	"pdf-term-stats/utils"

	"github.com/gin-gonic/gin"
)

// ExtractResponse is the JSON body of a successful extraction
type ExtractResponse struct {
	Filename    string               `json:"filename,omitempty"`
	PageCount   int                  `json:"page_count"`
	Pages       []pdftext.PageRecord `json:"pages"`
	FailedPages []int                `json:"failed_pages,omitempty"`
	DurationMS  int64                `json:"duration_ms"`
}

type extractURLRequest struct {
	URL string `json:"url" binding:"required"`
}

type documentsRequest struct {
	Documents []any `json:"documents" binding:"required"`
}

// SetupExtractionRoutes registers the synchronous extraction and statistics endpoints
func SetupExtractionRoutes(api *gin.RouterGroup, cfg *config.Config, svc *services.AnalysisService, downloader *services.Downloader) {
	api.POST("/extract", HandleExtract(cfg, svc))
	api.POST("/extract/url", HandleExtractURL(svc, downloader))
	api.POST("/statistics", HandleStatistics(cfg, svc))
	api.POST("/statistics/documents", HandleDocumentStatistics(svc))
}

// HandleExtract extracts page text from an uploaded PDF
func HandleExtract(cfg *config.Config, svc *services.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, filename, ok := readPDFUpload(c, cfg.MaxFileSize)
		if !ok {
			return
		}
		respondExtraction(c, svc, data, filename)
	}
}

// HandleExtractURL downloads a PDF and extracts its page text
func HandleExtractURL(svc *services.AnalysisService, downloader *services.Downloader) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req extractURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Request body must be {\"url\": \"...\"}", gin.H{"reason": err.Error()})
			return
		}

		data, err := downloader.Fetch(c.Request.Context(), req.URL)
		if err != nil {
			respondProcessingError(c, err)
			return
		}
		if !bytes.HasPrefix(data, pdfMagic) {
			utils.RespondWithError(c, http.StatusBadRequest, utils.CodeInvalidPDF,
				"The URL did not return a PDF document", nil)
			return
		}
		respondExtraction(c, svc, data, "")
	}
}

func respondExtraction(c *gin.Context, svc *services.AnalysisService, data []byte, filename string) {
	start := time.Now()
	res, err := svc.Extract(c.Request.Context(), data)
	if err != nil {
		respondProcessingError(c, err)
		return
	}

	if c.Query("format") == "csv" {
		var buf bytes.Buffer
		if err := services.WritePageTable(&buf, res.Pages); err != nil {
			respondProcessingError(c, err)
			return
		}
		attachment(c, contentTypeCSV, services.PageTableFile, buf.Bytes())
		return
	}

	c.JSON(http.StatusOK, ExtractResponse{
		Filename:    filename,
		PageCount:   len(res.Pages),
		Pages:       res.Pages,
		FailedPages: res.FailedPages,
		DurationMS:  time.Since(start).Milliseconds(),
	})
}

// HandleStatistics computes term statistics from an uploaded page table
func HandleStatistics(cfg *config.Config, svc *services.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, _, ok := readUpload(c, pageTableField, cfg.MaxFileSize)
		if !ok {
			return
		}

		pages, err := services.ReadPageTable(bytes.NewReader(data))
		if err != nil {
			respondProcessingError(c, err)
			return
		}
		stats, err := svc.Statistics(c.Request.Context(), pages)
		if err != nil {
			respondProcessingError(c, err)
			return
		}

		if c.Query("format") == "xlsx" {
			var buf bytes.Buffer
			if err := services.WriteWorkbook(&buf, stats); err != nil {
				respondProcessingError(c, err)
				return
			}
			attachment(c, contentTypeXLSX, services.WorkbookFile, buf.Bytes())
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// HandleDocumentStatistics computes term statistics from a JSON array of documents
func HandleDocumentStatistics(svc *services.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req documentsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Request body must be {\"documents\": [...]}", gin.H{"reason": err.Error()})
			return
		}

		stats, err := svc.StatisticsValues(c.Request.Context(), req.Documents)
		if err != nil {
			respondProcessingError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
