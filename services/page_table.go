package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"pdf-term-stats/internal/pdftext"
)

const (
	PageNumberColumn    = "Page Number"
	ExtractedTextColumn = "Extracted Text"
)

// ErrInvalidPageTable is returned when a page table cannot be parsed.
var ErrInvalidPageTable = errors.New("invalid page table")

// WritePageTable writes pages as CSV with a header row, one row per page.
func WritePageTable(w io.Writer, pages []pdftext.PageRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{PageNumberColumn, ExtractedTextColumn}); err != nil {
		return err
	}
	for _, p := range pages {
		if err := cw.Write([]string{strconv.Itoa(p.PageNumber), p.Text}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SavePageTable writes the page table to path, replacing any existing file.
func SavePageTable(path string, pages []pdftext.PageRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create page table: %w", err)
	}
	if err := WritePageTable(f, pages); err != nil {
		f.Close()
		return fmt.Errorf("write page table: %w", err)
	}
	return f.Close()
}

// ReadPageTable parses a page table. Columns are located by header name and
// rows keep their file order. A missing or blank text cell reads as "".
func ReadPageTable(r io.Reader) ([]pdftext.PageRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header row", ErrInvalidPageTable)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPageTable, err)
	}

	pageCol, textCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case PageNumberColumn:
			pageCol = i
		case ExtractedTextColumn:
			textCol = i
		}
	}
	if textCol < 0 {
		return nil, fmt.Errorf("%w: no %q column", ErrInvalidPageTable, ExtractedTextColumn)
	}

	pages := []pdftext.PageRecord{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPageTable, err)
		}

		rec := pdftext.PageRecord{PageNumber: len(pages) + 1}
		if pageCol >= 0 && pageCol < len(row) {
			n, err := strconv.Atoi(strings.TrimSpace(row[pageCol]))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: page number %q", ErrInvalidPageTable, line, row[pageCol])
			}
			rec.PageNumber = n
		}
		if textCol < len(row) {
			rec.Text = row[textCol]
		}
		pages = append(pages, rec)
	}
	return pages, nil
}

// LoadPageTable reads the page table stored at path.
func LoadPageTable(path string) ([]pdftext.PageRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page table: %w", err)
	}
	defer f.Close()
	return ReadPageTable(f)
}

// PageTexts returns the text column of pages in order.
func PageTexts(pages []pdftext.PageRecord) []string {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	return texts
}
