package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/xuri/excelize/v2"

	"pdf-term-stats/internal/corpus"
)

// Sheet names in workbook order.
const (
	SheetTF          = "TF"
	SheetIDF         = "IDF"
	SheetTFIDF       = "TF-IDF"
	SheetOccurrences = "Term Occurrences"
)

// WorkbookSheets lists the statistics sheets in the order they are written.
var WorkbookSheets = []string{SheetTF, SheetIDF, SheetTFIDF, SheetOccurrences}

var (
	ErrInvalidWorkbook = errors.New("invalid statistics workbook")
	// ErrWorkbookTooWide is returned when the vocabulary has more terms than a
	// worksheet has columns.
	ErrWorkbookTooWide = errors.New("vocabulary exceeds workbook column limit")
)

// WriteWorkbook renders stats as an XLSX workbook. Row 1 of every sheet holds
// the vocabulary; TF and TF-IDF carry one row per document, IDF and Term
// Occurrences a single data row.
func WriteWorkbook(w io.Writer, stats *corpus.Statistics) error {
	if err := checkWorkbookWidth(stats); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, stats.Vocabulary.Len())
	for i, term := range stats.Vocabulary.Terms() {
		header[i] = term
	}

	sheets := map[string][][]interface{}{
		SheetTF:          intRows(stats.TF),
		SheetIDF:         {floatRow(stats.IDF)},
		SheetTFIDF:       floatRows(stats.TFIDF),
		SheetOccurrences: {intRow(stats.DocOccurrence)},
	}

	for _, name := range WorkbookSheets {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, header, sheets[name]); err != nil {
			return err
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(SheetTF); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, header []interface{}, rows [][]interface{}) error {
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("stream sheet %s: %w", name, err)
	}
	if len(header) > 0 {
		if err := sw.SetRow("A1", header); err != nil {
			return fmt.Errorf("sheet %s header: %w", name, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			if err := sw.SetRow(cell, row); err != nil {
				return fmt.Errorf("sheet %s row %d: %w", name, i+2, err)
			}
		}
	}
	return sw.Flush()
}

// SaveWorkbook writes the workbook to path.
func SaveWorkbook(path string, stats *corpus.Statistics) error {
	if err := checkWorkbookWidth(stats); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	if err := WriteWorkbook(f, stats); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func checkWorkbookWidth(stats *corpus.Statistics) error {
	if n := stats.Vocabulary.Len(); n > excelize.MaxColumns {
		return fmt.Errorf("%w: %d terms, limit %d", ErrWorkbookTooWide, n, excelize.MaxColumns)
	}
	return nil
}

// ReadWorkbook parses a workbook produced by WriteWorkbook. A workbook with an
// empty vocabulary carries no rows, so it reads back as zero documents.
func ReadWorkbook(r io.Reader) (*corpus.Statistics, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWorkbook, err)
	}
	defer f.Close()

	raw := make(map[string][][]string, len(WorkbookSheets))
	for _, name := range WorkbookSheets {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %s: %w", ErrInvalidWorkbook, name, err)
		}
		raw[name] = rows
	}

	var terms []string
	if rows := raw[SheetTF]; len(rows) > 0 {
		terms = rows[0]
	}
	for _, name := range WorkbookSheets {
		var h []string
		if rows := raw[name]; len(rows) > 0 {
			h = rows[0]
		}
		if !slices.Equal(h, terms) {
			return nil, fmt.Errorf("%w: sheet %s header differs from %s", ErrInvalidWorkbook, name, SheetTF)
		}
	}

	vocab := corpus.NewVocabulary(terms)
	if vocab.Len() != len(terms) || !slices.Equal(vocab.Terms(), terms) {
		return nil, fmt.Errorf("%w: header is not a sorted distinct vocabulary", ErrInvalidWorkbook)
	}

	stats := &corpus.Statistics{Vocabulary: vocab, TF: [][]int{}, TFIDF: [][]float64{}}
	width := len(terms)
	if width == 0 {
		stats.IDF = []float64{}
		stats.DocOccurrence = []int{}
		return stats, nil
	}

	for _, row := range dataRows(raw[SheetTF]) {
		parsed, err := parseInts(row, width)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %s: %w", ErrInvalidWorkbook, SheetTF, err)
		}
		stats.TF = append(stats.TF, parsed)
	}
	for _, row := range dataRows(raw[SheetTFIDF]) {
		parsed, err := parseFloats(row, width)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %s: %w", ErrInvalidWorkbook, SheetTFIDF, err)
		}
		stats.TFIDF = append(stats.TFIDF, parsed)
	}
	if len(stats.TFIDF) != len(stats.TF) {
		return nil, fmt.Errorf("%w: %d TF rows but %d TF-IDF rows", ErrInvalidWorkbook, len(stats.TF), len(stats.TFIDF))
	}

	idf := dataRows(raw[SheetIDF])
	occ := dataRows(raw[SheetOccurrences])
	if len(idf) != 1 || len(occ) != 1 {
		return nil, fmt.Errorf("%w: expected one data row in %s and %s", ErrInvalidWorkbook, SheetIDF, SheetOccurrences)
	}
	if stats.IDF, err = parseFloats(idf[0], width); err != nil {
		return nil, fmt.Errorf("%w: sheet %s: %w", ErrInvalidWorkbook, SheetIDF, err)
	}
	if stats.DocOccurrence, err = parseInts(occ[0], width); err != nil {
		return nil, fmt.Errorf("%w: sheet %s: %w", ErrInvalidWorkbook, SheetOccurrences, err)
	}
	return stats, nil
}

// LoadWorkbook reads the workbook stored at path.
func LoadWorkbook(path string) (*corpus.Statistics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return ReadWorkbook(f)
}

func dataRows(rows [][]string) [][]string {
	if len(rows) < 2 {
		return nil
	}
	return rows[1:]
}

func intRow(values []int) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

func intRows(m [][]int) [][]interface{} {
	rows := make([][]interface{}, len(m))
	for i, r := range m {
		rows[i] = intRow(r)
	}
	return rows
}

func floatRow(values []float64) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

func floatRows(m [][]float64) [][]interface{} {
	rows := make([][]interface{}, len(m))
	for i, r := range m {
		rows[i] = floatRow(r)
	}
	return rows
}

// Cells past the end of a row are empty in the sheet and read as zero.
func parseInts(row []string, width int) ([]int, error) {
	if len(row) > width {
		return nil, fmt.Errorf("row has %d cells, vocabulary has %d terms", len(row), width)
	}
	out := make([]int, width)
	for i, cell := range row {
		if cell == "" {
			continue
		}
		v, err := strconv.Atoi(cell)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(row []string, width int) ([]float64, error) {
	if len(row) > width {
		return nil, fmt.Errorf("row has %d cells, vocabulary has %d terms", len(row), width)
	}
	out := make([]float64, width)
	for i, cell := range row {
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}
