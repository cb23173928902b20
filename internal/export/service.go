// Package export produces XLSX workbooks from stored extraction results.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/repository"
)

// Service is a tiny façade over the results repository that renders XLSX bytes.
type Service struct {
	results repository.ResultRepository
	logger  *slog.Logger
}

func NewService(results repository.ResultRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{results: results, logger: logger}
}

// ExportResultsXLSX returns a workbook with one row per extracted field,
// newest extraction first. limit bounds how many extractions are included;
// 0 means the repository default.
func (s *Service) ExportResultsXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	results, err := s.results.ListResults(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query extractions: %w", err)
	}
	buf, rows, err := RenderXLSX(results)
	if err != nil {
		return nil, err
	}

	s.logger.Info("export.xlsx.ok",
		"extractions", len(results),
		"rows", rows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf, nil
}

// RenderXLSX builds the workbook without touching storage, so one-shot CLI
// runs can export a result that was never persisted.
func RenderXLSX(results []*entity.ExtractionResult) ([]byte, int, error) {
	f := excelize.NewFile()
	const sheet = "Extractions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, 0, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// drop the default sheet excelize creates
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Extraction ID",
		"Filename",
		"Status",
		"Field",
		"Value",
		"Confidence",
		"Evidence",
		"Model",
		"Attempts",
		"Created At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	row := 2
	for _, res := range results {
		created := res.CreatedAt.UTC().Format("2006-01-02 15:04:05")
		if len(res.Fields) == 0 {
			// failed runs still appear, with the error where the value goes
			write(1, row, res.ID.String())
			write(2, row, res.Filename)
			write(3, row, string(res.Status))
			write(5, row, truncate(res.ErrorMessage, 140))
			write(8, row, res.Model)
			write(9, row, res.Attempts)
			write(10, row, created)
			row++
			continue
		}
		for _, field := range res.Fields {
			write(1, row, res.ID.String())
			write(2, row, res.Filename)
			write(3, row, string(res.Status))
			write(4, row, field.Name)
			write(5, row, truncate(field.Value, 140))
			if field.Confidence != nil {
				write(6, row, float64(*field.Confidence))
			}
			write(7, row, truncate(field.Evidence, 140))
			write(8, row, res.Model)
			write(9, row, res.Attempts)
			write(10, row, created)
			row++
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 38) // id
	_ = f.SetColWidth(sheet, "B", "B", 28) // filename
	_ = f.SetColWidth(sheet, "C", "C", 12) // status
	_ = f.SetColWidth(sheet, "D", "E", 24) // field, value
	_ = f.SetColWidth(sheet, "G", "G", 48) // evidence
	_ = f.SetColWidth(sheet, "J", "J", 20) // created

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), row - 2, nil
}

// truncate cuts at a rune boundary so multi-byte text stays valid UTF-8.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimSpace(s[:n]) + "…"
}
