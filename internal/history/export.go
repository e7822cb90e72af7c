package history

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportXLSX renders the learner's full attempt history as an Excel
// workbook.
func (s *service) ExportXLSX(ctx context.Context, learnerID string) ([]byte, error) {
	records, _, err := s.ListByLearner(ctx, learnerID, 0, 0)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheetName := "Attempt History"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Attempt ID", "Assessment", "Score", "Max Score", "Percentage",
		"Passed", "Time Spent (s)", "Graded At",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, record := range records {
		row := []interface{}{
			record.AttemptID,
			record.AssessmentTitle,
			record.Score,
			record.MaxScore,
			fmt.Sprintf("%.1f%%", record.Percentage),
			record.Passed,
			record.ElapsedSeconds,
			record.GradedAt.Format("2006-01-02 15:04:05"),
		}
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Exported attempt history",
		"learner_id", learnerID,
		"records", len(records))
	return buf.Bytes(), nil
}
