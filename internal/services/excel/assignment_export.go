package excel

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/onegreenvn/assign-services-backend/internal/models"
)

const assignmentSheetName = "Assignments"

var assignmentColumns = []string{
	"id", "topic_id", "topic_title", "target_type", "target_id", "post_number",
	"assigned_to_type", "assigned_to", "assigned_by_id", "status", "note", "assigned_at",
}

// AssignmentExporter writes assignment lists to Excel files
type AssignmentExporter struct {
	exportsDir string
}

// NewAssignmentExporter creates an exporter writing into exportsDir
func NewAssignmentExporter(exportsDir string) *AssignmentExporter {
	// Create exports directory if it doesn't exist
	if _, err := os.Stat(exportsDir); os.IsNotExist(err) {
		os.MkdirAll(exportsDir, 0755)
	}
	return &AssignmentExporter{exportsDir: exportsDir}
}

// ExportResult contains the result of an export operation
type ExportResult struct {
	Success  bool
	Message  string
	Filename string
}

// ExportsDir returns the directory exports are written to
func (e *AssignmentExporter) ExportsDir() string {
	return e.exportsDir
}

// Export writes the rows to a new workbook in the exports directory
func (e *AssignmentExporter) Export(rows []models.AssignmentResponse) (*ExportResult, error) {
	f, err := Build(rows)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	filename := fmt.Sprintf("assignments_%d.xlsx", time.Now().UnixNano())
	if err := f.SaveAs(filepath.Join(e.exportsDir, filename)); err != nil {
		return nil, fmt.Errorf("failed to save Excel file: %w", err)
	}

	return &ExportResult{
		Success:  true,
		Message:  fmt.Sprintf("Successfully exported %d assignments", len(rows)),
		Filename: filename,
	}, nil
}

// Build lays the rows out on the Assignments sheet of a new workbook
func Build(rows []models.AssignmentResponse) (*excelize.File, error) {
	f := excelize.NewFile()

	defaultSheetName := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheetName, assignmentSheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	f.SetActiveSheet(0)

	for i, col := range assignmentColumns {
		f.SetCellValue(assignmentSheetName, columnToLetter(i+1)+"1", col)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"FFFF00"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err == nil {
		f.SetCellStyle(assignmentSheetName, "A1", columnToLetter(len(assignmentColumns))+strconv.Itoa(1), headerStyle)
	}

	for i, col := range assignmentColumns {
		colLetter := columnToLetter(i + 1)
		width := 15.0

		switch col {
		case "topic_title":
			width = 40.0
		case "note":
			width = 50.0
		case "assigned_to", "status":
			width = 20.0
		case "assigned_at":
			width = 22.0
		}

		f.SetColWidth(assignmentSheetName, colLetter, colLetter, width)
	}

	if len(rows) == 0 {
		f.SetCellValue(assignmentSheetName, "A2", "no active assignments")
		return f, nil
	}

	for j, row := range rows {
		rowNum := j + 2
		status := ""
		if row.Status != nil {
			status = *row.Status
		}

		values := []interface{}{
			row.ID, row.TopicID, row.TopicTitle, row.TargetType, row.TargetID, row.PostNumber,
			row.AssignedToType, row.AssignedToName, row.AssignedByID, status, row.Note, row.AssignedAt,
		}
		for i, value := range values {
			f.SetCellValue(assignmentSheetName, fmt.Sprintf("%s%d", columnToLetter(i+1), rowNum), value)
		}
	}
	return f, nil
}

// Helper function to convert column number to Excel column letter
func columnToLetter(col int) string {
	var result string
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
