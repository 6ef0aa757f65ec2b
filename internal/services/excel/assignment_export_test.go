package excel

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/onegreenvn/assign-services-backend/internal/models"
)

func TestColumnToLetter(t *testing.T) {
	assert.Equal(t, "A", columnToLetter(1))
	assert.Equal(t, "Z", columnToLetter(26))
	assert.Equal(t, "AA", columnToLetter(27))
	assert.Equal(t, "AZ", columnToLetter(52))
}

func TestBuildWritesHeaderAndRows(t *testing.T) {
	status := "In Progress"
	rows := []models.AssignmentResponse{{
		ID:             1,
		TopicID:        42,
		TopicTitle:     "Printer on fire",
		TargetType:     "Topic",
		TargetID:       42,
		AssignedToType: "User",
		AssignedToName: "sam",
		AssignedByID:   1,
		Status:         &status,
		AssignedAt:     "2026-10-01T09:00:00Z",
	}}

	f, err := Build(rows)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue(assignmentSheetName, "C1")
	require.NoError(t, err)
	assert.Equal(t, "topic_title", header)

	title, err := f.GetCellValue(assignmentSheetName, "C2")
	require.NoError(t, err)
	assert.Equal(t, "Printer on fire", title)

	assignee, err := f.GetCellValue(assignmentSheetName, "H2")
	require.NoError(t, err)
	assert.Equal(t, "sam", assignee)

	statusCell, err := f.GetCellValue(assignmentSheetName, "J2")
	require.NoError(t, err)
	assert.Equal(t, "In Progress", statusCell)
}

func TestExportSavesWorkbook(t *testing.T) {
	dir := t.TempDir()
	exporter := NewAssignmentExporter(dir)

	result, err := exporter.Export(nil)
	require.NoError(t, err)
	assert.True(t, result.Success)

	f, err := excelize.OpenFile(filepath.Join(dir, result.Filename))
	require.NoError(t, err)
	defer f.Close()

	empty, err := f.GetCellValue(assignmentSheetName, "A2")
	require.NoError(t, err)
	assert.Equal(t, "no active assignments", empty)
}
