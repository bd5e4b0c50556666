package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Student ID", "Name", "Overall"},
		Rows: []map[string]string{
			{"Student ID": "STU-2024-0001", "Name": "Asha", "Overall": "77"},
			{"Student ID": "STU-2024-0002", "Name": "Ben, Jr.", "Overall": "40"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student ID,Name,Overall", lines[0])
	assert.Equal(t, `STU-2024-0002,"Ben, Jr.",40`, lines[2])

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestCSVExporterSummaryKeepsColumnCount(t *testing.T) {
	data := sampleDataset()
	data.Summary = []SummaryLine{{Label: "Class average (%)", Value: "59"}}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"", "", ""}, records[3])
	assert.Equal(t, []string{"Class average (%)", "59", ""}, records[4])
}

func TestExportersRejectDuplicateHeaders(t *testing.T) {
	data := Dataset{Headers: []string{"Name", "Name"}}
	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(data, "")
	assert.Error(t, err)
	_, err = NewXLSXExporter().Render(data, "")
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Class 10A Term1")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterPaginatesLongTables(t *testing.T) {
	data := Dataset{Headers: []string{"Student ID", "Overall"}}
	for i := 0; i < 120; i++ {
		id := fmt.Sprintf("STU-%04d", i)
		data.Rows = append(data.Rows, map[string]string{"Student ID": id, "Overall": "50"})
	}
	data.Summary = []SummaryLine{{Label: "Appeared", Value: "120"}}
	out, err := NewPDFExporter().Render(data, "")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestNumeric(t *testing.T) {
	assert.True(t, numeric("77"))
	assert.True(t, numeric("12.5"))
	assert.True(t, numeric("64%"))
	assert.False(t, numeric("B+"))
	assert.False(t, numeric(""))
}

func TestXLSXRoundTrip(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset(), "10A/Term1: results")
	require.NoError(t, err)

	rows, err := ReadFirstSheet(bytes.NewReader(out))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Student ID", "Name", "Overall"}, rows[0])
	assert.Equal(t, []string{"STU-2024-0002", "Ben, Jr.", "40"}, rows[2])
}

func TestXLSXWritesSummaryBelowTable(t *testing.T) {
	data := sampleDataset()
	data.Summary = []SummaryLine{{Label: "Passed", Value: "1 (50%)"}}
	out, err := NewXLSXExporter().Render(data, "10A")
	require.NoError(t, err)

	rows, err := ReadFirstSheet(bytes.NewReader(out))
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Empty(t, rows[3])
	assert.Equal(t, []string{"Passed", "1 (50%)"}, rows[4])
}

func TestReadFirstSheetRejectsGarbage(t *testing.T) {
	_, err := ReadFirstSheet(strings.NewReader("not a workbook"))
	assert.Error(t, err)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Report", sheetName("  "))
	assert.Equal(t, "10A Term1  results", sheetName("10A/Term1: results"))
	assert.Len(t, sheetName(strings.Repeat("x", 40)), maxSheetNameLen)
}
