package sink

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/dqaudit-cli/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(b)
		}
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func completeness(name string) audit.Table {
	return audit.CompletenessTable(name, []audit.CompletenessMetric{
		{Field: "Race", PercentComplete: 87.5},
		{Field: "Sex", PercentComplete: 100},
	})
}

func TestWorkbook_SideBySideTables(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.WriteTable("CompletenessReport", completeness("Demographic")))
	require.NoError(t, wb.WriteTable("CompletenessReport", completeness("Laboratory")))
	assert.Equal(t, []string{"CompletenessReport"}, wb.Sheets())

	g := wb.sheets["CompletenessReport"]
	assert.Equal(t, "Demographic", g.cells[[2]int{0, 0}])
	assert.Equal(t, "Laboratory", g.cells[[2]int{0, 3}])
	assert.Equal(t, 87.5, g.cells[[2]int{2, 4}])
	_, blank := g.cells[[2]int{1, 2}]
	assert.False(t, blank)

	data, err := wb.Bytes()
	require.NoError(t, err)
	sheet := zipPart(t, data, "xl/worksheets/sheet1.xml")
	assert.Contains(t, sheet, `<c r="E3"><v>87.5</v></c>`)
	assert.Contains(t, sheet, `<c r="D1" t="inlineStr"><is><t xml:space="preserve">Laboratory</t></is></c>`)
	assert.Contains(t, zipPart(t, data, "xl/workbook.xml"), `name="CompletenessReport"`)
}

func TestWorkbook_Save(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.WriteTable("Result & Flag", audit.Table{Header: []string{"a"}, Rows: [][]any{{"<x>"}}}))
	p := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, wb.Save(p))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, zipPart(t, data, "xl/worksheets/sheet1.xml"), "&lt;x&gt;")
	assert.Contains(t, zipPart(t, data, "xl/workbook.xml"), "Result &amp; Flag")
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "a_b_c", SheetName("a/b:c"))
	assert.Equal(t, "Sheet", SheetName("  "))
	assert.Len(t, SheetName(strings.Repeat("x", 40)), 31)
}

func TestCellRef(t *testing.T) {
	assert.Equal(t, "A1", cellRef(0, 0))
	assert.Equal(t, "Z2", cellRef(1, 25))
	assert.Equal(t, "AA3", cellRef(2, 26))
	assert.Equal(t, "AZ1", cellRef(0, 51))
}

func TestDocument(t *testing.T) {
	d := NewDocument("HL7 Error Examples")
	d.AddHeading(1, "THRESHOLD ERROR: Race")
	d.AddParagraph("MSH|^~\\&|LAB\nPID|1||123")
	assert.Equal(t, 4, d.Len())

	data, err := d.Bytes()
	require.NoError(t, err)
	body := zipPart(t, data, "word/document.xml")
	assert.Contains(t, body, `<w:pStyle w:val="Title"/>`)
	assert.Contains(t, body, "THRESHOLD ERROR: Race")
	assert.Contains(t, body, "PID|1||123")
	assert.Contains(t, zipPart(t, data, "word/styles.xml"), `w:styleId="Heading1"`)
}

func TestMarkdown(t *testing.T) {
	m := NewMarkdown("Data Quality")
	require.NoError(t, m.WriteTable("CompletenessReport", completeness("Demographic")))
	require.NoError(t, m.WriteTable("Date_Errors", audit.ViolationTable(nil)))
	out := m.String()
	assert.True(t, strings.HasPrefix(out, "# Data Quality\n"))
	assert.Contains(t, out, "| Fields of Interest | Percent Complete |")
	assert.Contains(t, out, "| Race | 87.5 |")
	assert.Contains(t, out, "| (none) |")
}
