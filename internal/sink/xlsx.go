package sink

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/dqaudit-cli/internal/audit"
	"github.com/KaramelBytes/dqaudit-cli/internal/utils"
	"github.com/spf13/cast"
)

const maxSheetName = 31

// Workbook builds an .xlsx file in memory. Tables written to an existing
// sheet are placed to the right of its content after one blank column.
type Workbook struct {
	order  []string
	sheets map[string]*grid
}

type grid struct {
	cells map[[2]int]any
	rows  int
	cols  int
}

func (g *grid) set(r, c int, v any) {
	g.cells[[2]int{r, c}] = v
	if r+1 > g.rows {
		g.rows = r + 1
	}
	if c+1 > g.cols {
		g.cols = c + 1
	}
}

// NewWorkbook returns an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{sheets: map[string]*grid{}}
}

// SheetName trims a label to a valid sheet name.
func SheetName(label string) string {
	r := strings.NewReplacer("[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", `\`, "_")
	name := strings.TrimSpace(r.Replace(label))
	if name == "" {
		name = "Sheet"
	}
	if len([]rune(name)) > maxSheetName {
		name = string([]rune(name)[:maxSheetName])
	}
	return name
}

// Sheets lists sheet names in creation order.
func (w *Workbook) Sheets() []string { return append([]string(nil), w.order...) }

// WriteTable appends t to sheet. A title row is written when the table name
// is not already the first header cell.
func (w *Workbook) WriteTable(sheet string, t audit.Table) error {
	name := SheetName(sheet)
	g, ok := w.sheets[name]
	if !ok {
		g = &grid{cells: map[[2]int]any{}}
		w.sheets[name] = g
		w.order = append(w.order, name)
	}
	col := 0
	if g.cols > 0 {
		col = g.cols + 1
	}
	row := 0
	if t.Name != "" && (len(t.Header) == 0 || t.Header[0] != t.Name) {
		g.set(row, col, t.Name)
		row++
	}
	for i, h := range t.Header {
		g.set(row, col+i, h)
	}
	if len(t.Header) > 0 {
		row++
	}
	for _, line := range t.Rows {
		for i, v := range line {
			g.set(row, col+i, v)
		}
		row++
	}
	return nil
}

// Save writes the workbook atomically.
func (w *Workbook) Save(path string) error {
	b, err := w.Bytes()
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, b)
}

// Bytes renders the workbook package.
func (w *Workbook) Bytes() ([]byte, error) {
	order := w.order
	if len(order) == 0 {
		order = []string{"Sheet1"}
		w.sheets["Sheet1"] = &grid{cells: map[[2]int]any{}}
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", xlsxContentTypes(len(order))},
		{"_rels/.rels", xlsxRootRels},
		{"xl/workbook.xml", xlsxWorkbookXML(order)},
		{"xl/_rels/workbook.xml.rels", xlsxWorkbookRels(len(order))},
		{"xl/styles.xml", xlsxStyles},
	}
	for i, name := range order {
		parts = append(parts, struct {
			name string
			body string
		}{fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1), w.sheets[name].xml()})
	}
	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("xlsx part %s: %w", p.name, err)
		}
		if _, err := f.Write([]byte(p.body)); err != nil {
			return nil, fmt.Errorf("xlsx part %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *grid) xml() string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>`)
	for r := 0; r < g.rows; r++ {
		fmt.Fprintf(&sb, `<row r="%d">`, r+1)
		for c := 0; c < g.cols; c++ {
			v, ok := g.cells[[2]int{r, c}]
			if !ok || v == nil {
				continue
			}
			ref := cellRef(r, c)
			if num, isNum := numericCell(v); isNum {
				fmt.Fprintf(&sb, `<c r="%s"><v>%s</v></c>`, ref, num)
				continue
			}
			fmt.Fprintf(&sb, `<c r="%s" t="inlineStr"><is><t xml:space="preserve">%s</t></is></c>`, ref, escape(textCell(v)))
		}
		sb.WriteString(`</row>`)
	}
	sb.WriteString(`</sheetData></worksheet>`)
	return sb.String()
}

func numericCell(v any) (string, bool) {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return cast.ToString(x), true
	case float32:
		return numericCell(float64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	}
	return "", false
}

func textCell(v any) string {
	switch x := v.(type) {
	case time.Time:
		return audit.Category(x)
	case float64:
		return audit.MissingCategory
	}
	return audit.Category(v)
}

// cellRef converts zero-based coordinates to an A1 reference.
func cellRef(row, col int) string {
	var letters []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		letters = append([]byte{byte('A' + (n-1)%26)}, letters...)
	}
	return string(letters) + strconv.Itoa(row+1)
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func xlsxContentTypes(n int) string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	sb.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	sb.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	sb.WriteString(`<Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>`)
	sb.WriteString(`<Override PartName="/xl/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"/>`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, `<Override PartName="/xl/worksheets/sheet%d.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>`, i)
	}
	sb.WriteString(`</Types>`)
	return sb.String()
}

const xlsxRootRels = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>` +
	`</Relationships>`

func xlsxWorkbookXML(names []string) string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets>`)
	for i, n := range names {
		fmt.Fprintf(&sb, `<sheet name="%s" sheetId="%d" r:id="rId%d"/>`, escape(n), i+1, i+1)
	}
	sb.WriteString(`</sheets></workbook>`)
	return sb.String()
}

func xlsxWorkbookRels(n int) string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet%d.xml"/>`, i, i)
	}
	fmt.Fprintf(&sb, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>`, n+1)
	sb.WriteString(`</Relationships>`)
	return sb.String()
}

const xlsxStyles = xml.Header + `<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">` +
	`<fonts count="1"><font><sz val="11"/><name val="Calibri"/></font></fonts>` +
	`<fills count="1"><fill><patternFill patternType="none"/></fill></fills>` +
	`<borders count="1"><border/></borders>` +
	`<cellStyleXfs count="1"><xf/></cellStyleXfs>` +
	`<cellXfs count="1"><xf xfId="0"/></cellXfs>` +
	`</styleSheet>`
