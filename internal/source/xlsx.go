package source

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

// workbook is a read-only view over the parts of an .xlsx package needed to
// stream cell text.
type workbook struct {
	name   string
	zr     *zip.Reader
	sheets []sheetEntry
	rels   map[string]string
	shared []string
}

type sheetEntry struct {
	Name  string
	ID    int
	RelID string
}

func openWorkbook(name string, data []byte) (*workbook, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	wb := &workbook{name: name, zr: zr}
	wb.sheets = parseSheetEntries(wb.part("xl/workbook.xml"))
	wb.rels = parseRelationships(wb.part("xl/_rels/workbook.xml.rels"))
	wb.shared = parseSharedStrings(wb.part("xl/sharedStrings.xml"))
	return wb, nil
}

func (wb *workbook) part(name string) []byte {
	for _, f := range wb.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}

// SheetNames lists sheets in workbook order.
func (wb *workbook) SheetNames() []string {
	out := make([]string, len(wb.sheets))
	for i, s := range wb.sheets {
		out[i] = s.Name
	}
	return out
}

// sheetPart resolves a sheet by name, or by 1-based index when name is empty.
func (wb *workbook) sheetPart(name string, index int) (string, error) {
	if name != "" {
		for _, s := range wb.sheets {
			if strings.EqualFold(s.Name, name) {
				if target, ok := wb.rels[s.RelID]; ok {
					return partPath(target), nil
				}
			}
		}
		return "", fmt.Errorf("sheet %q not found in workbook %q (available: %s)",
			name, wb.name, strings.Join(wb.SheetNames(), ", "))
	}
	if index <= 0 {
		index = 1
	}
	for _, s := range wb.sheets {
		if s.ID == index {
			if target, ok := wb.rels[s.RelID]; ok {
				return partPath(target), nil
			}
		}
	}
	return fmt.Sprintf("xl/worksheets/sheet%d.xml", index), nil
}

// Rows returns the header and data rows of one sheet.
func (wb *workbook) Rows(sheet string, index int) ([]string, [][]string, error) {
	p, err := wb.sheetPart(sheet, index)
	if err != nil {
		return nil, nil, err
	}
	data := wb.part(p)
	if data == nil {
		return nil, nil, fmt.Errorf("sheet part %s missing from %s", p, wb.name)
	}
	rr := &rowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: wb.shared}
	header, ok := rr.Next()
	if !ok {
		return nil, nil, nil
	}
	var rows [][]string
	for {
		row, ok := rr.Next()
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// partPath turns a relationship target into a zip entry name. Targets may be
// absolute ("/xl/worksheets/sheet1.xml") or relative to xl/.
func partPath(target string) string {
	target = strings.TrimPrefix(target, "/")
	if strings.HasPrefix(target, "xl/") {
		return target
	}
	return path.Join("xl", target)
}

func parseSheetEntries(data []byte) []sheetEntry {
	var out []sheetEntry
	eachStart(data, func(se xml.StartElement) {
		if se.Name.Local != "sheet" {
			return
		}
		var s sheetEntry
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.Name = a.Value
			case "sheetId":
				s.ID, _ = strconv.Atoi(a.Value)
			case "id":
				s.RelID = a.Value
			}
		}
		out = append(out, s)
	})
	return out
}

func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	eachStart(data, func(se xml.StartElement) {
		if se.Name.Local != "Relationship" {
			return
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	})
	return out
}

func eachStart(data []byte, fn func(xml.StartElement)) {
	if len(data) == 0 {
		return
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if se, ok := tok.(xml.StartElement); ok {
			fn(se)
		}
	}
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		out  []string
		buf  strings.Builder
		inT  bool
		inSI bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				inSI = true
				buf.Reset()
			case "t":
				inT = inSI
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				inSI = false
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

// rowReader streams <row> elements of a worksheet as dense string slices.
type rowReader struct {
	dec    *xml.Decoder
	shared []string
}

func (r *rowReader) Next() ([]string, bool) {
	var (
		row   []string
		inRow bool
		next  int
	)
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if inRow {
				return row, true
			}
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch {
			case se.Name.Local == "row":
				inRow, row, next = true, nil, 0
			case inRow && se.Name.Local == "c":
				var ref, typ string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						ref = a.Value
					case "t":
						typ = a.Value
					}
				}
				col := columnIndex(ref)
				if col < 0 {
					col = next
				}
				next = col + 1
				val := r.cellValue(typ)
				for len(row) <= col {
					row = append(row, "")
				}
				row[col] = val
			}
		case xml.EndElement:
			if se.Name.Local == "row" && inRow {
				return row, true
			}
		}
	}
}

// cellValue consumes tokens up to </c> and returns the cell text.
func (r *rowReader) cellValue(typ string) string {
	var val strings.Builder
	capture := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val.String()
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				capture = true
			}
		case xml.CharData:
			if capture {
				val.Write(se)
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "v", "t":
				capture = false
			case "c":
				if typ == "s" {
					idx, err := strconv.Atoi(strings.TrimSpace(val.String()))
					if err != nil || idx < 0 || idx >= len(r.shared) {
						return ""
					}
					return r.shared[idx]
				}
				return val.String()
			}
		}
	}
}

// columnIndex converts "C12" to 2. It returns -1 when ref has no letters.
func columnIndex(ref string) int {
	idx := 0
	n := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		idx = idx*26 + int(c-'A'+1)
		n++
	}
	if n == 0 {
		return -1
	}
	return idx - 1
}
