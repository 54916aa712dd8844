package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/dqaudit-cli/internal/audit"
)

// FileProvider reads record sets from CSV, TSV or XLSX exports. Each
// mapping's Table is the export path.
type FileProvider struct {
	mappings map[string]Mapping

	// Sheet selects an XLSX sheet by name; SheetIndex (1-based) is used when
	// Sheet is empty.
	Sheet      string
	SheetIndex int
	// Delimiter overrides CSV delimiter detection.
	Delimiter rune
	// Encoding names the character set of CSV exports; empty means UTF-8.
	Encoding string
}

// NewFileProvider returns a provider over the given exports.
func NewFileProvider(mappings map[string]Mapping) *FileProvider {
	return &FileProvider{mappings: mappings}
}

// Fetch reads the export for q.Set and keeps rows whose filter column
// contains any term. Empty cells become nil.
func (p *FileProvider) Fetch(ctx context.Context, q Query) (audit.RecordSet, error) {
	if err := q.Validate(); err != nil {
		return audit.RecordSet{}, err
	}
	m, ok := p.mappings[q.Set]
	if !ok || m.Table == "" {
		return audit.RecordSet{}, fmt.Errorf("no export file for %s records", q.Set)
	}
	if err := ctx.Err(); err != nil {
		return audit.RecordSet{}, err
	}
	header, rows, err := p.read(m.Table)
	if err != nil {
		return audit.RecordSet{}, err
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	lookup := func(name string) (int, bool) {
		if i, ok := pos[name]; ok {
			return i, true
		}
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i, true
			}
		}
		return -1, false
	}

	terms := q.cleanTerms()
	filterIdx := -1
	if len(terms) > 0 {
		i, ok := lookup(m.FilterColumn)
		if !ok {
			return audit.RecordSet{}, fmt.Errorf("filter column %q not found in %s", m.FilterColumn, filepath.Base(m.Table))
		}
		filterIdx = i
	}

	type binding struct {
		field string
		idx   int
	}
	var binds []binding
	used := map[int]bool{}
	for _, c := range m.Columns {
		i, ok := lookup(m.sourceColumn(c))
		if !ok {
			i, ok = lookup(c)
		}
		if ok {
			binds = append(binds, binding{c, i})
			used[i] = true
		}
	}
	if len(m.Columns) == 0 {
		for i, h := range header {
			binds = append(binds, binding{strings.TrimSpace(h), i})
			used[i] = true
		}
	}
	for i, h := range header {
		if !used[i] && strings.TrimSpace(h) != "" {
			binds = append(binds, binding{strings.TrimSpace(h), i})
		}
	}

	rs := audit.RecordSet{Name: q.Set}
	for _, b := range binds {
		rs.Columns = append(rs.Columns, b.field)
	}
	for _, row := range rows {
		if filterIdx >= 0 && !matchesAny(cell(row, filterIdx), terms) {
			continue
		}
		rec := make(audit.Record, len(binds))
		for _, b := range binds {
			if v := cell(row, b.idx); strings.TrimSpace(v) != "" {
				rec[b.field] = v
			} else {
				rec[b.field] = nil
			}
		}
		rs.Records = append(rs.Records, rec)
	}
	return rs, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func (p *FileProvider) read(path string) ([]string, [][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read xlsx: %w", err)
		}
		wb, err := openWorkbook(filepath.Base(path), data)
		if err != nil {
			return nil, nil, err
		}
		return wb.Rows(p.Sheet, p.SheetIndex)
	case ".csv", ".tsv", ".txt":
		return readCSV(path, p.Delimiter, p.Encoding)
	}
	return nil, nil, fmt.Errorf("unsupported export format: %s", filepath.Ext(path))
}
