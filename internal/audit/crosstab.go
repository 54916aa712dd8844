package audit

import "fmt"

// TotalLabel names the totals row and column of a cross tabulation.
const TotalLabel = "Total"

type cellKey struct{ row, col string }

// CrossTab is a sparse contingency table over two categorical fields.
// Categories are the raw observed values plus MissingCategory, in
// first-observed order. Cells never observed read as zero.
type CrossTab struct {
	Name     string
	RowField string
	ColField string
	Rows     []string
	Cols     []string

	cells     map[cellKey]int
	rowTotals map[string]int
	colTotals map[string]int
	total     int
}

// BuildCrossTab counts joint occurrences of rowField and colField in one pass.
func BuildCrossTab(records []Record, rowField, colField string) *CrossTab {
	ct := &CrossTab{
		Name:      fmt.Sprintf("%s vs %s", rowField, colField),
		RowField:  rowField,
		ColField:  colField,
		cells:     make(map[cellKey]int),
		rowTotals: make(map[string]int),
		colTotals: make(map[string]int),
	}
	seenRow := map[string]bool{}
	seenCol := map[string]bool{}
	for _, r := range records {
		rv := Category(r[rowField])
		cv := Category(r[colField])
		if !seenRow[rv] {
			seenRow[rv] = true
			ct.Rows = append(ct.Rows, rv)
		}
		if !seenCol[cv] {
			seenCol[cv] = true
			ct.Cols = append(ct.Cols, cv)
		}
		ct.cells[cellKey{rv, cv}]++
	}
	ct.computeTotals()
	return ct
}

func (ct *CrossTab) computeTotals() {
	for k, n := range ct.cells {
		ct.rowTotals[k.row] += n
		ct.colTotals[k.col] += n
		ct.total += n
	}
}

// Count returns the cell for (row, col). TotalLabel selects the totals row or
// column; Count(TotalLabel, TotalLabel) is the grand total.
func (ct *CrossTab) Count(row, col string) int {
	switch {
	case row == TotalLabel && col == TotalLabel:
		return ct.total
	case row == TotalLabel:
		return ct.colTotals[col]
	case col == TotalLabel:
		return ct.rowTotals[row]
	}
	return ct.cells[cellKey{row, col}]
}

// RowTotal is the sum of one row's cells.
func (ct *CrossTab) RowTotal(row string) int { return ct.rowTotals[row] }

// ColTotal is the sum of one column's cells.
func (ct *CrossTab) ColTotal(col string) int { return ct.colTotals[col] }

// GrandTotal equals the number of records tabulated.
func (ct *CrossTab) GrandTotal() int { return ct.total }

// Table lays the cross tab out with a trailing Total column and Total row.
func (ct *CrossTab) Table() Table {
	header := make([]string, 0, len(ct.Cols)+2)
	header = append(header, ct.Name)
	header = append(header, ct.Cols...)
	header = append(header, TotalLabel)

	rows := make([][]any, 0, len(ct.Rows)+1)
	for _, r := range ct.Rows {
		line := make([]any, 0, len(header))
		line = append(line, r)
		for _, c := range ct.Cols {
			line = append(line, ct.cells[cellKey{r, c}])
		}
		line = append(line, ct.rowTotals[r])
		rows = append(rows, line)
	}
	totals := make([]any, 0, len(header))
	totals = append(totals, TotalLabel)
	for _, c := range ct.Cols {
		totals = append(totals, ct.colTotals[c])
	}
	totals = append(totals, ct.total)
	rows = append(rows, totals)
	return Table{Name: ct.Name, Header: header, Rows: rows}
}
