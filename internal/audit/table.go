package audit

// Table is the sink-facing shape of every result. Numeric cells stay numeric.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Empty reports whether the table has no data rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// CompletenessTable lists fields with their percent complete.
func CompletenessTable(name string, metrics []CompletenessMetric) Table {
	t := Table{Name: name, Header: []string{"Fields of Interest", "Percent Complete"}}
	for _, m := range metrics {
		t.Rows = append(t.Rows, []any{m.Field, m.PercentComplete})
	}
	return t
}

// ViolationTable lists date-order violations.
func ViolationTable(v []DateOrderViolation) Table {
	t := Table{Name: "Date Order Violations", Header: []string{"Result Test", "Accession", "Kind", "Detail"}}
	for _, x := range v {
		t.Rows = append(t.Rows, []any{x.ResultText, x.Accession, string(x.Kind), x.Detail})
	}
	return t
}

// AnomalyTable lists threshold exemplars.
func AnomalyTable(a []ThresholdAnomaly) Table {
	t := Table{Name: "Threshold Anomalies", Header: []string{"Result Test", "Accession", "Field"}}
	for _, x := range a {
		t.Rows = append(t.Rows, []any{x.ResultText, x.Accession, x.Field})
	}
	return t
}
