package audit

import "sort"

// FrequencyRow is one value of a frequency table.
type FrequencyRow struct {
	Value      string
	Frequency  int
	Cumulative int
}

// Frequency is a descending frequency table with running totals.
type Frequency struct {
	Name  string
	Field string
	Rows  []FrequencyRow
}

// ValueFrequency counts countField values among records whose filterField is
// missing. Missing count values are skipped. Ties keep first-observed order.
func ValueFrequency(records []Record, filterField, countField string) Frequency {
	counts := map[string]int{}
	var order []string
	for _, r := range records {
		if !IsMissing(r[filterField]) || IsMissing(r[countField]) {
			continue
		}
		v := Category(r[countField])
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	f := Frequency{Name: "Blank " + filterField, Field: countField}
	running := 0
	for _, v := range order {
		running += counts[v]
		f.Rows = append(f.Rows, FrequencyRow{Value: v, Frequency: counts[v], Cumulative: running})
	}
	return f
}

// Table renders the frequency rows.
func (f Frequency) Table() Table {
	t := Table{Name: f.Name, Header: []string{f.Field, "Frequency", "Cumulative Frequency"}}
	for _, r := range f.Rows {
		t.Rows = append(t.Rows, []any{r.Value, r.Frequency, r.Cumulative})
	}
	return t
}
