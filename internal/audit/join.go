package audit

import "sort"

// Join is the inner join of demo and lab on their schemas' join keys. The
// laboratory key column is folded into the demographic key. Rows come out in
// demographic order, then laboratory order for each match. Missing keys never
// match.
//
// A non-key column present in both sets is a ConfigurationError when either
// schema declares it. Other shared columns keep the demographic value and the
// laboratory copy is renamed "<lab set name>.<column>".
func Join(demo, lab RecordSet, demoSchema, labSchema Schema) (RecordSet, error) {
	demoKey, labKey := demoSchema.JoinKey, labSchema.JoinKey
	demoCols := map[string]bool{}
	for _, c := range demo.Columns {
		demoCols[c] = true
	}
	prefix := lab.Name
	if prefix == "" {
		prefix = SetLaboratory
	}
	var clash []string
	renamed := map[string]string{}
	for _, c := range lab.Columns {
		if c == labKey || c == demoKey || !demoCols[c] {
			continue
		}
		_, inDemo := demoSchema.Lookup(c)
		_, inLab := labSchema.Lookup(c)
		if inDemo || inLab {
			clash = append(clash, c)
			continue
		}
		renamed[c] = prefix + "." + c
	}
	if len(clash) > 0 {
		sort.Strings(clash)
		return RecordSet{}, &ConfigurationError{Reason: "schema fields present in both record sets", Fields: clash}
	}
	name := func(c string) string {
		if r, ok := renamed[c]; ok {
			return r
		}
		return c
	}

	index := map[string][]Record{}
	for _, r := range lab.Records {
		k := r[labKey]
		if IsMissing(k) {
			continue
		}
		key := Category(k)
		index[key] = append(index[key], r)
	}

	cols := append([]string{}, demo.Columns...)
	for _, c := range lab.Columns {
		if c != labKey && c != demoKey {
			cols = append(cols, name(c))
		}
	}

	out := RecordSet{Name: "joined", Columns: cols}
	for _, d := range demo.Records {
		k := d[demoKey]
		if IsMissing(k) {
			continue
		}
		for _, l := range index[Category(k)] {
			row := make(Record, len(d)+len(l))
			for c, v := range d {
				row[c] = v
			}
			for c, v := range l {
				if c == labKey {
					continue
				}
				row[name(c)] = v
			}
			out.Records = append(out.Records, row)
		}
	}
	return out, nil
}
