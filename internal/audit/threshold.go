package audit

import "sort"

// ThresholdTable maps a scored field name to its minimum percent complete.
type ThresholdTable map[string]float64

// ThresholdAnomaly is the exemplar for one field scoring under threshold.
type ThresholdAnomaly struct {
	ResultText string `json:"result_text"`
	Accession  string `json:"accession"`
	Field      string `json:"field"`
}

var facilityFields = map[string]bool{
	"FACILITYADDRESS": true,
	"FACILITYCITY":    true,
	"FACILITYSTATE":   true,
	"FACILITYZIP":     true,
	"FACILITYPHONE":   true,
}

// DefaultThresholds requires full completeness except for facility contact
// fields, which tolerate 5% gaps.
func DefaultThresholds(demo, lab Schema) ThresholdTable {
	t := ThresholdTable{}
	for _, s := range []Schema{demo, lab} {
		for _, f := range s.ScoredFields() {
			if facilityFields[f.Name] {
				t[f.Name] = 95
			} else {
				t[f.Name] = 100
			}
		}
	}
	return t
}

// Merge returns a copy of t with overrides applied.
func (t ThresholdTable) Merge(overrides map[string]float64) ThresholdTable {
	out := make(ThresholdTable, len(t)+len(overrides))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Validate checks that t covers exactly the given field names with values in
// [0, 100].
func (t ThresholdTable) Validate(fields []string) error {
	want := make(map[string]bool, len(fields))
	var dup, missing, unknown, outOfRange []string
	for _, f := range fields {
		if want[f] {
			dup = append(dup, f)
			continue
		}
		want[f] = true
		if _, ok := t[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(dup) > 0 {
		return &ConfigurationError{Reason: "field scored in both record sets", Fields: dup}
	}
	for k, v := range t {
		if !want[k] {
			unknown = append(unknown, k)
		}
		if v < 0 || v > 100 {
			outOfRange = append(outOfRange, k)
		}
	}
	if len(missing) > 0 {
		return &ConfigurationError{Reason: "no threshold for scored field", Fields: missing}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &ConfigurationError{Reason: "threshold names a field that is not scored", Fields: unknown}
	}
	if len(outOfRange) > 0 {
		sort.Strings(outOfRange)
		return &ConfigurationError{Reason: "threshold outside [0, 100]", Fields: outOfRange}
	}
	return nil
}

// LocateThresholdAnomalies concatenates demographic then laboratory metrics
// and, for each metric strictly below its threshold with at least one missing
// value, returns the first joined record missing that field. The result never holds more entries than there
// are metrics.
func (a *Auditor) LocateThresholdAnomalies(joined []Record, demoMetrics, labMetrics []CompletenessMetric, thresholds ThresholdTable) ([]ThresholdAnomaly, error) {
	metrics := make([]CompletenessMetric, 0, len(demoMetrics)+len(labMetrics))
	metrics = append(metrics, demoMetrics...)
	metrics = append(metrics, labMetrics...)

	names := make([]string, len(metrics))
	for i, m := range metrics {
		names[i] = m.Field
	}
	if err := thresholds.Validate(names); err != nil {
		return nil, err
	}

	var out []ThresholdAnomaly
	for _, m := range metrics {
		limit := thresholds[m.Field]
		if m.PercentComplete >= limit {
			continue
		}
		// No record lacks the field (an empty set scores 0/0), so there is
		// nothing to exemplify.
		if m.Missing == 0 {
			continue
		}
		exemplar, found := firstMissing(joined, m.Field)
		if !found {
			return nil, &InvariantViolation{Field: m.Field, Percent: m.PercentComplete, Threshold: limit}
		}
		out = append(out, ThresholdAnomaly{
			ResultText: Category(exemplar[a.Columns.ResultText]),
			Accession:  Category(exemplar[a.Columns.Accession]),
			Field:      m.Field,
		})
	}
	return out, nil
}

func firstMissing(records []Record, field string) (Record, bool) {
	for _, r := range records {
		if IsMissing(r[field]) {
			return r, true
		}
	}
	return nil, false
}
