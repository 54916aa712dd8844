package audit

import "math"

// CompletenessMetric is the share of records holding a value for one field.
type CompletenessMetric struct {
	Field           string  `json:"field"`
	PercentComplete float64 `json:"percent_complete"`
	Present         int     `json:"present"`
	Missing         int     `json:"missing"`
}

// ComputeCompleteness scores every non-key schema field, in schema order.
// An empty record set scores 0 for every field.
func ComputeCompleteness(records []Record, schema Schema) []CompletenessMetric {
	fields := schema.ScoredFields()
	out := make([]CompletenessMetric, 0, len(fields))
	for _, f := range fields {
		present := 0
		for _, r := range records {
			if !IsMissing(r[f.Name]) {
				present++
			}
		}
		missing := len(records) - present
		out = append(out, CompletenessMetric{
			Field:           f.Name,
			PercentComplete: percentComplete(present, missing),
			Present:         present,
			Missing:         missing,
		})
	}
	return out
}

// percentComplete returns 100*present/(present+missing) rounded to two
// decimals; 0/0 is defined as 0.
func percentComplete(present, missing int) float64 {
	total := present + missing
	if total == 0 {
		return 0
	}
	p := float64(present) * 100 / float64(total)
	if p < 0 {
		p = 0
	} else if p > 100 {
		p = 100
	}
	return round2(p)
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
