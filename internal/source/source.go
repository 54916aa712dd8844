// Package source fetches the demographic and laboratory record sets an audit
// runs over, from a SQL database or from exported files.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/KaramelBytes/dqaudit-cli/internal/audit"
)

// MaxTerms bounds the facility/lab match terms a query may carry.
const MaxTerms = 5

// Query selects one record set, filtered by match terms.
type Query struct {
	// Set is audit.SetDemographic or audit.SetLaboratory.
	Set string
	// Terms match the set's filter column as case-insensitive substrings.
	// Zero terms match every row.
	Terms []string
}

// Validate checks the set name and the number of terms.
func (q Query) Validate() error {
	if q.Set != audit.SetDemographic && q.Set != audit.SetLaboratory {
		return fmt.Errorf("unknown record set %q", q.Set)
	}
	if len(q.Terms) > MaxTerms {
		return fmt.Errorf("at most %d match terms are supported, got %d", MaxTerms, len(q.Terms))
	}
	return nil
}

// cleanTerms drops blank terms.
func (q Query) cleanTerms() []string {
	out := make([]string, 0, len(q.Terms))
	for _, t := range q.Terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Provider supplies record sets. Implementations do not enforce a schema;
// callers validate with audit.RecordSet.Validate.
type Provider interface {
	Fetch(ctx context.Context, q Query) (audit.RecordSet, error)
}

// Mapping describes where one record set lives.
type Mapping struct {
	// Table is a SQL table name or a file path.
	Table string
	// FilterColumn is matched against the query terms.
	FilterColumn string
	// Columns lists the fields to read, in order.
	Columns []string
	// Aliases maps an output field name to its source column name.
	Aliases map[string]string
}

func (m Mapping) sourceColumn(field string) string {
	if src, ok := m.Aliases[field]; ok && src != "" {
		return src
	}
	return field
}

// DefaultMappings returns the layout of the surveillance exports.
func DefaultMappings() map[string]Mapping {
	return map[string]Mapping{
		audit.SetDemographic: {
			Table:        "Disease Incident Export",
			FilterColumn: "Laboratory",
			Columns:      audit.DefaultDemographicSchema().FieldNames(),
			Aliases:      map[string]string{"Race": "Reported_Race"},
		},
		audit.SetLaboratory: {
			Table:        "Laboratory Information (system)",
			FilterColumn: "HL7FILENAME",
			Columns:      audit.DefaultLaboratorySchema().FieldNames(),
		},
	}
}

// matchesAny reports whether v contains any term, ignoring case.
func matchesAny(v string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	lv := strings.ToLower(v)
	for _, t := range terms {
		if strings.Contains(lv, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
