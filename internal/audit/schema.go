package audit

import "fmt"

// FieldType is the semantic type of a record field.
type FieldType string

const (
	TypeString      FieldType = "string"
	TypeDate        FieldType = "date"
	TypeNumeric     FieldType = "numeric"
	TypeCategorical FieldType = "categorical"
)

// Field is a named column of a record set.
type Field struct {
	Name string
	Type FieldType
}

// Schema is the fixed set of fields of interest for one record set.
type Schema struct {
	Name    string
	Fields  []Field
	JoinKey string
}

// FieldNames returns every field name in schema order, join key included.
func (s Schema) FieldNames() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		out = append(out, f.Name)
	}
	return out
}

// ScoredFields returns the fields that take part in completeness scoring.
// The join key is a plumbing column and is never scored.
func (s Schema) ScoredFields() []Field {
	out := make([]Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		if s.JoinKey != "" && f.Name == s.JoinKey {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Lookup returns the field with the given name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Record maps a field name to its value. An absent key is a missing value.
type Record map[string]any

// RecordSet is the ordered output of a record provider for one named set.
type RecordSet struct {
	Name    string
	Columns []string
	Records []Record
}

// Len returns the number of records.
func (rs RecordSet) Len() int { return len(rs.Records) }

// Validate checks that every schema field was returned by the provider.
func (rs RecordSet) Validate(schema Schema) error {
	have := make(map[string]struct{}, len(rs.Columns))
	for _, c := range rs.Columns {
		have[c] = struct{}{}
	}
	var missing []string
	for _, f := range schema.Fields {
		if _, ok := have[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return &ConfigurationError{
			Reason: fmt.Sprintf("record set %q is missing expected fields", rs.Name),
			Fields: missing,
		}
	}
	return nil
}

// Names of the two record sets of an analysis run.
const (
	SetDemographic = "demographic"
	SetLaboratory  = "laboratory"
)

// DefaultDemographicSchema mirrors the disease incident export.
func DefaultDemographicSchema() Schema {
	return Schema{
		Name: SetDemographic,
		Fields: []Field{
			{Name: "Last_Name", Type: TypeString},
			{Name: "First_Name", Type: TypeString},
			{Name: "DOB", Type: TypeDate},
			{Name: "Street_Address", Type: TypeString},
			{Name: "City", Type: TypeString},
			{Name: "State", Type: TypeCategorical},
			{Name: "Zip", Type: TypeString},
			{Name: "Home_Telephone", Type: TypeString},
			{Name: "Race", Type: TypeCategorical},
			{Name: "Ethnicity", Type: TypeCategorical},
			{Name: "Sex", Type: TypeCategorical},
			{Name: "Incident_ID", Type: TypeString},
		},
		JoinKey: "Incident_ID",
	}
}

// DefaultLaboratorySchema mirrors the laboratory information export.
func DefaultLaboratorySchema() Schema {
	return Schema{
		Name: SetLaboratory,
		Fields: []Field{
			{Name: "ACCESSIONNUMBER", Type: TypeString},
			{Name: "ORDERRESULTSTATUS", Type: TypeCategorical},
			{Name: "OBSERVATIONRESULTSTATUS", Type: TypeCategorical},
			{Name: "SPECCOLLECTEDDATE", Type: TypeDate},
			{Name: "SPECRECEIVEDDATE", Type: TypeDate},
			{Name: "RESULTDATE", Type: TypeDate},
			{Name: "TESTCODE", Type: TypeCategorical},
			{Name: "RESULTTEXT", Type: TypeString},
			{Name: "OrganismCode", Type: TypeCategorical},
			{Name: "ResultedOrganism", Type: TypeCategorical},
			{Name: "ABNORMALFLAG", Type: TypeCategorical},
			{Name: "REFERENCERANGE", Type: TypeString},
			{Name: "SPECIMENSOURCE", Type: TypeCategorical},
			{Name: "PROVIDERNAME", Type: TypeString},
			{Name: "PROVIDERADDRESS", Type: TypeString},
			{Name: "PROVIDERCITY", Type: TypeString},
			{Name: "PROVIDERSTATE", Type: TypeCategorical},
			{Name: "PROVIDERZIP", Type: TypeString},
			{Name: "PROVIDERPHONE", Type: TypeString},
			{Name: "FACILITYADDRESS", Type: TypeString},
			{Name: "FACILITYCITY", Type: TypeString},
			{Name: "FACILITYSTATE", Type: TypeCategorical},
			{Name: "FACILITYZIP", Type: TypeString},
			{Name: "FACILITYPHONE", Type: TypeString},
			{Name: "FACILITYNAME", Type: TypeString},
			{Name: "PERFORMINGFACILITYID", Type: TypeString},
			{Name: "IncidentID", Type: TypeString},
			{Name: "RESULT", Type: TypeCategorical},
		},
		JoinKey: "IncidentID",
	}
}
