package audit

// Columns names the joined-record fields the date-order and threshold checks
// read. Exports differ in naming, so they are configurable.
type Columns struct {
	ResultText string
	Accession  string
	Collected  string
	Received   string
	Resulted   string
}

// DefaultColumns matches the laboratory export layout.
func DefaultColumns() Columns {
	return Columns{
		ResultText: "RESULTTEXT",
		Accession:  "ACCESSIONNUMBER",
		Collected:  "SPECCOLLECTEDDATE",
		Received:   "SPECRECEIVEDDATE",
		Resulted:   "RESULTDATE",
	}
}

// Auditor runs the checks that need to identify records in a joined set.
type Auditor struct {
	Columns     Columns
	DateLayouts []string
}

// NewAuditor returns an Auditor with default columns and date layouts.
func NewAuditor() *Auditor {
	return &Auditor{Columns: DefaultColumns(), DateLayouts: DefaultDateLayouts}
}

func (a *Auditor) layouts() []string {
	if len(a.DateLayouts) == 0 {
		return DefaultDateLayouts
	}
	return a.DateLayouts
}

// ValidateDateOrder checks joined records using the default columns.
func ValidateDateOrder(joined []Record) []DateOrderViolation {
	return NewAuditor().ValidateDateOrder(joined)
}

// LocateThresholdAnomalies finds exemplars using the default columns.
func LocateThresholdAnomalies(joined []Record, demoMetrics, labMetrics []CompletenessMetric, thresholds ThresholdTable) ([]ThresholdAnomaly, error) {
	return NewAuditor().LocateThresholdAnomalies(joined, demoMetrics, labMetrics, thresholds)
}
