package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/KaramelBytes/dqaudit-cli/internal/audit"
	"github.com/KaramelBytes/dqaudit-cli/internal/sink"
	"github.com/KaramelBytes/dqaudit-cli/internal/utils"
)

// SheetCrossTab is a cross tabulation bound to its sheet.
type SheetCrossTab struct {
	Sheet string
	*audit.CrossTab
}

// Result holds everything one run produced.
type Result struct {
	RunID      string
	Lab        string
	StartedAt  time.Time
	FinishedAt time.Time

	Demographic    []audit.CompletenessMetric
	Laboratory     []audit.CompletenessMetric
	CrossTabs      []SheetCrossTab
	BlankReference audit.Frequency
	Joined         int
	Violations     []audit.DateOrderViolation
	Anomalies      []audit.ThresholdAnomaly

	Warnings []string
	// Skipped lists accessions whose stored message could not be fetched.
	Skipped []string

	WorkbookPath string
	FindingsPath string
	DocumentPath string
}

type sheetTable struct {
	sheet string
	table audit.Table
}

// WriteTables sends every result table to s, in workbook order.
func (r *Result) WriteTables(s sink.TableSink) error {
	tables := []sheetTable{
		{SheetCompleteness, audit.CompletenessTable("Demographic", r.Demographic)},
		{SheetCompleteness, audit.CompletenessTable("Laboratory", r.Laboratory)},
	}
	for _, ct := range r.CrossTabs {
		tables = append(tables, sheetTable{ct.Sheet, ct.Table()})
	}
	tables = append(tables,
		sheetTable{SheetBlankReference, r.BlankReference.Table()},
		sheetTable{SheetDateErrors, audit.ViolationTable(r.Violations)},
		sheetTable{SheetThreshold, audit.AnomalyTable(r.Anomalies)},
	)
	for _, x := range tables {
		if err := s.WriteTable(x.sheet, x.table); err != nil {
			return fmt.Errorf("write %s: %w", x.sheet, err)
		}
	}
	return nil
}

// Markdown renders the full result for the terminal.
func (r *Result) Markdown() (string, error) {
	m := sink.NewMarkdown(fmt.Sprintf("Data quality audit: %s", r.Lab))
	m.AddParagraph(fmt.Sprintf("Run %s. %d joined records, %d date-order violations, %d threshold anomalies.",
		r.RunID, r.Joined, len(r.Violations), len(r.Anomalies)))
	for _, w := range r.Warnings {
		m.AddParagraph("⚠ " + w)
	}
	if err := r.WriteTables(m); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return m.String(), nil
}

// Findings is the persisted subset of a result used to fetch exemplars later.
type Findings struct {
	RunID       string                     `json:"run_id"`
	Lab         string                     `json:"lab"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Anomalies   []audit.ThresholdAnomaly   `json:"threshold_anomalies"`
	Violations  []audit.DateOrderViolation `json:"date_violations"`
}

// Findings extracts the persisted findings.
func (r *Result) Findings() Findings {
	return Findings{
		RunID:       r.RunID,
		Lab:         r.Lab,
		GeneratedAt: r.StartedAt,
		Anomalies:   r.Anomalies,
		Violations:  r.Violations,
	}
}

// SaveFindings writes findings as indented JSON.
func SaveFindings(path string, f Findings) error {
	b, err := utils.PrettyJSON(f)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("save findings: %w", err)
	}
	return nil
}

// LoadFindings reads a findings file written by a previous run.
func LoadFindings(path string) (*Findings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read findings: %w", err)
	}
	var f Findings
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse findings: %w", err)
	}
	return &f, nil
}
