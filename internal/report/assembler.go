// Package report runs one audit end to end: fetch both record sets, run the
// analysis, and write the workbook, findings and exemplar document.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/dqaudit-cli/internal/audit"
	"github.com/KaramelBytes/dqaudit-cli/internal/logger"
	"github.com/KaramelBytes/dqaudit-cli/internal/messagestore"
	"github.com/KaramelBytes/dqaudit-cli/internal/sink"
	"github.com/KaramelBytes/dqaudit-cli/internal/source"
	"github.com/KaramelBytes/dqaudit-cli/internal/utils"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Sheet names of the workbook.
const (
	SheetCompleteness   = "CompletenessReport"
	SheetBlankReference = "Blank_ReferenceRange"
	SheetDateErrors     = "Date_Errors"
	SheetThreshold      = "Threshold_Errors"
)

// CrossTabSpec places one cross tabulation on a sheet.
type CrossTabSpec struct {
	Sheet    string
	Set      string
	RowField string
	ColField string
}

// DefaultCrossTabs are the pairs audited for every lab.
func DefaultCrossTabs() []CrossTabSpec {
	return []CrossTabSpec{
		{Sheet: "Race_Ethnicity", Set: audit.SetDemographic, RowField: "Ethnicity", ColField: "Race"},
		{Sheet: "ResultedOrganism_AbNormalFlag", Set: audit.SetLaboratory, RowField: "ABNORMALFLAG", ColField: "ResultedOrganism"},
		{Sheet: "Result_AbFlag", Set: audit.SetLaboratory, RowField: "ABNORMALFLAG", ColField: "RESULT"},
	}
}

// MessageFetcher retrieves the stored message behind an exemplar record.
type MessageFetcher interface {
	FetchMessage(ctx context.Context, accession, resultText string) (*messagestore.Message, error)
}

// Request describes one audit run.
type Request struct {
	Lab        string
	Terms      []string
	OutputDir  string
	Thresholds map[string]float64
	CrossTabs  []CrossTabSpec
	// Exemplars fetches the message behind each finding and writes the
	// document. It needs a MessageFetcher.
	Exemplars bool
}

// Assembler wires a record provider to the analysis and the sinks.
type Assembler struct {
	Provider    source.Provider
	Messages    MessageFetcher
	Demographic audit.Schema
	Laboratory  audit.Schema
	Auditor     *audit.Auditor
	Logger      *slog.Logger
	Now         func() time.Time
}

// New returns an Assembler over the default schemas.
func New(p source.Provider, log *slog.Logger) *Assembler {
	if log == nil {
		log = logger.Discard()
	}
	return &Assembler{
		Provider:    p,
		Demographic: audit.DefaultDemographicSchema(),
		Laboratory:  audit.DefaultLaboratorySchema(),
		Auditor:     audit.NewAuditor(),
		Logger:      log,
		Now:         time.Now,
	}
}

// Run executes the audit. Configuration and invariant errors abort the run
// before any file is written.
func (a *Assembler) Run(ctx context.Context, req Request) (*Result, error) {
	if a.Provider == nil {
		return nil, errors.New("no record provider configured")
	}
	if req.Exemplars && a.Messages == nil {
		return nil, errors.New("exemplar retrieval requested but no message store is configured")
	}
	res := &Result{RunID: uuid.NewString(), Lab: req.Lab, StartedAt: a.Now()}
	log := a.Logger.With(slog.String("run_id", res.RunID), slog.String("lab", req.Lab))

	demo, lab, err := a.fetch(ctx, req.Terms)
	if err != nil {
		return nil, err
	}
	if err := demo.Validate(a.Demographic); err != nil {
		return nil, err
	}
	if err := lab.Validate(a.Laboratory); err != nil {
		return nil, err
	}
	log.Info("fetched record sets", slog.Int("demographic", demo.Len()), slog.Int("laboratory", lab.Len()))
	for _, rs := range []audit.RecordSet{demo, lab} {
		if w := audit.CheckEmpty(rs, "completeness"); w != nil {
			log.Warn("empty input", slog.String("set", w.Set), slog.String("operation", w.Operation))
			res.Warnings = append(res.Warnings, w.Error())
		}
	}

	res.Demographic = audit.ComputeCompleteness(demo.Records, a.Demographic)
	res.Laboratory = audit.ComputeCompleteness(lab.Records, a.Laboratory)

	specs := req.CrossTabs
	if specs == nil {
		specs = DefaultCrossTabs()
	}
	for _, s := range specs {
		rs := demo
		if s.Set == audit.SetLaboratory {
			rs = lab
		}
		res.CrossTabs = append(res.CrossTabs, SheetCrossTab{Sheet: s.Sheet, CrossTab: audit.BuildCrossTab(rs.Records, s.RowField, s.ColField)})
	}
	res.BlankReference = audit.ValueFrequency(lab.Records, "REFERENCERANGE", a.Auditor.Columns.ResultText)

	joined, err := audit.Join(demo, lab, a.Demographic, a.Laboratory)
	if err != nil {
		return nil, err
	}
	res.Joined = joined.Len()
	if w := audit.CheckEmpty(joined, "threshold search"); w != nil {
		log.Warn("empty input", slog.String("set", w.Set), slog.String("operation", w.Operation))
		res.Warnings = append(res.Warnings, w.Error())
	}
	dates := a.Auditor.CheckDateOrder(joined.Records)
	res.Violations = dates.Violations
	if dates.Unreadable > 0 {
		log.Warn("unreadable dates", slog.Int("skipped_comparisons", dates.Unreadable))
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d date comparison(s) skipped: values could not be read as dates", dates.Unreadable))
	}

	thresholds := audit.DefaultThresholds(a.Demographic, a.Laboratory).Merge(req.Thresholds)
	if err := thresholds.Validate(append(scoredNames(res.Demographic), scoredNames(res.Laboratory)...)); err != nil {
		return nil, err
	}
	if demo.Len() == 0 || lab.Len() == 0 {
		// An empty side joins nothing, so no gap can have an exemplar.
		log.Warn("threshold search skipped", slog.Int("demographic", demo.Len()), slog.Int("laboratory", lab.Len()))
		res.Warnings = append(res.Warnings, "threshold search skipped: a record set is empty")
	} else {
		res.Anomalies, err = a.Auditor.LocateThresholdAnomalies(joined.Records, res.Demographic, res.Laboratory, thresholds)
		if err != nil {
			return nil, err
		}
	}
	log.Info("analysis complete",
		slog.Int("joined", res.Joined),
		slog.Int("date_violations", len(res.Violations)),
		slog.Int("threshold_anomalies", len(res.Anomalies)))

	if err := a.write(ctx, req, res, log); err != nil {
		return nil, err
	}
	res.FinishedAt = a.Now()
	return res, nil
}

func scoredNames(metrics []audit.CompletenessMetric) []string {
	out := make([]string, len(metrics))
	for i, m := range metrics {
		out[i] = m.Field
	}
	return out
}

func (a *Assembler) fetch(ctx context.Context, terms []string) (audit.RecordSet, audit.RecordSet, error) {
	var demo, lab audit.RecordSet
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rs, err := a.Provider.Fetch(gctx, source.Query{Set: audit.SetDemographic, Terms: terms})
		if err != nil {
			return fmt.Errorf("fetch demographic records: %w", err)
		}
		demo = rs
		return nil
	})
	g.Go(func() error {
		rs, err := a.Provider.Fetch(gctx, source.Query{Set: audit.SetLaboratory, Terms: terms})
		if err != nil {
			return fmt.Errorf("fetch laboratory records: %w", err)
		}
		lab = rs
		return nil
	})
	if err := g.Wait(); err != nil {
		return audit.RecordSet{}, audit.RecordSet{}, err
	}
	return demo, lab, nil
}

func (a *Assembler) write(ctx context.Context, req Request, res *Result, log *slog.Logger) error {
	dir := req.OutputDir
	if dir == "" {
		dir = "."
	}
	prefix := utils.SafeName(req.Lab)

	wb := sink.NewWorkbook()
	if err := res.WriteTables(wb); err != nil {
		return err
	}
	res.WorkbookPath = filepath.Join(dir, prefix+"_data_quality_reports.xlsx")
	if err := wb.Save(res.WorkbookPath); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	log.Info("workbook written", slog.String("path", res.WorkbookPath))

	res.FindingsPath = filepath.Join(dir, prefix+"_findings.json")
	if err := SaveFindings(res.FindingsPath, res.Findings()); err != nil {
		return err
	}

	if !req.Exemplars {
		return nil
	}
	doc, skipped := Exemplars(ctx, a.Messages, log, res.Anomalies, res.Violations)
	res.Skipped = skipped
	res.DocumentPath = filepath.Join(dir, prefix+"_HL7_Error.docx")
	if err := doc.Save(res.DocumentPath); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	log.Info("exemplar document written", slog.String("path", res.DocumentPath), slog.Int("skipped", len(skipped)))
	return nil
}
