package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/dqaudit-cli/internal/audit"
	"github.com/KaramelBytes/dqaudit-cli/internal/messagestore"
	"github.com/KaramelBytes/dqaudit-cli/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memProvider map[string]audit.RecordSet

func (m memProvider) Fetch(_ context.Context, q source.Query) (audit.RecordSet, error) {
	rs, ok := m[q.Set]
	if !ok {
		return audit.RecordSet{}, errors.New("no such set")
	}
	return rs, nil
}

type fakeStore struct {
	bodies map[string]string
	calls  []string
}

func (f *fakeStore) FetchMessage(_ context.Context, accession, _ string) (*messagestore.Message, error) {
	f.calls = append(f.calls, accession)
	body, ok := f.bodies[accession]
	if !ok {
		return nil, &messagestore.NotFoundError{APIError: &messagestore.APIError{StatusCode: 404}, Accession: accession}
	}
	return &messagestore.Message{Accession: accession, Body: body}, nil
}

func filled(schema audit.Schema, overrides audit.Record) audit.Record {
	r := audit.Record{}
	for _, f := range schema.Fields {
		r[f.Name] = "x"
	}
	for k, v := range overrides {
		r[k] = v
	}
	return r
}

func fixture() memProvider {
	demo := audit.DefaultDemographicSchema()
	lab := audit.DefaultLaboratorySchema()
	return memProvider{
		audit.SetDemographic: {
			Name:    audit.SetDemographic,
			Columns: demo.FieldNames(),
			Records: []audit.Record{
				filled(demo, audit.Record{"Incident_ID": "1"}),
				filled(demo, audit.Record{"Incident_ID": "2", "Sex": nil}),
			},
		},
		audit.SetLaboratory: {
			Name:    audit.SetLaboratory,
			Columns: lab.FieldNames(),
			Records: []audit.Record{
				filled(lab, audit.Record{
					"IncidentID": "1", "ACCESSIONNUMBER": "A1", "RESULTTEXT": "Culture", "REFERENCERANGE": nil,
					"SPECCOLLECTEDDATE": "04/05/2023", "SPECRECEIVEDDATE": "04/06/2023", "RESULTDATE": "04/08/2023",
				}),
				filled(lab, audit.Record{
					"IncidentID": "2", "ACCESSIONNUMBER": "A2", "RESULTTEXT": "PCR", "FACILITYZIP": "",
					"SPECCOLLECTEDDATE": "04/06/2023", "SPECRECEIVEDDATE": "04/04/2023", "RESULTDATE": "04/10/2023",
				}),
			},
		},
	}
}

func newTestAssembler(p source.Provider) *Assembler {
	a := New(p, nil)
	a.Now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return a
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{bodies: map[string]string{"A2": "MSH|^~\\&|LAB\rPID|1"}}
	a := newTestAssembler(fixture())
	a.Messages = store

	res, err := a.Run(context.Background(), Request{Lab: "North Lab", Terms: []string{"north"}, OutputDir: dir, Exemplars: true})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Joined)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, audit.CollectedAfterReceived, res.Violations[0].Kind)
	assert.Equal(t, []audit.ThresholdAnomaly{
		{ResultText: "PCR", Accession: "A2", Field: "Sex"},
		{ResultText: "Culture", Accession: "A1", Field: "REFERENCERANGE"},
		{ResultText: "PCR", Accession: "A2", Field: "FACILITYZIP"},
	}, res.Anomalies)
	require.Len(t, res.BlankReference.Rows, 1)
	assert.Equal(t, "Culture", res.BlankReference.Rows[0].Value)
	require.Len(t, res.CrossTabs, 3)
	assert.Equal(t, 2, res.CrossTabs[0].GrandTotal())

	assert.Equal(t, filepath.Join(dir, "North_Lab_data_quality_reports.xlsx"), res.WorkbookPath)
	assert.FileExists(t, res.WorkbookPath)
	assert.FileExists(t, res.DocumentPath)
	assert.Equal(t, []string{"A1"}, res.Skipped)
	assert.Equal(t, []string{"A2", "A1", "A2", "A2"}, store.calls)

	f, err := LoadFindings(res.FindingsPath)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, f.RunID)
	assert.Equal(t, res.Anomalies, f.Anomalies)

	md, err := res.Markdown()
	require.NoError(t, err)
	assert.Contains(t, md, "# Data quality audit: North Lab")
	assert.Contains(t, md, "## Threshold_Errors")
	assert.Contains(t, md, "| PCR | A2 | FACILITYZIP |")
}

func TestRunValidatesSchema(t *testing.T) {
	p := fixture()
	lab := p[audit.SetLaboratory]
	lab.Columns = lab.Columns[1:]
	p[audit.SetLaboratory] = lab

	dir := t.TempDir()
	_, err := newTestAssembler(p).Run(context.Background(), Request{Lab: "x", OutputDir: dir})
	var cfg *audit.ConfigurationError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, []string{"ACCESSIONNUMBER"}, cfg.Fields)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestRunRejectsUnknownThreshold(t *testing.T) {
	_, err := newTestAssembler(fixture()).Run(context.Background(), Request{
		Lab: "x", OutputDir: t.TempDir(), Thresholds: map[string]float64{"Nickname": 50},
	})
	assert.ErrorIs(t, err, audit.ErrConfiguration)
}

func TestRunSurfacesInvariantViolation(t *testing.T) {
	p := fixture()
	demo := p[audit.SetDemographic]
	demo.Records = append(demo.Records, filled(audit.DefaultDemographicSchema(), audit.Record{"Incident_ID": "99", "Race": nil}))
	p[audit.SetDemographic] = demo

	_, err := newTestAssembler(p).Run(context.Background(), Request{Lab: "x", OutputDir: t.TempDir()})
	var inv *audit.InvariantViolation
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "Race", inv.Field)
}

func TestRunEmptyLaboratoryWritesDegenerateReport(t *testing.T) {
	p := fixture()
	lab := p[audit.SetLaboratory]
	lab.Records = nil
	p[audit.SetLaboratory] = lab

	res, err := newTestAssembler(p).Run(context.Background(), Request{Lab: "x", OutputDir: t.TempDir()})
	require.NoError(t, err)
	assert.FileExists(t, res.WorkbookPath)
	assert.Zero(t, res.Joined)
	assert.Empty(t, res.Anomalies)
	for _, m := range res.Laboratory {
		assert.Equal(t, 0.0, m.PercentComplete, m.Field)
	}
	assert.Contains(t, res.Warnings, "threshold search skipped: a record set is empty")
	assert.True(t, strings.Contains(res.Warnings[0], "laboratory"))
}

func TestRunEmptyDemographicWithCompleteLaboratory(t *testing.T) {
	p := fixture()
	p[audit.SetDemographic] = audit.RecordSet{Name: audit.SetDemographic, Columns: audit.DefaultDemographicSchema().FieldNames()}
	lab := p[audit.SetLaboratory]
	lab.Records = []audit.Record{filled(audit.DefaultLaboratorySchema(), audit.Record{"IncidentID": "1"})}
	p[audit.SetLaboratory] = lab

	res, err := newTestAssembler(p).Run(context.Background(), Request{Lab: "x", OutputDir: t.TempDir()})
	require.NoError(t, err)
	assert.FileExists(t, res.WorkbookPath)
	assert.Empty(t, res.Anomalies)
}

func TestRunEmptyDemographicStillWritesReport(t *testing.T) {
	p := fixture()
	p[audit.SetDemographic] = audit.RecordSet{Name: audit.SetDemographic, Columns: audit.DefaultDemographicSchema().FieldNames()}
	p[audit.SetLaboratory] = audit.RecordSet{Name: audit.SetLaboratory, Columns: audit.DefaultLaboratorySchema().FieldNames()}

	th := map[string]float64{}
	for k := range audit.DefaultThresholds(audit.DefaultDemographicSchema(), audit.DefaultLaboratorySchema()) {
		th[k] = 0
	}
	res, err := newTestAssembler(p).Run(context.Background(), Request{Lab: "x", OutputDir: t.TempDir(), Thresholds: th})
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 4)
	assert.True(t, strings.Contains(res.Warnings[0], "demographic"))
	assert.Empty(t, res.Anomalies)
}

func TestRunRequiresStoreForExemplars(t *testing.T) {
	_, err := newTestAssembler(fixture()).Run(context.Background(), Request{Lab: "x", Exemplars: true})
	assert.Error(t, err)
}

func writeExport(t *testing.T, path string, header []string, rows ...map[string]string) {
	t.Helper()
	lines := []string{strings.Join(header, ",")}
	for _, r := range rows {
		vals := make([]string, len(header))
		for i, h := range header {
			vals[i] = r[h]
		}
		lines = append(lines, strings.Join(vals, ","))
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func row(fields []string, overrides map[string]string) map[string]string {
	r := map[string]string{}
	for _, f := range fields {
		r[f] = "x"
	}
	for k, v := range overrides {
		r[k] = v
	}
	return r
}

func TestRunFileExportsSharingAnExtraColumn(t *testing.T) {
	dir := t.TempDir()
	demoFields := append(audit.DefaultDemographicSchema().FieldNames(), "Disease")
	labFields := append(audit.DefaultLaboratorySchema().FieldNames(), "Disease")
	demoPath := filepath.Join(dir, "demographic.csv")
	labPath := filepath.Join(dir, "laboratory.csv")
	writeExport(t, demoPath, demoFields, row(demoFields, map[string]string{"Incident_ID": "1", "Disease": "Pertussis"}))
	writeExport(t, labPath, labFields, row(labFields, map[string]string{
		"IncidentID": "1", "ACCESSIONNUMBER": "A1", "Disease": "B. pertussis",
		"SPECCOLLECTEDDATE": "04/05/2023", "SPECRECEIVEDDATE": "04/06/2023", "RESULTDATE": "04/08/2023",
	}))

	m := source.DefaultMappings()
	demo, lab := m[audit.SetDemographic], m[audit.SetLaboratory]
	demo.Table, lab.Table = demoPath, labPath
	m[audit.SetDemographic], m[audit.SetLaboratory] = demo, lab

	res, err := newTestAssembler(source.NewFileProvider(m)).Run(context.Background(), Request{Lab: "x", OutputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Joined)
	assert.Empty(t, res.Violations)
	assert.FileExists(t, res.WorkbookPath)
}

func TestRunWarnsOnUnreadableDates(t *testing.T) {
	p := fixture()
	lab := p[audit.SetLaboratory]
	lab.Records[0]["SPECRECEIVEDDATE"] = "sometime in April"
	p[audit.SetLaboratory] = lab

	res, err := newTestAssembler(p).Run(context.Background(), Request{Lab: "x", OutputDir: t.TempDir()})
	require.NoError(t, err)
	assert.Contains(t, res.Warnings, "2 date comparison(s) skipped: values could not be read as dates")
	assert.Len(t, res.Violations, 1)
}

type failingSink struct{}

func (failingSink) WriteTable(string, audit.Table) error { return errors.New("disk full") }

func TestWriteTablesError(t *testing.T) {
	res := &Result{Lab: "x"}
	err := res.WriteTables(failingSink{})
	assert.ErrorContains(t, err, "disk full")
}
