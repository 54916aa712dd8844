package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/KaramelBytes/dqaudit-cli/internal/audit"
	cfgpkg "github.com/KaramelBytes/dqaudit-cli/internal/config"
	"github.com/KaramelBytes/dqaudit-cli/internal/messagestore"
	"github.com/KaramelBytes/dqaudit-cli/internal/profile"
	"github.com/KaramelBytes/dqaudit-cli/internal/report"
	"github.com/KaramelBytes/dqaudit-cli/internal/source"
)

// auditOptions are the per-invocation knobs shared by analyze, run,
// analyze-batch and schedule.
type auditOptions struct {
	OutputDir      string
	ThresholdsFile string
	Exemplars      bool
	// File exports only.
	Sheet      string
	SheetIndex int
	Delimiter  string
	Encoding   string
}

// auditDeps are swapped in tests.
type auditDeps struct {
	openSQL     func(ctx context.Context, c *cfgpkg.Global) (source.Provider, func() error, error)
	newMessages func(c *cfgpkg.Global) (report.MessageFetcher, error)
}

var defaultAuditDeps = auditDeps{
	openSQL:     openSQLProvider,
	newMessages: newMessageClient,
}

// mappings returns the default export layout with the configured table and
// filter column names applied.
func mappings(c *cfgpkg.Global) map[string]source.Mapping {
	m := source.DefaultMappings()
	if c == nil {
		return m
	}
	set := func(name, table, filter string) {
		mp := m[name]
		if table != "" {
			mp.Table = table
		}
		if filter != "" {
			mp.FilterColumn = filter
		}
		m[name] = mp
	}
	set(audit.SetDemographic, c.DemographicTable, c.DemographicFilterColumn)
	set(audit.SetLaboratory, c.LaboratoryTable, c.LaboratoryFilterColumn)
	return m
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case "\t", "tab":
		return '\t', nil
	case ";":
		return ';', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported --delimiter: %s", s)
}

// newFileProvider reads the two exports instead of database tables.
func newFileProvider(c *cfgpkg.Global, demoPath, labPath string, opt auditOptions) (*source.FileProvider, error) {
	if demoPath == "" || labPath == "" {
		return nil, fmt.Errorf("both a demographic and a laboratory export are required")
	}
	m := mappings(c)
	demo, lab := m[audit.SetDemographic], m[audit.SetLaboratory]
	demo.Table, lab.Table = demoPath, labPath
	m[audit.SetDemographic], m[audit.SetLaboratory] = demo, lab

	delim, err := parseDelimiter(opt.Delimiter)
	if err != nil {
		return nil, err
	}
	p := source.NewFileProvider(m)
	p.Sheet = opt.Sheet
	p.SheetIndex = opt.SheetIndex
	p.Delimiter = delim
	p.Encoding = opt.Encoding
	return p, nil
}

func openSQLProvider(ctx context.Context, c *cfgpkg.Global) (source.Provider, func() error, error) {
	if c == nil || strings.TrimSpace(c.SourceDSN) == "" {
		return nil, nil, fmt.Errorf("source_dsn is not configured (dqaudit config set source_dsn ...)")
	}
	p, err := source.OpenSQL(ctx, c.SourceDriver, c.SourceDSN, mappings(c))
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

func newMessageClient(c *cfgpkg.Global) (report.MessageFetcher, error) {
	if c == nil {
		return nil, fmt.Errorf("message_store_url is not configured")
	}
	client, err := messagestore.NewClient(
		c.MessageStoreURL,
		c.MessageStoreToken,
		time.Duration(c.HTTPTimeoutSec)*time.Second,
		c.RetryMaxAttempts,
		time.Duration(c.RetryBaseDelayMs)*time.Millisecond,
		time.Duration(c.RetryMaxDelayMs)*time.Millisecond,
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// thresholdOverrides layers the thresholds file (flag, else config) under the
// profile's own overrides.
func thresholdOverrides(c *cfgpkg.Global, p *profile.Profile, file string) (map[string]float64, error) {
	if file == "" && c != nil {
		file = c.ThresholdsFile
	}
	out := map[string]float64{}
	if file != "" {
		m, err := cfgpkg.LoadThresholds(file)
		if err != nil {
			return nil, err
		}
		for k, v := range m {
			out[k] = v
		}
	}
	if p != nil {
		for k, v := range p.Thresholds {
			out[k] = v
		}
	}
	return out, nil
}

func outputDir(c *cfgpkg.Global, opt auditOptions) string {
	if opt.OutputDir != "" {
		return opt.OutputDir
	}
	if c != nil && c.OutputDir != "" {
		return c.OutputDir
	}
	return "."
}

// runAudit assembles and runs one audit over provider.
func runAudit(ctx context.Context, c *cfgpkg.Global, provider source.Provider, lab string, terms []string, thresholds map[string]float64, opt auditOptions, deps auditDeps) (*report.Result, error) {
	a := report.New(provider, log)
	if opt.Exemplars {
		f, err := deps.newMessages(c)
		if err != nil {
			return nil, err
		}
		a.Messages = f
	}
	return a.Run(ctx, report.Request{
		Lab:        lab,
		Terms:      terms,
		OutputDir:  outputDir(c, opt),
		Thresholds: thresholds,
		Exemplars:  opt.Exemplars,
	})
}

// runProfile audits one profile: its file exports when set, otherwise the
// configured database.
func runProfile(ctx context.Context, c *cfgpkg.Global, p *profile.Profile, opt auditOptions, deps auditDeps) (*report.Result, error) {
	thresholds, err := thresholdOverrides(c, p, opt.ThresholdsFile)
	if err != nil {
		return nil, err
	}
	var provider source.Provider
	if p.Exports.HasFiles() {
		fp, err := newFileProvider(c, p.Exports.Demographic, p.Exports.Laboratory, opt)
		if err != nil {
			return nil, err
		}
		provider = fp
	} else {
		sp, closeFn, err := deps.openSQL(ctx, c)
		if err != nil {
			return nil, err
		}
		if closeFn != nil {
			defer func() { _ = closeFn() }()
		}
		provider = sp
	}
	return runAudit(ctx, c, provider, p.Name, p.Terms, thresholds, opt, deps)
}

// printResult reports the written files; the full tables go to stdout only
// with --print.
func printResult(w io.Writer, res *report.Result, full bool) error {
	if full {
		md, err := res.Markdown()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, md)
	}
	fmt.Fprintf(w, "✓ Workbook written: %s\n", res.WorkbookPath)
	fmt.Fprintf(w, "✓ Findings written: %s\n", res.FindingsPath)
	if res.DocumentPath != "" {
		fmt.Fprintf(w, "✓ Exemplar document written: %s\n", res.DocumentPath)
	}
	fmt.Fprintf(w, "  %d joined records, %d date-order violations, %d threshold anomalies\n",
		res.Joined, len(res.Violations), len(res.Anomalies))
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "⚠ %s\n", warn)
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, "⚠ %d exemplar message(s) could not be fetched: %s\n", len(res.Skipped), strings.Join(res.Skipped, ", "))
	}
	return nil
}
