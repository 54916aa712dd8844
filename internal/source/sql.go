package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/dqaudit-cli/internal/audit"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported SQL drivers.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// NormalizeDriver maps user-facing driver names onto registered drivers.
func NormalizeDriver(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pgx", "postgres", "postgresql":
		return DriverPostgres, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	}
	return "", fmt.Errorf("unsupported source driver %q (use postgres or sqlite)", name)
}

// SQLProvider reads record sets from a database export.
type SQLProvider struct {
	db       *sql.DB
	driver   string
	mappings map[string]Mapping
}

// OpenSQL opens and pings the database.
func OpenSQL(ctx context.Context, driver, dsn string, mappings map[string]Mapping) (*SQLProvider, error) {
	d, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("source dsn is required")
	}
	db, err := sql.Open(d, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}
	pctx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}
	return NewSQLProvider(db, d, mappings), nil
}

// NewSQLProvider wraps an open database handle.
func NewSQLProvider(db *sql.DB, driver string, mappings map[string]Mapping) *SQLProvider {
	if mappings == nil {
		mappings = DefaultMappings()
	}
	return &SQLProvider{db: db, driver: driver, mappings: mappings}
}

// Close releases the database handle.
func (p *SQLProvider) Close() error { return p.db.Close() }

// Fetch runs one SELECT for the requested set.
func (p *SQLProvider) Fetch(ctx context.Context, q Query) (audit.RecordSet, error) {
	if err := q.Validate(); err != nil {
		return audit.RecordSet{}, err
	}
	m, ok := p.mappings[q.Set]
	if !ok {
		return audit.RecordSet{}, fmt.Errorf("no table mapping for %s records", q.Set)
	}
	stmt, args, err := buildSelect(p.driver, m, q.cleanTerms())
	if err != nil {
		return audit.RecordSet{}, err
	}
	rows, err := p.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return audit.RecordSet{}, fmt.Errorf("query %s: %w", m.Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return audit.RecordSet{}, fmt.Errorf("columns: %w", err)
	}
	rs := audit.RecordSet{Name: q.Set, Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return audit.RecordSet{}, fmt.Errorf("scan %s: %w", m.Table, err)
		}
		rec := make(audit.Record, len(cols))
		for i, c := range cols {
			rec[c] = normalizeSQLValue(vals[i])
		}
		rs.Records = append(rs.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return audit.RecordSet{}, fmt.Errorf("read %s: %w", m.Table, err)
	}
	return rs, nil
}

func normalizeSQLValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	}
	return v
}

// buildSelect renders the SELECT with driver-specific placeholders.
func buildSelect(driver string, m Mapping, terms []string) (string, []any, error) {
	table, err := quoteIdent(m.Table)
	if err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(m.Columns) == 0 {
		sb.WriteString("*")
	}
	for i, c := range m.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		src, err := quoteIdent(m.sourceColumn(c))
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(src)
		if src != mustQuote(c) {
			sb.WriteString(" AS ")
			sb.WriteString(mustQuote(c))
		}
	}
	sb.WriteString(" FROM ")
	sb.WriteString(table)

	var args []any
	if len(terms) > 0 {
		filter, err := quoteIdent(m.FilterColumn)
		if err != nil {
			return "", nil, fmt.Errorf("filter column: %w", err)
		}
		sb.WriteString(" WHERE ")
		for i, t := range terms {
			if i > 0 {
				sb.WriteString(" OR ")
			}
			fmt.Fprintf(&sb, `LOWER(%s) LIKE %s ESCAPE '\'`, filter, placeholder(driver, i+1))
			args = append(args, "%"+likeEscaper.Replace(strings.ToLower(t))+"%")
		}
	}
	return sb.String(), args, nil
}

// likeEscaper makes LIKE wildcards in match terms literal.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func placeholder(driver string, n int) string {
	if driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// quoteIdent double-quotes an identifier. Table names in the exports carry
// spaces and parentheses, so only empty names and control characters are
// rejected.
func quoteIdent(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("identifier is required")
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return "", fmt.Errorf("invalid identifier: %q", name)
		}
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`, nil
}

func mustQuote(name string) string {
	q, err := quoteIdent(name)
	if err != nil {
		return name
	}
	return q
}
