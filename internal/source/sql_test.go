package source

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/dqaudit-cli/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(DriverSQLite, filepath.Join(t.TempDir(), "export.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	stmts := []string{
		`CREATE TABLE "Disease Incident Export" ("Incident_ID" TEXT, "Reported_Race" TEXT, "Sex" TEXT, "Laboratory" TEXT)`,
		`INSERT INTO "Disease Incident Export" VALUES ('1', 'White', 'F', 'North Lab')`,
		`INSERT INTO "Disease Incident Export" VALUES ('2', NULL, 'M', 'NORTHWEST clinic')`,
		`INSERT INTO "Disease Incident Export" VALUES ('3', 'Black', NULL, 'South Lab')`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
	return db
}

func testMappings() map[string]Mapping {
	return map[string]Mapping{
		audit.SetDemographic: {
			Table:        "Disease Incident Export",
			FilterColumn: "Laboratory",
			Columns:      []string{"Incident_ID", "Race", "Sex"},
			Aliases:      map[string]string{"Race": "Reported_Race"},
		},
	}
}

func TestSQLProvider_FetchFiltersAndAliases(t *testing.T) {
	p := NewSQLProvider(openTestDB(t), DriverSQLite, testMappings())

	rs, err := p.Fetch(context.Background(), Query{Set: audit.SetDemographic, Terms: []string{"north"}})
	require.NoError(t, err)
	assert.Equal(t, audit.SetDemographic, rs.Name)
	assert.Equal(t, []string{"Incident_ID", "Race", "Sex"}, rs.Columns)
	require.Len(t, rs.Records, 2)
	assert.Equal(t, "White", rs.Records[0]["Race"])
	assert.Nil(t, rs.Records[1]["Race"])
	assert.True(t, audit.IsMissing(rs.Records[1]["Race"]))
}

func TestSQLProvider_NoTermsReturnsEverything(t *testing.T) {
	p := NewSQLProvider(openTestDB(t), DriverSQLite, testMappings())
	rs, err := p.Fetch(context.Background(), Query{Set: audit.SetDemographic, Terms: []string{" "}})
	require.NoError(t, err)
	assert.Len(t, rs.Records, 3)
}

func TestSQLProvider_UnknownSet(t *testing.T) {
	p := NewSQLProvider(openTestDB(t), DriverSQLite, testMappings())
	_, err := p.Fetch(context.Background(), Query{Set: audit.SetLaboratory})
	assert.Error(t, err)
	_, err = p.Fetch(context.Background(), Query{Set: "other"})
	assert.Error(t, err)
	_, err = p.Fetch(context.Background(), Query{Set: audit.SetDemographic, Terms: []string{"a", "b", "c", "d", "e", "f"}})
	assert.Error(t, err)
}

func TestBuildSelect_Placeholders(t *testing.T) {
	m := testMappings()[audit.SetDemographic]
	stmt, args, err := buildSelect(DriverPostgres, m, []string{"North", "south"})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "Incident_ID", "Reported_Race" AS "Race", "Sex" FROM "Disease Incident Export" WHERE LOWER("Laboratory") LIKE $1 ESCAPE '\' OR LOWER("Laboratory") LIKE $2 ESCAPE '\'`,
		stmt)
	assert.Equal(t, []any{"%north%", "%south%"}, args)

	stmt, _, err = buildSelect(DriverSQLite, m, []string{"x"})
	require.NoError(t, err)
	assert.Contains(t, stmt, `LIKE ?`)
}

func TestSQLProvider_TermWildcardsAreLiteral(t *testing.T) {
	db := openTestDB(t)
	for _, lab := range []string{"Lab_1", "Lab-1", "100% Lab", "1000 Lab", `C:\lab`} {
		_, err := db.Exec(`INSERT INTO "Disease Incident Export" VALUES ('9', 'White', 'F', ?)`, lab)
		require.NoError(t, err)
	}
	p := NewSQLProvider(db, DriverSQLite, testMappings())

	fetch := func(term string) int {
		rs, err := p.Fetch(context.Background(), Query{Set: audit.SetDemographic, Terms: []string{term}})
		require.NoError(t, err)
		return rs.Len()
	}
	assert.Equal(t, 1, fetch("Lab_1"))
	assert.Equal(t, 1, fetch("100%"))
	assert.Equal(t, 1, fetch(`c:\`))

	_, args, err := buildSelect(DriverSQLite, testMappings()[audit.SetDemographic], []string{`a_b%c\d`})
	require.NoError(t, err)
	assert.Equal(t, []any{`%a\_b\%c\\d%`}, args)
}

func TestQuoteIdent(t *testing.T) {
	q, err := quoteIdent(`Laboratory Information (system)`)
	require.NoError(t, err)
	assert.Equal(t, `"Laboratory Information (system)"`, q)
	q, err = quoteIdent(`a"b`)
	require.NoError(t, err)
	assert.Equal(t, `"a""b"`, q)
	_, err = quoteIdent("")
	assert.Error(t, err)
	_, err = quoteIdent("a\nb")
	assert.Error(t, err)
}

func TestNormalizeDriver(t *testing.T) {
	for in, want := range map[string]string{"postgres": DriverPostgres, "PGX": DriverPostgres, "sqlite3": DriverSQLite} {
		got, err := NormalizeDriver(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := NormalizeDriver("oracle")
	assert.Error(t, err)
}
