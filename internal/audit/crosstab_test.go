package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ethnicityRaceRecords() []Record {
	return []Record{
		{"Ethnicity": "Hispanic", "Race": "White"},
		{"Ethnicity": "Hispanic", "Race": "Black"},
		{"Ethnicity": "Non-Hispanic", "Race": "White"},
		{"Ethnicity": nil, "Race": nil},
		{"Race": ""},
		{},
		{"Ethnicity": "Non-Hispanic", "Race": "Asian"},
		{"Ethnicity": "Non-Hispanic", "Race": nil},
	}
}

func TestBuildCrossTab_Totals(t *testing.T) {
	ct := BuildCrossTab(ethnicityRaceRecords(), "Ethnicity", "Race")

	assert.Equal(t, "Ethnicity vs Race", ct.Name)
	assert.Equal(t, 8, ct.Count(TotalLabel, TotalLabel))
	assert.Equal(t, 8, ct.GrandTotal())
	assert.Equal(t, 3, ct.Count(MissingCategory, MissingCategory))
	assert.Equal(t, 3, ct.RowTotal("Non-Hispanic"))
	assert.Equal(t, 2, ct.ColTotal("White"))
	assert.Equal(t, 0, ct.Count("Hispanic", "Asian"))

	rowSum, colSum := 0, 0
	for _, r := range ct.Rows {
		rowSum += ct.Count(r, TotalLabel)
	}
	for _, c := range ct.Cols {
		colSum += ct.Count(TotalLabel, c)
	}
	assert.Equal(t, rowSum, colSum)
	assert.Equal(t, ct.GrandTotal(), rowSum)
}

func TestBuildCrossTab_NullAndAbsentCoalesce(t *testing.T) {
	records := []Record{
		{"Eth": nil, "Race": "white"},
		{"Race": "white"},
	}
	ct := BuildCrossTab(records, "Eth", "Race")
	assert.Equal(t, []string{MissingCategory}, ct.Rows)
	assert.Equal(t, 2, ct.Count(MissingCategory, "white"))
}

func TestBuildCrossTab_KeepsRawCategories(t *testing.T) {
	records := []Record{{"a": "White", "b": "x"}, {"a": "white", "b": "x"}, {"a": "White ", "b": "x"}}
	ct := BuildCrossTab(records, "a", "b")
	assert.Equal(t, []string{"White", "white", "White "}, ct.Rows)
}

func TestBuildCrossTab_Empty(t *testing.T) {
	ct := BuildCrossTab(nil, "a", "b")
	assert.Empty(t, ct.Rows)
	assert.Equal(t, 0, ct.GrandTotal())
	tbl := ct.Table()
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, []any{TotalLabel, 0}, tbl.Rows[0])
}

func TestCrossTabTable_Layout(t *testing.T) {
	records := []Record{{"r": "a", "c": "x"}, {"r": "b", "c": "y"}, {"r": "a", "c": "y"}}
	tbl := BuildCrossTab(records, "r", "c").Table()
	assert.Equal(t, []string{"r vs c", "x", "y", TotalLabel}, tbl.Header)
	assert.Equal(t, [][]any{
		{"a", 1, 1, 2},
		{"b", 0, 1, 1},
		{TotalLabel, 1, 2, 3},
	}, tbl.Rows)
}

func TestBuildCrossTab_Idempotent(t *testing.T) {
	a := BuildCrossTab(ethnicityRaceRecords(), "Ethnicity", "Race").Table()
	b := BuildCrossTab(ethnicityRaceRecords(), "Ethnicity", "Race").Table()
	assert.Equal(t, a, b)
}
