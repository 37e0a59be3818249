package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTable_EmptyInput(t *testing.T) {
	t.Parallel()
	header, rows, err := readTable(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, header)
	assert.Empty(t, rows)
}

func TestReadTable_PadsShortRows(t *testing.T) {
	t.Parallel()
	header, rows, err := readTable(strings.NewReader("a,b,c\n1,2\n4,5,6,7\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, header)
	assert.Equal(t, [][]string{{"1", "2", ""}, {"4", "5", "6"}}, rows)
}

func TestReadTable_StripsBOM(t *testing.T) {
	t.Parallel()
	header, _, err := readTable(strings.NewReader("\ufeffid,answer\n1,x\n"))
	require.NoError(t, err)
	assert.Equal(t, "id", header[0])
}

func TestProfileColumn_Numeric(t *testing.T) {
	t.Parallel()
	cs := profileColumn("id", []string{"1", "2", "3", "4", ""})

	assert.Equal(t, KindNumeric, cs.Kind)
	assert.Equal(t, 4, cs.Count)
	assert.Equal(t, 1, cs.Missing)
	assert.InDelta(t, 20.0, cs.MissingPct, 1e-9)
	assert.Equal(t, 4, cs.Distinct)
	require.NotNil(t, cs.Numeric)
	assert.Equal(t, 1.0, cs.Numeric.Min)
	assert.Equal(t, 4.0, cs.Numeric.Max)
	assert.InDelta(t, 2.5, cs.Numeric.Mean, 1e-9)
	assert.InDelta(t, 1.2909944, cs.Numeric.StdDev, 1e-6)
	assert.Nil(t, cs.Length)
}

func TestProfileColumn_Text(t *testing.T) {
	t.Parallel()
	cs := profileColumn("answer", []string{"abc", "é", "abc", "12"})

	assert.Equal(t, KindText, cs.Kind)
	assert.Equal(t, 3, cs.Distinct)
	require.NotNil(t, cs.Length)
	assert.Equal(t, 1.0, cs.Length.Min)
	assert.Equal(t, 3.0, cs.Length.Max)
	assert.InDelta(t, 2.25, cs.Length.Mean, 1e-9)
	assert.Nil(t, cs.Numeric)

	require.NotEmpty(t, cs.Top)
	assert.Equal(t, ValueCount{Value: "abc", Count: 2, Pct: 50}, cs.Top[0])
}

func TestProfileColumn_AllMissing(t *testing.T) {
	t.Parallel()
	cs := profileColumn("evaluation_reason", []string{"", ""})

	assert.Equal(t, KindText, cs.Kind)
	assert.Equal(t, 0, cs.Count)
	assert.Equal(t, 2, cs.Missing)
	assert.Empty(t, cs.Top)
	assert.Nil(t, cs.Length)
	assert.Nil(t, cs.Numeric)
}

func TestTopValues_OrderAndCap(t *testing.T) {
	t.Parallel()
	freq := map[string]int{"b": 3, "a": 3, "c": 5}
	for i := 0; i < 20; i++ {
		freq[string(rune('m'+i))] = 1
	}

	top := topValues(freq, 100)
	require.Len(t, top, maxTopValues)
	assert.Equal(t, "c", top[0].Value)
	assert.Equal(t, "a", top[1].Value)
	assert.Equal(t, "b", top[2].Value)
	assert.Equal(t, "m", top[3].Value)
}

func TestCountDuplicates(t *testing.T) {
	t.Parallel()
	rows := [][]string{{"a", "b"}, {"a", "b"}, {"ab", ""}, {"a", "b"}}
	assert.Equal(t, 2, countDuplicates(rows))
}

func TestSummarizeEvaluation_UnsetIsACategory(t *testing.T) {
	t.Parallel()
	header := []string{"id", "answer_source", "evaluation"}
	rows := [][]string{
		{"1", "LLM", "YES"},
		{"2", "CACHE", "NO"},
		{"3", "CACHE", "UNSET"},
		{"4", "LLM", ""},
	}

	s := summarizeEvaluation(header, rows)
	require.NotNil(t, s)
	assert.Equal(t, []ValueCount{
		{Value: "YES", Count: 1, Pct: 25},
		{Value: "NO", Count: 1, Pct: 25},
		{Value: "UNSET", Count: 2, Pct: 50},
	}, s.Distribution)
	assert.InDelta(t, 50.0, s.RatedPct, 1e-9)

	assert.Equal(t, []SourceBreakdown{
		{Source: "CACHE", No: 1, Unset: 1},
		{Source: "LLM", Yes: 1, Unset: 1},
	}, s.BySource)
}

func TestSummarizeEvaluation_NoColumn(t *testing.T) {
	t.Parallel()
	assert.Nil(t, summarizeEvaluation([]string{"a"}, [][]string{{"x"}}))
}

func TestSummarizeEvaluation_UnexpectedValues(t *testing.T) {
	t.Parallel()
	s := summarizeEvaluation([]string{"evaluation"}, [][]string{{"maybe"}, {"YES"}})
	require.NotNil(t, s)
	require.Len(t, s.Distribution, 4)
	assert.Equal(t, "MAYBE", s.Distribution[3].Value)
	assert.Equal(t, 1, s.Distribution[3].Count)
}

func TestBuildProfile_Dataset(t *testing.T) {
	t.Parallel()
	header := []string{"id", "answer", "evaluation_reason"}
	rows := [][]string{
		{"1", "x", ""},
		{"2", "y", ""},
		{"2", "y", ""},
	}

	p := buildProfile(header, rows)
	assert.Equal(t, 3, p.Rows)
	assert.Equal(t, 3, p.Columns)
	assert.Equal(t, 3, p.MissingCells)
	assert.InDelta(t, 100.0/3, p.MissingPct(), 1e-9)
	assert.Equal(t, 1, p.DuplicateRows)
	assert.Len(t, p.ColumnStats, 3)
	assert.Nil(t, p.Evaluation)
}
