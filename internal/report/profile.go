package report

import (
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/doc-investigator/internal/model"
)

const maxTopValues = 10

// Profile holds descriptive statistics over a tabular snapshot.
type Profile struct {
	Rows          int                `json:"rows" yaml:"rows"`
	Columns       int                `json:"columns" yaml:"columns"`
	MissingCells  int                `json:"missing_cells" yaml:"missing_cells"`
	DuplicateRows int                `json:"duplicate_rows" yaml:"duplicate_rows"`
	ColumnStats   []ColumnStats      `json:"column_stats" yaml:"column_stats"`
	Evaluation    *EvaluationSummary `json:"evaluation,omitempty" yaml:"evaluation,omitempty"`
}

// MissingPct returns the share of empty cells across the table, in percent.
func (p Profile) MissingPct() float64 {
	return percent(p.MissingCells, p.Rows*p.Columns)
}

// ColumnKind classifies a column for statistics.
type ColumnKind string

const (
	KindNumeric ColumnKind = "numeric"
	KindText    ColumnKind = "text"
)

// ColumnStats describes one column.
type ColumnStats struct {
	Name       string        `json:"name" yaml:"name"`
	Kind       ColumnKind    `json:"kind" yaml:"kind"`
	Count      int           `json:"count" yaml:"count"`
	Missing    int           `json:"missing" yaml:"missing"`
	MissingPct float64       `json:"missing_pct" yaml:"missing_pct"`
	Distinct   int           `json:"distinct" yaml:"distinct"`
	Top        []ValueCount  `json:"top" yaml:"top"`
	Numeric    *NumericStats `json:"numeric,omitempty" yaml:"numeric,omitempty"`
	Length     *NumericStats `json:"length,omitempty" yaml:"length,omitempty"`
}

// NumericStats summarises a set of numbers. StdDev is the sample deviation.
type NumericStats struct {
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
}

// ValueCount is one entry of a frequency table.
type ValueCount struct {
	Value string  `json:"value" yaml:"value"`
	Count int     `json:"count" yaml:"count"`
	Pct   float64 `json:"pct" yaml:"pct"`
}

// EvaluationSummary is the verdict distribution of an interaction snapshot.
// Empty evaluation cells count as UNSET.
type EvaluationSummary struct {
	Distribution []ValueCount      `json:"distribution" yaml:"distribution"`
	BySource     []SourceBreakdown `json:"by_source,omitempty" yaml:"by_source,omitempty"`
	RatedPct     float64           `json:"rated_pct" yaml:"rated_pct"`
}

// SourceBreakdown cross-tabulates answer_source against evaluation.
type SourceBreakdown struct {
	Source string `json:"source" yaml:"source"`
	Yes    int    `json:"yes" yaml:"yes"`
	No     int    `json:"no" yaml:"no"`
	Unset  int    `json:"unset" yaml:"unset"`
	Other  int    `json:"other,omitempty" yaml:"other,omitempty"`
}

// Total returns the row count for the source.
func (b SourceBreakdown) Total() int { return b.Yes + b.No + b.Unset + b.Other }

// readTable loads a CSV with a header row. A zero-byte file yields an
// empty table. Short rows are padded, long rows truncated to the header.
func readTable(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "report: read header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrapf(err, "report: read row %d", len(rows)+1)
		}
		row := make([]string, len(header))
		copy(row, rec)
		rows = append(rows, row)
	}
	return header, rows, nil
}

// buildProfile computes all statistics for a table.
func buildProfile(header []string, rows [][]string) Profile {
	p := Profile{
		Rows:    len(rows),
		Columns: len(header),
	}

	for i, name := range header {
		values := make([]string, len(rows))
		for r, row := range rows {
			values[r] = row[i]
		}
		cs := profileColumn(name, values)
		p.MissingCells += cs.Missing
		p.ColumnStats = append(p.ColumnStats, cs)
	}

	p.DuplicateRows = countDuplicates(rows)
	p.Evaluation = summarizeEvaluation(header, rows)
	return p
}

func profileColumn(name string, values []string) ColumnStats {
	cs := ColumnStats{Name: name, Kind: KindText}

	freq := make(map[string]int)
	var present []string
	for _, v := range values {
		if v == "" {
			cs.Missing++
			continue
		}
		present = append(present, v)
		freq[v]++
	}
	cs.Count = len(present)
	cs.MissingPct = percent(cs.Missing, len(values))
	cs.Distinct = len(freq)
	cs.Top = topValues(freq, len(values))

	if nums, ok := parseNumbers(present); ok {
		cs.Kind = KindNumeric
		cs.Numeric = describe(nums)
		return cs
	}

	if len(present) > 0 {
		lengths := make([]float64, len(present))
		for i, v := range present {
			lengths[i] = float64(utf8.RuneCountInString(v))
		}
		cs.Length = describe(lengths)
	}
	return cs
}

// parseNumbers reports whether every value parses as a float. An empty
// input is not numeric.
func parseNumbers(values []string) ([]float64, bool) {
	if len(values) == 0 {
		return nil, false
	}
	nums := make([]float64, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		nums[i] = f
	}
	return nums, true
}

func describe(nums []float64) *NumericStats {
	if len(nums) == 0 {
		return nil
	}
	s := &NumericStats{Min: nums[0], Max: nums[0]}
	var sum float64
	for _, n := range nums {
		sum += n
		s.Min = math.Min(s.Min, n)
		s.Max = math.Max(s.Max, n)
	}
	s.Mean = sum / float64(len(nums))

	if len(nums) > 1 {
		var sq float64
		for _, n := range nums {
			d := n - s.Mean
			sq += d * d
		}
		s.StdDev = math.Sqrt(sq / float64(len(nums)-1))
	}
	return s
}

func topValues(freq map[string]int, total int) []ValueCount {
	out := make([]ValueCount, 0, len(freq))
	for v, c := range freq {
		out = append(out, ValueCount{Value: v, Count: c, Pct: percent(c, total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > maxTopValues {
		out = out[:maxTopValues]
	}
	return out
}

func countDuplicates(rows [][]string) int {
	seen := make(map[string]struct{}, len(rows))
	dups := 0
	for _, row := range rows {
		key := strings.Join(row, "\x1f")
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// summarizeEvaluation returns nil when the table has no evaluation column.
func summarizeEvaluation(header []string, rows [][]string) *EvaluationSummary {
	evalIdx := indexOf(header, "evaluation")
	if evalIdx < 0 {
		return nil
	}
	sourceIdx := indexOf(header, "answer_source")

	counts := map[model.Evaluation]int{
		model.EvaluationYes:   0,
		model.EvaluationNo:    0,
		model.EvaluationUnset: 0,
	}
	bySource := make(map[string]*SourceBreakdown)

	for _, row := range rows {
		ev := model.Evaluation(strings.ToUpper(strings.TrimSpace(row[evalIdx])))
		if ev == "" {
			ev = model.EvaluationUnset
		}
		counts[ev]++

		if sourceIdx < 0 {
			continue
		}
		src := row[sourceIdx]
		b, ok := bySource[src]
		if !ok {
			b = &SourceBreakdown{Source: src}
			bySource[src] = b
		}
		switch ev {
		case model.EvaluationYes:
			b.Yes++
		case model.EvaluationNo:
			b.No++
		case model.EvaluationUnset:
			b.Unset++
		default:
			b.Other++
		}
	}

	s := &EvaluationSummary{}
	for _, ev := range []model.Evaluation{model.EvaluationYes, model.EvaluationNo, model.EvaluationUnset} {
		s.Distribution = append(s.Distribution, ValueCount{
			Value: string(ev), Count: counts[ev], Pct: percent(counts[ev], len(rows)),
		})
		delete(counts, ev)
	}
	// Unexpected values still show up as their own categories.
	extra := make([]string, 0, len(counts))
	for ev := range counts {
		extra = append(extra, string(ev))
	}
	sort.Strings(extra)
	for _, ev := range extra {
		c := counts[model.Evaluation(ev)]
		s.Distribution = append(s.Distribution, ValueCount{Value: ev, Count: c, Pct: percent(c, len(rows))})
	}

	sources := make([]string, 0, len(bySource))
	for src := range bySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		s.BySource = append(s.BySource, *bySource[src])
	}

	rated := len(rows)
	for _, vc := range s.Distribution {
		if vc.Value == string(model.EvaluationUnset) {
			rated -= vc.Count
		}
	}
	s.RatedPct = percent(rated, len(rows))
	return s
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}
