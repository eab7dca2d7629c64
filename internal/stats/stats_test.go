package stats

import (
	"math"
	"strings"
	"testing"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table(t *testing.T, csv string) *data.Table {
	t.Helper()
	tbl, err := data.ReadCSVFrom(strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

func TestDescribe(t *testing.T) {
	tbl := table(t, "name,a,b\nx,1,2.5\ny,2,\nz,3,4.5\nw,4,1\n")

	summaries, err := Describe(tbl)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	a := summaries[0]
	assert.Equal(t, "a", a.Column)
	assert.Equal(t, 4, a.Count)
	assert.InDelta(t, 2.5, a.Mean, 1e-12)
	assert.InDelta(t, 1.2909944487358056, a.Std, 1e-12)
	assert.Equal(t, 1.0, a.Min)
	assert.InDelta(t, 1.75, a.Q25, 1e-12)
	assert.InDelta(t, 2.5, a.Median, 1e-12)
	assert.InDelta(t, 3.25, a.Q75, 1e-12)
	assert.Equal(t, 4.0, a.Max)
	assert.InDelta(t, 1.5, a.IQR, 1e-12)

	b := summaries[1]
	assert.Equal(t, 3, b.Count)
	assert.InDelta(t, 2.5, b.Median, 1e-12)
}

func TestDescribeSingleValueHasNoStd(t *testing.T) {
	tbl := table(t, "a\n7\n")

	summaries, err := Describe(tbl)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(summaries[0].Std))
	assert.Equal(t, 0.0, summaries[0].IQR)
}

func TestSummaryTable(t *testing.T) {
	tbl := table(t, "a\n1\n2\n3\n")
	summaries, err := Describe(tbl)
	require.NoError(t, err)

	out, err := SummaryTable(summaries)
	require.NoError(t, err)
	assert.Equal(t, SummaryColumns, out.Names())
	assert.Equal(t, 1, out.Len())
	assert.Equal(t, "a", out.Row(0)[0].Text())
	assert.Equal(t, "3", out.Row(0)[1].Text())
}

func TestCorrelationMatrix(t *testing.T) {
	tbl := table(t, "x,y,z,c\n1,2,3,5\n2,4,1,5\n3,6,2,5\n4,8,0,5\n")

	m, err := CorrelationMatrix(tbl)
	require.NoError(t, err)

	r, ok := m.At("x", "y")
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-12)

	r, _ = m.At("y", "x")
	assert.InDelta(t, 1.0, r, 1e-12)

	r, _ = m.At("x", "c")
	assert.True(t, math.IsNaN(r), "constant column has no correlation")

	_, ok = m.At("x", "missing")
	assert.False(t, ok)
}

func TestSelectFeatures(t *testing.T) {
	src := "date,a,b,noise,catastrophe\n" +
		"2024-01-01,1,5,1,0\n" +
		"2024-01-02,2,5,0,1\n" +
		"2024-01-03,3,5,0,1\n" +
		"2024-01-04,4,5,1,2\n" +
		"2024-01-05,5,5,1,3\n" +
		"2024-01-06,6,5,0,3\n"
	tbl := table(t, src)
	threshold := 0.1

	out, sel, err := SelectFeatures(tbl, "catastrophe", "date", threshold)
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "a", "catastrophe"}, out.Names())
	assert.Equal(t, tbl.Len(), out.Len())

	for _, name := range sel.Kept {
		if name == "catastrophe" {
			continue
		}
		assert.Greater(t, math.Abs(sel.Correlations[name]), threshold)
	}
	for _, name := range sel.Dropped {
		r := sel.Correlations[name]
		assert.True(t, math.IsNaN(r) || math.Abs(r) <= threshold, name)
	}
	assert.ElementsMatch(t, []string{"b", "noise"}, sel.Dropped)
}

func TestSelectFeaturesTargetErrors(t *testing.T) {
	tbl := table(t, "a,label\n1,x\n2,y\n3,x\n")

	_, _, err := SelectFeatures(tbl, "catastrophe", "date", 0.1)
	var targetErr *TargetColumnError
	require.ErrorAs(t, err, &targetErr)

	_, _, err = SelectFeatures(tbl, "label", "date", 0.1)
	require.ErrorAs(t, err, &targetErr)
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 3.0, Quantile(sorted, 0.5))
	assert.Equal(t, 2.0, Quantile(sorted, 0.25))
	assert.Equal(t, 1.0, Quantile(sorted, 0))
	assert.Equal(t, 5.0, Quantile(sorted, 1))
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}
