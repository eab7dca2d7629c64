package data

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `date,quartier,humidite,sismicite,catastrophe
2024-01-01,Zone 1,50,0.10,aucun
2024-01-02,Zone 2,75,0.25,[seisme]
2024-01-03,Zone 1,,0.40,[innondation]
2024-01-04,Zone 3,100,0.55,aucun
`

func readSample(t *testing.T) *Table {
	t.Helper()
	tbl, err := ReadCSVFrom(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	return tbl
}

func TestReadCSVInfersKinds(t *testing.T) {
	tbl := readSample(t)

	assert.Equal(t, 4, tbl.Len())
	assert.Equal(t, []string{"date", "quartier", "humidite", "sismicite", "catastrophe"}, tbl.Names())

	kinds := map[string]Kind{}
	for _, col := range tbl.Columns() {
		kinds[col.Name] = col.Kind
	}
	assert.Equal(t, KindDate, kinds["date"])
	assert.Equal(t, KindCategorical, kinds["quartier"])
	assert.Equal(t, KindInt, kinds["humidite"])
	assert.Equal(t, KindFloat, kinds["sismicite"])
	assert.Equal(t, KindCategorical, kinds["catastrophe"])

	hum, err := tbl.Values("humidite")
	require.NoError(t, err)
	assert.True(t, hum[2].Null)
}

func TestWriteCSVKeepsUntouchedCells(t *testing.T) {
	tbl := readSample(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCSVTo(tbl, &buf))
	assert.Equal(t, sampleCSV, buf.String())
}

func TestWriteCSVAtomic(t *testing.T) {
	tbl := readSample(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.csv")

	require.NoError(t, WriteCSV(tbl, path))

	back, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, tbl.Len(), back.Len())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not survive")
}

func TestSelect(t *testing.T) {
	tbl := readSample(t)

	out, err := tbl.Select("sismicite", "date")
	require.NoError(t, err)
	assert.Equal(t, []string{"sismicite", "date"}, out.Names())
	assert.Equal(t, tbl.Len(), out.Len())
	assert.Equal(t, "0.25", out.Row(1)[0].Text())

	_, err = tbl.Select("date", "pression")
	var notFound *ColumnNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "pression", notFound.Column)
}

func TestWithColumnDoesNotMutateSource(t *testing.T) {
	tbl := readSample(t)
	vals := make([]Value, tbl.Len())
	for i := range vals {
		vals[i] = IntValue(int64(i))
	}

	out, err := tbl.WithColumn(Column{Name: "humidite", Kind: KindInt}, vals)
	require.NoError(t, err)

	assert.Equal(t, "3", out.Row(3)[2].Text())
	assert.Equal(t, "100", tbl.Row(3)[2].Text())

	appended, err := tbl.WithColumn(Column{Name: "extra", Kind: KindInt}, vals)
	require.NoError(t, err)
	assert.Equal(t, 6, appended.Width())
	assert.Equal(t, 5, tbl.Width())
}

func TestFloats(t *testing.T) {
	tbl := readSample(t)

	f, err := tbl.Floats("sismicite")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.10, 0.25, 0.40, 0.55}, f, 1e-12)

	_, err = tbl.Floats("quartier")
	var typeErr *ColumnTypeError
	require.ErrorAs(t, err, &typeErr)
}

func TestNewTableRejectsRaggedRows(t *testing.T) {
	_, err := NewTable([]Column{{Name: "a", Kind: KindInt}}, [][]Value{{IntValue(1), IntValue(2)}})
	require.Error(t, err)

	_, err = NewTable([]Column{{Name: "a"}, {Name: "a"}}, nil)
	require.Error(t, err)
}
