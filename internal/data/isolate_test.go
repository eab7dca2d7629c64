package data

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowKeys(tbl *Table) []string {
	keys := make([]string, tbl.Len())
	for i := 0; i < tbl.Len(); i++ {
		cells := tbl.Row(i)
		parts := make([]string, len(cells))
		for j, c := range cells {
			parts[j] = c.Text()
		}
		keys[i] = strings.Join(parts, "|")
	}
	return keys
}

func TestIsolateRowPartitionsTable(t *testing.T) {
	tbl := readSample(t)

	isolated, remainder, err := IsolateRow(tbl, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, isolated.Len())
	assert.Equal(t, tbl.Len()-1, remainder.Len())
	assert.Equal(t, tbl.Names(), isolated.Names())

	got := append(rowKeys(isolated), rowKeys(remainder)...)
	want := rowKeys(tbl)
	sort.Strings(got)
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestIsolateRowKeepsRemainderOrder(t *testing.T) {
	tbl := readSample(t)
	pick := IsolatedIndex(tbl.Len(), 7)

	_, remainder, err := IsolateRow(tbl, 7)
	require.NoError(t, err)

	var want []string
	for i, key := range rowKeys(tbl) {
		if i != pick {
			want = append(want, key)
		}
	}
	assert.Equal(t, want, rowKeys(remainder))
}

func TestIsolateRowDeterministic(t *testing.T) {
	tbl := readSample(t)

	a, _, err := IsolateRow(tbl, 42)
	require.NoError(t, err)
	b, _, err := IsolateRow(tbl, 42)
	require.NoError(t, err)

	assert.Equal(t, rowKeys(a), rowKeys(b))
}

func TestIsolateRowEmptyTable(t *testing.T) {
	tbl, err := NewTable([]Column{{Name: "a", Kind: KindInt}}, nil)
	require.NoError(t, err)

	_, _, err = IsolateRow(tbl, 42)
	var empty *EmptyTableError
	assert.ErrorAs(t, err, &empty)
}
