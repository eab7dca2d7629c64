package preprocessing

import (
	"sort"
	"strings"

	"github.com/Paul-Berdier/123PandaRoux/internal/data"
)

// Mapping assigns integer codes to the known values of a categorical column.
type Mapping map[string]int

// Values lists the mapped values ordered by code, then by name.
func (m Mapping) Values() []string {
	values := make([]string, 0, len(m))
	for v := range m {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if m[values[i]] != m[values[j]] {
			return m[values[i]] < m[values[j]]
		}
		return values[i] < values[j]
	})
	return values
}

// MapColumn replaces every cell of column with its code. Values outside the
// mapping become missing rather than failing the run.
func MapColumn(t *data.Table, column string, m Mapping) (*data.Table, error) {
	values, err := t.Values(column)
	if err != nil {
		return nil, &data.ColumnNotFoundError{Column: column, Op: "map column"}
	}

	mapped := make([]data.Value, len(values))
	for i, v := range values {
		if v.Null {
			mapped[i] = data.NullValue()
			continue
		}
		code, ok := m[strings.TrimSpace(v.Text())]
		if !ok {
			mapped[i] = data.NullValue()
			continue
		}
		mapped[i] = data.IntValue(int64(code))
	}

	return t.WithColumn(data.Column{Name: column, Kind: data.KindInt}, mapped)
}

// Unmapped counts cells of column that MapColumn would turn into missing
// values, ignoring cells that are already missing.
func Unmapped(t *data.Table, column string, m Mapping) int {
	values, err := t.Values(column)
	if err != nil {
		return 0
	}
	n := 0
	for _, v := range values {
		if v.Null {
			continue
		}
		if _, ok := m[strings.TrimSpace(v.Text())]; !ok {
			n++
		}
	}
	return n
}
