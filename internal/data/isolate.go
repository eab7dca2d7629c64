package data

import "math/rand"

// IsolateRow removes one row chosen by seed. The same table and seed always
// pick the same row; the remainder keeps the original row order.
func IsolateRow(t *Table, seed int64) (isolated *Table, remainder *Table, err error) {
	n := t.Len()
	if n == 0 {
		return nil, nil, &EmptyTableError{Op: "isolate row"}
	}

	pick := IsolatedIndex(n, seed)

	rest := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != pick {
			rest = append(rest, i)
		}
	}

	return t.Rows([]int{pick}), t.Rows(rest), nil
}

// IsolatedIndex reports which row IsolateRow would remove.
func IsolatedIndex(n int, seed int64) int {
	if n <= 0 {
		return -1
	}
	return rand.New(rand.NewSource(seed)).Intn(n)
}
