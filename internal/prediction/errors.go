package prediction

import (
	"fmt"
	"strings"
)

// EmptyInputError is returned when every input row was dropped during
// coercion.
type EmptyInputError struct {
	Rows int
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("no rows left to score: all %d input rows had missing values after coercion", e.Rows)
}

// SchemaMismatchError is returned when the input columns differ from the
// features the model was trained on.
type SchemaMismatchError struct {
	Expected []string
	Got      []string
	Missing  []string
	Extra    []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Extra, ", "))
	}
	return fmt.Sprintf("input columns do not match model features [%s]: %s",
		strings.Join(e.Expected, ", "), strings.Join(parts, "; "))
}

func checkSchema(expected, got []string) error {
	want := make(map[string]bool, len(expected))
	for _, name := range expected {
		want[name] = true
	}
	have := make(map[string]bool, len(got))
	for _, name := range got {
		have[name] = true
	}

	mismatch := &SchemaMismatchError{Expected: expected, Got: got}
	for _, name := range expected {
		if !have[name] {
			mismatch.Missing = append(mismatch.Missing, name)
		}
	}
	for _, name := range got {
		if !want[name] {
			mismatch.Extra = append(mismatch.Extra, name)
		}
	}
	if len(mismatch.Missing) > 0 || len(mismatch.Extra) > 0 {
		return mismatch
	}
	return nil
}
