package preprocessing

import "fmt"

// LabelEncoder translates between category names and the integer codes a
// model is trained on.
type LabelEncoder struct {
	ClassToInt map[string]int
	IntToClass map[int]string
}

// NewLabelEncoderFromMapping uses the codes of m as-is. When several names
// share a code the first name in m.Values() order decodes it.
func NewLabelEncoderFromMapping(m Mapping) *LabelEncoder {
	le := &LabelEncoder{
		ClassToInt: make(map[string]int, len(m)),
		IntToClass: make(map[int]string, len(m)),
	}
	for _, name := range m.Values() {
		code := m[name]
		le.ClassToInt[name] = code
		if _, taken := le.IntToClass[code]; !taken {
			le.IntToClass[code] = name
		}
	}
	return le
}

// Decode returns the name for one code, or the code itself when unknown.
func (le *LabelEncoder) Decode(code int) string {
	if le != nil {
		if label, ok := le.IntToClass[code]; ok {
			return label
		}
	}
	return fmt.Sprintf("%d", code)
}
