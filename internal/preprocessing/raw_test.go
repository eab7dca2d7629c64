package preprocessing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bracketed list", "a,b,\"[x, y]\"\n", "a,b,[x; y]\n"},
		{"single quotes", "2024-01-01,Zone 1,['innondation', 'seisme']\n", "2024-01-01,Zone 1,[innondation; seisme]\n"},
		{"comma space outside brackets kept", "a, b,[x, y]\n", "a, b,[x; y]\n"},
		{"no brackets", "a, b,\"c\"\n", "a, b,c\n"},
		{"only opening bracket", "a,[b, c\n", "a,[b, c\n"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLine(tt.in))
		})
	}
}

func TestNormalizeRawFileKeepsLineCount(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.csv")
	dst := filepath.Join(dir, "normalized.csv")
	in := "date,catastrophe\n2024-01-01,\"[innondation, seisme]\"\n2024-01-02,aucun"
	require.NoError(t, os.WriteFile(src, []byte(in), 0o644))

	n, err := NormalizeRawFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "date,catastrophe\n2024-01-01,[innondation; seisme]\n2024-01-02,aucun", string(got))
}

func TestNormalizeRawFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.csv")
	dst := filepath.Join(dir, "clean.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,'b'\n\"[1, 2]\",c\n"), 0o644))

	n, err := NormalizeRawFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n[1; 2],c\n", string(got))
}

func TestNormalizeRawFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := NormalizeRawFile(filepath.Join(dir, "nope.csv"), filepath.Join(dir, "out.csv"))
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "out.csv"))
	assert.True(t, os.IsNotExist(statErr))
}
