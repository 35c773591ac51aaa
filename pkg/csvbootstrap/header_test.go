package csvbootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadHeaderStripsQuotesAndWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, os.WriteFile(path, []byte("\"StockId\", Qty ,\"Description\"\n007,5,Widget\n"), 0o644))
	cols, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"StockId", "Qty", "Description"}, cols)
}

func TestDetectLineEndingCRLF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\r\n1,2\r\n"), 0o644))
	le, err := DetectLineEnding(path)
	require.NoError(t, err)
	assert.Equal(t, "\r\n", le)
}

func TestDetectLineEndingLF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))
	le, err := DetectLineEnding(path)
	require.NoError(t, err)
	assert.Equal(t, "\n", le)
}
