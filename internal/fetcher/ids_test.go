package fetcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestReadIDs_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"prf_id,note\n"+
			"FTEA00001099,part one\n"+
			"# skipped\n"+
			"\n"+
			" FTEA00002099 ,part two\n"+
			"FTEA00001099,dupe\n"+
			"MKTR01000178\n"), 0o644))

	ids, err := ReadIDs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"FTEA00001099", "FTEA00002099", "MKTR01000178"}, ids)
}

func TestReadIDs_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("ids")
	require.NoError(t, err)
	for _, v := range []string{"id", "MKTR01000178", "", "FTEA00001099"} {
		sheet.AddRow().AddCell().SetString(v)
	}
	path := filepath.Join(t.TempDir(), "ids.xlsx")
	require.NoError(t, f.Save(path))

	ids, err := ReadIDs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"MKTR01000178", "FTEA00001099"}, ids)
}

func TestReadIDs_Missing(t *testing.T) {
	_, err := ReadIDs(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
