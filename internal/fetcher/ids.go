package fetcher

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadIDs reads a list of record ids from the first column of a CSV, plain
// text or XLSX file. Blank cells, lines starting with '#' and a header cell
// named "id" or "prf_id" are skipped. Duplicates keep their first position.
func ReadIDs(path string) ([]string, error) {
	var cells []string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		cells, err = firstColumnXLSX(path)
	default:
		cells, err = firstColumnCSV(path)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(cells))
	var ids []string
	for _, c := range cells {
		c = strings.TrimSpace(c)
		switch {
		case c == "", strings.HasPrefix(c, "#"):
			continue
		case strings.EqualFold(c, "id"), strings.EqualFold(c, "prf_id"):
			continue
		case seen[c]:
			continue
		}
		seen[c] = true
		ids = append(ids, c)
	}
	return ids, nil
}

func firstColumnCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ids: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comment = '#'

	var out []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ids: parse %s", path)
		}
		if len(rec) > 0 {
			out = append(out, rec[0])
		}
	}
	return out, nil
}

func firstColumnXLSX(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ids: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("ids: %s has no sheets", path)
	}
	var out []string
	for _, row := range f.Sheets[0].Rows {
		if row == nil || len(row.Cells) == 0 {
			continue
		}
		out = append(out, row.Cells[0].String())
	}
	return out, nil
}
