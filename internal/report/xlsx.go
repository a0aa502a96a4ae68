package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/teaterarkiv/archive-cli/internal/model"
)

// WriteReviewXLSX writes review items to a workbook at path, one row per
// item under a header row.
func WriteReviewXLSX(path string, items []model.ReviewItem) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("review")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}
	addRow(sheet, reviewHeaders)
	for _, it := range items {
		addRow(sheet, reviewRow(it))
	}
	return eris.Wrapf(f.Save(path), "report: save %s", path)
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
