// Package export writes lead listings to CSV and XLSX files.
package export

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadgen-cli/internal/model"
)

var header = []string{
	"ID", "Name", "Category", "City", "State", "Phone", "Email", "Website",
	"Rating", "Reviews", "Score", "Status", "Insights", "Recommended Services",
	"Outreach Message", "Maps URL",
}

func leadRow(l model.Lead) []string {
	return []string{
		strconv.FormatInt(l.ID, 10),
		l.Name,
		l.Category,
		l.City,
		l.State,
		l.Phone,
		l.Email,
		l.Website,
		strconv.FormatFloat(l.Rating, 'f', 1, 64),
		strconv.Itoa(l.ReviewCount),
		strconv.Itoa(l.Score),
		string(l.Status),
		strings.Join(l.Insights, "; "),
		strings.Join(l.RecommendedServices, "; "),
		l.OutreachMessage,
		l.MapsURL,
	}
}

// CSV writes leads to path as a CSV file with a header row.
func CSV(leads []model.Lead, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create csv file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, l := range leads {
		if err := w.Write(leadRow(l)); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// XLSX writes leads to path as a single-sheet workbook.
func XLSX(leads []model.Lead, path string) error {
	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	headerRow := sheet.AddRow()
	for _, h := range header {
		cell := headerRow.AddCell()
		cell.Value = h
	}
	for _, l := range leads {
		row := sheet.AddRow()
		for _, v := range leadRow(l) {
			cell := row.AddCell()
			cell.Value = v
		}
	}

	if err := wb.Save(path); err != nil {
		return eris.Wrap(err, "export: save xlsx")
	}
	return nil
}
