package output

import (
	"encoding/csv"
	"io"

	"github.com/travelsaas/ratescrape/pkg/models"
)

// WriteCSV writes the table with a label header line followed by one line
// per row in header order. Null values are written as empty fields.
func WriteCSV(w io.Writer, td *models.TableData) error {
	writer := csv.NewWriter(w)

	labels := make([]string, len(td.Headers))
	for i, h := range td.Headers {
		labels[i] = h.Label
	}
	if err := writer.Write(labels); err != nil {
		return err
	}

	for _, row := range td.Rows {
		record := make([]string, len(td.Headers))
		for i, h := range td.Headers {
			record[i] = row[h.Key].Text()
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
