// Package table converts HTML tables into keyed records.
package table

import (
	"fmt"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/travelsaas/ratescrape/pkg/models"
)

// Cell is a normalized table cell.
type Cell struct {
	Text    string
	Colspan int
	Rowspan int
	Header  bool
}

// HeaderContext describes the header cell being labelled.
type HeaderContext struct {
	RowIndex  int
	CellIndex int
	Cell      Cell
}

// CellContext describes the body cell being mapped.
type CellContext struct {
	Header    models.Header
	Cell      Cell
	RowIndex  int
	CellIndex int
}

// Options tune header detection and cell mapping.
type Options struct {
	// HeaderRows is the number of leading rows treated as headers. Only the
	// last of them declares columns. Zero means 1.
	HeaderRows int
	// MapHeader rewrites a normalized header label.
	MapHeader func(label string, ctx HeaderContext) string
	// MapCell converts a normalized cell text into a value.
	MapCell func(text string, ctx CellContext) models.Value
	// FilterRow drops body rows before mapping when it returns false.
	FilterRow func(cells []Cell, rowIndex int) bool
	// IncludeEmpty keeps blank headers and rows with only blank values.
	IncludeEmpty bool
	// MissingAsNull fills absent columns with null instead of "".
	MissingAsNull bool
}

// Result is the parsed table.
type Result struct {
	Headers []models.Header
	Rows    []models.Row
}

// Parse walks the rows of a table element and returns its headers and the
// records of its body rows.
func Parse(tbl *goquery.Selection, opts Options) Result {
	headerRows := opts.HeaderRows
	if headerRows <= 0 {
		headerRows = 1
	}

	rows := tbl.Find("tr")
	res := Result{Headers: []models.Header{}, Rows: []models.Row{}}

	// slots[i] is the header index owning column slot i, or -1.
	var slots []int

	rows.Each(func(rowIndex int, tr *goquery.Selection) {
		cells := readCells(tr)

		if rowIndex < headerRows {
			if rowIndex == headerRows-1 {
				res.Headers, slots = declareHeaders(cells, rowIndex, opts)
			}
			return
		}

		if opts.FilterRow != nil && !opts.FilterRow(cells, rowIndex) {
			return
		}

		record := make(models.Row, len(res.Headers))
		slot := 0
		for cellIndex, cell := range cells {
			if slot < len(slots) && slots[slot] >= 0 {
				h := res.Headers[slots[slot]]
				if opts.MapCell != nil {
					record[h.Key] = opts.MapCell(cell.Text, CellContext{
						Header:    h,
						Cell:      cell,
						RowIndex:  rowIndex,
						CellIndex: cellIndex,
					})
				} else {
					record[h.Key] = models.String(cell.Text)
				}
			}
			slot += cell.Colspan
		}

		if !opts.IncludeEmpty && !hasContent(record) {
			return
		}

		fill := models.String("")
		if opts.MissingAsNull {
			fill = models.Null()
		}
		for _, h := range res.Headers {
			if _, ok := record[h.Key]; !ok {
				record[h.Key] = fill
			}
		}
		res.Rows = append(res.Rows, record)
	})

	return res
}

func declareHeaders(cells []Cell, rowIndex int, opts Options) ([]models.Header, []int) {
	headers := []models.Header{}
	slots := []int{}
	used := make(map[string]bool)

	for cellIndex, cell := range cells {
		label := cell.Text
		if opts.MapHeader != nil {
			label = NormalizeText(opts.MapHeader(label, HeaderContext{
				RowIndex:  rowIndex,
				CellIndex: cellIndex,
				Cell:      cell,
			}))
		}

		owner := -1
		if label != "" || opts.IncludeEmpty {
			key := uniqueKey(ToKey(label), cellIndex, used)
			headers = append(headers, models.Header{Label: label, Key: key})
			owner = len(headers) - 1
		}

		slots = append(slots, owner)
		for i := 1; i < cell.Colspan; i++ {
			slots = append(slots, -1)
		}
	}
	return headers, slots
}

func uniqueKey(key string, cellIndex int, used map[string]bool) string {
	if key == "" {
		key = fmt.Sprintf("column%d", cellIndex)
	}
	candidate := key
	for n := cellIndex; used[candidate]; n++ {
		candidate = key + strconv.Itoa(n)
	}
	used[candidate] = true
	return candidate
}

func readCells(tr *goquery.Selection) []Cell {
	var cells []Cell
	tr.ChildrenFiltered("th,td").Each(func(_ int, td *goquery.Selection) {
		cells = append(cells, Cell{
			Text:    NormalizeText(td.Text()),
			Colspan: spanAttr(td, "colspan"),
			Rowspan: spanAttr(td, "rowspan"),
			Header:  goquery.NodeName(td) == "th",
		})
	})
	return cells
}

func spanAttr(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func hasContent(r models.Row) bool {
	for _, v := range r {
		if !v.IsBlank() {
			return true
		}
	}
	return false
}
