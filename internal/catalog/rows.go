package catalog

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/storesync/internal/model"
)

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv: read rows")
	}
	return rows, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

type columns struct {
	brand, address, city, lat, lon int
}

var headerAliases = map[string]string{
	"brand":     "brand",
	"chain":     "brand",
	"address":   "address",
	"street":    "address",
	"city":      "city",
	"latitude":  "lat",
	"lat":       "lat",
	"longitude": "lon",
	"lon":       "lon",
	"lng":       "lon",
}

func parseHeader(header []string) (columns, error) {
	cols := columns{brand: -1, address: -1, city: -1, lat: -1, lon: -1}
	for i, h := range header {
		switch headerAliases[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] {
		case "brand":
			cols.brand = i
		case "address":
			cols.address = i
		case "city":
			cols.city = i
		case "lat":
			cols.lat = i
		case "lon":
			cols.lon = i
		}
	}
	if cols.brand < 0 || cols.address < 0 || cols.city < 0 {
		return cols, eris.Errorf("catalog: header must name brand, address, and city columns, got %v", header)
	}
	return cols, nil
}

// fromRows converts a header row plus data rows into stores.
func fromRows(rows [][]string) ([]model.Store, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	cols, err := parseHeader(rows[0])
	if err != nil {
		return nil, err
	}

	cell := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	stores := make([]model.Store, 0, len(rows)-1)
	for n, row := range rows[1:] {
		s := model.Store{
			Brand:   cell(row, cols.brand),
			Address: cell(row, cols.address),
			City:    cell(row, cols.city),
		}
		for _, c := range []struct {
			idx int
			dst *float64
		}{{cols.lat, &s.Latitude}, {cols.lon, &s.Longitude}} {
			v := cell(row, c.idx)
			if v == "" {
				continue
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "catalog: row %d: bad coordinate %q", n+2, v)
			}
			*c.dst = f
		}
		stores = append(stores, s)
	}
	return clean(stores), nil
}
