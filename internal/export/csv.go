package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/placesfinder/placesfinder/internal/search"
)

const (
	FileName    = "places_results.csv"
	ContentType = "text/csv"

	typesSeparator = ", "
)

// Columns is the fixed header of the export.
var Columns = []string{
	"name",
	"address",
	"rating",
	"user_ratings_total",
	"place_id",
	"latitude",
	"longitude",
	"types",
	"phone_number",
	"website",
}

// Record renders one row in column order.
func Record(row search.ResultRow) []string {
	rating := ""
	if row.Rating != nil {
		rating = formatFloat(*row.Rating)
	}
	total := ""
	if row.UserRatingsTotal != nil {
		total = strconv.Itoa(*row.UserRatingsTotal)
	}

	return []string{
		row.Name,
		row.Address,
		rating,
		total,
		row.PlaceID,
		formatFloat(row.Latitude),
		formatFloat(row.Longitude),
		strings.Join(row.Types, typesSeparator),
		row.PhoneNumber,
		row.Website,
	}
}

// WriteCSV writes the header and one line per row.
func WriteCSV(w io.Writer, rows []search.ResultRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i, row := range rows {
		if err := cw.Write(Record(row)); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// CSVBytes renders rows into an in-memory CSV document.
func CSVBytes(rows []search.ResultRow) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
