package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placesfinder/placesfinder/internal/places"
	"github.com/placesfinder/placesfinder/internal/search"
)

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVBytes_HeaderOnly(t *testing.T) {
	data, err := CSVBytes(nil)
	require.NoError(t, err)

	assert.Equal(t, "name,address,rating,user_ratings_total,place_id,latitude,longitude,types,phone_number,website\n", string(data))
}

func TestCSVBytes_FullRow(t *testing.T) {
	rows := []search.ResultRow{{
		Name:             "Blue Bottle, Ferry Building",
		Address:          "1 Ferry Building, San Francisco",
		Rating:           ptrFloat(4.5),
		UserRatingsTotal: ptrInt(1200),
		PlaceID:          "ChIJ1",
		Latitude:         37.7955,
		Longitude:        -122.3937,
		Types:            []string{"cafe", "food", "point_of_interest"},
		PhoneNumber:      "(510) 653-3394",
		Website:          "https://bluebottlecoffee.com",
	}}

	data, err := CSVBytes(rows)
	require.NoError(t, err)

	records := readCSV(t, data)
	require.Len(t, records, 2)
	assert.Equal(t, Columns, records[0])
	assert.Equal(t, []string{
		"Blue Bottle, Ferry Building",
		"1 Ferry Building, San Francisco",
		"4.5",
		"1200",
		"ChIJ1",
		"37.7955",
		"-122.3937",
		"cafe, food, point_of_interest",
		"(510) 653-3394",
		"https://bluebottlecoffee.com",
	}, records[1])
}

func TestRecord_MissingOptionalFields(t *testing.T) {
	record := Record(search.ResultRow{PlaceID: "B", Latitude: 37.79, Longitude: -122.4})

	assert.Equal(t, "", record[2])
	assert.Equal(t, "", record[3])
	assert.Equal(t, "37.79", record[5])
	assert.Equal(t, "-122.4", record[6])
	assert.Equal(t, "", record[7])
	assert.Equal(t, "", record[8])
	assert.Equal(t, "", record[9])
}

func TestCSVBytes_SearchScenario(t *testing.T) {
	summaries := []places.PlaceSummary{
		{PlaceID: "A", Name: "Cafe A", Geometry: places.Geometry{Location: places.LatLng{Lat: 37.7941, Lng: -122.3951}}, Types: []string{"cafe"}},
		{PlaceID: "B", Name: "Cafe B", Geometry: places.Geometry{Location: places.LatLng{Lat: 37.7902, Lng: -122.4012}}, Types: []string{"cafe", "store"}},
	}
	rows := make([]search.ResultRow, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, search.NewResultRow(s, places.PlaceDetail{}))
	}

	data, err := CSVBytes(rows)
	require.NoError(t, err)

	records := readCSV(t, data)
	require.Len(t, records, 3)
	for i, s := range summaries {
		record := records[i+1]
		assert.Equal(t, s.PlaceID, record[4])
		assert.Equal(t, formatFloat(s.Geometry.Location.Lat), record[5])
		assert.Equal(t, formatFloat(s.Geometry.Location.Lng), record[6])
		assert.Empty(t, record[8])
		assert.Empty(t, record[9])
	}
	assert.Equal(t, "cafe, store", records[2][7])
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "places_results.csv", FileName)
	assert.Equal(t, "text/csv", ContentType)
	assert.Len(t, Columns, 10)
}
