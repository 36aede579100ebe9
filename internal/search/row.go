package search

import "github.com/placesfinder/placesfinder/internal/places"

// ResultRow is one summary merged with its detail.
type ResultRow struct {
	Name             string   `json:"name"`
	Address          string   `json:"address"`
	Rating           *float64 `json:"rating"`
	UserRatingsTotal *int     `json:"user_ratings_total"`
	PlaceID          string   `json:"place_id"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Types            []string `json:"types"`
	PhoneNumber      string   `json:"phone_number"`
	Website          string   `json:"website"`
}

// NewResultRow merges a summary and its detail; missing detail fields stay empty.
func NewResultRow(summary places.PlaceSummary, detail places.PlaceDetail) ResultRow {
	types := summary.Types
	if types == nil {
		types = []string{}
	}
	return ResultRow{
		Name:             summary.Name,
		Address:          summary.FormattedAddress,
		Rating:           summary.Rating,
		UserRatingsTotal: summary.UserRatingsTotal,
		PlaceID:          summary.PlaceID,
		Latitude:         summary.Geometry.Location.Lat,
		Longitude:        summary.Geometry.Location.Lng,
		Types:            types,
		PhoneNumber:      detail.FormattedPhoneNumber,
		Website:          detail.Website,
	}
}
