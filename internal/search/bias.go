package search

import (
	"strconv"

	apperrors "github.com/placesfinder/placesfinder/internal/errors"
)

// BiasPoint is the location a text search is biased toward.
type BiasPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DefaultBiasPoint is the point used until the user picks one.
var DefaultBiasPoint = BiasPoint{Latitude: 37.7937, Longitude: -122.3965}

// NewBiasPoint returns the point for a map click. The clicked pair is taken
// exactly; the previous point plays no part.
func NewBiasPoint(lat, lng float64) (BiasPoint, error) {
	b := BiasPoint{Latitude: lat, Longitude: lng}
	if err := b.Validate(); err != nil {
		return BiasPoint{}, err
	}
	return b, nil
}

func (b BiasPoint) Validate() error {
	if b.Latitude < -90 || b.Latitude > 90 {
		return apperrors.NewValidationError("latitude", "Latitude must be between -90 and 90")
	}
	if b.Longitude < -180 || b.Longitude > 180 {
		return apperrors.NewValidationError("longitude", "Longitude must be between -180 and 180")
	}
	return nil
}

// String renders the point in the "lat,lng" form used by the location parameter.
func (b BiasPoint) String() string {
	return strconv.FormatFloat(b.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(b.Longitude, 'f', -1, 64)
}
