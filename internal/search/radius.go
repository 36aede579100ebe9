package search

import (
	"fmt"

	apperrors "github.com/placesfinder/placesfinder/internal/errors"
)

// Radius is the search radius in meters.
type Radius int

const (
	MinRadius     Radius = 1000
	MaxRadius     Radius = 50000
	RadiusStep    Radius = 1000
	DefaultRadius Radius = 5000
)

func (r Radius) Validate() error {
	if r < MinRadius || r > MaxRadius {
		return apperrors.NewValidationError("radius",
			fmt.Sprintf("Radius must be between %d and %d meters", MinRadius, MaxRadius))
	}
	if r%RadiusStep != 0 {
		return apperrors.NewValidationError("radius",
			fmt.Sprintf("Radius must be a multiple of %d meters", RadiusStep))
	}
	return nil
}

// OverlayRadius is the radius of the circle drawn on the map: half the search radius.
func (r Radius) OverlayRadius() float64 {
	return float64(r) / 2
}
