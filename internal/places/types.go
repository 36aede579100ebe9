package places

// LatLng is a coordinate pair as returned inside a place geometry.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Geometry struct {
	Location LatLng `json:"location"`
}

// PlaceSummary is one text-search result. Rating and UserRatingsTotal are nil
// when the API omits them.
type PlaceSummary struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Rating           *float64 `json:"rating,omitempty"`
	UserRatingsTotal *int     `json:"user_ratings_total,omitempty"`
	Geometry         Geometry `json:"geometry"`
	Types            []string `json:"types"`
}

// TextSearchResponse is one page of text-search results.
type TextSearchResponse struct {
	Results       []PlaceSummary `json:"results"`
	NextPageToken string         `json:"next_page_token,omitempty"`
	Status        string         `json:"status,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// PlaceDetail holds the detail fields requested for enrichment.
type PlaceDetail struct {
	FormattedPhoneNumber string `json:"formatted_phone_number,omitempty"`
	Website              string `json:"website,omitempty"`
}

type DetailsResponse struct {
	Result       PlaceDetail `json:"result"`
	Status       string      `json:"status,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}
