package search

import (
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/placesfinder/placesfinder/internal/errors"
)

// Request is one user-triggered search.
type Request struct {
	Query  string    `json:"query"`
	Bias   BiasPoint `json:"bias"`
	Radius Radius    `json:"radius"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return apperrors.NewValidationError("query", "Please enter a search query")
	}
	if err := r.Bias.Validate(); err != nil {
		return err
	}
	return r.Radius.Validate()
}

// InitialParams builds the parameters of the first text-search call.
func (r Request) InitialParams(apiKey string) url.Values {
	params := url.Values{}
	params.Set("query", strings.TrimSpace(r.Query))
	params.Set("key", apiKey)
	params.Set("location", r.Bias.String())
	params.Set("radius", strconv.Itoa(int(r.Radius)))
	return params
}

// ContinuationParams builds the parameters of a follow-up page call. The page
// token carries the original query, so nothing else is sent.
func ContinuationParams(pageToken, apiKey string) url.Values {
	params := url.Values{}
	params.Set("pagetoken", pageToken)
	params.Set("key", apiKey)
	return params
}
