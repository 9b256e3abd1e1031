package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexString accepts either a JSON string or a JSON number.
// The chat API is not consistent about ids and ages.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

type BadgeType string

const (
	BadgeFreeShipping BadgeType = "free_shipping"
	BadgeFreeReturns  BadgeType = "free_returns"
	BadgeBestSeller   BadgeType = "best_seller"
	BadgeTopRated     BadgeType = "top_rated"
	BadgeOther        BadgeType = "other"
)

type Badge struct {
	Type  BadgeType `json:"type"`
	Label string    `json:"label"`
}

// Product is one catalog item returned by the chat API.
type Product struct {
	ID              FlexString `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Price           float64    `json:"price"`
	PriceStr        string     `json:"price_str"`
	Link            string     `json:"link"`
	ImageURL        string     `json:"imageUrl"`
	Rating          *float64   `json:"rating"`
	RatingCount     int        `json:"ratingCount"`
	Delivery        string     `json:"delivery"`
	Source          string     `json:"source"`
	SimilarityScore *float64   `json:"similarity_score,omitempty"`
	Features        []string   `json:"features,omitempty"`
	Badges          []Badge    `json:"badges,omitempty"`
}

type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

type SearchFilters struct {
	PriceRange   *PriceRange `json:"price_range,omitempty"`
	MinRating    *float64    `json:"min_rating,omitempty"`
	FreeShipping bool        `json:"free_shipping,omitempty"`
	FreeReturns  bool        `json:"free_returns,omitempty"`
}

type SortOption string

const (
	SortRelevance      SortOption = "relevance"
	SortRating         SortOption = "rating"
	SortRatingCount    SortOption = "rating_count"
	SortRatingWeighted SortOption = "rating_weighted"
	SortPriceLow       SortOption = "price_low"
	SortPriceHigh      SortOption = "price_high"
)

// SearchParameters echoes how the chat API interpreted a query.
type SearchParameters struct {
	BaseQuery string         `json:"base_query"`
	Color     string         `json:"color,omitempty"`
	Brand     string         `json:"brand,omitempty"`
	Age       FlexString     `json:"age,omitempty"`
	Gender    string         `json:"gender,omitempty"`
	Occasion  string         `json:"occasion,omitempty"`
	Filters   *SearchFilters `json:"filters,omitempty"`
	SortBy    SortOption     `json:"sort_by,omitempty"`
}

// FormatAmount renders a price bound without trailing zeros (20, 19.99).
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
