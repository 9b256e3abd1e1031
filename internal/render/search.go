package render

import (
	"fmt"
	"strconv"

	"shopassist/internal/models"
)

// SearchSummary is the "how we read your query" block under a reply.
type SearchSummary struct {
	SearchingFor string
	For          []string
	Filters      []string
}

var sortLabels = map[models.SortOption]string{
	models.SortRelevance:      "Most relevant",
	models.SortRating:         "Highest rated",
	models.SortRatingCount:    "Most reviewed",
	models.SortRatingWeighted: "Best overall rating",
	models.SortPriceLow:       "Price: low to high",
	models.SortPriceHigh:      "Price: high to low",
}

// Summarize renders search parameters. Lines only appear for values that are
// present; a price range with a missing bound shows "Any" for it.
func Summarize(p *models.SearchParameters) *SearchSummary {
	if p == nil {
		return nil
	}
	s := &SearchSummary{SearchingFor: p.BaseQuery}
	if p.Color != "" {
		s.SearchingFor += " in " + p.Color
	}
	if p.Brand != "" {
		s.SearchingFor += " by " + p.Brand
	}

	if p.Age != "" {
		s.For = append(s.For, fmt.Sprintf("Age: %s years", p.Age))
	}
	if p.Gender != "" {
		s.For = append(s.For, "Gender: "+p.Gender)
	}
	if p.Occasion != "" {
		s.For = append(s.For, "Occasion: "+p.Occasion)
	}

	if f := p.Filters; f != nil {
		if f.PriceRange != nil {
			s.Filters = append(s.Filters, fmt.Sprintf("💰 Price: %s - %s", priceBound(f.PriceRange.Min), priceBound(f.PriceRange.Max)))
		}
		if f.MinRating != nil && *f.MinRating != 0 {
			s.Filters = append(s.Filters, "⭐ Min Rating: "+strconv.FormatFloat(*f.MinRating, 'f', -1, 64))
		}
		if f.FreeShipping {
			s.Filters = append(s.Filters, "🚚 Free Shipping")
		}
		if f.FreeReturns {
			s.Filters = append(s.Filters, "↩️ Free Returns")
		}
	}
	if p.SortBy != "" {
		label, ok := sortLabels[p.SortBy]
		if !ok {
			label = string(p.SortBy)
		}
		s.Filters = append(s.Filters, "↕️ Sort: "+label)
	}
	return s
}

// HasFilters reports whether the filters block should be drawn at all.
func (s *SearchSummary) HasFilters() bool {
	return len(s.Filters) > 0
}

func priceBound(v *float64) string {
	if v == nil || *v == 0 {
		return "Any"
	}
	return "$" + models.FormatAmount(*v)
}
