package render

import (
	"math"

	"shopassist/internal/models"
)

type BadgeView struct {
	Type  models.BadgeType
	Icon  string
	Label string
}

// RatingView is the star row of a product card.
type RatingView struct {
	Value float64
	Full  int
	Half  bool
	Count string
}

// Stars returns one entry per full star, for ranging in templates.
func (r RatingView) Stars() []struct{} {
	return make([]struct{}, r.Full)
}

type ProductCard struct {
	ID          string
	Title       string
	Description string
	ImageURL    string
	Fallback    string
	Badges      []BadgeView
	Rating      *RatingView
	PriceStr    string
	Delivery    string
	Source      string
	Features    []string
	Link        string
}

var badgeIcons = map[models.BadgeType]string{
	models.BadgeFreeShipping: "🚚",
	models.BadgeFreeReturns:  "↩️",
	models.BadgeBestSeller:   "🏆",
	models.BadgeTopRated:     "⭐",
}

const defaultBadgeIcon = "✔️"

func BadgeIcon(t models.BadgeType) string {
	if icon, ok := badgeIcons[t]; ok {
		return icon
	}
	return defaultBadgeIcon
}

// Rating returns nil when there is nothing to show.
func (r *Renderer) Rating(rating *float64, count int) *RatingView {
	if rating == nil || *rating == 0 {
		return nil
	}
	full := math.Floor(*rating)
	return &RatingView{
		Value: *rating,
		Full:  int(full),
		Half:  *rating-full >= 0.5,
		Count: r.printer.Sprintf("%d", count),
	}
}

func (r *Renderer) productCard(p models.Product) ProductCard {
	card := ProductCard{
		ID:          string(p.ID),
		Title:       p.Title,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Fallback:    PlaceholderImage,
		Rating:      r.Rating(p.Rating, p.RatingCount),
		PriceStr:    p.PriceStr,
		Delivery:    p.Delivery,
		Source:      p.Source,
		Features:    p.Features,
		Link:        p.Link,
	}
	if card.ImageURL == "" {
		card.ImageURL = PlaceholderImage
	}
	for _, b := range p.Badges {
		card.Badges = append(card.Badges, BadgeView{Type: b.Type, Icon: BadgeIcon(b.Type), Label: b.Label})
	}
	return card
}
