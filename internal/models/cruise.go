package models

import (
	"time"

	"github.com/google/uuid"
)

type Cruise struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Route       string    `json:"route"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Price       int       `json:"price"`
	Duration    string    `json:"duration"`
	ImageURL    *string   `json:"image_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// CruiseSummary is the card-sized view of a cruise sent to the chat client
// and included in tool results for the model.
type CruiseSummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Route       string    `json:"route"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Price       int       `json:"price"`
	Duration    string    `json:"duration"`
	ImageURL    *string   `json:"image_url,omitempty"`
}

func (c *Cruise) Summary() CruiseSummary {
	return CruiseSummary{
		ID:          c.ID,
		Name:        c.Name,
		Route:       c.Route,
		Description: c.Description,
		Tags:        c.Tags,
		Price:       c.Price,
		Duration:    c.Duration,
		ImageURL:    c.ImageURL,
	}
}
