package models

import "fmt"

// Offer is the canonical, fully validated room offer produced by the pipeline.
type Offer struct {
	Provider   string   `json:"provider"`
	RoomType   string   `json:"roomType"`
	Features   []string `json:"features"`
	BasePrice  float64  `json:"basePrice"`
	TotalPrice float64  `json:"totalPrice"`
	BookingURL string   `json:"bookingUrl"`
}

// ResultSet is the final list of offers for one hotel/date pair: unique by
// (roomType, totalPrice) and sorted ascending by total price.
type ResultSet []Offer

// RoomRecord is one loosely typed room entry as delivered by the structured
// (API-style) scraping collaborator.
type RoomRecord struct {
	Type       string `json:"type"`
	BasePrice  string `json:"basePrice"`
	TotalPrice string `json:"totalPrice"`
	Features   []any  `json:"features,omitempty"`
	URL        string `json:"url,omitempty"`
	Provider   string `json:"provider,omitempty"`
}

// Stay identifies the hotel/date pair a price check runs against.
type Stay struct {
	Hotel    string `json:"hotel"`
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
}

// CacheKey builds the composite result-cache key for this stay.
func (s Stay) CacheKey() string {
	return fmt.Sprintf("%s_%s_%s", s.Hotel, s.CheckIn, s.CheckOut)
}
