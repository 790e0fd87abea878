package decode

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/staywatch/room-deals/backend/internal/models"
	"github.com/staywatch/room-deals/backend/internal/processing"
)

// Sentinel values substituted when a scraped record omits a field outright.
const (
	UnknownProvider = "Unknown Provider"
	UnknownRoomType = "Unknown Room Type"
	StandardRoom    = "Standard Room"
)

// candidate is the single intermediate shape both input adapters produce.
// Prices stay as raw strings until normalization.
type candidate struct {
	Provider   string `json:"provider"`
	RoomType   string `json:"roomType"`
	Features   []any  `json:"features"`
	BasePrice  string `json:"basePrice"`
	TotalPrice string `json:"totalPrice"`
	BookingURL string `json:"bookingUrl"`
}

// FromRepaired decodes a repaired record array into normalized offers.
func FromRepaired(data []byte) ([]models.Offer, error) {
	var candidates []candidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, fmt.Errorf("decode repaired array: %w", err)
	}

	offers := make([]models.Offer, 0, len(candidates))
	for _, c := range candidates {
		offers = append(offers, normalize(c, UnknownRoomType))
	}
	return offers, nil
}

// FromRooms decodes a structured collaborator response. Only rooms whose type
// contains the requested room type as a case-insensitive substring are kept;
// non-matching rooms are simply not relevant, not errors. An empty wantType
// matches every room.
func FromRooms(rooms []models.RoomRecord, wantType string) []models.Offer {
	want := strings.ToLower(strings.TrimSpace(wantType))

	offers := make([]models.Offer, 0, len(rooms))
	for _, room := range rooms {
		if want != "" && !strings.Contains(strings.ToLower(room.Type), want) {
			continue
		}
		offers = append(offers, normalize(candidate{
			Provider:   room.Provider,
			RoomType:   room.Type,
			Features:   room.Features,
			BasePrice:  room.BasePrice,
			TotalPrice: room.TotalPrice,
			BookingURL: room.URL,
		}, StandardRoom))
	}
	return offers
}

// normalize applies the default-substitution and price-fallback policy.
// A total-price string with no price token falls back to the base price, and
// when neither parses both prices are zero. The record always survives; one
// unparsable price must not poison the rest of the batch.
func normalize(c candidate, roomTypeDefault string) models.Offer {
	provider := strings.TrimSpace(c.Provider)
	if provider == "" {
		provider = UnknownProvider
	}

	roomType := strings.TrimSpace(c.RoomType)
	if roomType == "" {
		roomType = roomTypeDefault
	}

	base, _ := processing.ParsePrice(c.BasePrice)
	total, ok := processing.ParsePrice(c.TotalPrice)
	if !ok {
		total = base
	}

	return models.Offer{
		Provider:   provider,
		RoomType:   roomType,
		Features:   processing.NormalizeFeatures(c.Features),
		BasePrice:  base,
		TotalPrice: total,
		BookingURL: strings.TrimSpace(c.BookingURL),
	}
}
