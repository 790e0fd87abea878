package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/staywatch/room-deals/backend/internal/cache"
	"github.com/staywatch/room-deals/backend/internal/config"
	"github.com/staywatch/room-deals/backend/internal/models"
	"github.com/staywatch/room-deals/backend/internal/pipeline"
)

func testServer(t *testing.T) *server {
	t.Helper()
	store := cache.NewMemory(100, time.Hour)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.API{
		Common: config.Common{
			CacheBackend:  config.CacheMemory,
			CacheTTL:      time.Hour,
			CacheCapacity: 100,
		},
		BindAddr:       ":0",
		RequestTimeout: 5 * time.Second,
		MaxRooms:       10,
	}
	return &server{log: log, cfg: cfg, store: store, runner: pipeline.NewRunner(store, log)}
}

func TestHandleCheck(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantOutcome string
	}{
		{
			name: "cheaper room found",
			body: `{"hotel":"Grand Palace","checkIn":"2026-09-01","checkOut":"2026-09-05","roomType":"Deluxe","originalPrice":320,
				"rooms":[{"type":"Deluxe King","basePrice":"$300","totalPrice":"$280","features":["Free WiFi"],"url":"http://x"}]}`,
			wantStatus:  http.StatusOK,
			wantOutcome: "offers_found",
		},
		{
			name: "nothing beats baseline",
			body: `{"hotel":"Grand Palace","checkIn":"2026-09-01","checkOut":"2026-09-05","roomType":"Deluxe","originalPrice":200,
				"rooms":[{"type":"Deluxe","totalPrice":"$250"},{"type":"Deluxe King","totalPrice":"$300"}]}`,
			wantStatus:  http.StatusOK,
			wantOutcome: "no_cheaper_rooms",
		},
		{
			name:       "invalid body",
			body:       `{not json`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing hotel",
			body:       `{"checkIn":"2026-09-01","checkOut":"2026-09-05","originalPrice":320,"rooms":[]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad dates",
			body:       `{"hotel":"Grand Palace","checkIn":"01/09/2026","checkOut":"2026-09-05","originalPrice":320,"rooms":[]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing original price",
			body:       `{"hotel":"Grand Palace","checkIn":"2026-09-01","checkOut":"2026-09-05","rooms":[]}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t)
			req := httptest.NewRequest(http.MethodPost, "/checks", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			srv.handleCheck(rec, req)
			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantOutcome != "" {
				var resp checkResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				require.Equal(t, tt.wantOutcome, resp.Outcome)
			}
		})
	}
}

func TestHandleCheckRaw(t *testing.T) {
	srv := testServer(t)

	body := `{"hotel":"Grand Palace","checkIn":"2026-09-01","checkOut":"2026-09-05","originalPrice":320,
		"payload":"[{\"provider\":\"Expedia\",\"roomType\":\"Deluxe\",\"features\":[\"Free WiFi\"],\"basePrice\":\"$300\",\"totalPrice\":\"$280\",\"bookingUrl\":\"http://x\"}]"}`

	req := httptest.NewRequest(http.MethodPost, "/checks/raw", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleCheckRaw(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp checkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "offers_found", resp.Outcome)
	require.Len(t, resp.Offers, 1)
	require.Equal(t, 280.0, resp.Offers[0].TotalPrice)
}

func TestHandleCheckRawMalformed(t *testing.T) {
	srv := testServer(t)

	body := `{"hotel":"Grand Palace","checkIn":"2026-09-01","checkOut":"2026-09-05","originalPrice":320,"payload":"scraper crashed"}`
	req := httptest.NewRequest(http.MethodPost, "/checks/raw", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleCheckRaw(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleCheckRawEmptyResult(t *testing.T) {
	srv := testServer(t)

	body := `{"hotel":"Grand Palace","checkIn":"2026-09-01","checkOut":"2026-09-05","originalPrice":320,"payload":"[]"}`
	req := httptest.NewRequest(http.MethodPost, "/checks/raw", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleCheckRaw(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp checkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "no_listings", resp.Outcome)
	require.Empty(t, resp.Offers)
}

func TestHandleOffers(t *testing.T) {
	srv := testServer(t)

	stay := models.Stay{Hotel: "Grand Palace", CheckIn: "2026-09-01", CheckOut: "2026-09-05"}
	stored := models.ResultSet{{Provider: "Expedia", RoomType: "Deluxe", TotalPrice: 280}}
	require.NoError(t, srv.store.Put(context.Background(), stay.CacheKey(), stored))

	r := httptest.NewRequest(http.MethodGet, "/offers?hotel=Grand+Palace&checkin=2026-09-01&checkout=2026-09-05", nil)
	rec := httptest.NewRecorder()
	srv.handleOffers(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)

	var set models.ResultSet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &set))
	require.Equal(t, stored, set)
}

func TestHandleOffersAbsent(t *testing.T) {
	srv := testServer(t)

	r := httptest.NewRequest(http.MethodGet, "/offers?hotel=Nowhere&checkin=2026-09-01&checkout=2026-09-05", nil)
	rec := httptest.NewRecorder()
	srv.handleOffers(rec, r)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleOffersMissingParams(t *testing.T) {
	srv := testServer(t)

	r := httptest.NewRequest(http.MethodGet, "/offers?hotel=Grand+Palace", nil)
	rec := httptest.NewRecorder()
	srv.handleOffers(rec, r)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCheckTooManyRooms(t *testing.T) {
	srv := testServer(t)

	var rooms []string
	for i := 0; i < srv.cfg.MaxRooms+1; i++ {
		rooms = append(rooms, `{"type":"Deluxe","totalPrice":"$250"}`)
	}
	body := `{"hotel":"Grand Palace","checkIn":"2026-09-01","checkOut":"2026-09-05","originalPrice":320,"rooms":[` + strings.Join(rooms, ",") + `]}`

	r := httptest.NewRequest(http.MethodPost, "/checks", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleCheck(rec, r)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
