package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/staywatch/room-deals/backend/internal/cache"
	"github.com/staywatch/room-deals/backend/internal/config"
	"github.com/staywatch/room-deals/backend/internal/logger"
	"github.com/staywatch/room-deals/backend/internal/models"
	"github.com/staywatch/room-deals/backend/internal/pipeline"
	"github.com/staywatch/room-deals/backend/internal/repair"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	store := newStore(cfg.Common)
	srv := &server{log: log, cfg: cfg, store: store, runner: pipeline.NewRunner(store, log)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Get("/offers", srv.handleOffers)
	r.Post("/checks", srv.handleCheck)
	r.Post("/checks/raw", srv.handleCheckRaw)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type server struct {
	log    *slog.Logger
	cfg    *config.API
	store  cache.Store
	runner *pipeline.Runner
}

type errorResponse struct {
	Error string `json:"error"`
}

// checkRequest is the structured-collaborator entry point: the stay, the
// caller context, and the room records the collaborator returned.
type checkRequest struct {
	Hotel         string              `json:"hotel"`
	CheckIn       string              `json:"checkIn"`
	CheckOut      string              `json:"checkOut"`
	RoomType      string              `json:"roomType"`
	OriginalPrice float64             `json:"originalPrice"`
	Rooms         []models.RoomRecord `json:"rooms"`
}

// rawCheckRequest carries an unparsed scrape blob instead of room records.
type rawCheckRequest struct {
	Hotel         string  `json:"hotel"`
	CheckIn       string  `json:"checkIn"`
	CheckOut      string  `json:"checkOut"`
	RoomType      string  `json:"roomType"`
	OriginalPrice float64 `json:"originalPrice"`
	Payload       string  `json:"payload"`
}

type checkResponse struct {
	Outcome string           `json:"outcome"`
	Message string           `json:"message"`
	Offers  models.ResultSet `json:"offers"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	var body checkRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	if len(body.Rooms) > s.cfg.MaxRooms {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "too many rooms"})
		return
	}

	req, err := buildRequest(body.Hotel, body.CheckIn, body.CheckOut, body.RoomType, body.OriginalPrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.runner.RunRooms(ctx, req, body.Rooms)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeResult(w, result)
}

func (s *server) handleCheckRaw(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	var body rawCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	req, err := buildRequest(body.Hotel, body.CheckIn, body.CheckOut, body.RoomType, body.OriginalPrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.runner.RunRaw(ctx, req, body.Payload)
	if err != nil {
		if errors.Is(err, repair.ErrMalformedPayload) || errors.Is(err, repair.ErrNoValidCandidates) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeResult(w, result)
}

func (s *server) handleOffers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stay := models.Stay{
		Hotel:    strings.TrimSpace(r.URL.Query().Get("hotel")),
		CheckIn:  strings.TrimSpace(r.URL.Query().Get("checkin")),
		CheckOut: strings.TrimSpace(r.URL.Query().Get("checkout")),
	}
	if stay.Hotel == "" || parseDate(stay.CheckIn) == nil || parseDate(stay.CheckOut) == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "hotel, checkin and checkout are required"})
		return
	}

	set, found, err := s.runner.Cached(ctx, stay)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no cached result for this stay"})
		return
	}

	writeJSON(w, http.StatusOK, set)
}

func buildRequest(hotel, checkIn, checkOut, roomType string, originalPrice float64) (pipeline.Request, error) {
	hotel = strings.TrimSpace(hotel)
	if hotel == "" {
		return pipeline.Request{}, errors.New("hotel is required")
	}
	if parseDate(checkIn) == nil || parseDate(checkOut) == nil {
		return pipeline.Request{}, errors.New("checkIn and checkOut must be YYYY-MM-DD dates")
	}
	if originalPrice <= 0 {
		return pipeline.Request{}, errors.New("originalPrice must be positive")
	}

	return pipeline.Request{
		Stay: models.Stay{
			Hotel:    hotel,
			CheckIn:  strings.TrimSpace(checkIn),
			CheckOut: strings.TrimSpace(checkOut),
		},
		RoomType: strings.TrimSpace(roomType),
		Baseline: originalPrice,
	}, nil
}

func writeResult(w http.ResponseWriter, result pipeline.Result) {
	writeJSON(w, http.StatusOK, checkResponse{
		Outcome: string(result.Outcome),
		Message: result.Outcome.Message(),
		Offers:  result.Offers,
	})
}

func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse("2006-01-02", raw); err == nil {
		return &ts
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}

func newStore(cfg config.Common) cache.Store {
	if cfg.CacheBackend == config.CacheRedis {
		return cache.NewRedis(cfg.RedisAddr, cfg.RedisPrefix, cfg.CacheTTL)
	}
	return cache.NewMemory(cfg.CacheCapacity, cfg.CacheTTL)
}
