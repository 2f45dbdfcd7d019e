package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"payday/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const playerContextKey contextKey = "player"

const PlayerHeader = "X-Player-ID"

type Server struct {
	log  *slog.Logger
	game *game.Service
	mux  *chi.Mux
	now  func() time.Time
}

func New(logger *slog.Logger, gameSvc *game.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:  logger,
		game: gameSvc,
		mux:  chi.NewRouter(),
		now:  time.Now,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)

		r.Group(func(r chi.Router) {
			r.Use(s.playerMiddleware)
			r.Post("/players", s.handleEnsurePlayer)
			r.Get("/me", s.handleMe)
			r.Post("/tick", s.handleTick)

			r.Get("/businesses", s.handleBusinessList)
			r.Post("/businesses", s.handleCreateBusiness)
			r.Get("/businesses/{id}", s.handleBusinessState)
			r.Post("/businesses/{id}/employees", s.handleHireEmployee)
			r.Delete("/businesses/{id}/employees/{employee_id}", s.handleFireEmployee)
			r.Post("/businesses/{id}/inventory", s.handleBuyInventory)
			r.Post("/businesses/{id}/upgrades", s.handlePurchaseUpgrade)
			r.Post("/businesses/{id}/sell", s.handleSellBusiness)
			r.Post("/businesses/{id}/events/{event_id}/resolve", s.handleResolveEvent)
		})
	})
}

// playerMiddleware trusts the player id set by the fronting gateway.
func (s *Server) playerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerID := strings.TrimSpace(r.Header.Get(PlayerHeader))
		if err := game.ValidatePlayerID(playerID); err != nil {
			writeError(w, http.StatusUnauthorized, "missing or invalid "+PlayerHeader+" header")
			return
		}
		ctx := context.WithValue(r.Context(), playerContextKey, playerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func playerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(playerContextKey).(string)
	return id
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.game.Catalog())
}

func (s *Server) handleEnsurePlayer(w http.ResponseWriter, r *http.Request) {
	playerID := playerFromContext(r.Context())
	if err := s.game.EnsurePlayer(r.Context(), playerID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	view, err := s.game.Player(r.Context(), playerID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	view, err := s.game.Player(r.Context(), playerFromContext(r.Context()))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	report, err := s.game.RunTick(r.Context(), playerFromContext(r.Context()), s.now())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleBusinessList(w http.ResponseWriter, r *http.Request) {
	list, err := s.game.Businesses(r.Context(), playerFromContext(r.Context()))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"businesses": list})
}

func (s *Server) handleCreateBusiness(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Type string `json:"type"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.CreateBusiness(r.Context(), game.CreateBusinessInput{
		PlayerID:       playerFromContext(r.Context()),
		Type:           in.Type,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleBusinessState(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Business(r.Context(), playerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHireEmployee(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Type string `json:"type"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.HireEmployee(r.Context(), game.HireEmployeeInput{
		PlayerID:       playerFromContext(r.Context()),
		BusinessID:     chi.URLParam(r, "id"),
		Type:           in.Type,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFireEmployee(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.FireEmployee(r.Context(), game.FireEmployeeInput{
		PlayerID:       playerFromContext(r.Context()),
		BusinessID:     chi.URLParam(r, "id"),
		EmployeeID:     chi.URLParam(r, "employee_id"),
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBuyInventory(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.BuyInventory(r.Context(), game.BuyInventoryInput{
		PlayerID:       playerFromContext(r.Context()),
		BusinessID:     chi.URLParam(r, "id"),
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePurchaseUpgrade(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Type string `json:"type"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.PurchaseUpgrade(r.Context(), game.PurchaseUpgradeInput{
		PlayerID:       playerFromContext(r.Context()),
		BusinessID:     chi.URLParam(r, "id"),
		Type:           in.Type,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSellBusiness(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.SellBusiness(r.Context(), game.SellBusinessInput{
		PlayerID:       playerFromContext(r.Context()),
		BusinessID:     chi.URLParam(r, "id"),
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResolveEvent(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.ResolveEvent(r.Context(), game.ResolveEventInput{
		PlayerID:       playerFromContext(r.Context()),
		BusinessID:     chi.URLParam(r, "id"),
		EventID:        chi.URLParam(r, "event_id"),
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrDuplicateIdempotency), errors.Is(err, game.ErrTickAlreadyApplied):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrInsufficientFunds), errors.Is(err, game.ErrInvalidEnumValue):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrCapacityExceeded), errors.Is(err, game.ErrDuplicateUpgrade), errors.Is(err, game.ErrEventNotResolvable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrPersistence):
		s.log.Error("persistence failure", "err", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable, retry later")
	default:
		s.log.Error("unhandled error", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}
