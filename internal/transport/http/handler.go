package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"celeb-trivia-service/internal/app"
	"celeb-trivia-service/internal/domain"
	"celeb-trivia-service/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

const maxBodyBytes = 1 << 20

// Handler exposes the game service over JSON HTTP and the play websocket.
type Handler struct {
	service  *app.GameService
	metrics  *metrics.Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(service *app.GameService, m *metrics.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		metrics: m,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router wires every route of the service.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, h.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	r.Get("/ws", h.ServeWS)

	r.Route("/api", func(api chi.Router) {
		api.Post("/question", h.handleQuestion)
		api.Post("/rewards", h.handleReward)
		api.Get("/leaderboard", h.handleLeaderboard)
		api.Post("/users", h.handleCreateUser)
		api.Get("/users/{id}/progress", h.handleUserProgress)
		api.Delete("/users/{id}", h.handleDeleteUser)
		api.Post("/catalog/refresh", h.handleCatalogRefresh)
	})
	return r
}

// level accepts 1, "1" and "level_1"; the service parses the text.
type level string

func (l *level) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = level(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("level: %w", err)
	}
	*l = level(n.String())
	return nil
}

type questionRequest struct {
	Category     string   `json:"category"`
	Level        level    `json:"level"`
	GuessedNames []string `json:"guessedNames"`
}

type rewardRequest struct {
	UserID       string   `json:"userId"`
	Category     string   `json:"category"`
	Level        level    `json:"level"`
	Points       int      `json:"points"`
	GuessedNames []string `json:"guessedNames"`
	TotalPoints  *int     `json:"totalPoints"`
}

type exhaustedResponse struct {
	Exhausted bool   `json:"exhausted"`
	Message   string `json:"message"`
}

type createUserRequest struct {
	Username string `json:"username"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *Handler) handleQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, ok, err := h.nextQuestion(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "question", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, exhaustedResponse{Exhausted: true, Message: "no names remaining"})
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleReward(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.applyReward(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "reward", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.Leaderboard(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		h.writeError(w, r, "leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.service.CreateUser(r.Context(), req.Username)
	if err != nil {
		h.writeError(w, r, "create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleUserProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.UserProgress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "user progress", err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, "delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RefreshCatalog(r.Context()); err != nil {
		h.writeError(w, r, "catalog refresh", err)
		return
	}
	h.logger.Info("catalog refreshed", "request_id", middleware.GetReqID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// nextQuestion and applyReward are shared by the JSON API and the play socket.
func (h *Handler) nextQuestion(ctx context.Context, req questionRequest) (domain.Question, bool, error) {
	q, ok, err := h.service.GetQuestion(ctx, app.QuestionRequest{
		Category:     req.Category,
		Level:        string(req.Level),
		GuessedNames: req.GuessedNames,
	})
	switch {
	case err != nil:
		h.metrics.Question(metrics.QuestionFailed)
	case !ok:
		h.metrics.Question(metrics.QuestionExhausted)
	default:
		h.metrics.Question(metrics.QuestionServed)
	}
	return q, ok, err
}

func (h *Handler) applyReward(ctx context.Context, req rewardRequest) (domain.RewardResult, error) {
	res, err := h.service.ApplyReward(ctx, app.RewardRequest{
		UserID:       req.UserID,
		Category:     req.Category,
		Level:        string(req.Level),
		Points:       req.Points,
		GuessedNames: req.GuessedNames,
		TotalPoints:  req.TotalPoints,
	})
	switch {
	case err != nil:
		h.metrics.Reward(metrics.RewardFailed)
	case res.EndGame:
		h.metrics.Reward(metrics.RewardEndGame)
	case res.LevelUp:
		h.metrics.Reward(metrics.RewardLevelUp)
	default:
		h.metrics.Reward(metrics.RewardStored)
	}
	return res, err
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	attrs := []any{"op", op, "status", status, "err", err, "request_id", middleware.GetReqID(r.Context())}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", attrs...)
	} else {
		h.logger.Debug("request rejected", attrs...)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

// classify maps engine errors onto HTTP statuses and stable error codes.
func classify(err error) (int, string) {
	// Catalog failures wrap their cause, which may itself be a validation error.
	switch {
	case errors.Is(err, domain.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable, "catalog_unavailable"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case domain.IsStorageError(err):
		return http.StatusInternalServerError, "storage"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		h.metrics.ObserveRequest(route, r.Method, status, elapsed)
		h.logger.Debug("http request", "method", r.Method, "route", route, "status", status, "elapsed", elapsed)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid payload", Code: "validation"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
