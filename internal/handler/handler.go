package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finlit-labs/lessonforge/internal/engine"
	"github.com/finlit-labs/lessonforge/internal/model"
	"github.com/finlit-labs/lessonforge/internal/store"
	"github.com/finlit-labs/lessonforge/internal/tutor"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	tutor    *tutor.Client
	config   model.AppConfig
	attempts *registry
}

// New creates a new Handler. The tutor client may be nil when hints are
// disabled.
func New(s *store.Store, t *tutor.Client, cfg model.AppConfig) *Handler {
	return &Handler{store: s, tutor: t, config: cfg, attempts: newRegistry()}
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.csrfMiddleware)

	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/me", h.handleMe)
		r.Get("/lessons", h.handleListLessons)
		r.Get("/lessons/{slug}", h.handleGetLesson)
		r.Post("/lessons/{slug}/attempts", h.handleStartAttempt)

		r.Get("/attempts", h.handleListAttempts)
		r.Get("/attempts/{attemptID}", h.handleAttemptState)
		r.Post("/attempts/{attemptID}/answer", h.handleAnswer)
		r.Post("/attempts/{attemptID}/trigger", h.handleTrigger)
		r.Post("/attempts/{attemptID}/advance", h.handleAdvance)
		r.Post("/attempts/{attemptID}/retreat", h.handleRetreat)
		r.Post("/attempts/{attemptID}/jump", h.handleJump)
		r.Post("/attempts/{attemptID}/hint", h.handleHint)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
			r.Get("/users", h.handleAdminListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
			r.Post("/lessons", h.handleUploadLesson)
			r.Get("/attempts", h.handleAdminListAttempts)
			r.Post("/attempts/{attemptID}/abandon", h.handleAbandonAttempt)
			r.Get("/export", h.handleExport)
		})
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"id":           user.ID,
		"username":     user.Username,
		"display_name": user.DisplayName,
		"role":         user.Role,
	})
}

func (h *Handler) handleListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.store.ListLessons()
	if err != nil {
		slog.Error("failed to list lessons", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list lessons")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"lessons": lessons})
}

func (h *Handler) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := h.store.GetLessonBySlug(chi.URLParam(r, "slug"))
	if err != nil {
		slog.Error("failed to get lesson", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get lesson")
		return
	}
	if lesson == nil {
		respondError(w, http.StatusNotFound, "lesson not found")
		return
	}

	steps, err := h.store.GetLessonSteps(lesson.ID)
	if err != nil {
		slog.Error("failed to get lesson steps", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get lesson steps")
		return
	}

	user := model.UserFromContext(r.Context())
	if user.Role == model.UserRoleStudent {
		for i := range steps {
			steps[i] = redactStep(steps[i])
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{"lesson": lesson, "steps": steps})
}

// redactStep strips the answer key from a step before it goes to a student
// client. Grading happens server side, so the client never needs it.
func redactStep(s engine.Step) engine.Step {
	opts := make([]engine.Option, len(s.Options))
	copy(opts, s.Options)
	for i := range opts {
		opts[i].IsCorrect = false
		opts[i].Explanation = ""
	}
	s.Options = opts

	items := make([]engine.OrderItem, len(s.Items))
	copy(items, s.Items)
	for i := range items {
		items[i].CorrectOrder = 0
	}
	s.Items = items

	s.CorrectValue = false
	s.CorrectPairs = nil
	s.Explanation = ""
	return s
}
