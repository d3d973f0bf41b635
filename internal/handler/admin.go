package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-chi/chi/v5"

	"github.com/finlit-labs/lessonforge/internal/content"
	"github.com/finlit-labs/lessonforge/internal/model"
)

func (h *Handler) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		slog.Error("failed to list users", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		out = append(out, map[string]any{
			"id":           u.ID,
			"username":     u.Username,
			"display_name": u.DisplayName,
			"external_id":  u.ExternalID,
			"role":         u.Role,
			"active":       u.Active,
			"created_at":   u.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		ExternalID  string `json:"external_id"`
		Password    string `json:"password"`
		Role        string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password required")
		return
	}
	role := model.UserRole(req.Role)
	switch role {
	case model.UserRoleStudent, model.UserRoleTeacher, model.UserRoleAdmin:
	case "":
		role = model.UserRoleStudent
	default:
		respondError(w, http.StatusBadRequest, "unknown role")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	id, err := h.store.CreateUser(model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		ExternalID:   req.ExternalID,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	if err != nil {
		slog.Error("failed to create user", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	if err := h.store.ToggleUserActive(id); err != nil {
		slog.Error("failed to toggle user active", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id})
}

// handleUploadLesson imports a lesson file uploaded by a teacher. A file
// whose content hash matches the previous import of the same name is skipped.
func (h *Handler) handleUploadLesson(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "file too large")
		return
	}

	file, header, err := r.FormFile("lesson_file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	hash := content.Hash(data)
	storedHash, err := h.store.GetImportedFileHash(header.Filename)
	if err != nil {
		slog.Error("failed to check import status", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if storedHash == hash {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":   "skipped",
			"filename": header.Filename,
		})
		return
	}

	lesson, err := content.Parse(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := h.store.GetLessonBySlug(lesson.Slug)
	if err != nil {
		slog.Error("failed to check lesson slug", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "a lesson with slug "+lesson.Slug+" already exists")
		return
	}

	id, err := h.store.CreateLesson(model.Lesson{
		Slug:        lesson.Slug,
		Title:       lesson.Title,
		Description: lesson.Description,
	}, lesson.Steps)
	if err != nil {
		slog.Error("failed to store lesson", "slug", lesson.Slug, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to store lesson")
		return
	}

	if err := h.store.SetImportedFileHash(header.Filename, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}

	slog.Info("uploaded lesson via admin", "filename", header.Filename, "slug", lesson.Slug, "steps", len(lesson.Steps))
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":    id,
		"slug":  lesson.Slug,
		"steps": len(lesson.Steps),
	})
}

func (h *Handler) handleAdminListAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.store.ListAttempts()
	if err != nil {
		slog.Error("failed to list attempts", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

// handleAbandonAttempt marks a stuck attempt abandoned and evicts any live
// session so further actions on it are refused.
func (h *Handler) handleAbandonAttempt(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "attemptID")

	attempt, err := h.store.GetAttemptByPublicID(publicID)
	if err != nil {
		slog.Error("failed to load attempt", "attempt", publicID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load attempt")
		return
	}
	if attempt == nil {
		respondError(w, http.StatusNotFound, "attempt not found")
		return
	}
	if attempt.Status != model.AttemptInProgress {
		respondError(w, http.StatusConflict, "attempt is no longer in progress")
		return
	}

	if err := h.store.AbandonAttempt(attempt.ID); err != nil {
		slog.Error("failed to abandon attempt", "attempt", publicID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to abandon attempt")
		return
	}
	h.attempts.drop(publicID)

	slog.Info("attempt abandoned", "attempt", publicID)
	respondJSON(w, http.StatusOK, map[string]string{"status": string(model.AttemptAbandoned)})
}

// handleExport returns all results in the cohort export format.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	info, err := h.store.GetCohortInfo()
	if err != nil {
		slog.Error("failed to load cohort info", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to export")
		return
	}
	results, err := h.store.ExportAllAttempts()
	if err != nil {
		slog.Error("failed to export attempts", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to export")
		return
	}
	date := info.Date
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	respondJSON(w, http.StatusOK, model.ResultsExport{
		CohortID:   info.CohortID,
		Program:    info.Program,
		Date:       date,
		NumLessons: info.NumLessons,
		Results:    results,
	})
}
