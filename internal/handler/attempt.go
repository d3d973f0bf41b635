package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/finlit-labs/lessonforge/internal/engine"
	appI18n "github.com/finlit-labs/lessonforge/internal/i18n"
	"github.com/finlit-labs/lessonforge/internal/model"
)

// cueBuffer captures the feedback cue the engine fires during an action so
// the response can tell the client which sound to play.
type cueBuffer struct {
	cue string
}

func (c *cueBuffer) PlayCorrect()   { c.cue = "correct" }
func (c *cueBuffer) PlayIncorrect() { c.cue = "incorrect" }

func (c *cueBuffer) pop() string {
	cue := c.cue
	c.cue = ""
	return cue
}

// liveAttempt is an in-progress attempt with its running lesson session.
// Exactly one action runs at a time; a second request while one is in flight
// gets a busy error instead of queueing.
type liveAttempt struct {
	mu      sync.Mutex
	busy    bool
	attempt model.Attempt
	lesson  model.Lesson
	session *engine.Session
	cues    *cueBuffer
}

func (la *liveAttempt) acquire() bool {
	la.mu.Lock()
	defer la.mu.Unlock()
	if la.busy {
		return false
	}
	la.busy = true
	return true
}

func (la *liveAttempt) release() {
	la.mu.Lock()
	la.busy = false
	la.mu.Unlock()
}

// registry holds live attempts keyed by public ID.
type registry struct {
	mu sync.Mutex
	m  map[string]*liveAttempt
}

func newRegistry() *registry {
	return &registry{m: make(map[string]*liveAttempt)}
}

func (rg *registry) get(id string) (*liveAttempt, bool) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	la, ok := rg.m[id]
	return la, ok
}

// putIfAbsent stores la unless another goroutine hydrated the same attempt
// first, in which case the existing entry wins.
func (rg *registry) putIfAbsent(id string, la *liveAttempt) *liveAttempt {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	if existing, ok := rg.m[id]; ok {
		return existing
	}
	rg.m[id] = la
	return la
}

func (rg *registry) drop(id string) {
	rg.mu.Lock()
	delete(rg.m, id)
	rg.mu.Unlock()
}

// attemptState is the full client-facing view of a live attempt.
type attemptState struct {
	Attempt    model.Attempt      `json:"attempt"`
	Lesson     model.Lesson       `json:"lesson"`
	StepIndex  int                `json:"step_index"`
	Step       engine.Step        `json:"step"`
	Review     bool               `json:"review"`
	Answerable bool               `json:"answerable"`
	Evaluated  bool               `json:"evaluated"`
	CanAdvance bool               `json:"can_advance"`
	Completed  bool               `json:"completed"`
	Result     *engine.Result     `json:"result,omitempty"`
	Answer     engine.AnswerState `json:"answer"`
	Cue        string             `json:"cue,omitempty"`
}

func (h *Handler) state(la *liveAttempt, user *model.User) attemptState {
	step, idx := la.session.Current()
	// Once the step is graded the key becomes the feedback: the client needs
	// the correct option and explanations to render the reveal.
	if user.Role == model.UserRoleStudent && !la.session.Runtime().Evaluated() {
		step = redactStep(step)
	}
	st := attemptState{
		Attempt:    la.attempt,
		Lesson:     la.lesson,
		StepIndex:  idx,
		Step:       step,
		Review:     la.session.Runtime().Review(),
		Answerable: la.session.Runtime().Answerable(),
		Evaluated:  la.session.Runtime().Evaluated(),
		CanAdvance: la.session.CanAdvance(),
		Completed:  la.session.Completed(),
		Answer:     la.session.Runtime().Answer(),
		Cue:        la.cues.pop(),
	}
	if res, ok := la.session.Runtime().Last(); ok {
		st.Result = &res
	}
	return st
}

// liveFor returns the live attempt for the request, hydrating it from the
// database on first access. The returned status code accompanies a non-nil
// error.
func (h *Handler) liveFor(r *http.Request) (*liveAttempt, int, error) {
	publicID := chi.URLParam(r, "attemptID")
	user := model.UserFromContext(r.Context())

	if la, ok := h.attempts.get(publicID); ok {
		if user.Role == model.UserRoleStudent && la.attempt.StudentID != user.ID {
			return nil, http.StatusNotFound, errors.New("attempt not found")
		}
		return la, 0, nil
	}

	attempt, err := h.store.GetAttemptByPublicID(publicID)
	if err != nil {
		slog.Error("failed to load attempt", "attempt", publicID, "error", err)
		return nil, http.StatusInternalServerError, errors.New("failed to load attempt")
	}
	if attempt == nil {
		return nil, http.StatusNotFound, errors.New("attempt not found")
	}
	if user.Role == model.UserRoleStudent && attempt.StudentID != user.ID {
		return nil, http.StatusNotFound, errors.New("attempt not found")
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, http.StatusConflict, errors.New("attempt is no longer in progress")
	}

	la, err := h.hydrate(*attempt)
	if err != nil {
		slog.Error("failed to hydrate attempt", "attempt", publicID, "error", err)
		return nil, http.StatusInternalServerError, errors.New("failed to resume attempt")
	}
	return h.attempts.putIfAbsent(publicID, la), 0, nil
}

// hydrate rebuilds the lesson session for a stored attempt: saved step
// results become resume state and the cursor picks up where it left off.
func (h *Handler) hydrate(attempt model.Attempt) (*liveAttempt, error) {
	lesson, err := h.store.GetLesson(attempt.LessonID)
	if err != nil {
		return nil, err
	}
	steps, err := h.store.GetLessonSteps(attempt.LessonID)
	if err != nil {
		return nil, err
	}
	records, err := h.store.GetStepResults(attempt.ID)
	if err != nil {
		return nil, err
	}

	resume := make(map[string]engine.SavedState, len(records))
	for _, rec := range records {
		var answer engine.AnswerState
		if len(rec.AnswerJSON) > 0 {
			if err := json.Unmarshal(rec.AnswerJSON, &answer); err != nil {
				slog.Warn("bad saved answer, resuming without it",
					"attempt", attempt.PublicID, "step", rec.StepID, "error", err)
			}
		}
		resume[rec.StepID] = engine.SavedState{
			Answer:    answer,
			Completed: rec.Completed,
			Correct:   rec.Correct,
		}
	}

	cues := &cueBuffer{}
	attemptID := attempt.ID
	session, err := engine.NewSession(steps, engine.SessionConfig{
		Sounds: cues,
		Resume: resume,
		Cursor: attempt.Cursor,
		OnComplete: func(sum engine.Summary) error {
			return h.store.CompleteAttempt(attemptID, sum.Score)
		},
	})
	if err != nil {
		return nil, err
	}

	return &liveAttempt{attempt: attempt, lesson: lesson, session: session, cues: cues}, nil
}

// persistStep saves the active step's latest result.
func (h *Handler) persistStep(la *liveAttempt) {
	step, _ := la.session.Current()
	res, ok := la.session.Result(step.ID)
	if !ok {
		return
	}
	answerJSON, err := json.Marshal(res.Answer)
	if err != nil {
		slog.Error("failed to marshal answer", "step", step.ID, "error", err)
		return
	}
	if err := h.store.UpsertStepResult(model.StepResultRecord{
		AttemptID:  la.attempt.ID,
		StepID:     step.ID,
		Completed:  res.Completed,
		Correct:    res.Correct,
		AnswerJSON: answerJSON,
	}); err != nil {
		slog.Error("failed to save step result", "attempt", la.attempt.PublicID, "step", step.ID, "error", err)
	}
}

func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

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

	attempt, err := h.store.CreateAttempt(lesson.ID, user.ID)
	if err != nil {
		slog.Error("failed to create attempt", "lesson", lesson.Slug, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create attempt")
		return
	}

	la, err := h.hydrate(attempt)
	if err != nil {
		slog.Error("failed to start attempt", "attempt", attempt.PublicID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to start attempt")
		return
	}
	la = h.attempts.putIfAbsent(attempt.PublicID, la)
	// An info or summary first step auto-completes on activation.
	h.persistStep(la)

	slog.Info("attempt started", "attempt", attempt.PublicID, "lesson", lesson.Slug, "student", user.Username)
	respondJSON(w, http.StatusCreated, h.state(la, user))
}

func (h *Handler) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	attempts, err := h.store.ListAttemptsForStudent(user.ID)
	if err != nil {
		slog.Error("failed to list attempts", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

func (h *Handler) handleAttemptState(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "attemptID")
	user := model.UserFromContext(r.Context())

	// Finished attempts are served from the database, not a live session.
	if _, ok := h.attempts.get(publicID); !ok {
		view, err := h.store.GetAttemptView(publicID)
		if err != nil {
			slog.Error("failed to load attempt view", "attempt", publicID, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to load attempt")
			return
		}
		if view == nil || (user.Role == model.UserRoleStudent && view.Attempt.StudentID != user.ID) {
			respondError(w, http.StatusNotFound, "attempt not found")
			return
		}
		if view.Attempt.Status != model.AttemptInProgress {
			respondJSON(w, http.StatusOK, map[string]any{
				"attempt": view.Attempt,
				"lesson":  view.Lesson,
				"results": view.Results,
			})
			return
		}
	}

	la, status, err := h.liveFor(r)
	if err != nil {
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.state(la, user))
}

// withLive runs fn on the request's live attempt under the busy guard.
func (h *Handler) withLive(w http.ResponseWriter, r *http.Request, fn func(la *liveAttempt)) {
	la, status, err := h.liveFor(r)
	if err != nil {
		respondError(w, status, err.Error())
		return
	}
	if !la.acquire() {
		respondError(w, http.StatusConflict, appI18n.T(r.Context(), "AttemptInProgress"))
		return
	}
	defer la.release()
	fn(la)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var ev engine.Event
	if err := decodeJSON(r, &ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid event: "+err.Error())
		return
	}
	h.withLive(w, r, func(la *liveAttempt) {
		if err := la.session.Apply(ev); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.persistStep(la)
		respondJSON(w, http.StatusOK, h.state(la, model.UserFromContext(r.Context())))
	})
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	h.withLive(w, r, func(la *liveAttempt) {
		la.session.Trigger()
		h.persistStep(la)
		respondJSON(w, http.StatusOK, h.state(la, model.UserFromContext(r.Context())))
	})
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	h.withLive(w, r, func(la *liveAttempt) {
		if err := la.session.Advance(); err != nil {
			if errors.Is(err, engine.ErrStepIncomplete) {
				respondError(w, http.StatusConflict, appI18n.T(r.Context(), "StepIncomplete"))
				return
			}
			slog.Error("advance failed", "attempt", la.attempt.PublicID, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to advance")
			return
		}

		if la.session.Completed() {
			h.attempts.drop(la.attempt.PublicID)
			updated, err := h.store.GetAttemptByPublicID(la.attempt.PublicID)
			if err == nil && updated != nil {
				la.attempt = *updated
			}
			sum := la.session.Summary()
			slog.Info("lesson completed", "attempt", la.attempt.PublicID, "score", sum.Score)
			respondJSON(w, http.StatusOK, map[string]any{
				"attempt": la.attempt,
				"summary": sum,
			})
			return
		}

		_, idx := la.session.Current()
		la.attempt.Cursor = idx
		if err := h.store.UpdateAttemptCursor(la.attempt.ID, idx); err != nil {
			slog.Error("failed to save cursor", "attempt", la.attempt.PublicID, "error", err)
		}
		// The newly activated step may have auto-completed.
		h.persistStep(la)
		respondJSON(w, http.StatusOK, h.state(la, model.UserFromContext(r.Context())))
	})
}

func (h *Handler) handleRetreat(w http.ResponseWriter, r *http.Request) {
	h.withLive(w, r, func(la *liveAttempt) {
		if err := la.session.Retreat(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		_, idx := la.session.Current()
		la.attempt.Cursor = idx
		if err := h.store.UpdateAttemptCursor(la.attempt.ID, idx); err != nil {
			slog.Error("failed to save cursor", "attempt", la.attempt.PublicID, "error", err)
		}
		h.persistStep(la)
		respondJSON(w, http.StatusOK, h.state(la, model.UserFromContext(r.Context())))
	})
}

func (h *Handler) handleJump(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	h.withLive(w, r, func(la *liveAttempt) {
		if err := la.session.Jump(req.Index); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		_, idx := la.session.Current()
		la.attempt.Cursor = idx
		if err := h.store.UpdateAttemptCursor(la.attempt.ID, idx); err != nil {
			slog.Error("failed to save cursor", "attempt", la.attempt.PublicID, "error", err)
		}
		h.persistStep(la)
		respondJSON(w, http.StatusOK, h.state(la, model.UserFromContext(r.Context())))
	})
}

func (h *Handler) handleHint(w http.ResponseWriter, r *http.Request) {
	if !h.config.HintsEnabled || h.tutor == nil {
		respondError(w, http.StatusNotFound, "hints are not enabled")
		return
	}
	h.withLive(w, r, func(la *liveAttempt) {
		step, _ := la.session.Current()
		answer := la.session.Runtime().Answer()

		hint, err := h.tutor.Hint(r.Context(), step, answer)
		if err != nil {
			slog.Error("hint failed", "attempt", la.attempt.PublicID, "step", step.ID, "error", err)
			respondError(w, http.StatusBadGateway, "tutor is unavailable")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"hint": hint})
	})
}
