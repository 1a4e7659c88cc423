package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/qaroom/internal/domain"
	"github.com/cwrk-planet/qaroom/internal/roomsync"
	"github.com/cwrk-planet/qaroom/internal/service"
	httpmw "github.com/cwrk-planet/qaroom/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	mutations *service.MutationService
	guard     *service.LifecycleGuard
	rooms     *roomsync.Synchronizer
}

func NewHandler(mutations *service.MutationService, guard *service.LifecycleGuard, rooms *roomsync.Synchronizer) *Handler {
	return &Handler{
		mutations: mutations,
		guard:     guard,
		rooms:     rooms,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит доменные ошибки в HTTP-статусы; остальное — 500 с логом.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
	case errors.Is(err, domain.ErrQuestionNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "question not found"})
	case errors.Is(err, domain.ErrRoomClosed):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "room already closed"})
	case errors.Is(err, domain.ErrAlreadyLiked):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "already liked"})
	case errors.Is(err, domain.ErrViewerRequired):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "sign in required"})
	case errors.Is(err, domain.ErrLikeRequired):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "like id required"})
	default:
		slog.ErrorContext(r.Context(), "handler."+op+":", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func roomID(r *http.Request) domain.RoomID {
	return domain.RoomID(chi.URLParam(r, "id"))
}

func questionID(r *http.Request) domain.QuestionID {
	return domain.QuestionID(chi.URLParam(r, "qid"))
}

// POST /rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	viewer := httpmw.ViewerFromCtx(r.Context())
	id, err := h.mutations.CreateRoom(r.Context(), req.Title, viewer.UserID())
	if err != nil {
		writeError(w, r, "CreateRoom", err)
		return
	}
	if id == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: string(id)})
}

// GET /rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	viewer := httpmw.ViewerFromCtx(r.Context())
	view, err := h.rooms.Snapshot(r.Context(), roomID(r), viewer.UserID())
	if err != nil {
		writeError(w, r, "GetRoom", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GET /rooms/{id}/join
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	id, err := h.guard.CheckJoin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "JoinRoom", err)
		return
	}
	writeJSON(w, http.StatusOK, IDResponse{ID: string(id)})
}

// GET /rooms/{id}/admin
func (h *Handler) AdminEntry(w http.ResponseWriter, r *http.Request) {
	status, err := h.guard.CheckOpenForAdmin(r.Context(), roomID(r))
	if err != nil {
		writeError(w, r, "AdminEntry", err)
		return
	}
	code := http.StatusOK
	if status == service.StatusClosed {
		code = http.StatusConflict
	}
	writeJSON(w, code, AdminStatusResponse{Status: status.String()})
}

// POST /rooms/{id}/close
func (h *Handler) CloseRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.mutations.CloseRoom(r.Context(), roomID(r)); err != nil {
		writeError(w, r, "CloseRoom", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /rooms/{id}/questions
func (h *Handler) SubmitQuestion(w http.ResponseWriter, r *http.Request) {
	var req SubmitQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	id, err := h.mutations.SubmitQuestion(r.Context(), roomID(r), req.Content, httpmw.ViewerFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, "SubmitQuestion", err)
		return
	}
	if id == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: string(id)})
}

// POST /rooms/{id}/questions/{qid}/likes
func (h *Handler) LikeQuestion(w http.ResponseWriter, r *http.Request) {
	viewer := httpmw.ViewerFromCtx(r.Context())
	likeID, err := h.mutations.LikeQuestion(r.Context(), roomID(r), questionID(r), viewer.UserID())
	if err != nil {
		writeError(w, r, "LikeQuestion", err)
		return
	}
	writeJSON(w, http.StatusCreated, LikeResponse{LikeID: string(likeID)})
}

// DELETE /rooms/{id}/questions/{qid}/likes/{likeId}
func (h *Handler) UnlikeQuestion(w http.ResponseWriter, r *http.Request) {
	likeID := domain.LikeID(chi.URLParam(r, "likeId"))
	if err := h.mutations.UnlikeQuestion(r.Context(), roomID(r), questionID(r), likeID); err != nil {
		writeError(w, r, "UnlikeQuestion", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /rooms/{id}/questions/{qid}/answer
func (h *Handler) MarkAnswered(w http.ResponseWriter, r *http.Request) {
	if err := h.mutations.MarkAnswered(r.Context(), roomID(r), questionID(r)); err != nil {
		writeError(w, r, "MarkAnswered", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /rooms/{id}/questions/{qid}/highlight
func (h *Handler) HighlightQuestion(w http.ResponseWriter, r *http.Request) {
	if err := h.mutations.HighlightQuestion(r.Context(), roomID(r), questionID(r)); err != nil {
		writeError(w, r, "HighlightQuestion", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /rooms/{id}/questions/{qid}?confirm=true
// Без confirm=true отвечает 428.
func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeJSON(w, http.StatusPreconditionRequired, ErrorResponse{Error: "confirm=true required"})
		return
	}
	if err := h.mutations.DeleteQuestion(r.Context(), roomID(r), questionID(r)); err != nil {
		writeError(w, r, "DeleteQuestion", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
