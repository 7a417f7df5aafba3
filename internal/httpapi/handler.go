// Package httpapi exposes the REST surface the real-time core backs: the
// recent-history pagination contract and conversation bootstrap.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hrivera88/campfyr-sub001/internal/auth"
	"github.com/hrivera88/campfyr-sub001/internal/realtime"
)

type Handler struct {
	core          *realtime.Core
	conversations realtime.ConversationStore
	logger        *slog.Logger
}

func NewHandler(core *realtime.Core, conversations realtime.ConversationStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{core: core, conversations: conversations, logger: logger}
}

type pageMeta struct {
	NextCursor  *realtime.CacheCursor `json:"nextCursor"`
	HasNextPage bool                  `json:"hasNextPage"`
	Count       int                   `json:"count"`
}

type pageResponse struct {
	Data []realtime.EnrichedMessage `json:"data"`
	Meta pageMeta                   `json:"meta"`
}

// RecentMessages serves one page of a room's recent history. The cursor
// here is the cache's numeric offset, never a durable id cursor.
func (h *Handler) RecentMessages(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.Atoi(chi.URLParam(r, "roomID"))
	if err != nil || roomID <= 0 {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}

	cursor := 0
	if v := r.URL.Query().Get("cursor"); v != "" {
		if cursor, err = strconv.Atoi(v); err != nil || cursor < 0 {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
	}
	take := 0
	if v := r.URL.Query().Get("take"); v != "" {
		if take, err = strconv.Atoi(v); err != nil || take < 0 {
			http.Error(w, "invalid take", http.StatusBadRequest)
			return
		}
	}

	page := h.core.RecentMessages(r.Context(), roomID, realtime.CacheCursor(cursor), take)

	writeJSON(w, http.StatusOK, pageResponse{
		Data: page.Data,
		Meta: pageMeta{
			NextCursor:  page.NextCursor,
			HasNextPage: page.HasNextPage,
			Count:       len(page.Data),
		},
	})
}

type startConversationRequest struct {
	TargetID int `json:"targetId"`
}

// StartConversation finds or creates the single direct conversation
// between the caller and the target user.
func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req startConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetID == 0 {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.TargetID == identity.UserID {
		http.Error(w, "cannot start a conversation with yourself", http.StatusBadRequest)
		return
	}

	conv, err := h.conversations.CreateConversation(r.Context(), identity.OrgID, identity.UserID, req.TargetID)
	if err != nil {
		h.logger.Error("conversation create failed", "userId", identity.UserID, "error", err)
		http.Error(w, "could not create conversation", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"conversationId": conv.ID})
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
