package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/qwen-chat/backend/internal/analysis/reply"
	"github.com/zhouzirui/qwen-chat/backend/internal/model/chat"
	"github.com/zhouzirui/qwen-chat/backend/internal/service/ai"
	"github.com/zhouzirui/qwen-chat/backend/pkg/utils"
)

// CompletionPath is the route the proxy is served on, relative to /functions/v1.
const CompletionPath = "/qwen-chat"

// Completer produces an assistant reply for a conversation history.
type Completer interface {
	Complete(ctx context.Context, turns []chat.Turn) (chat.Completion, error)
}

// Handler serves the completion proxy endpoint.
type Handler struct {
	completer Completer
}

// New creates the completion handler.
func New(completer Completer) *Handler {
	return &Handler{completer: completer}
}

// RegisterRoutes registers the completion route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post(CompletionPath, h.handleComplete)
}

type completionRequest struct {
	Messages       []chat.Turn `json:"messages"`
	ConversationID string      `json:"conversationId,omitempty"`
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[chat] request=%s panic while completing: %v", reqID, rec)
			utils.RespondFailure(w, http.StatusInternalServerError, "Internal server error", reply.GreetingText)
		}
	}()

	var payload completionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(payload.Messages) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "Messages array is required")
		return
	}

	completion, err := h.completer.Complete(r.Context(), payload.Messages)
	if errors.Is(err, ai.ErrInvalidRequest) {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Printf("[chat] request=%s conversation=%s completion failed: %v", reqID, payload.ConversationID, err)
		utils.RespondFailure(w, http.StatusInternalServerError, "Internal server error", reply.GreetingText)
		return
	}

	log.Printf("[chat] request=%s conversation=%s turns=%d simulated=%t", reqID, payload.ConversationID, len(payload.Messages), completion.Simulated)
	utils.RespondJSON(w, http.StatusOK, completion)
}
