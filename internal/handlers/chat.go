package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"icruise-backend/internal/models"
	"icruise-backend/internal/services"
	"icruise-backend/internal/stream"
)

const (
	capacityExhaustedMessage = "All AI capacity is currently used. Please wait 60 seconds."
	toolArgumentMessage      = "The assistant had trouble formatting its search request. Please try again."
	assistantErrorMessage    = "The assistant is unavailable right now. Please try again."
)

type chatService interface {
	Respond(ctx context.Context, history []models.ChatMessage) (*services.ChatResult, error)
}

type ChatHandler struct {
	chat chatService
}

func NewChatHandler(chat chatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Chat answers a conversation with a server-sent event stream: at most one
// recommendations event, then content deltas in provider order. Errors are
// plain JSON because nothing has been streamed yet when they occur.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeChatError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Messages) == 0 {
		writeChatError(w, http.StatusBadRequest, "messages is required")
		return
	}

	result, err := h.chat.Respond(r.Context(), req.Messages)
	if err != nil {
		var toolErr *services.ToolArgumentError
		switch {
		case errors.As(err, &toolErr):
			writeChatError(w, http.StatusBadRequest, toolArgumentMessage)
		case errors.Is(err, services.ErrCapacityExhausted):
			writeChatError(w, http.StatusTooManyRequests, capacityExhaustedMessage)
		default:
			log.Printf("chat exchange failed: %v", err)
			writeChatError(w, http.StatusInternalServerError, assistantErrorMessage)
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	enc := stream.NewEncoder(w)

	if result.Searched {
		if err := enc.Recommendations(result.Recommendations); err != nil {
			return
		}
	}

	if result.Stream == nil {
		enc.ContentDelta(result.Text)
		return
	}
	defer result.Stream.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		delta, err := result.Stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			// Headers are already committed; all we can do is stop.
			log.Printf("completion stream ended early: %v", err)
			return
		}

		if err := enc.ContentDelta(delta); err != nil {
			return
		}
	}
}

// writeChatError uses the flat {"error": string} body the chat client
// consumes, unlike the structured envelope on the catalog endpoints.
func writeChatError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
