package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"icruise-backend/internal/models"
)

const searchToolName = "search_cruises"

const systemPrompt = `You are the iCruise travel assistant. You help visitors find Nile and Red Sea cruises from our catalog.

When a visitor describes what kind of trip they want (destination, budget, length, style), call the search_cruises function to look up matching cruises, then recommend the results by name and explain briefly why each fits. If the search finds nothing, say so and suggest loosening a constraint. For greetings or general questions, answer directly without searching. Keep answers short and friendly.`

// historyLimit bounds how many conversation turns are sent to the provider.
const historyLimit = 20

// ErrCapacityExhausted means every configured credential was rate-limited.
var ErrCapacityExhausted = errors.New("ai capacity exhausted")

// ToolArgumentError reports that the model produced a search request the
// tool could not parse. Retrying the same arguments is unlikely to help, so
// callers surface it instead of failing over.
type ToolArgumentError struct {
	Err error
}

func (e *ToolArgumentError) Error() string {
	return fmt.Sprintf("invalid search tool arguments: %v", e.Err)
}

func (e *ToolArgumentError) Unwrap() error { return e.Err }

type cruiseSearcher interface {
	Search(ctx context.Context, args models.SearchArguments) ([]models.CruiseSummary, error)
}

type completionClient interface {
	HasFallback() bool
	Complete(ctx context.Context, secondary bool, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error)
	Stream(ctx context.Context, secondary bool, messages []openai.ChatCompletionMessage) (TokenStream, error)
}

type ChatService struct {
	ai     completionClient
	search cruiseSearcher
}

func NewChatService(ai completionClient, search cruiseSearcher) *ChatService {
	return &ChatService{ai: ai, search: search}
}

// ChatResult is what the handler turns into an event stream. Exactly one of
// Text or Stream is set: Text when the model answered without searching,
// Stream (plus Searched/Recommendations) when a search ran and the narrative
// arrives as live deltas.
type ChatResult struct {
	Searched        bool
	Recommendations []models.CruiseSummary
	Text            string
	Stream          TokenStream
}

// Respond runs the full exchange: completion with the tool schema attached,
// optional catalog search, and the follow-up streaming completion. A
// rate-limited exchange is retried once in full on the secondary credential
// so conversation state and tool schema stay consistent with whichever
// credential produces the answer. All other failures are terminal.
func (s *ChatService) Respond(ctx context.Context, history []models.ChatMessage) (*ChatResult, error) {
	messages := buildMessages(history)

	credentials := []bool{false}
	if s.ai.HasFallback() {
		credentials = append(credentials, true)
	}

	for _, secondary := range credentials {
		result, err := s.respondWith(ctx, secondary, messages)
		if err == nil {
			return result, nil
		}

		if isToolUseFailure(err) {
			return nil, &ToolArgumentError{Err: err}
		}

		if isRateLimited(err) {
			log.Printf("completion rate limited (secondary=%v): %v", secondary, err)
			continue
		}

		return nil, err
	}

	return nil, ErrCapacityExhausted
}

func (s *ChatService) respondWith(ctx context.Context, secondary bool, messages []openai.ChatCompletionMessage) (*ChatResult, error) {
	reply, err := s.ai.Complete(ctx, secondary, messages, searchTools())
	if err != nil {
		return nil, err
	}

	call, ok := searchCall(reply)
	if !ok {
		return &ChatResult{Text: reply.Content}, nil
	}

	var args models.SearchArguments
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return nil, &ToolArgumentError{Err: err}
	}

	results, err := s.search.Search(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("cruise search failed: %w", err)
	}

	followUp := make([]openai.ChatCompletionMessage, 0, len(messages)+2)
	followUp = append(followUp, messages...)
	followUp = append(followUp, reply, toolResultMessage(call.ID, results))

	stream, err := s.ai.Stream(ctx, secondary, followUp)
	if err != nil {
		return nil, err
	}

	return &ChatResult{
		Searched:        true,
		Recommendations: results,
		Stream:          stream,
	}, nil
}

// searchCall returns the search tool call requested by the reply, if any.
// Only the first tool call is honored; extra calls in the same reply are
// ignored.
func searchCall(msg openai.ChatCompletionMessage) (openai.ToolCall, bool) {
	if len(msg.ToolCalls) == 0 {
		return openai.ToolCall{}, false
	}
	call := msg.ToolCalls[0]
	if call.Function.Name != searchToolName {
		return openai.ToolCall{}, false
	}
	return call, true
}

func toolResultMessage(callID string, results []models.CruiseSummary) openai.ChatCompletionMessage {
	if results == nil {
		results = []models.CruiseSummary{}
	}
	payload, _ := json.Marshal(results)

	return openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		Content:    string(payload),
		ToolCallID: callID,
	}
}

// buildMessages keeps only non-empty user and assistant turns, truncates
// those to the most recent historyLimit, and prepends the system prompt.
// Filtering happens first so junk turns never eat into the window.
func buildMessages(history []models.ChatMessage) []openai.ChatCompletionMessage {
	kept := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		kept = append(kept, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: content,
		})
	}

	if len(kept) > historyLimit {
		kept = kept[len(kept)-historyLimit:]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(kept)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem, Content: systemPrompt,
	})
	return append(messages, kept...)
}

func searchTools() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        searchToolName,
				Description: "Search the cruise catalog. Use when the visitor describes the trip they want.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"query": {
							Type:        jsonschema.String,
							Description: "Free-text search over cruise names, routes, descriptions, and tags.",
						},
						"maxPrice": {
							Type:        jsonschema.Integer,
							Description: "Maximum price per person in USD.",
						},
						"duration": {
							Type:        jsonschema.String,
							Description: `Desired trip length, e.g. "4 Nights".`,
						},
					},
				},
			},
		},
	}
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}

	return false
}

// isToolUseFailure matches the provider-side error emitted when the model
// produced malformed tool-call syntax that never reached argument parsing.
func isToolUseFailure(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code, ok := apiErr.Code.(string)
	return ok && code == "tool_use_failed"
}
