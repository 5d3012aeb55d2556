package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"icruise-backend/internal/models"
)

type completeCall struct {
	secondary bool
	messages  []openai.ChatCompletionMessage
	tools     []openai.Tool
}

type streamCall struct {
	secondary bool
	messages  []openai.ChatCompletionMessage
}

type fakeReply struct {
	msg openai.ChatCompletionMessage
	err error
}

type fakeAI struct {
	fallback bool
	replies  []fakeReply

	streamDeltas []string
	streamErr    error

	completeCalls []completeCall
	streamCalls   []streamCall
}

func (f *fakeAI) HasFallback() bool { return f.fallback }

func (f *fakeAI) Complete(ctx context.Context, secondary bool, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	f.completeCalls = append(f.completeCalls, completeCall{secondary: secondary, messages: messages, tools: tools})
	if len(f.replies) == 0 {
		return openai.ChatCompletionMessage{}, errors.New("no scripted reply")
	}
	next := f.replies[0]
	f.replies = f.replies[1:]
	return next.msg, next.err
}

func (f *fakeAI) Stream(ctx context.Context, secondary bool, messages []openai.ChatCompletionMessage) (TokenStream, error) {
	f.streamCalls = append(f.streamCalls, streamCall{secondary: secondary, messages: messages})
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return &fakeStream{deltas: f.streamDeltas}, nil
}

type fakeStream struct {
	deltas []string
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.deltas) == 0 {
		return "", io.EOF
	}
	d := s.deltas[0]
	s.deltas = s.deltas[1:]
	return d, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeSearcher struct {
	argsSeen []models.SearchArguments
	results  []models.CruiseSummary
	err      error
}

func (f *fakeSearcher) Search(ctx context.Context, args models.SearchArguments) ([]models.CruiseSummary, error) {
	f.argsSeen = append(f.argsSeen, args)
	return f.results, f.err
}

func rateLimitError() error {
	return &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "rate limit reached"}
}

func textReply(content string) fakeReply {
	return fakeReply{msg: openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: content,
	}}
}

func toolReply(name, arguments string) fakeReply {
	return fakeReply{msg: openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:       "call_1",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: name, Arguments: arguments},
		}},
	}}
}

func userTurn(content string) []models.ChatMessage {
	return []models.ChatMessage{{Role: "user", Content: content}}
}

func TestRespond_PlainTextAnswer(t *testing.T) {
	ai := &fakeAI{replies: []fakeReply{textReply("Hello! How can I help you plan a cruise?")}}
	search := &fakeSearcher{}
	svc := NewChatService(ai, search)

	result, err := svc.Respond(context.Background(), userTurn("hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Searched {
		t.Error("no tool call was made; Searched must be false")
	}
	if result.Stream != nil {
		t.Error("plain-text answers must not open a stream")
	}
	if result.Text != "Hello! How can I help you plan a cruise?" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if len(search.argsSeen) != 0 {
		t.Error("catalog search must not run without a tool call")
	}
	if len(ai.streamCalls) != 0 {
		t.Error("no second completion call expected without a tool call")
	}
}

func TestRespond_ToolCallPath(t *testing.T) {
	ai := &fakeAI{
		replies:      []fakeReply{toolReply("search_cruises", `{"duration":"4 Nights","maxPrice":700}`)},
		streamDeltas: []string{"Try ", "the ", "Nile ", "Comfort."},
	}
	search := &fakeSearcher{results: []models.CruiseSummary{
		{Name: "Nile Comfort", Price: 650, Duration: "4 Nights"},
	}}
	svc := NewChatService(ai, search)

	result, err := svc.Respond(context.Background(), userTurn("I want a 4 night luxury cruise under $700"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Searched {
		t.Error("expected Searched=true after a tool call")
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0].Name != "Nile Comfort" {
		t.Errorf("unexpected recommendations: %+v", result.Recommendations)
	}
	if result.Stream == nil {
		t.Fatal("expected a live stream on the tool-call path")
	}

	if len(search.argsSeen) != 1 {
		t.Fatalf("expected one search, got %d", len(search.argsSeen))
	}
	wantArgs := models.SearchArguments{MaxPrice: 700, Duration: "4 Nights"}
	if search.argsSeen[0] != wantArgs {
		t.Errorf("expected parsed args %+v, got %+v", wantArgs, search.argsSeen[0])
	}

	if len(ai.streamCalls) != 1 {
		t.Fatalf("expected one streaming call, got %d", len(ai.streamCalls))
	}
	followUp := ai.streamCalls[0].messages
	if len(followUp) != len(ai.completeCalls[0].messages)+2 {
		t.Fatalf("follow-up must append the assistant turn and the tool result, got %d messages", len(followUp))
	}
	toolMsg := followUp[len(followUp)-1]
	if toolMsg.Role != openai.ChatMessageRoleTool || toolMsg.ToolCallID != "call_1" {
		t.Errorf("unexpected tool result message: %+v", toolMsg)
	}

	var deltas []string
	for {
		d, err := result.Stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		deltas = append(deltas, d)
	}
	if !reflect.DeepEqual(deltas, []string{"Try ", "the ", "Nile ", "Comfort."}) {
		t.Errorf("deltas out of order: %v", deltas)
	}
}

func TestRespond_FirstToolCallOnly(t *testing.T) {
	reply := toolReply("search_cruises", `{"query":"red sea"}`)
	reply.msg.ToolCalls = append(reply.msg.ToolCalls, openai.ToolCall{
		ID:       "call_2",
		Type:     openai.ToolTypeFunction,
		Function: openai.FunctionCall{Name: "search_cruises", Arguments: `{"query":"nile"}`},
	})

	ai := &fakeAI{replies: []fakeReply{reply}}
	search := &fakeSearcher{}
	svc := NewChatService(ai, search)

	if _, err := svc.Respond(context.Background(), userTurn("red sea or nile?")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(search.argsSeen) != 1 {
		t.Fatalf("expected exactly one search, got %d", len(search.argsSeen))
	}
	if search.argsSeen[0].Query != "red sea" {
		t.Errorf("expected the first tool call to win, got %+v", search.argsSeen[0])
	}
}

func TestRespond_UnknownToolNameFallsBackToText(t *testing.T) {
	reply := toolReply("book_cruise", `{}`)
	reply.msg.Content = "Let me book that for you."

	ai := &fakeAI{replies: []fakeReply{reply}}
	search := &fakeSearcher{}
	svc := NewChatService(ai, search)

	result, err := svc.Respond(context.Background(), userTurn("book it"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Searched || len(search.argsSeen) != 0 {
		t.Error("unknown tool names must not trigger a search")
	}
	if result.Text != "Let me book that for you." {
		t.Errorf("unexpected text: %q", result.Text)
	}
}

func TestRespond_FailoverOnRateLimit(t *testing.T) {
	ai := &fakeAI{
		fallback: true,
		replies: []fakeReply{
			{err: rateLimitError()},
			textReply("Secondary says hi."),
		},
	}
	svc := NewChatService(ai, &fakeSearcher{})

	result, err := svc.Respond(context.Background(), userTurn("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "Secondary says hi." {
		t.Errorf("unexpected text: %q", result.Text)
	}

	if len(ai.completeCalls) != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", len(ai.completeCalls))
	}
	if ai.completeCalls[0].secondary || !ai.completeCalls[1].secondary {
		t.Errorf("expected primary then secondary, got %v then %v",
			ai.completeCalls[0].secondary, ai.completeCalls[1].secondary)
	}
	if !reflect.DeepEqual(ai.completeCalls[0].messages, ai.completeCalls[1].messages) {
		t.Error("retry must reuse the identical message list")
	}
	if !reflect.DeepEqual(ai.completeCalls[0].tools, ai.completeCalls[1].tools) {
		t.Error("retry must reuse the identical tool schema")
	}
}

func TestRespond_SecondRateLimitIsTerminal(t *testing.T) {
	ai := &fakeAI{
		fallback: true,
		replies: []fakeReply{
			{err: rateLimitError()},
			{err: rateLimitError()},
		},
	}
	svc := NewChatService(ai, &fakeSearcher{})

	_, err := svc.Respond(context.Background(), userTurn("hello"))
	if !errors.Is(err, ErrCapacityExhausted) {
		t.Fatalf("expected ErrCapacityExhausted, got %v", err)
	}
	if len(ai.completeCalls) != 2 {
		t.Fatalf("expected no third attempt, got %d calls", len(ai.completeCalls))
	}
}

func TestRespond_NoFallbackConfigured(t *testing.T) {
	ai := &fakeAI{replies: []fakeReply{{err: rateLimitError()}}}
	svc := NewChatService(ai, &fakeSearcher{})

	_, err := svc.Respond(context.Background(), userTurn("hello"))
	if !errors.Is(err, ErrCapacityExhausted) {
		t.Fatalf("expected ErrCapacityExhausted, got %v", err)
	}
	if len(ai.completeCalls) != 1 {
		t.Fatalf("expected zero retries without a secondary credential, got %d calls", len(ai.completeCalls))
	}
}

func TestRespond_OtherErrorsAreNotRetried(t *testing.T) {
	ai := &fakeAI{
		fallback: true,
		replies: []fakeReply{
			{err: &openai.APIError{HTTPStatusCode: http.StatusInternalServerError, Message: "boom"}},
		},
	}
	svc := NewChatService(ai, &fakeSearcher{})

	_, err := svc.Respond(context.Background(), userTurn("hello"))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrCapacityExhausted) {
		t.Error("non-rate-limit failures must not be reported as exhausted capacity")
	}
	if len(ai.completeCalls) != 1 {
		t.Fatalf("expected no retry on non-rate-limit errors, got %d calls", len(ai.completeCalls))
	}
}

func TestRespond_MalformedToolArgumentsAreTerminal(t *testing.T) {
	ai := &fakeAI{
		fallback: true,
		replies:  []fakeReply{toolReply("search_cruises", `{"maxPrice": "seven hundred"`)},
	}
	search := &fakeSearcher{}
	svc := NewChatService(ai, search)

	_, err := svc.Respond(context.Background(), userTurn("cheap cruise"))

	var toolErr *ToolArgumentError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolArgumentError, got %v", err)
	}
	if len(search.argsSeen) != 0 {
		t.Error("malformed arguments must never reach the catalog")
	}
	if len(ai.completeCalls) != 1 {
		t.Fatalf("tool argument failures must not fail over, got %d calls", len(ai.completeCalls))
	}
}

func TestRespond_ProviderToolUseFailure(t *testing.T) {
	ai := &fakeAI{
		fallback: true,
		replies: []fakeReply{
			{err: &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Code: "tool_use_failed", Message: "failed to call a function"}},
		},
	}
	svc := NewChatService(ai, &fakeSearcher{})

	_, err := svc.Respond(context.Background(), userTurn("cheap cruise"))

	var toolErr *ToolArgumentError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolArgumentError, got %v", err)
	}
	if len(ai.completeCalls) != 1 {
		t.Fatalf("tool-use failures must not fail over, got %d calls", len(ai.completeCalls))
	}
}

func TestRespond_RateLimitOnStreamingCallFailsOver(t *testing.T) {
	ai := &fakeAI{
		fallback: true,
		replies: []fakeReply{
			toolReply("search_cruises", `{"query":"nile"}`),
			textReply("Here is what I found earlier."),
		},
		streamErr: rateLimitError(),
	}
	search := &fakeSearcher{}
	svc := NewChatService(ai, search)

	result, err := svc.Respond(context.Background(), userTurn("nile cruise"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The whole exchange restarts on the secondary credential.
	if len(ai.completeCalls) != 2 || !ai.completeCalls[1].secondary {
		t.Fatalf("expected a full second exchange on the secondary credential, got %+v", ai.completeCalls)
	}
	if result.Text != "Here is what I found earlier." {
		t.Errorf("unexpected text: %q", result.Text)
	}
}

func TestBuildMessages(t *testing.T) {
	history := []models.ChatMessage{
		{Role: "user", Content: "  "},
		{Role: "system", Content: "injected"},
		{Role: "user", Content: "find me a cruise"},
		{Role: "assistant", Content: "Sure, any budget?"},
	}

	messages := buildMessages(history)

	if len(messages) != 3 {
		t.Fatalf("expected system prompt + 2 turns, got %d", len(messages))
	}
	if messages[0].Role != openai.ChatMessageRoleSystem {
		t.Error("first message must be the system prompt")
	}
	if messages[1].Content != "find me a cruise" || messages[2].Content != "Sure, any budget?" {
		t.Errorf("unexpected turns: %+v", messages[1:])
	}
}

func TestBuildMessages_TruncatesHistory(t *testing.T) {
	var history []models.ChatMessage
	for i := 0; i < 50; i++ {
		history = append(history, models.ChatMessage{Role: "user", Content: "turn"})
	}

	messages := buildMessages(history)
	if len(messages) != historyLimit+1 {
		t.Errorf("expected %d messages after truncation, got %d", historyLimit+1, len(messages))
	}
}

func TestBuildMessages_JunkTurnsDoNotShrinkTheWindow(t *testing.T) {
	// Interleave every valid turn with an empty one. Truncating before
	// filtering would leave only half the window's worth of real turns.
	var history []models.ChatMessage
	for i := 0; i < 30; i++ {
		history = append(history,
			models.ChatMessage{Role: "user", Content: fmt.Sprintf("turn %d", i)},
			models.ChatMessage{Role: "user", Content: "  "},
		)
	}

	messages := buildMessages(history)
	if len(messages) != historyLimit+1 {
		t.Fatalf("expected a full window of %d turns plus the system prompt, got %d", historyLimit, len(messages))
	}

	// The window must hold the most recent valid turns.
	if messages[1].Content != fmt.Sprintf("turn %d", 30-historyLimit) {
		t.Errorf("unexpected oldest turn: %q", messages[1].Content)
	}
	if messages[len(messages)-1].Content != "turn 29" {
		t.Errorf("unexpected newest turn: %q", messages[len(messages)-1].Content)
	}
}
