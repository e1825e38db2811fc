package review

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bit-bot-bit/bewritten/internal/store"
)

func strPtr(s string) *string { return &s }

func TestSelect(t *testing.T) {
	tests := []struct {
		provider string
		want     any
	}{
		{"none", Disabled{}},
		{"openai", &Remote{}},
		{"ollama", &Remote{}},
		{"anthropic", &Remote{}},
		{"", Heuristic{}},
		{"mock", Heuristic{}},
		{"OpenAI", Heuristic{}},
	}

	for _, tt := range tests {
		t.Run("provider="+tt.provider, func(t *testing.T) {
			got := Select(&store.Settings{AIProvider: tt.provider}, Options{})
			assert.IsType(t, tt.want, got)
		})
	}

	assert.IsType(t, Heuristic{}, Select(nil, Options{}))
}

func TestRemoteDefaults(t *testing.T) {
	openaiR := Select(&store.Settings{AIProvider: "openai", AIAPIKey: strPtr("k")}, Options{}).(*Remote)
	assert.Equal(t, DefaultOpenAIBaseURL, openaiR.BaseURL)
	assert.Equal(t, DefaultOpenAIModel, openaiR.Model)
	assert.Equal(t, DefaultTimeout, openaiR.Timeout)

	ollama := Select(&store.Settings{AIProvider: "ollama", AIModel: strPtr("llama3")}, Options{Timeout: time.Second}).(*Remote)
	assert.Equal(t, DefaultOllamaBaseURL, ollama.BaseURL)
	assert.Equal(t, "llama3", ollama.Model)
	assert.Equal(t, time.Second, ollama.Timeout)
	assert.NotNil(t, ollama.completer, "ollama needs no key")

	claude := Select(&store.Settings{AIProvider: "anthropic", AIAPIKey: strPtr("k")}, Options{}).(*Remote)
	assert.Equal(t, DefaultAnthropicModel, claude.Model)
}

func TestDisabledAndHeuristic(t *testing.T) {
	issues, err := Disabled{}.Review(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, issues)

	issues, err = Heuristic{}.Review(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Mock issue: Character voice seems inconsistent."}, issues)
}

func TestRemoteMissingKey(t *testing.T) {
	for _, provider := range []string{"openai", "anthropic"} {
		r := Select(&store.Settings{AIProvider: provider}, Options{})
		_, err := r.Review(context.Background(), "scene")

		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, provider, perr.Provider)
		assert.ErrorIs(t, err, ErrAPIKeyRequired)
	}
}

type fakeCompleter struct {
	reply          string
	err            error
	gotCtxDeadline bool
	gotUser        string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	_, f.gotCtxDeadline = ctx.Deadline()
	f.gotUser = user
	return f.reply, f.err
}

func TestRemoteReviewParsesReply(t *testing.T) {
	fc := &fakeCompleter{reply: "- Bob is dead.\n\n2. The sun set twice.\n"}
	r := NewRemote("openai", "m", fc, time.Minute)

	issues, err := r.Review(context.Background(), "Bob walks in.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob is dead.", "The sun set twice."}, issues)
	assert.True(t, fc.gotCtxDeadline)
	assert.Equal(t, "Bob walks in.", fc.gotUser)
}

func TestRemoteReviewWrapsFailure(t *testing.T) {
	cause := errors.New("connection refused")
	r := NewRemote("ollama", "m", &fakeCompleter{err: cause}, 0)

	_, err := r.Review(context.Background(), "x")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "ollama", perr.Provider)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "ollama review failed")
}

func TestParseIssues(t *testing.T) {
	tests := []struct {
		reply string
		want  []string
	}{
		{"", []string{}},
		{"NONE", []string{}},
		{"No issues found.", []string{}},
		{"  * one\n• two\n12) three", []string{"one", "two", "three"}},
		{"plain line", []string{"plain line"}},
		{"2026 was the year", []string{"2026 was the year"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseIssues(tt.reply), "reply %q", tt.reply)
	}
}

func TestOpenAICompleterAgainstServer(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-3.5-turbo",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "- Carol cannot be in two places."}
			}]
		}`)
	}))
	defer srv.Close()

	r := Select(&store.Settings{
		AIProvider: "openai",
		AIBaseURL:  strPtr(srv.URL + "/v1/"),
		AIAPIKey:   strPtr("sk-test"),
	}, Options{HTTPClient: srv.Client()})

	issues, err := r.Review(context.Background(), "Carol is at the park and the mill.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol cannot be in two places."}, issues)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-3.5-turbo", gotBody["model"])
}

func TestAnthropicCompleterAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/messages"), r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-20241022",
			"content": [{"type": "text", "text": "NONE"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 1}
		}`)
	}))
	defer srv.Close()

	r := Select(&store.Settings{
		AIProvider: "anthropic",
		AIBaseURL:  strPtr(srv.URL + "/"),
		AIAPIKey:   strPtr("ak-test"),
	}, Options{HTTPClient: srv.Client()})

	issues, err := r.Review(context.Background(), "All quiet.")
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestOpenAICompleterServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`)
	}))
	defer srv.Close()

	r := Select(&store.Settings{
		AIProvider: "ollama",
		AIBaseURL:  strPtr(srv.URL + "/v1/"),
	}, Options{HTTPClient: srv.Client()})

	_, err := r.Review(context.Background(), "x")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "ollama", perr.Provider)
}
