// Package review asks an optional AI reviewer for continuity problems in a scene.
//
// The reviewer is chosen once from the project settings:
//
//	"none"                        -> Disabled, never calls anything
//	"openai", "ollama", "anthropic" -> Remote, calls a model endpoint
//	anything else                 -> Heuristic, a fixed local placeholder
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bit-bot-bit/bewritten/internal/store"
)

// Provider names understood by Select.
const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// Endpoint and model defaults per remote provider.
const (
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultOpenAIModel    = "gpt-3.5-turbo"
	DefaultOllamaBaseURL  = "http://localhost:11434/v1"
	DefaultAnthropicModel = "claude-3-5-haiku-20241022"

	DefaultTimeout = 30 * time.Second
)

// HeuristicIssue is the placeholder reported by the Heuristic reviewer.
const HeuristicIssue = "Mock issue: Character voice seems inconsistent."

// ErrAPIKeyRequired is returned when a hosted provider has no API key.
var ErrAPIKeyRequired = errors.New("API key required")

// Reviewer returns free-text issues for a scene context.
type Reviewer interface {
	Review(ctx context.Context, sceneContext string) ([]string, error)
}

// ProviderError wraps any failure of a remote reviewer.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s review failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Options carries process-level settings that are not stored per project.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Select builds the reviewer for s. A nil s is treated like an empty
// provider and selects Heuristic.
func Select(s *store.Settings, opts Options) Reviewer {
	if s == nil {
		return Heuristic{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	switch s.AIProvider {
	case ProviderNone:
		return Disabled{}
	case ProviderOpenAI, ProviderOllama, ProviderAnthropic:
		return newRemote(s, opts)
	default:
		return Heuristic{}
	}
}

// Disabled never reports anything.
type Disabled struct{}

func (Disabled) Review(context.Context, string) ([]string, error) {
	return []string{}, nil
}

// Heuristic reports a fixed placeholder issue without calling out.
type Heuristic struct{}

func (Heuristic) Review(context.Context, string) ([]string, error) {
	return []string{HeuristicIssue}, nil
}

// Completer sends one system+user prompt to a model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Remote reviews through a hosted or local model endpoint.
type Remote struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration

	completer Completer
	log       *slog.Logger
}

func newRemote(s *store.Settings, opts Options) *Remote {
	r := &Remote{
		Provider: s.AIProvider,
		BaseURL:  deref(s.AIBaseURL),
		APIKey:   deref(s.AIAPIKey),
		Model:    deref(s.AIModel),
		Timeout:  opts.Timeout,
		log:      opts.Logger,
	}

	switch r.Provider {
	case ProviderOpenAI:
		r.BaseURL = orDefault(r.BaseURL, DefaultOpenAIBaseURL)
		r.Model = orDefault(r.Model, DefaultOpenAIModel)
	case ProviderOllama:
		r.BaseURL = orDefault(r.BaseURL, DefaultOllamaBaseURL)
		r.Model = orDefault(r.Model, DefaultOpenAIModel)
	case ProviderAnthropic:
		r.Model = orDefault(r.Model, DefaultAnthropicModel)
	}

	if r.needsKey() && r.APIKey == "" {
		return r
	}
	if r.Provider == ProviderAnthropic {
		r.completer = newAnthropicCompleter(r.BaseURL, r.APIKey, r.Model, opts.HTTPClient)
	} else {
		r.completer = newOpenAICompleter(r.BaseURL, r.APIKey, r.Model, opts.HTTPClient)
	}
	return r
}

// NewRemote returns a Remote that sends prompts through c.
func NewRemote(provider, model string, c Completer, timeout time.Duration) *Remote {
	return &Remote{Provider: provider, Model: model, Timeout: timeout, completer: c, log: slog.Default()}
}

func (r *Remote) needsKey() bool {
	return r.Provider == ProviderOpenAI || r.Provider == ProviderAnthropic
}

const systemPrompt = `You are a continuity editor for a work of fiction.
Read the scene context and list every continuity problem you find: contradictions
with established facts, characters acting out of voice, or timeline errors.
Write one problem per line with no preamble. If there are none, reply with NONE.`

// Review sends sceneContext to the model and parses its reply.
func (r *Remote) Review(ctx context.Context, sceneContext string) ([]string, error) {
	if r.completer == nil {
		return nil, &ProviderError{Provider: r.Provider, Err: ErrAPIKeyRequired}
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := r.completer.Complete(ctx, systemPrompt, sceneContext)
	if err != nil {
		return nil, &ProviderError{Provider: r.Provider, Err: err}
	}
	issues := ParseIssues(reply)
	r.log.Debug("ai review complete",
		"provider", r.Provider, "model", r.Model,
		"issues", len(issues), "elapsed", time.Since(start))
	return issues, nil
}

// ParseIssues splits a model reply into one issue per non-empty line.
// List markers are stripped; a reply of "none" or "no issues" yields no issues.
func ParseIssues(reply string) []string {
	issues := []string{}
	for _, line := range strings.Split(reply, "\n") {
		line = stripMarker(strings.TrimSpace(line))
		if line == "" || isNoneReply(line) {
			continue
		}
		issues = append(issues, line)
	}
	return issues
}

func stripMarker(line string) string {
	for _, m := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, m) {
			return strings.TrimSpace(line[len(m):])
		}
	}
	// "1." / "12)"
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}

func isNoneReply(line string) bool {
	l := strings.ToLower(strings.TrimRight(line, ".!"))
	return l == "none" || l == "no issues" || l == "no issues found"
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
