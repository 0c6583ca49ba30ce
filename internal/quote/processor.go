// Package quote implements the extraction-merge pipeline core: the source
// processor, URL detection and fetching, normalization, and the merger.
package quote

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-parser/internal/model"
	"github.com/sells-group/quote-parser/internal/resilience"
	"github.com/sells-group/quote-parser/pkg/openai"
)

// userPreamble prefixes the document content in the user message.
const userPreamble = "Extract and analyze the hotel quote data from this document:\n\n"

// defaultPromptFile is tried when no explicit prompt path is configured.
const defaultPromptFile = "prompts/hotel_quote_prompt.txt"

// builtinPrompt is the last-resort system prompt when no prompt file exists.
const builtinPrompt = "Extract hotel quote data into JSON with totals, extras, and calculations. " +
	"Include property info, program details, fees, policies, concessions, and calculated totals " +
	"with status fields (explicit, derived, conditional, not_found)."

// Source labels accepted by the processor.
const (
	LabelEmail    = "email"
	LabelProposal = "proposal"
	LabelFile     = "file"
	LabelText     = "text"
)

// Processor turns a labeled text blob into a normalized quote record via
// the LLM.
type Processor struct {
	llm        openai.Client
	promptPath string
	retry      resilience.RetryConfig
}

// NewProcessor creates a Processor. promptPath may be empty; prompt
// resolution then falls back to the default file and the built-in prompt.
func NewProcessor(llm openai.Client, promptPath string) *Processor {
	retry := resilience.DefaultRetryConfig()
	// Per-call failures are all retryable here: the budget is three attempts
	// regardless of the failure mode.
	retry.ShouldRetry = resilience.Always
	retry.OnRetry = resilience.RetryLogger("openai", "chat_completion")

	return &Processor{
		llm:        llm,
		promptPath: promptPath,
		retry:      retry,
	}
}

// Process invokes the LLM on content and returns a normalized record. The
// returned record is degraded (raw + error fields) when the response is not
// parseable JSON; every other failure mode returns an error.
func (p *Processor) Process(ctx context.Context, content, label string) (*model.QuoteRecord, error) {
	systemPrompt := p.loadPrompt()

	temp := 0.1
	req := openai.ChatCompletionRequest{
		Temperature:    &temp,
		ResponseFormat: openai.JSONObject(),
		Messages: []openai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPreamble + content},
		},
	}

	resp, err := resilience.Do(ctx, p.retry, func(ctx context.Context) (*openai.ChatCompletionResponse, error) {
		return p.llm.ChatCompletion(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "quote: process %s source", label)
	}

	out := resp.Text()
	record := parseResponse(out)
	record.Source = label
	record.ContentLength = len(content)

	zap.L().Info("source processed",
		zap.String("label", label),
		zap.Int("content_length", len(content)),
		zap.Bool("degraded", record.Degraded()),
	)

	return record, nil
}

// parseResponse extracts the trailing JSON object from the LLM output and
// normalizes it. Unparseable output becomes a degraded record.
func parseResponse(out string) *model.QuoteRecord {
	candidate := extractJSONObject(out)

	var m map[string]any
	if err := json.Unmarshal([]byte(candidate), &m); err != nil {
		return &model.QuoteRecord{
			Raw:   out,
			Error: "Failed to parse JSON response",
		}
	}

	return Normalize(FromMap(m))
}

// extractJSONObject returns the substring from the first '{' through the
// final '}' when only whitespace follows it and the substring is valid
// JSON. Unbalanced candidates are rejected; the caller then parses the full
// response text.
func extractJSONObject(out string) string {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end <= start {
		return out
	}
	if strings.TrimSpace(out[end+1:]) != "" {
		return out
	}
	candidate := out[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return out
	}
	return candidate
}

// loadPrompt resolves the system prompt: explicit path, then the default
// prompt file, then the built-in default.
func (p *Processor) loadPrompt() string {
	if p.promptPath != "" {
		if data, err := os.ReadFile(p.promptPath); err == nil {
			return string(data)
		}
		zap.L().Warn("prompt file unreadable, falling back", zap.String("path", p.promptPath))
	}
	if data, err := os.ReadFile(defaultPromptFile); err == nil {
		return string(data)
	}
	return builtinPrompt
}
