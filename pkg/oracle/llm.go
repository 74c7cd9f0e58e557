package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/pkoukk/tiktoken-go"

	"github.com/GenericOctopus/ListSorter/pkg/sorter"
)

type LLMConfig struct {
	// Criterion is what "ranks higher" means, e.g. "more urgent to fix".
	Criterion   string           `json:"criterion"`
	Model       openai.ChatModel `json:"model"`
	APIKey      string           `json:"-"`
	BaseURL     string           `json:"-"`
	Encoding    string           `json:"encoding"`
	TokenLimit  int              `json:"token_limit"`
	MaxAttempts int              `json:"max_attempts"` // answers re-asked after invalid JSON
	Timeout     time.Duration    `json:"timeout"`
	HTTPClient  *http.Client     `json:"-"`
	Logger      *slog.Logger     `json:"-"`
}

func (c *LLMConfig) Validate() error {
	if c.Criterion == "" {
		return fmt.Errorf("ranking criterion cannot be empty")
	}
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.TokenLimit <= 0 {
		return fmt.Errorf("token limit must be greater than 0")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be greater than 0")
	}
	// Only require API key if not using a custom endpoint
	if c.BaseURL == "" && c.APIKey == "" {
		return fmt.Errorf("openai key cannot be empty")
	}
	return nil
}

// LLM asks a chat model to decide each comparison, constrained to a strict
// JSON schema answer.
type LLM struct {
	cfg      *LLMConfig
	client   openai.Client
	encoding *tiktoken.Tiktoken
	logger   *slog.Logger
}

type comparisonResponse struct {
	Choice    string `json:"choice" jsonschema:"enum=A,enum=B,enum=equal" jsonschema_description:"A if item A ranks higher, B if item B ranks higher, equal if neither"`
	Reasoning string `json:"reasoning" jsonschema_description:"One short sentence explaining the choice"`
}

var comparisonResponseSchema = generateSchema[comparisonResponse]()

func generateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

const comparisonPromptFmt = "Decide which of two items ranks higher.\n\n" +
	"Criterion: %s\n\n" +
	"Item A:\n```\n%s\n```\n\n" +
	"Item B:\n```\n%s\n```\n\n" +
	"Respond in JSON format: {\"choice\": \"A\" | \"B\" | \"equal\", \"reasoning\": \"...\"}"

const invalidJSONStr = "Your last response was not valid JSON with a choice of A, B or equal. Try again!"

func NewLLM(cfg *LLMConfig) (*LLM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	l := &LLM{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "llm"),
	}

	// custom endpoints get a length approximation instead of a tokenizer
	if cfg.BaseURL == "" {
		encoding, err := tiktoken.GetEncoding(cfg.Encoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
		}
		l.encoding = encoding
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	transport := httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	clientOptions := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{
			Transport: &rateLimitTransport{next: transport, logger: l.logger},
			Timeout:   httpClient.Timeout,
		}),
		option.WithMaxRetries(3),
	}
	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		clientOptions = append(clientOptions, option.WithBaseURL(baseURL))
	}
	l.client = openai.NewClient(clientOptions...)

	return l, nil
}

func (l *LLM) estimateTokens(text string) int {
	if l.encoding == nil {
		return len(text) / 4
	}
	return len(l.encoding.Encode(text, nil, nil))
}

func (l *LLM) Decide(ctx context.Context, pair sorter.ComparisonPair, _ sorter.SortState) (sorter.Decision, error) {
	prompt := fmt.Sprintf(comparisonPromptFmt, l.cfg.Criterion, pair.ItemA, pair.ItemB)
	if tokens := l.estimateTokens(prompt); tokens > l.cfg.TokenLimit {
		return "", fmt.Errorf("comparison prompt is %d tokens, over the limit of %d", tokens, l.cfg.TokenLimit)
	}

	conversation := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	}

	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
		completion, err := l.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
			Messages: conversation,
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
					JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
						Name:        "comparison_response",
						Description: openai.String("Which of two items ranks higher"),
						Schema:      comparisonResponseSchema,
						Strict:      openai.Bool(true),
					},
				},
			},
			Model: l.cfg.Model,
		})
		cancel()
		if err != nil {
			return "", fmt.Errorf("comparison request failed: %w", err)
		}
		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("comparison response had no choices")
		}

		content := completion.Choices[0].Message.Content
		conversation = append(conversation, openai.AssistantMessage(content))

		var resp comparisonResponse
		if err := json.Unmarshal([]byte(content), &resp); err == nil {
			if d, err := sorter.ParseDecision(resp.Choice); err == nil {
				l.logger.Debug("comparison decided", "item_a", pair.ItemA, "item_b", pair.ItemB,
					"decision", d, "reasoning", resp.Reasoning)
				return d, nil
			}
		}

		l.logger.Debug("invalid comparison response", "attempt", attempt, "content", strings.TrimSpace(content))
		conversation = append(conversation, openai.UserMessage(invalidJSONStr))
	}

	return "", fmt.Errorf("no valid answer after %d attempts", l.cfg.MaxAttempts)
}

// rateLimitTransport logs the rate limit headers of throttled responses.
type rateLimitTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		return resp, nil
	}

	attrs := []any{"status", resp.StatusCode}
	for key, values := range resp.Header {
		if strings.HasPrefix(key, "X-Ratelimit") {
			attrs = append(attrs, key, strings.Join(values, ","))
		}
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	attrs = append(attrs, "body", string(body))

	t.logger.Warn("rate limit exceeded", attrs...)
	return resp, nil
}
