package assist

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/samber/oops"
	openai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"

	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/config"
)

//go:embed prompts/assist.yaml
var defaultPrompt []byte

type PromptSpec struct {
	System string `yaml:"system"`
	Topics []struct {
		Key         string `yaml:"key"`
		Description string `yaml:"description"`
	} `yaml:"topics"`
	Style struct {
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"style"`
}

// Classification is the model's pick of a catalog topic.
type Classification struct {
	Topic      string  `json:"topic"`
	Confidence float32 `json:"confidence"`
}

// Result is what the assisted resolution settled on. Key is the topic the
// response was looked up by, empty when the keyword cascade answered.
type Result struct {
	Response       chatbot.Response
	Key            string
	Classification *Classification
}

type Assistant struct {
	spec          PromptSpec
	prompt        string
	client        *openai.Client
	model         string
	minConfidence float32
	resolver      *chatbot.Resolver
}

func New(cfg config.Assistant, resolver *chatbot.Resolver) (*Assistant, error) {
	errb := oops.In("assist")

	raw := defaultPrompt
	if cfg.PromptPath != "" {
		b, err := os.ReadFile(cfg.PromptPath)
		if err != nil {
			return nil, errb.With("path", cfg.PromptPath).Wrapf(err, "failed to read prompt spec")
		}
		raw = b
	}
	spec, err := ParsePromptSpec(raw)
	if err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Assistant{
		spec:          spec,
		prompt:        buildPrompt(spec),
		client:        openai.NewClientWithConfig(clientCfg),
		model:         cfg.Model,
		minConfidence: cfg.MinConfidence,
		resolver:      resolver,
	}, nil
}

// ParsePromptSpec decodes a prompt spec and checks that every topic it
// offers exists in the catalog.
func ParsePromptSpec(raw []byte) (PromptSpec, error) {
	errb := oops.In("assist")

	var spec PromptSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return spec, errb.Wrapf(err, "failed to parse prompt spec")
	}
	if strings.TrimSpace(spec.System) == "" {
		return spec, errb.Errorf("prompt spec has no system prompt")
	}
	if len(spec.Topics) == 0 {
		return spec, errb.Errorf("prompt spec lists no topics")
	}
	for _, t := range spec.Topics {
		if _, ok := chatbot.ParseTopic(t.Key); !ok {
			return spec, errb.With("topic", t.Key).Errorf("prompt spec names an unknown topic")
		}
	}
	return spec, nil
}

func buildPrompt(spec PromptSpec) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(spec.System))
	b.WriteString("\n\nTopics:\n")
	for _, t := range spec.Topics {
		b.WriteString("- ")
		b.WriteString(t.Key)
		b.WriteString(": ")
		b.WriteString(t.Description)
		b.WriteString("\n")
	}
	return b.String()
}

// Classify asks the model which topic answers text.
func (a *Assistant) Classify(ctx context.Context, text string) (*Classification, error) {
	errb := oops.In("assist").With("model", a.model)

	temperature := a.spec.Style.Temperature
	if temperature <= 0 {
		temperature = 0.1
	}
	maxTokens := a.spec.Style.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 60
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: a.prompt},
			{Role: openai.ChatMessageRoleUser, Content: strings.TrimSpace(text)},
		},
	})
	if err != nil {
		return nil, errb.Wrapf(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errb.Errorf("no choices")
	}

	out, err := decodeClassification(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, errb.Wrapf(err, "failed to decode classification")
	}
	return out, nil
}

// decodeClassification accepts a bare JSON object or one wrapped in prose or
// code fences.
func decodeClassification(raw string) (*Classification, error) {
	var out Classification
	err := json.Unmarshal([]byte(raw), &out)
	if err == nil {
		return &out, nil
	}
	first := strings.IndexByte(raw, '{')
	last := strings.LastIndexByte(raw, '}')
	if first < 0 || last <= first {
		return nil, err
	}
	if err2 := json.Unmarshal([]byte(raw[first:last+1]), &out); err2 != nil {
		return nil, err
	}
	return &out, nil
}

// Resolve answers text with the model's topic when it is known and confident
// enough, and with the keyword cascade otherwise.
func (a *Assistant) Resolve(ctx context.Context, text string) Result {
	c, err := a.Classify(ctx, text)
	if err != nil {
		slog.WarnContext(ctx, "assisted classification failed, using keywords", "error", err)
		return Result{Response: a.resolver.ResolveFreeText(text)}
	}

	key := strings.ToLower(strings.TrimSpace(c.Topic))
	if _, ok := chatbot.ParseTopic(key); !ok || c.Confidence < a.minConfidence {
		slog.DebugContext(ctx, "classification rejected", "topic", c.Topic, "confidence", c.Confidence)
		return Result{Response: a.resolver.ResolveFreeText(text), Classification: c}
	}
	return Result{Response: a.resolver.ResolveAction(key), Key: key, Classification: c}
}
