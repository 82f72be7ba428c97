package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type OpenAIConfig struct {
	APIKey      string
	Model       string
	ImageModel  string
	Temperature float64
	HTTPClient  *http.Client
}

// OpenAI implements Generator, ImageGenerator and Describer on top of the
// OpenAI API.
type OpenAI struct {
	client openai.Client
	cfg    OpenAIConfig
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "dall-e-3"
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}
}

// WithModel returns a copy of the backend that completes with another model
// while sharing the HTTP client.
func (o *OpenAI) WithModel(model string) *OpenAI {
	cp := *o
	if model != "" {
		cp.cfg.Model = model
	}
	return &cp
}

func (o *OpenAI) Generate(ctx context.Context, system string, history []Turn, prompt string) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	for _, t := range history {
		msgs = append(msgs, openAIMessage(t))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    openai.ChatModel(o.cfg.Model),
	}
	if o.cfg.Temperature > 0 {
		params.Temperature = openai.Float(o.cfg.Temperature)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response: %w", ErrEmptyResponse)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}

	log.Debug("Completion", "model", o.cfg.Model, "chars", len(content))

	return content, nil
}

func (o *OpenAI) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(o.cfg.ImageModel),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("image generate: %w", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("no image data: %w", ErrEmptyResponse)
	}

	img, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	return img, nil
}

func (o *OpenAI) Describe(ctx context.Context, image []byte, mime, question string) (string, error) {
	url := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(question),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}),
			}),
		},
		Model: openai.ChatModel(o.cfg.Model),
	})
	if err != nil {
		return "", fmt.Errorf("vision completion: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func openAIMessage(t Turn) openai.ChatCompletionMessageParamUnion {
	switch t.Role {
	case RoleAssistant:
		return openai.AssistantMessage(t.Content)
	case RoleSystem:
		return openai.SystemMessage(t.Content)
	default:
		return openai.UserMessage(t.Content)
	}
}
