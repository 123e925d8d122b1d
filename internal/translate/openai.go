package translate

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
}

// OpenAITranslator translates through a chat-completion model. Useful when a
// dedicated translation API key is not available.
type OpenAITranslator struct {
	client *openai.Client
	model  string
}

func NewOpenAITranslator(apiKey, model string) *OpenAITranslator {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAITranslator{client: openai.NewClient(apiKey), model: model}
}

func (o *OpenAITranslator) Translate(ctx context.Context, text string, dir Direction) (string, error) {
	source, target, err := dir.Codes()
	if err != nil {
		return "", err
	}

	text = normalize(text)
	if text == "" {
		return "", nil
	}

	system := fmt.Sprintf(
		"You translate %s to %s. Reply with only the translation, no commentary.",
		languageName(source), languageName(target),
	)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai translation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai translation: no choices in response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAITranslator) VerifyReachable(ctx context.Context, dir Direction) error {
	if _, err := o.Translate(ctx, "hello", dir); err != nil {
		return fmt.Errorf("translation backend unreachable: %w", err)
	}
	return nil
}

func languageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}
