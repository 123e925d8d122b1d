package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGoogleEndpoint = "https://translation.googleapis.com/language/translate/v2"

// GoogleTranslator calls the Google Cloud Translation v2 REST API.
// It keeps no state between calls and is safe to discard after a session.
type GoogleTranslator struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewGoogleTranslator(apiKey string) *GoogleTranslator {
	return &GoogleTranslator{
		apiKey:   apiKey,
		endpoint: defaultGoogleEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// SetEndpoint overrides the API endpoint. Used in tests.
func (g *GoogleTranslator) SetEndpoint(endpoint string) {
	g.endpoint = endpoint
}

type googleResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

func (g *GoogleTranslator) Translate(ctx context.Context, text string, dir Direction) (string, error) {
	source, target, err := dir.Codes()
	if err != nil {
		return "", err
	}

	text = normalize(text)
	if text == "" {
		return "", nil
	}

	form := url.Values{}
	form.Set("q", text)
	form.Set("source", source)
	form.Set("target", target)
	form.Set("format", "text")
	form.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build translation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read translation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RequestError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed googleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse translation response: %w", err)
	}
	if len(parsed.Data.Translations) == 0 {
		return "", fmt.Errorf("translation response contained no translations")
	}

	return parsed.Data.Translations[0].TranslatedText, nil
}

func (g *GoogleTranslator) VerifyReachable(ctx context.Context, dir Direction) error {
	if _, err := g.Translate(ctx, "hello", dir); err != nil {
		return fmt.Errorf("translation backend unreachable: %w", err)
	}
	return nil
}
