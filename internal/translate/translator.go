package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Direction is a fixed source→target language pair for one session.
type Direction string

const (
	DirectionEnToEs Direction = "en-es"
	DirectionEsToEn Direction = "es-en"
)

// ErrUnknownDirection is returned for any direction outside the supported set.
var ErrUnknownDirection = errors.New("unknown translation direction")

// Codes maps a direction to its {source, target} ISO 639-1 language codes.
func (d Direction) Codes() (source, target string, err error) {
	switch d {
	case DirectionEnToEs:
		return "en", "es", nil
	case DirectionEsToEn:
		return "es", "en", nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownDirection, string(d))
	}
}

// Valid reports whether d is one of the supported directions.
func (d Direction) Valid() bool {
	_, _, err := d.Codes()
	return err == nil
}

// RequestError is a non-success response from the translation backend.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("translation request failed: status %d: %s", e.StatusCode, e.Body)
}

// Translator converts one utterance's text along a fixed direction.
type Translator interface {
	Translate(ctx context.Context, text string, dir Direction) (string, error)

	// VerifyReachable issues a minimal call to prove the configured credential
	// and endpoint are usable before a session starts accepting live audio.
	VerifyReachable(ctx context.Context, dir Direction) error
}

// NewTranslator builds a translator for the named provider.
func NewTranslator(provider, apiKey, model string) (Translator, error) {
	switch provider {
	case "", "google":
		return NewGoogleTranslator(apiKey), nil
	case "openai":
		return NewOpenAITranslator(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown translation provider %q: supported providers are google, openai", provider)
	}
}

// normalize collapses all interior whitespace runs to single spaces and trims.
func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
